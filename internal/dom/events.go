package dom

import "golang.org/x/net/html"

// Event is one dispatched UI event.
type Event struct {
	Type   string
	Target *html.Node

	defaultPrevented bool
	stopped          bool
}

// PreventDefault cancels the event's default action.
func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

// StopPropagation halts delivery immediately, including to remaining
// listeners in the same phase.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// DefaultPrevented reports whether any listener cancelled the event.
func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

// Listener handles a dispatched event.
type Listener func(*Event)

type eventListener struct {
	typ     string
	capture bool
	fn      Listener
}

// AddEventListener registers a listener on a node. Pass the document root to
// listen at document level; capture-phase document listeners run before any
// node's own handlers.
func (d *Document) AddEventListener(n *html.Node, typ string, capture bool, fn Listener) {
	l := &eventListener{typ: typ, capture: capture, fn: fn}

	d.mu.Lock()
	defer d.mu.Unlock()
	if n == d.root {
		d.docLis = append(d.docLis, l)
		return
	}
	d.listeners[n] = append(d.listeners[n], l)
}

// DispatchClick delivers a click to target: capture phase from the document
// down through target's ancestors, then the target's own listeners, then
// bubble back up. The returned event records whether the default action was
// prevented.
func (d *Document) DispatchClick(target *html.Node) *Event {
	ev := &Event{Type: "click", Target: target}

	// Ancestor chain, document-first.
	var chain []*html.Node
	for n := target; n != nil; n = n.Parent {
		chain = append([]*html.Node{n}, chain...)
	}

	// Capture phase.
	for _, n := range chain {
		for _, l := range d.listenersFor(n, "click", true) {
			l.fn(ev)
			if ev.stopped {
				return ev
			}
		}
	}

	// Target and bubble phase.
	for i := len(chain) - 1; i >= 0; i-- {
		for _, l := range d.listenersFor(chain[i], "click", false) {
			l.fn(ev)
			if ev.stopped {
				return ev
			}
		}
	}

	return ev
}

func (d *Document) listenersFor(n *html.Node, typ string, capture bool) []*eventListener {
	d.mu.Lock()
	defer d.mu.Unlock()

	src := d.listeners[n]
	if n == d.root {
		src = d.docLis
	}
	var out []*eventListener
	for _, l := range src {
		if l.typ == typ && l.capture == capture {
			out = append(out, l)
		}
	}
	return out
}
