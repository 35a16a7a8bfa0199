package enforcer

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/glasspane/glasspane/internal/dom"
	"github.com/glasspane/glasspane/internal/logging"
	"github.com/glasspane/glasspane/internal/policy"
)

// Reporter receives enforcement observability events.
type Reporter interface {
	EnforcementPass(hidden, disabled int)
	ClickIntercepted(selector string)
}

type nopReporter struct{}

func (nopReporter) EnforcementPass(int, int) {}
func (nopReporter) ClickIntercepted(string)  {}

// Enforcer applies the policy table's control descriptors to one live
// document. It re-applies on every child insertion and intercepts clicks on
// suppressed controls as a fallback for the window between a control's
// appearance and the next pass.
//
// An enforcer is bound to a single document; a fresh navigation needs a
// fresh enforcer.
type Enforcer struct {
	doc      *dom.Document
	hide     []policy.Control
	disable  []policy.Control
	log      *logging.Logger
	reporter Reporter

	mu       sync.Mutex
	attached bool
	active   bool
}

// New creates an enforcer for doc over the table's control taxonomy.
// An empty taxonomy degrades to a no-op enforcer; that is fail-open and is
// logged loudly because the DOM layer is the softer protection.
func New(table *policy.Table, doc *dom.Document, log *logging.Logger, reporter Reporter) *Enforcer {
	if log == nil {
		log = logging.NewNop()
	}
	if reporter == nil {
		reporter = nopReporter{}
	}

	e := &Enforcer{
		doc:      doc,
		log:      log.Component("enforcer"),
		reporter: reporter,
	}
	if table != nil {
		e.hide = table.ControlsByMode(policy.ModeHide)
		e.disable = table.ControlsByMode(policy.ModeDisable)
	}
	if len(e.hide) == 0 && len(e.disable) == 0 {
		e.log.Error("control taxonomy empty, enforcement disabled for this page")
	}
	return e
}

// Attach wires the enforcer to its document: a mutation observer plus a
// capture-phase click listener, and the first enforcement pass. If the body
// is not available yet, everything is deferred until an insertion makes it
// available. Attach is idempotent; calling it again on the same document is
// a no-op.
func (e *Enforcer) Attach() {
	e.mu.Lock()
	if e.attached {
		e.mu.Unlock()
		return
	}
	e.attached = true
	e.mu.Unlock()

	e.doc.Observe(e.onMutation)
	if e.doc.Ready() {
		e.activate()
	}
}

// activate completes initialization once the body exists.
func (e *Enforcer) activate() {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return
	}
	e.active = true
	e.mu.Unlock()

	e.doc.AddEventListener(e.doc.Root(), "click", true, e.onClick)
	e.Enforce()
}

func (e *Enforcer) onMutation(m dom.Mutation) {
	if m.Added < 1 {
		return
	}

	e.mu.Lock()
	active := e.active
	e.mu.Unlock()

	if !active {
		// Still waiting for the body.
		if e.doc.Ready() {
			e.activate()
		}
		return
	}

	// Full re-scan. Recomputing against the whole current tree is both
	// simpler and correct under reordering or wrapped insertions.
	e.Enforce()
}

// Enforce applies the control taxonomy to the current tree. Idempotent and
// safe to call repeatedly; it never caches matches across invocations, since
// previously matched nodes may have been replaced.
func (e *Enforcer) Enforce() (hidden, disabled int) {
	if len(e.hide) == 0 && len(e.disable) == 0 {
		return 0, 0
	}

	for _, n := range e.doc.Elements(e.matchesAny(e.hide)) {
		e.doc.SetStyle(n, "display", "none")
		e.doc.SetAttr(n, "data-glasspane", "hidden")
		hidden++
	}

	for _, n := range e.doc.Elements(e.matchesAny(e.disable)) {
		e.doc.SetStyle(n, "pointer-events", "none")
		e.doc.SetStyle(n, "opacity", "0.5")
		e.doc.SetAttr(n, "aria-disabled", "true")
		e.doc.SetAttr(n, "tabindex", "-1")
		e.doc.SetAttr(n, "data-glasspane", "disabled")
		disabled++
	}

	e.reporter.EnforcementPass(hidden, disabled)
	return hidden, disabled
}

func (e *Enforcer) matchesAny(controls []policy.Control) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, c := range controls {
			if c.Matches(n) {
				return true
			}
		}
		return false
	}
}

// onClick is the capture-phase fallback: walk the target's ancestor chain up
// to, and excluding, the body; the first ancestor matching any control in
// either group swallows the event before the page's own handlers see it.
func (e *Enforcer) onClick(ev *dom.Event) {
	body := e.doc.Body()
	for n := ev.Target; n != nil && n != body; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if c, ok := e.matchControl(n); ok {
			ev.PreventDefault()
			ev.StopPropagation()
			e.reporter.ClickIntercepted(c.Selector)
			e.log.Debug("intercepted click on suppressed control",
				zap.String("selector", c.Selector),
				zap.String("mode", string(c.Mode)),
			)
			return
		}
	}
}

func (e *Enforcer) matchControl(n *html.Node) (policy.Control, bool) {
	for _, c := range e.hide {
		if c.Matches(n) {
			return c, true
		}
	}
	for _, c := range e.disable {
		if c.Matches(n) {
			return c, true
		}
	}
	return policy.Control{}, false
}
