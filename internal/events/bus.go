package events

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/glasspane/glasspane/internal/policy"
)

// Event is one policy decision made by the gateway.
type Event struct {
	Type      string `json:"type"`
	Action    string `json:"action,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Rule      string `json:"rule,omitempty"`
	Method    string `json:"method,omitempty"`
	URL       string `json:"url,omitempty"`
	Selector  string `json:"selector,omitempty"`
	Hidden    int    `json:"hidden,omitempty"`
	Disabled  int    `json:"disabled,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

const (
	TypeVerdict     = "verdict"
	TypeEnforcement = "enforcement"
	TypeClick       = "click_intercepted"
)

// Marshal encodes an event as JSON.
func (e Event) Marshal() ([]byte, error) {
	return sonic.Marshal(e)
}

// Bus fans policy events out to subscribers. Slow subscribers drop events
// rather than stalling the hot path.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new subscriber. Call the returned cancel func to
// unsubscribe; the channel is closed by cancel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers reports the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// RequestClassified implements the wire-path verdict reporter.
func (b *Bus) RequestClassified(v policy.Verdict, method, url string) {
	b.Publish(Event{
		Type:   TypeVerdict,
		Action: string(v.Action),
		Kind:   string(v.Kind),
		Rule:   v.Rule,
		Method: method,
		URL:    url,
	})
}

// EnforcementPass implements the enforcer reporter.
func (b *Bus) EnforcementPass(hidden, disabled int) {
	b.Publish(Event{
		Type:     TypeEnforcement,
		Hidden:   hidden,
		Disabled: disabled,
	})
}

// ClickIntercepted implements the enforcer reporter.
func (b *Bus) ClickIntercepted(selector string) {
	b.Publish(Event{
		Type:     TypeClick,
		Selector: selector,
	})
}
