package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasspane/glasspane/internal/policy"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(4)
	defer cancel()

	bus.RequestClassified(policy.Verdict{
		Action: policy.ActionBlock,
		Rule:   "CreateTweet",
		Kind:   policy.RuleKindGraphQL,
	}, "POST", "https://x.com/i/api/graphql/abc/CreateTweet")

	select {
	case e := <-ch:
		assert.Equal(t, TypeVerdict, e.Type)
		assert.Equal(t, "block", e.Action)
		assert.Equal(t, "CreateTweet", e.Rule)
		assert.Equal(t, "POST", e.Method)
		assert.NotZero(t, e.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.EnforcementPass(1, 0)
	bus.EnforcementPass(2, 0)
	bus.EnforcementPass(3, 0)

	e := <-ch
	assert.Equal(t, 1, e.Hidden)
	select {
	case <-ch:
		t.Fatal("overflow events should have been dropped")
	default:
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	require.Equal(t, 1, bus.Subscribers())

	cancel()
	cancel() // idempotent

	assert.Equal(t, 0, bus.Subscribers())
	_, open := <-ch
	assert.False(t, open)

	// publishing after cancel must not panic
	bus.ClickIntercepted(`[data-testid="retweet"]`)
}

func TestEventMarshal(t *testing.T) {
	e := Event{Type: TypeClick, Selector: `[data-testid="like"]`, Timestamp: 42}
	raw, err := e.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"click_intercepted"`)
	assert.Contains(t, string(raw), `"timestamp":42`)
}
