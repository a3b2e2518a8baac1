package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(func(e Event) { got = append(got, "first:"+e.Kind.String()) })
	bus.Subscribe(func(e Event) { got = append(got, "second:"+e.Kind.String()) })

	bus.Publish(Event{Kind: SessionEnded})

	assert.Equal(t, []string{"first:session ended", "second:session ended"}, got)
}

func TestBusAllowsNestedPublish(t *testing.T) {
	bus := NewBus()
	var kinds []Kind
	bus.Subscribe(func(e Event) {
		kinds = append(kinds, e.Kind)
		if e.Kind == SessionEnded {
			bus.Publish(Event{Kind: SummaryReady})
		}
	})

	bus.Publish(Event{Kind: SessionEnded})

	assert.Equal(t, []Kind{SessionEnded, SummaryReady}, kinds)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "entry set changed", EntrySetChanged.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
