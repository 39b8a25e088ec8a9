package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherInvokesAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventSLABreached, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.TicketID)
		return errors.New("webhook down")
	})
	d.Subscribe(EventSLABreached, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.TicketID)
		return nil
	})
	d.Subscribe(EventSLAWarning, func(_ context.Context, e Event) error {
		calls = append(calls, "warning:"+e.TicketID)
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventSLABreached, TicketID: "t-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook down")
	assert.Equal(t, []string{"first:t-1", "second:t-1"}, calls)
}

func TestDispatcherWithoutListeners(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventSLAWarning}))
}

func TestDispatcherRecoversPanickingHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	reached := false
	d.Subscribe(EventSLAWarning, func(context.Context, Event) error {
		panic("nil mailer")
	})
	d.Subscribe(EventSLAWarning, func(context.Context, Event) error {
		reached = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventSLAWarning})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.True(t, reached)
}
