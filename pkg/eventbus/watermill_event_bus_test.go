package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/runline/runline/pkg/channels/gochannel"
	"github.com/runline/runline/pkg/eventbus"
	"github.com/runline/runline/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	received := make(chan *events.StepActivated, 1)

	err := bus.Handle(events.StepActivatedEvent, func(ctx context.Context, event any) error {
		activated, ok := event.(*events.StepActivated)
		require.True(t, ok)
		received <- activated

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	sent := events.StepActivated{
		BaseEvent: events.BaseEvent{
			ID:        bus.GenerateID(),
			Type:      events.StepActivatedEvent,
			Timestamp: time.Now().UTC(),
			RunID:     "run-1",
		},
		StepID: "step-1",
		NodeID: "review",
		DoerID: "bob",
	}

	require.NoError(t, bus.Publish(ctx, "run-1", sent))

	select {
	case got := <-received:
		assert.Equal(t, "run-1", got.RunID)
		assert.Equal(t, "step-1", got.StepID)
		assert.Equal(t, "bob", got.DoerID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_UnhandledTypesAreAcked(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	received := make(chan *events.RunCancelled, 1)

	err := bus.Handle(events.RunCancelledEvent, func(ctx context.Context, event any) error {
		cancelled, ok := event.(*events.RunCancelled)
		require.True(t, ok)
		received <- cancelled

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	// An event nobody subscribed to must not wedge the stream.
	started := events.RunStarted{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.RunStartedEvent, RunID: "run-1"},
	}
	require.NoError(t, bus.Publish(ctx, "run-1", started))

	cancelled := events.RunCancelled{
		BaseEvent:   events.BaseEvent{ID: bus.GenerateID(), Type: events.RunCancelledEvent, RunID: "run-1"},
		CancelledBy: "carol",
	}
	require.NoError(t, bus.Publish(ctx, "run-1", cancelled))

	select {
	case got := <-received:
		assert.Equal(t, "carol", got.CancelledBy)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}
