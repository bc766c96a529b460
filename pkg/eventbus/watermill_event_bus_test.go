package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/chatflow/pkg/channels/gochannel"
	"github.com/dukex/chatflow/pkg/eventbus"
	"github.com/dukex/chatflow/pkg/events"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(slog.New(slog.DiscardHandler), pub, sub)

	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_DeliversInboundMessages(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	received := make(chan *events.MessageReceived, 1)

	require.NoError(t, bus.Handle(events.MessageReceivedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.MessageReceived)

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	conv := models.Conversation{ID: "messenger:page-1:user-1", Platform: models.PlatformMessenger, PageID: "page-1", UserID: "user-1"}
	event := events.MessageReceived{
		BaseEvent: events.NewBaseEvent(bus.GenerateID(), events.MessageReceivedEvent, conv.ID, "", time.Now()),
		Message:   &models.InboundMessage{ID: "mid.1", Conversation: conv, Text: "hello"},
	}

	require.NoError(t, bus.Publish(t.Context(), conv.ID, event))

	select {
	case got := <-received:
		assert.Equal(t, "hello", got.Message.Text)
		assert.Equal(t, conv.ID, got.ConversationID)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message was not delivered")
	}
}

func TestWatermillEventBus_RedeliversOnHandlerError(t *testing.T) {
	t.Parallel()

	bus := newBus(t)

	var attempts atomic.Int32

	done := make(chan struct{})

	require.NoError(t, bus.Handle(events.FlowHandedOffEvent, func(_ context.Context, event any) error {
		if attempts.Add(1) == 1 {
			return errors.New("inbox unavailable")
		}

		assert.Equal(t, "Appointment request", event.(*events.FlowHandedOff).Reason)
		close(done)

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	event := events.FlowHandedOff{
		BaseEvent: events.NewBaseEvent(bus.GenerateID(), events.FlowHandedOffEvent, "c-1", "flow-1", time.Now()),
		Reason:    "Appointment request",
	}

	require.NoError(t, bus.Publish(t.Context(), "c-1", event))

	select {
	case <-done:
		assert.Equal(t, int32(2), attempts.Load())
	case <-time.After(2 * time.Second):
		t.Fatal("handed off event was not redelivered")
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	assert.NoError(t, eventbus.Discard{}.Publish(t.Context(), "k", events.FlowCompleted{}))
}
