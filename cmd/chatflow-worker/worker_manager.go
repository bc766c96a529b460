package main

import (
	"context"
	"log/slog"

	"github.com/dukex/chatflow/pkg/delay"
	"github.com/dukex/chatflow/pkg/dispatch"
	"github.com/dukex/chatflow/pkg/engine"
	"github.com/dukex/chatflow/pkg/eventbus"
	"github.com/dukex/chatflow/pkg/events"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/jonboulle/clockwork"
)

const (
	attemptMetadataKey = "attempt"
	maxDeliveries      = 5
)

// WorkerManager consumes inbound messages and fired delays and runs their
// turns on the dispatch pool, one shard per conversation.
type WorkerManager struct {
	id       string
	logger   *slog.Logger
	engine   *engine.Engine
	eventBus eventbus.EventBus
	pool     *dispatch.Pool
	poller   *delay.Poller
}

func NewWorkerManager(
	id string,
	logger *slog.Logger,
	engine *engine.Engine,
	eventBus eventbus.EventBus,
	pool *dispatch.Pool,
	delays persistence.DelayRepository,
	clock clockwork.Clock,
	pollerConfig delay.PollerConfig,
) *WorkerManager {
	w := &WorkerManager{
		id:       id,
		logger:   logger.With("module", "chatflow-worker", "worker_id", id),
		engine:   engine,
		eventBus: eventBus,
		pool:     pool,
	}

	w.poller = delay.NewPoller(logger, delays, w, clock, pollerConfig)

	return w
}

// Start subscribes to the event bus and starts the delay poller. It blocks
// until ctx is done, then drains the dispatch pool.
func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	err := w.eventBus.Handle(events.MessageReceivedEvent, w.handleMessageReceived)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = w.poller.Start(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to start delay poller", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	<-ctx.Done()

	w.logger.InfoContext(ctx, "Shutting down worker...")
	w.poller.Stop()
	w.pool.Stop()

	return nil
}

// Resume runs a fired delay on the shard of its conversation so it is
// ordered with the inbound messages of that conversation.
func (w *WorkerManager) Resume(ctx context.Context, resumption *models.DelayedResumption) error {
	done := make(chan error, 1)

	err := w.pool.Submit(ctx, resumption.ConversationID, func(jobCtx context.Context) {
		done <- w.engine.Resume(jobCtx, resumption)
	})
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WorkerManager) handleMessageReceived(ctx context.Context, event any) error {
	received, ok := event.(*events.MessageReceived)
	if !ok || received.Message == nil {
		w.logger.ErrorContext(ctx, "Invalid event type for MessageReceived")

		return nil
	}

	conversationID := received.Message.Conversation.ID

	// The turn outlives the delivery; shutdown drains the pool.
	jobCtx := context.WithoutCancel(ctx)

	return w.pool.Submit(ctx, conversationID, func(context.Context) {
		err := w.engine.OnMessageReceived(jobCtx, received)
		if err != nil {
			w.redeliver(jobCtx, received, err)
		}
	})
}

// redeliver publishes a message whose turn failed on infrastructure errors
// again, up to maxDeliveries attempts.
func (w *WorkerManager) redeliver(ctx context.Context, received *events.MessageReceived, cause error) {
	logger := w.logger.With(
		"conversation_id", received.Message.Conversation.ID,
		"message_id", received.Message.ID,
		"error", cause,
	)

	attempt := deliveryAttempt(received) + 1
	if attempt >= maxDeliveries {
		logger.ErrorContext(ctx, "Giving up on inbound message", "attempts", attempt)

		return
	}

	logger.WarnContext(ctx, "Turn failed, redelivering inbound message", "attempt", attempt)

	retry := *received
	retry.Metadata = map[string]any{attemptMetadataKey: attempt}

	err := w.eventBus.Publish(ctx, received.Message.Conversation.ID, retry)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to redeliver inbound message", "publish_error", err)
	}
}

func deliveryAttempt(event *events.MessageReceived) int {
	switch attempt := event.Metadata[attemptMetadataKey].(type) {
	case int:
		return attempt
	case float64:
		return int(attempt)
	default:
		return 0
	}
}
