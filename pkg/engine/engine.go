// Package engine runs conversations through published flows. The Engine owns
// the turn: it serializes work per conversation, routes inbound messages
// through the trigger matcher, drives the Walker and persists the result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/chatflow/pkg/delay"
	"github.com/dukex/chatflow/pkg/eventbus"
	"github.com/dukex/chatflow/pkg/events"
	"github.com/dukex/chatflow/pkg/locks"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/otelhelper"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/dukex/chatflow/pkg/triggers"
	"github.com/dukex/chatflow/pkg/variables"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"
)

// Options carries the collaborators of an Engine. Persistence, Executors and
// Messenger are required.
type Options struct {
	Persistence persistence.Persistence
	Executors   ExecutorSource
	Messenger   protocol.Messenger
	Locker      locks.Locker
	Publisher   eventbus.EventPublisher
	Clock       clockwork.Clock
	Tracer      trace.Tracer
	Config      Config
	WorkerID    string
}

type Engine struct {
	flows     persistence.FlowRepository
	states    persistence.ConversationRepository
	delays    *delay.Manager
	delayRepo persistence.DelayRepository
	locker    locks.Locker
	matcher   *triggers.Matcher
	walker    *Walker
	messenger protocol.Messenger
	publisher eventbus.EventPublisher
	clock     clockwork.Clock
	tracer    trace.Tracer
	logger    *slog.Logger
	config    Config
	workerID  string
}

func New(logger *slog.Logger, opts Options) *Engine {
	logger = logger.With("module", "engine")

	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	if opts.Locker == nil {
		opts.Locker = locks.NewKeyedMutex()
	}

	if opts.Publisher == nil {
		opts.Publisher = eventbus.Discard{}
	}

	if opts.Tracer == nil {
		opts.Tracer = otelhelper.NoopTracer()
	}

	config := opts.Config.withDefaults()

	return &Engine{
		flows:     opts.Persistence.FlowRepository(),
		states:    opts.Persistence.ConversationRepository(),
		delays:    delay.NewManager(logger, opts.Persistence.DelayRepository(), opts.Clock),
		delayRepo: opts.Persistence.DelayRepository(),
		locker:    opts.Locker,
		matcher:   triggers.NewMatcher(logger),
		walker:    NewWalker(logger, opts.Executors, nil, opts.Messenger, opts.Tracer, config),
		messenger: opts.Messenger,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		tracer:    opts.Tracer,
		logger:    logger,
		config:    config,
		workerID:  opts.WorkerID,
	}
}

// HandleInbound runs one turn for an inbound message. It returns a nil
// Outcome when no flow ran (duplicate message, handed-off conversation or no
// matching flow). Failures inside the flow are reported in Outcome.Err after
// the conversation was handed off; the returned error is for infrastructure
// failures only.
func (e *Engine) HandleInbound(ctx context.Context, msg *models.InboundMessage) (*Outcome, error) {
	if msg == nil || msg.Conversation.ID == "" {
		return nil, ErrInvalidMessage
	}

	conversationID := msg.Conversation.ID

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, otelhelper.SpanInbound, otelhelper.InboundAttributes(msg)...)
	defer span.End()

	unlock, err := e.locker.Lock(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock conversation %s: %w", conversationID, err)
	}
	defer unlock()

	state, err := e.loadState(ctx, conversationID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	logger := e.logger.With("conversation_id", conversationID, "message_id", msg.ID)

	if state != nil {
		if msg.ID != "" && msg.ID == state.LastMessageID {
			logger.DebugContext(ctx, "Skipping duplicate message")

			return nil, nil
		}

		if !msg.Timestamp.IsZero() && msg.Timestamp.Before(state.LastMessageAt) {
			logger.WarnContext(ctx, "Rejecting out of order message",
				"timestamp", msg.Timestamp, "last_message_at", state.LastMessageAt)

			return nil, ErrStaleMessage
		}

		if state.IsHandedOff() {
			logger.InfoContext(ctx, "Conversation is handed off, recording message only")
			e.recordMessage(state, msg)

			return nil, e.save(ctx, state)
		}
	}

	running, err := e.runningFlow(ctx, state, logger)
	if err != nil {
		return nil, err
	}

	flows, err := e.flows.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active flows: %w", err)
	}

	candidates := e.matcher.Candidates(triggers.InputFromMessage(msg), flows)

	var started *models.FlowDefinition
	if running != nil {
		started = triggers.Select(candidates, running)
	} else if len(candidates) > 0 {
		started = candidates[0]
	}

	var flow *models.FlowDefinition

	switch {
	case started != nil:
		flow = started
		state = e.start(ctx, msg, started, running)
	case running != nil:
		flow = running
		bindInput(state, msg)
	default:
		return nil, e.unmatched(ctx, state, msg, logger)
	}

	e.recordMessage(state, msg)
	bindSystemVariables(state, msg)

	outcome, err := e.walk(ctx, flow, state)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return outcome, err
}

// Resume continues a conversation at a fired delayed resumption. Resumptions
// the conversation no longer waits on are ignored, which makes redelivery safe.
func (e *Engine) Resume(ctx context.Context, resumption *models.DelayedResumption) error {
	conversationID := resumption.ConversationID

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, otelhelper.SpanResume, otelhelper.ResumeAttributes(resumption)...)
	defer span.End()

	unlock, err := e.locker.Lock(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to lock conversation %s: %w", conversationID, err)
	}
	defer unlock()

	logger := e.logger.With("conversation_id", conversationID, "delay_id", resumption.ID)

	state, err := e.loadState(ctx, conversationID)
	if err != nil {
		return err
	}

	if state == nil || !waitsOn(state, resumption.ID) {
		logger.InfoContext(ctx, "Ignoring resumption the conversation no longer waits on")

		return nil
	}

	state.PendingDelay.Status = models.DelayStatusFired

	flow, err := e.flows.GetByID(ctx, resumption.FlowID)
	if err != nil {
		if !errors.Is(err, persistence.ErrFlowNotFound) {
			return err
		}

		logger.WarnContext(ctx, "Flow of resumption no longer exists", "flow_id", resumption.FlowID)
		e.walker.complete(state)
		state.LastError = err.Error()

		return e.save(ctx, state)
	}

	e.publish(ctx, conversationID, events.DelayFired{
		BaseEvent: e.baseEvent(events.DelayFiredEvent, conversationID, flow.ID),
		DelayID:   resumption.ID,
		NodeID:    resumption.NodeID,
	})

	state.CurrentNodeID = resumption.NodeID
	state.ActionIndex = resumption.ActionIndex

	_, err = e.walk(ctx, flow, state)

	return err
}

// Reset clears the execution state of a conversation and cancels its pending
// delays. The next inbound message is routed as if the conversation were new.
func (e *Engine) Reset(ctx context.Context, conversationID string) error {
	unlock, err := e.locker.Lock(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to lock conversation %s: %w", conversationID, err)
	}
	defer unlock()

	resumptions, err := e.delayRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	for _, resumption := range resumptions {
		if resumption.Status != models.DelayStatusScheduled && resumption.Status != models.DelayStatusClaimed {
			continue
		}

		err = e.delays.Cancel(ctx, resumption.ID)
		if err != nil {
			return err
		}

		e.publish(ctx, conversationID, events.DelayCancelled{
			BaseEvent: e.baseEvent(events.DelayCancelledEvent, conversationID, resumption.FlowID),
			DelayID:   resumption.ID,
		})
	}

	err = e.states.Delete(ctx, conversationID)
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Conversation reset", "conversation_id", conversationID)

	return nil
}

// State returns the execution state of a conversation.
func (e *Engine) State(ctx context.Context, conversationID string) (*models.ConversationExecutionState, error) {
	return e.states.Get(ctx, conversationID)
}

// OnMessageReceived is the event bus handler for inbound messages.
func (e *Engine) OnMessageReceived(ctx context.Context, event any) error {
	received, ok := event.(*events.MessageReceived)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}

	_, err := e.HandleInbound(ctx, received.Message)
	if errors.Is(err, ErrStaleMessage) || errors.Is(err, ErrInvalidMessage) {
		e.logger.WarnContext(ctx, "Dropping inbound message", "error", err)

		return nil
	}

	return err
}

func (e *Engine) loadState(ctx context.Context, conversationID string) (*models.ConversationExecutionState, error) {
	state, err := e.states.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, persistence.ErrConversationNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to load conversation %s: %w", conversationID, err)
	}

	return state, nil
}

// runningFlow returns the flow the conversation is inside, or nil. A pending
// delay is cancelled here: a message during the wait abandons the flow and is
// routed fresh.
func (e *Engine) runningFlow(
	ctx context.Context,
	state *models.ConversationExecutionState,
	logger *slog.Logger,
) (*models.FlowDefinition, error) {
	if !state.IsActive() {
		return nil, nil
	}

	if state.PendingDelay != nil && state.PendingDelay.Status == models.DelayStatusScheduled {
		err := e.delays.Cancel(ctx, state.PendingDelay.ID)
		if err != nil {
			return nil, err
		}

		logger.InfoContext(ctx, "Pending delay cancelled by inbound message", "delay_id", state.PendingDelay.ID)

		e.publish(ctx, state.ConversationID, events.DelayCancelled{
			BaseEvent: e.baseEvent(events.DelayCancelledEvent, state.ConversationID, state.FlowID),
			DelayID:   state.PendingDelay.ID,
		})

		pending := state.PendingDelay
		e.walker.complete(state)

		pending.Status = models.DelayStatusCancelled
		state.PendingDelay = pending

		return nil, nil
	}

	flow, err := e.flows.GetByID(ctx, state.FlowID)
	if err != nil {
		if errors.Is(err, persistence.ErrFlowNotFound) {
			logger.WarnContext(ctx, "Running flow no longer exists", "flow_id", state.FlowID)

			return nil, nil
		}

		return nil, err
	}

	return flow, nil
}

func (e *Engine) start(
	ctx context.Context,
	msg *models.InboundMessage,
	flow *models.FlowDefinition,
	running *models.FlowDefinition,
) *models.ConversationExecutionState {
	state := models.NewConversationState(msg.Conversation.ID, flow, e.clock.Now().UTC())
	state.Conversation = msg.Conversation

	event := events.FlowStarted{
		BaseEvent:   e.baseEvent(events.FlowStartedEvent, state.ConversationID, flow.ID),
		FlowName:    flow.Name,
		TriggeredBy: msg.ID,
	}

	if running != nil {
		event.Preempted = running.ID
	}

	e.logger.InfoContext(ctx, "Flow started",
		"conversation_id", state.ConversationID,
		"flow_id", flow.ID,
		"flow_name", flow.Name,
		"preempted_flow_id", event.Preempted,
	)

	e.publish(ctx, state.ConversationID, event)

	return state
}

// unmatched handles a message no flow takes. The state, when there is one,
// only records the message so ordering checks keep working.
func (e *Engine) unmatched(
	ctx context.Context,
	state *models.ConversationExecutionState,
	msg *models.InboundMessage,
	logger *slog.Logger,
) error {
	logger.DebugContext(ctx, "No flow matched the message")

	if state != nil {
		e.recordMessage(state, msg)

		err := e.save(ctx, state)
		if err != nil {
			return err
		}
	}

	if e.config.FallbackMessage == "" {
		return nil
	}

	err := e.messenger.Send(ctx, msg.Conversation, &models.OutboundMessage{
		ConversationID: msg.Conversation.ID,
		Text:           e.config.FallbackMessage,
	})
	if err != nil {
		logger.WarnContext(ctx, "Failed to send fallback message", "error", err)
	}

	return nil
}

// walk runs the walker, schedules a requested delay, saves the state and
// publishes the matching operator events.
func (e *Engine) walk(
	ctx context.Context,
	flow *models.FlowDefinition,
	state *models.ConversationExecutionState,
) (*Outcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, otelhelper.SpanWalk,
		otelhelper.ConversationAttributes(state.ConversationID, flow.ID, state.CurrentNodeID)...)
	defer span.End()

	logger := e.logger.With("conversation_id", state.ConversationID, "flow_id", flow.ID)

	outcome, walkErr := e.walker.Walk(ctx, flow, state, state.Conversation)
	if walkErr != nil && ctx.Err() != nil {
		otelhelper.SetError(span, walkErr)

		saveErr := e.save(context.WithoutCancel(ctx), state)

		return outcome, errors.Join(walkErr, saveErr)
	}

	outcome.Err = walkErr

	if outcome.Delay != nil {
		e.schedule(ctx, flow, state, outcome)
	}

	err := e.save(ctx, state)
	if err != nil {
		otelhelper.SetError(span, err)

		return outcome, err
	}

	if outcome.Err != nil {
		otelhelper.SetError(span, outcome.Err)
		logger.ErrorContext(ctx, "Flow turn failed",
			"node_id", state.CurrentNodeID,
			"steps", outcome.Steps,
			"error", outcome.Err,
		)

		e.publish(ctx, state.ConversationID, events.FlowFailed{
			BaseEvent: e.baseEvent(events.FlowFailedEvent, state.ConversationID, flow.ID),
			NodeID:    state.CurrentNodeID,
			Error:     outcome.Err.Error(),
		})
	}

	switch state.Status {
	case models.ExecutionStatusCompleted:
		logger.InfoContext(ctx, "Flow completed", "node_id", state.CurrentNodeID, "steps", outcome.Steps)

		e.publish(ctx, state.ConversationID, events.FlowCompleted{
			BaseEvent: e.baseEvent(events.FlowCompletedEvent, state.ConversationID, flow.ID),
			NodeID:    state.CurrentNodeID,
		})
	case models.ExecutionStatusHandedOff:
		logger.InfoContext(ctx, "Flow handed off", "node_id", state.CurrentNodeID, "reason", state.HandoffReason)

		e.publish(ctx, state.ConversationID, events.FlowHandedOff{
			BaseEvent: e.baseEvent(events.FlowHandedOffEvent, state.ConversationID, flow.ID),
			NodeID:    state.CurrentNodeID,
			Reason:    state.HandoffReason,
			Variables: variables.New(state.Variables).Snapshot(),
		})
	}

	return outcome, nil
}

func (e *Engine) schedule(
	ctx context.Context,
	flow *models.FlowDefinition,
	state *models.ConversationExecutionState,
	outcome *Outcome,
) {
	request := outcome.Delay

	resumption, err := e.delays.Schedule(ctx, state.ConversationID, flow.ID, request.NodeID, request.ActionIndex, request.Duration)
	if err != nil {
		e.walker.handOff(state, ReasonExecutionError, err)
		outcome.Status = state.Status
		outcome.Err = fmt.Errorf("failed to schedule delay: %w", err)

		return
	}

	state.PendingDelay = resumption.Pending()

	e.publish(ctx, state.ConversationID, events.DelayScheduled{
		BaseEvent: e.baseEvent(events.DelayScheduledEvent, state.ConversationID, flow.ID),
		DelayID:   resumption.ID,
		NodeID:    resumption.NodeID,
		ResumeAt:  resumption.ResumeAt,
	})
}

func (e *Engine) save(ctx context.Context, state *models.ConversationExecutionState) error {
	state.UpdatedAt = e.clock.Now().UTC()

	err := e.states.Save(ctx, state)
	if err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", state.ConversationID, err)
	}

	return nil
}

func (e *Engine) publish(ctx context.Context, conversationID string, event eventbus.Event) {
	err := e.publisher.Publish(ctx, conversationID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"conversation_id", conversationID,
			"event_type", event.GetType(),
			"error", err,
		)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, conversationID, flowID string) events.BaseEvent {
	base := events.NewBaseEvent(newEventID(), eventType, conversationID, flowID, e.clock.Now().UTC())
	base.WorkerID = e.workerID

	return base
}

func (e *Engine) recordMessage(state *models.ConversationExecutionState, msg *models.InboundMessage) {
	state.Conversation = msg.Conversation
	state.LastMessageID = msg.ID
	state.LastUserMessage = msg.Text

	if !msg.Timestamp.IsZero() {
		state.LastMessageAt = msg.Timestamp
	}
}

// bindInput hands the message to the collect_input the state waits on.
func bindInput(state *models.ConversationExecutionState, msg *models.InboundMessage) {
	awaiting := state.AwaitingInput
	if awaiting == nil {
		return
	}

	if state.Variables == nil {
		state.Variables = map[string]any{}
	}

	state.Variables[awaiting.InputName] = msg.Text
	state.CurrentNodeID = awaiting.NodeID
	state.ActionIndex = awaiting.ActionIndex
	state.AwaitingInput = nil
}

func bindSystemVariables(state *models.ConversationExecutionState, msg *models.InboundMessage) {
	if state.Variables == nil {
		state.Variables = map[string]any{}
	}

	state.Variables[variables.LastUserMessage] = msg.Text
	state.Variables[variables.ConversationID] = msg.Conversation.ID
	state.Variables[variables.UserID] = msg.Conversation.UserID
	state.Variables[variables.PageID] = msg.Conversation.PageID
	state.Variables[variables.Platform] = string(msg.Conversation.Platform)
}

func waitsOn(state *models.ConversationExecutionState, delayID string) bool {
	return state.IsActive() &&
		state.PendingDelay != nil &&
		state.PendingDelay.ID == delayID &&
		state.PendingDelay.Status == models.DelayStatusScheduled
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
