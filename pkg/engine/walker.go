package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/chatflow/pkg/conditions"
	"github.com/dukex/chatflow/pkg/log"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/otelhelper"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/dukex/chatflow/pkg/variables"
	"go.opentelemetry.io/otel/trace"
)

// ExecutorSource resolves the executor of an action type.
type ExecutorSource interface {
	Executor(actionType models.ActionType) (protocol.Executor, error)
}

// DelayRequest asks the engine to schedule a durable resumption.
type DelayRequest struct {
	NodeID      string
	ActionIndex int
	Duration    time.Duration
}

// Outcome describes how a walk ended.
type Outcome struct {
	Status models.ExecutionStatus
	NodeID string
	Steps  int
	Sent   []*models.OutboundMessage
	Delay  *DelayRequest

	// Err is the failure that handed the conversation off, if any.
	Err error
}

// Walker drives a conversation through a flow graph node by node until the
// turn suspends or terminates. It owns no state: everything it mutates lives
// in the ConversationExecutionState handed to Walk.
type Walker struct {
	executors ExecutorSource
	evaluator *conditions.Evaluator
	messenger protocol.Messenger
	tracer    trace.Tracer
	logger    *slog.Logger
	config    Config
}

func NewWalker(
	logger *slog.Logger,
	executors ExecutorSource,
	evaluator *conditions.Evaluator,
	messenger protocol.Messenger,
	tracer trace.Tracer,
	config Config,
) *Walker {
	if evaluator == nil {
		evaluator = conditions.NewEvaluator()
	}

	if tracer == nil {
		tracer = otelhelper.NoopTracer()
	}

	return &Walker{
		executors: executors,
		evaluator: evaluator,
		messenger: messenger,
		tracer:    tracer,
		logger:    logger,
		config:    config.withDefaults(),
	}
}

// Walk runs the flow from the state's cursor. The returned error is one of the
// engine's failure kinds; when it is set the state has already been moved to
// its final status (usually handed_off) and only needs saving.
func (w *Walker) Walk(
	ctx context.Context,
	flow *models.FlowDefinition,
	state *models.ConversationExecutionState,
	conversation models.Conversation,
) (*Outcome, error) {
	if state.Variables == nil {
		state.Variables = map[string]any{}
	}

	store := variables.New(state.Variables)
	graph := flow.Graph()
	outcome := &Outcome{}

	state.Status = models.ExecutionStatusRunning

	for {
		err := ctx.Err()
		if err != nil {
			return w.finish(state, outcome), err
		}

		if outcome.Steps >= w.config.MaxSteps {
			loopErr := &InfiniteLoopError{
				ConversationID: state.ConversationID,
				FlowID:         flow.ID,
				NodeID:         state.CurrentNodeID,
				Steps:          outcome.Steps,
			}

			w.handOff(state, ReasonLoopDetected, loopErr)

			return w.finish(state, outcome), loopErr
		}

		node, ok := graph[state.CurrentNodeID]
		if !ok {
			nodeErr := fmt.Errorf("%w: %s", ErrNodeNotFound, state.CurrentNodeID)
			w.handOff(state, ReasonExecutionError, nodeErr)

			return w.finish(state, outcome), nodeErr
		}

		outcome.Steps++

		next, stop, err := w.step(ctx, flow, node, state, store, conversation, outcome)
		if err != nil || stop {
			return w.finish(state, outcome), err
		}

		if next == "" {
			w.complete(state)

			return w.finish(state, outcome), nil
		}

		state.CurrentNodeID = next
		state.ActionIndex = 0
	}
}

// step visits one node. It returns the next node id, or stop when the turn
// suspended or terminated inside the node.
func (w *Walker) step(
	ctx context.Context,
	flow *models.FlowDefinition,
	node *models.FlowNode,
	state *models.ConversationExecutionState,
	store *variables.Store,
	conversation models.Conversation,
	outcome *Outcome,
) (string, bool, error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, otelhelper.SpanNode,
		otelhelper.NodeAttributes(state.ConversationID, flow, node)...)
	defer span.End()

	logger := log.WithConversation(w.logger, state.ConversationID, flow.ID, node.ID)

	if node.IsCondition() {
		matched := w.evaluator.EvaluateAll(node.Conditions, store, state.LastUserMessage)
		logger.DebugContext(ctx, "Condition evaluated", "result", matched)

		if matched {
			return node.TrueBranch(), false, nil
		}

		return node.FalseBranch(), false, nil
	}

	for index := state.ActionIndex; index < len(node.Actions); index++ {
		result, err := w.execute(ctx, flow, node, index, state, store, conversation, logger)
		if err != nil {
			otelhelper.SetError(span, err)
			w.fail(ctx, state, conversation, err, outcome)

			return "", true, err
		}

		store.SetAll(result.VariableWrites)

		err = w.send(ctx, state, conversation, result.OutboundMessages, outcome, logger)
		if err != nil {
			otelhelper.SetError(span, err)

			return "", true, err
		}

		switch {
		case result.Terminal:
			w.handOff(state, result.HandoffReason, nil)
			logger.InfoContext(ctx, "Conversation handed off", "reason", result.HandoffReason)

			return "", true, nil
		case result.GotoNodeID != "":
			return result.GotoNodeID, false, nil
		case result.Suspend != nil:
			w.suspend(state, node.ID, index+1, result.Suspend, outcome)
			logger.InfoContext(ctx, "Conversation suspended", "kind", result.Suspend.Kind)

			return "", true, nil
		}
	}

	if node.Kind == models.NodeKindExit {
		return "", false, nil
	}

	return node.Next(0), false, nil
}

func (w *Walker) execute(
	ctx context.Context,
	flow *models.FlowDefinition,
	node *models.FlowNode,
	index int,
	state *models.ConversationExecutionState,
	store *variables.Store,
	conversation models.Conversation,
	logger *slog.Logger,
) (*protocol.Result, error) {
	action := node.Actions[index]

	wrap := func(err error) error {
		return &ActionError{
			ConversationID: state.ConversationID,
			FlowID:         flow.ID,
			NodeID:         node.ID,
			ActionIndex:    index,
			Err:            err,
		}
	}

	config, err := action.Decode()
	if err != nil {
		return nil, wrap(err)
	}

	executor, err := w.executors.Executor(action.Type)
	if err != nil {
		return nil, wrap(err)
	}

	execCtx := &protocol.ExecutionContext{
		Conversation:    conversation,
		ConversationID:  state.ConversationID,
		FlowID:          flow.ID,
		NodeID:          node.ID,
		ActionIndex:     index,
		Variables:       store,
		LastUserMessage: state.LastUserMessage,
		Logger:          logger,
	}

	logger.DebugContext(ctx, "Executing action", "action_type", action.Type, "action_index", index)

	result, err := executor.Execute(ctx, config, execCtx)
	if err != nil {
		return nil, wrap(err)
	}

	if result == nil {
		result = &protocol.Result{}
	}

	return result, nil
}

// send delivers messages in order. Only an expired messaging window stops the
// turn; other delivery failures are recorded and the flow goes on.
func (w *Walker) send(
	ctx context.Context,
	state *models.ConversationExecutionState,
	conversation models.Conversation,
	messages []*models.OutboundMessage,
	outcome *Outcome,
	logger *slog.Logger,
) error {
	for _, msg := range messages {
		if msg == nil {
			continue
		}

		if msg.ConversationID == "" {
			msg.ConversationID = state.ConversationID
		}

		err := w.messenger.Send(ctx, conversation, msg)
		if err != nil {
			if errors.Is(err, protocol.ErrWindowExpired) {
				logger.WarnContext(ctx, "Messaging window expired", "error", err)
				w.handOff(state, ReasonWindowExpired, err)

				return err
			}

			logger.ErrorContext(ctx, "Failed to send message", "error", err)
			state.LastError = err.Error()

			continue
		}

		outcome.Sent = append(outcome.Sent, msg)
	}

	return nil
}

// fail moves the state to handed_off after an action error. An exhausted AI
// call also sends the apology message.
func (w *Walker) fail(
	ctx context.Context,
	state *models.ConversationExecutionState,
	conversation models.Conversation,
	err error,
	outcome *Outcome,
) {
	var callErr *protocol.ExternalCallError
	if errors.As(err, &callErr) && callErr.Kind == protocol.CallKindAI {
		w.handOff(state, ReasonAIFailure, err)

		if w.config.AIFailureMessage != "" {
			apology := &models.OutboundMessage{ConversationID: state.ConversationID, Text: w.config.AIFailureMessage}

			sendErr := w.messenger.Send(ctx, conversation, apology)
			if sendErr == nil {
				outcome.Sent = append(outcome.Sent, apology)
			}
		}

		return
	}

	w.handOff(state, ReasonExecutionError, err)
}

func (w *Walker) suspend(
	state *models.ConversationExecutionState,
	nodeID string,
	actionIndex int,
	suspension *protocol.Suspension,
	outcome *Outcome,
) {
	state.Status = models.ExecutionStatusPaused
	state.CurrentNodeID = nodeID
	state.ActionIndex = actionIndex

	switch suspension.Kind {
	case protocol.SuspendForInput:
		state.AwaitingInput = &models.AwaitingInput{
			NodeID:      nodeID,
			ActionIndex: actionIndex,
			InputName:   suspension.InputName,
		}
	case protocol.SuspendForDelay:
		outcome.Delay = &DelayRequest{
			NodeID:      nodeID,
			ActionIndex: actionIndex,
			Duration:    suspension.Duration,
		}
	}
}

func (w *Walker) handOff(state *models.ConversationExecutionState, reason string, cause error) {
	state.Status = models.ExecutionStatusHandedOff
	state.HandoffReason = reason
	state.AwaitingInput = nil
	state.PendingDelay = nil

	if cause != nil {
		state.LastError = cause.Error()
	}
}

func (w *Walker) complete(state *models.ConversationExecutionState) {
	state.Status = models.ExecutionStatusCompleted
	state.AwaitingInput = nil
	state.PendingDelay = nil
}

func (w *Walker) finish(state *models.ConversationExecutionState, outcome *Outcome) *Outcome {
	outcome.Status = state.Status
	outcome.NodeID = state.CurrentNodeID

	return outcome
}
