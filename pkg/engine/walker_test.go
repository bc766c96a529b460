package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/chatflow/pkg/engine"
	"github.com/dukex/chatflow/pkg/mocks"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/dukex/chatflow/pkg/registry"
	"github.com/dukex/chatflow/pkg/retry"
	"github.com/dukex/chatflow/pkg/testutil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newWalker(t *testing.T, messenger protocol.Messenger, fetcher *mocks.MockHTTPFetcher) *engine.Walker {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	if fetcher == nil {
		fetcher = &mocks.MockHTTPFetcher{}
	}

	executors, err := registry.NewDefaultRegistry(logger, protocol.Dependencies{
		Logger:      logger,
		Clock:       clockwork.NewFakeClockAt(start),
		AI:          &mocks.MockAIClient{},
		HTTP:        fetcher,
		Retry:       retry.NewPolicy(logger, 0, time.Millisecond),
		HTTPTimeout: time.Second,
	})
	require.NoError(t, err)

	return engine.NewWalker(logger, executors, nil, messenger, nil, engine.DefaultConfig())
}

func walk(t *testing.T, w *engine.Walker, flow *models.FlowDefinition, vars map[string]any) (*engine.Outcome, *models.ConversationExecutionState, error) {
	t.Helper()

	conversation := testutil.Conversation("walker")
	state := models.NewConversationState(conversation.ID, flow, start)
	state.Conversation = conversation
	state.Variables = vars

	outcome, err := w.Walk(context.Background(), flow, state, conversation)

	return outcome, state, err
}

func TestWalker_ConditionWithoutFalseBranchCompletes(t *testing.T) {
	t.Parallel()

	messenger := &recordingMessenger{}
	flow := testutil.CreateTestFlow("x",
		testutil.CreateTestNode("check",
			testutil.WithKind(models.NodeKindCondition),
			testutil.WithConditions(&models.FlowCondition{Expression: "equals:yes"}),
			testutil.WithNext("yes")),
		testutil.CreateTestNode("yes", testutil.WithActions(&models.SendMessageConfig{Message: "confirmed"})),
	)

	outcome, state, err := walk(t, newWalker(t, messenger, nil), flow, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)
	assert.Equal(t, 1, outcome.Steps)
	assert.Empty(t, messenger.texts())
}

func TestWalker_ConditionWithoutConditionsTakesFalseBranch(t *testing.T) {
	t.Parallel()

	messenger := &recordingMessenger{}
	flow := testutil.CreateTestFlow("x",
		testutil.CreateTestNode("check", testutil.WithKind(models.NodeKindCondition), testutil.WithNext("yes", "no")),
		testutil.CreateTestNode("yes", testutil.WithActions(&models.SendMessageConfig{Message: "yes"})),
		testutil.CreateTestNode("no", testutil.WithActions(&models.SendMessageConfig{Message: "no"})),
	)

	_, _, err := walk(t, newWalker(t, messenger, nil), flow, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"no"}, messenger.texts())
}

func TestWalker_ExitNodeStopsAfterItsActions(t *testing.T) {
	t.Parallel()

	messenger := &recordingMessenger{}
	flow := testutil.CreateTestFlow("x",
		testutil.CreateTestNode("bye",
			testutil.WithKind(models.NodeKindExit),
			testutil.WithActions(&models.SendMessageConfig{Message: "bye"}),
			testutil.WithNext("never")),
		testutil.CreateTestNode("never", testutil.WithActions(&models.SendMessageConfig{Message: "never"})),
	)

	outcome, state, err := walk(t, newWalker(t, messenger, nil), flow, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)
	assert.Equal(t, "bye", outcome.NodeID)
	assert.Equal(t, []string{"bye"}, messenger.texts())
}

func TestWalker_HTTPFailureContinuesWithEmptyResult(t *testing.T) {
	t.Parallel()

	messenger := &recordingMessenger{}
	fetcher := &mocks.MockHTTPFetcher{}
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	flow := testutil.CreateTestFlow("x",
		testutil.CreateTestNode("call",
			testutil.WithKind(models.NodeKindAction),
			testutil.WithActions(&models.HTTPRequestConfig{URL: "https://example.com/orders", ResponseVariable: "order"}),
			testutil.WithNext("reply")),
		testutil.CreateTestNode("reply", testutil.WithActions(&models.SendMessageConfig{Message: "order=[{{order}}]"})),
	)

	outcome, state, err := walk(t, newWalker(t, messenger, fetcher), flow, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, outcome.Status)
	assert.Equal(t, "", state.Variables["order"])
	assert.Equal(t, []string{"order=[]"}, messenger.texts())
}

func TestWalker_SendFailureIsRecordedAndFlowContinues(t *testing.T) {
	t.Parallel()

	messenger := &mocks.MockMessenger{}
	messenger.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("rate limited")).Once()
	messenger.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	flow := testutil.CreateTestFlow("x",
		testutil.CreateTestNode("a",
			testutil.WithActions(
				&models.SendMessageConfig{Message: "first"},
				&models.SendMessageConfig{Message: "second"},
			)),
	)

	outcome, state, err := walk(t, newWalker(t, messenger, nil), flow, nil)
	require.NoError(t, err)
	require.Len(t, outcome.Sent, 1)
	assert.Equal(t, "second", outcome.Sent[0].Text)
	assert.Equal(t, "rate limited", state.LastError)
	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)
}

func TestWalker_MissingNodeHandsOff(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateTestFlow("x",
		testutil.CreateTestNode("a", testutil.WithActions(&models.GotoNodeConfig{TargetNodeID: "ghost"})),
	)

	_, state, err := walk(t, newWalker(t, &recordingMessenger{}, nil), flow, nil)
	require.ErrorIs(t, err, engine.ErrNodeNotFound)
	assert.Equal(t, models.ExecutionStatusHandedOff, state.Status)
	assert.Equal(t, engine.ReasonExecutionError, state.HandoffReason)
}

func TestWalker_DelaySuspendsAfterTheDelayAction(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateTestFlow("x",
		testutil.CreateTestNode("wait",
			testutil.WithActions(
				&models.DelayConfig{DelayAmount: 30, DelayUnit: models.DelayUnitMinutes},
				&models.SendMessageConfig{Message: "later"},
			)),
	)

	outcome, state, err := walk(t, newWalker(t, &recordingMessenger{}, nil), flow, nil)
	require.NoError(t, err)
	require.NotNil(t, outcome.Delay)
	assert.Equal(t, engine.DelayRequest{NodeID: "wait", ActionIndex: 1, Duration: 30 * time.Minute}, *outcome.Delay)
	assert.Equal(t, models.ExecutionStatusPaused, state.Status)
	assert.Nil(t, state.AwaitingInput)
}

func TestWalker_CancelledContextStopsBeforeNextNode(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	flow := testutil.CreateTestFlow("x",
		testutil.CreateTestNode("a", testutil.WithActions(&models.SendMessageConfig{Message: "hi"})),
	)
	state := models.NewConversationState("c1", flow, start)

	outcome, err := newWalker(t, &recordingMessenger{}, nil).Walk(ctx, flow, state, testutil.Conversation("walker"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, outcome.Steps)
	assert.Equal(t, models.ExecutionStatusRunning, state.Status)
}
