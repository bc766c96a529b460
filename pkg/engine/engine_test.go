package engine_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/chatflow/pkg/delay"
	"github.com/dukex/chatflow/pkg/engine"
	"github.com/dukex/chatflow/pkg/events"
	"github.com/dukex/chatflow/pkg/mocks"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/dukex/chatflow/pkg/persistence/file"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/dukex/chatflow/pkg/registry"
	"github.com/dukex/chatflow/pkg/retry"
	"github.com/dukex/chatflow/pkg/testutil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type recordingMessenger struct {
	mu   sync.Mutex
	sent []*models.OutboundMessage
	err  error
}

func (m *recordingMessenger) Send(_ context.Context, _ models.Conversation, msg *models.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.sent = append(m.sent, msg)

	return nil
}

func (m *recordingMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	texts := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		texts = append(texts, msg.Text)
	}

	return texts
}

type harness struct {
	engine    *engine.Engine
	store     persistence.Persistence
	messenger *recordingMessenger
	clock     *clockwork.FakeClock
	ai        *mocks.MockAIClient
	bus       *mocks.MockEventBus
	logger    *slog.Logger
	at        time.Time
}

func newHarness(t *testing.T, config engine.Config, flows ...*models.FlowDefinition) *harness {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	store := file.NewPersistence(t.TempDir())

	for _, flow := range flows {
		require.NoError(t, store.FlowRepository().Save(ctx, flow))
	}

	clock := clockwork.NewFakeClockAt(start)
	ai := &mocks.MockAIClient{}
	messenger := &recordingMessenger{}

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	executors, err := registry.NewDefaultRegistry(logger, protocol.Dependencies{
		Logger:      logger,
		Clock:       clock,
		AI:          ai,
		HTTP:        &mocks.MockHTTPFetcher{},
		Retry:       retry.NewPolicy(logger, 1, time.Millisecond),
		HTTPTimeout: time.Second,
	})
	require.NoError(t, err)

	eng := engine.New(logger, engine.Options{
		Persistence: store,
		Executors:   executors,
		Messenger:   messenger,
		Publisher:   bus,
		Clock:       clock,
		Config:      config,
		WorkerID:    "worker-test",
	})

	return &harness{
		engine:    eng,
		store:     store,
		messenger: messenger,
		clock:     clock,
		ai:        ai,
		bus:       bus,
		logger:    logger,
		at:        start,
	}
}

// send delivers a text message one second after the previous one.
func (h *harness) send(t *testing.T, userID, text string) *engine.Outcome {
	t.Helper()

	h.at = h.at.Add(time.Second)

	outcome, err := h.engine.HandleInbound(context.Background(), testutil.InboundMessage(testutil.Conversation(userID), text, h.at))
	require.NoError(t, err)

	return outcome
}

func (h *harness) state(t *testing.T, userID string) *models.ConversationExecutionState {
	t.Helper()

	state, err := h.engine.State(context.Background(), testutil.Conversation(userID).ID)
	require.NoError(t, err)

	return state
}

func (h *harness) published(eventType events.EventType) int {
	count := 0

	for _, call := range h.bus.Calls {
		if call.Method != "Publish" {
			continue
		}

		if event, ok := call.Arguments.Get(2).(interface{ GetType() events.EventType }); ok && event.GetType() == eventType {
			count++
		}
	}

	return count
}

func TestEngine_BookingScenario(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateBookingFlow()
	h := newHarness(t, engine.DefaultConfig(), flow)

	outcome := h.send(t, "alice", "I want to book")
	require.NotNil(t, outcome)
	assert.Equal(t, models.ExecutionStatusPaused, outcome.Status)
	assert.Equal(t, []string{"Which service would you like?"}, h.messenger.texts())

	state := h.state(t, "alice")
	assert.Equal(t, flow.ID, state.FlowID)
	require.NotNil(t, state.AwaitingInput)
	assert.Equal(t, "service", state.AwaitingInput.InputName)

	h.send(t, "alice", "Haircut")
	assert.Equal(t, []string{"Which service would you like?", "When would you like to come in?"}, h.messenger.texts())

	state = h.state(t, "alice")
	assert.Equal(t, "Haircut", state.Variables["service"])

	outcome = h.send(t, "alice", "Friday 3pm")
	require.NotNil(t, outcome)
	assert.Equal(t, models.ExecutionStatusHandedOff, outcome.Status)
	assert.Empty(t, outcome.Sent)
	assert.Len(t, h.messenger.texts(), 2)

	state = h.state(t, "alice")
	assert.Equal(t, models.ExecutionStatusHandedOff, state.Status)
	assert.Equal(t, "Appointment request", state.HandoffReason)
	assert.Equal(t, "Friday 3pm", state.Variables["preferredTime"])
	assert.Equal(t, "handoff", state.CurrentNodeID)
	assert.Nil(t, state.AwaitingInput)

	assert.Equal(t, 1, h.published(events.FlowStartedEvent))
	assert.Equal(t, 1, h.published(events.FlowHandedOffEvent))
}

func TestEngine_DeterministicTurns(t *testing.T) {
	t.Parallel()

	run := func() ([]string, *models.ConversationExecutionState) {
		flow := testutil.CreateTestFlow("start",
			testutil.CreateTestNode("entry",
				testutil.WithKind(models.NodeKindEntry),
				testutil.WithActions(
					&models.SetVariableConfig{VariableName: "greeting", Value: "Hello {{user_id}}"},
					&models.CollectInputConfig{Prompt: "{{greeting}}, what is your name?", InputName: "name"},
				),
				testutil.WithNext("check")),
			testutil.CreateTestNode("check",
				testutil.WithKind(models.NodeKindCondition),
				testutil.WithConditions(&models.FlowCondition{Expression: "contains:bob"}),
				testutil.WithNext("known", "unknown")),
			testutil.CreateTestNode("known", testutil.WithActions(&models.SendMessageConfig{Message: "Welcome back {{name}}"})),
			testutil.CreateTestNode("unknown", testutil.WithActions(&models.SendMessageConfig{Message: "Nice to meet you {{name}}"})),
		)
		flow.ID = "flow-deterministic"

		h := newHarness(t, engine.DefaultConfig(), flow)
		conversation := testutil.Conversation("bob")

		for i, text := range []string{"start", "Bob"} {
			msg := &models.InboundMessage{
				ID:           fmt.Sprintf("m%d", i),
				Conversation: conversation,
				Text:         text,
				Timestamp:    start.Add(time.Duration(i) * time.Second),
			}

			_, err := h.engine.HandleInbound(context.Background(), msg)
			require.NoError(t, err)
		}

		return h.messenger.texts(), h.state(t, "bob")
	}

	firstTexts, firstState := run()
	secondTexts, secondState := run()

	assert.Equal(t, []string{"Hello bob, what is your name?", "Welcome back Bob"}, firstTexts)
	assert.Equal(t, firstTexts, secondTexts)
	assert.Equal(t, firstState.Variables, secondState.Variables)
	assert.Equal(t, firstState.CurrentNodeID, secondState.CurrentNodeID)
	assert.Equal(t, firstState.Status, secondState.Status)
	assert.Equal(t, models.ExecutionStatusCompleted, firstState.Status)
}

func TestEngine_CollectInputResumesAtNextAction(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateTestFlow("survey",
		testutil.CreateTestNode("ask",
			testutil.WithKind(models.NodeKindEntry),
			testutil.WithActions(
				&models.CollectInputConfig{Prompt: "Rate us from 1 to 5", InputName: "rating"},
				&models.SendMessageConfig{Message: "You said {{rating}}"},
			)),
	)
	h := newHarness(t, engine.DefaultConfig(), flow)

	h.send(t, "carol", "survey")

	state := h.state(t, "carol")
	assert.Equal(t, "ask", state.CurrentNodeID)
	assert.Equal(t, 1, state.ActionIndex)

	outcome := h.send(t, "carol", "5")
	require.NotNil(t, outcome)
	assert.Equal(t, models.ExecutionStatusCompleted, outcome.Status)
	assert.Equal(t, []string{"Rate us from 1 to 5", "You said 5"}, h.messenger.texts())
	assert.Equal(t, "5", h.state(t, "carol").Variables["rating"])
}

func reminderFlow() *models.FlowDefinition {
	return testutil.CreateTestFlow("remind me",
		testutil.CreateTestNode("entry",
			testutil.WithKind(models.NodeKindEntry),
			testutil.WithActions(
				&models.SendMessageConfig{Message: "I'll remind you tomorrow"},
				&models.DelayConfig{DelayAmount: 1, DelayUnit: models.DelayUnitDays},
				&models.SendMessageConfig{Message: "Here is your reminder"},
			)),
	)
}

func TestEngine_MessageCancelsPendingDelay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, engine.DefaultConfig(), reminderFlow())

	outcome := h.send(t, "dave", "remind me")
	require.NotNil(t, outcome)
	require.NotNil(t, outcome.Delay)
	assert.Equal(t, 24*time.Hour, outcome.Delay.Duration)

	state := h.state(t, "dave")
	require.NotNil(t, state.PendingDelay)
	assert.Equal(t, models.DelayStatusScheduled, state.PendingDelay.Status)
	assert.Equal(t, start.Add(24*time.Hour), state.PendingDelay.ResumeAt)

	delayID := state.PendingDelay.ID

	outcome = h.send(t, "dave", "never mind")
	assert.Nil(t, outcome)

	state = h.state(t, "dave")
	require.NotNil(t, state.PendingDelay)
	assert.Equal(t, models.DelayStatusCancelled, state.PendingDelay.Status)
	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)

	resumption, err := h.store.DelayRepository().GetByID(ctx, delayID)
	require.NoError(t, err)
	assert.Equal(t, models.DelayStatusCancelled, resumption.Status)

	h.clock.Advance(25 * time.Hour)

	poller := delay.NewPoller(h.logger, h.store.DelayRepository(), h.engine, h.clock, delay.DefaultPollerConfig())

	fired, err := poller.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)
	assert.Equal(t, []string{"I'll remind you tomorrow"}, h.messenger.texts())
	assert.Equal(t, 1, h.published(events.DelayCancelledEvent))
}

func TestEngine_DelayFiresAndResumes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, engine.DefaultConfig(), reminderFlow())

	h.send(t, "erin", "remind me")

	poller := delay.NewPoller(h.logger, h.store.DelayRepository(), h.engine, h.clock, delay.DefaultPollerConfig())

	h.clock.Advance(23 * time.Hour)

	fired, err := poller.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, fired)

	h.clock.Advance(2 * time.Hour)

	fired, err = poller.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	assert.Equal(t, []string{"I'll remind you tomorrow", "Here is your reminder"}, h.messenger.texts())

	state := h.state(t, "erin")
	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)

	resumption, err := h.store.DelayRepository().ListByConversation(ctx, state.ConversationID)
	require.NoError(t, err)
	require.Len(t, resumption, 1)
	assert.Equal(t, models.DelayStatusFired, resumption[0].Status)

	// A redelivered resumption is ignored.
	require.NoError(t, h.engine.Resume(ctx, resumption[0]))
	assert.Len(t, h.messenger.texts(), 2)
	assert.Equal(t, 1, h.published(events.DelayFiredEvent))
}

func TestEngine_ConditionGroupBranches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		age      string
		country  string
		expected string
	}{
		{name: "all conditions hold", age: "21", country: "US", expected: "eligible"},
		{name: "country differs", age: "21", country: "CA", expected: "not eligible"},
		{name: "too young", age: "17", country: "US", expected: "not eligible"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flow := testutil.CreateTestFlow("check",
				testutil.CreateTestNode("entry",
					testutil.WithKind(models.NodeKindEntry),
					testutil.WithActions(
						&models.SetVariableConfig{VariableName: "age", Value: tt.age},
						&models.SetVariableConfig{VariableName: "country", Value: tt.country},
					),
					testutil.WithNext("decide")),
				testutil.CreateTestNode("decide",
					testutil.WithKind(models.NodeKindCondition),
					testutil.WithConditions(&models.FlowCondition{ConditionGroup: &models.ConditionGroup{
						Logic: models.ConditionLogicAnd,
						Conditions: []*models.SingleCondition{
							{Variable: "age", Operator: models.OperatorGreaterThan, Value: "18"},
							{Variable: "country", Operator: models.OperatorEquals, Value: "US"},
						},
					}}),
					testutil.WithNext("yes", "no")),
				testutil.CreateTestNode("yes", testutil.WithActions(&models.SendMessageConfig{Message: "eligible"})),
				testutil.CreateTestNode("no", testutil.WithActions(&models.SendMessageConfig{Message: "not eligible"})),
			)
			h := newHarness(t, engine.DefaultConfig(), flow)

			h.send(t, "frank", "check")

			assert.Equal(t, []string{tt.expected}, h.messenger.texts())
		})
	}
}

func TestEngine_GotoCycleHandsOffAtStepCeiling(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateTestFlow("loop",
		testutil.CreateTestNode("a",
			testutil.WithKind(models.NodeKindEntry),
			testutil.WithActions(&models.GotoNodeConfig{TargetNodeID: "b"})),
		testutil.CreateTestNode("b",
			testutil.WithKind(models.NodeKindAction),
			testutil.WithActions(&models.GotoNodeConfig{TargetNodeID: "a"})),
	)
	h := newHarness(t, engine.DefaultConfig(), flow)

	outcome := h.send(t, "gina", "loop")
	require.NotNil(t, outcome)
	assert.Equal(t, engine.DefaultMaxSteps, outcome.Steps)
	assert.True(t, engine.IsInfiniteLoop(outcome.Err))
	assert.Equal(t, models.ExecutionStatusHandedOff, outcome.Status)

	state := h.state(t, "gina")
	assert.Equal(t, models.ExecutionStatusHandedOff, state.Status)
	assert.Equal(t, engine.ReasonLoopDetected, state.HandoffReason)
	assert.NotEmpty(t, state.LastError)
	assert.Equal(t, 1, h.published(events.FlowFailedEvent))
}

func TestEngine_CustomStepCeiling(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateTestFlow("loop",
		testutil.CreateTestNode("a",
			testutil.WithKind(models.NodeKindEntry),
			testutil.WithActions(&models.GotoNodeConfig{TargetNodeID: "a"})),
	)
	h := newHarness(t, engine.Config{MaxSteps: 7}, flow)

	outcome := h.send(t, "hank", "loop")
	require.NotNil(t, outcome)
	assert.Equal(t, 7, outcome.Steps)

	var loopErr *engine.InfiniteLoopError
	require.ErrorAs(t, outcome.Err, &loopErr)
	assert.Equal(t, flow.ID, loopErr.FlowID)
	assert.Equal(t, "a", loopErr.NodeID)
}

func TestEngine_HigherPriorityFlowWins(t *testing.T) {
	t.Parallel()

	low := testutil.CreateTestFlow("help",
		testutil.CreateTestNode("entry", testutil.WithActions(&models.SendMessageConfig{Message: "low"})))
	low.Priority = 5

	high := testutil.CreateTestFlow("help",
		testutil.CreateTestNode("entry", testutil.WithActions(&models.SendMessageConfig{Message: "high"})))
	high.Priority = 10

	h := newHarness(t, engine.DefaultConfig(), low, high)

	h.send(t, "ivy", "help")

	assert.Equal(t, []string{"high"}, h.messenger.texts())
	assert.Equal(t, high.ID, h.state(t, "ivy").FlowID)
}

func TestEngine_Preemption(t *testing.T) {
	t.Parallel()

	waiting := func(keyword string, priority int, flowType models.FlowType) *models.FlowDefinition {
		flow := testutil.CreateTestFlow(keyword,
			testutil.CreateTestNode("entry",
				testutil.WithActions(&models.CollectInputConfig{Prompt: keyword + " prompt", InputName: "answer"})))
		flow.Priority = priority
		flow.FlowType = flowType

		return flow
	}

	tests := []struct {
		name      string
		candidate *models.FlowDefinition
		preempts  bool
	}{
		{name: "override replaces automation", candidate: waiting("agent", 1, models.FlowTypeOverride), preempts: true},
		{name: "higher priority replaces", candidate: waiting("agent", 6, models.FlowTypeAutomation), preempts: true},
		{name: "equal priority keeps running flow", candidate: waiting("agent", 5, models.FlowTypeAutomation), preempts: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			running := waiting("order", 5, models.FlowTypeAutomation)
			h := newHarness(t, engine.DefaultConfig(), running, tt.candidate)

			h.send(t, "jack", "order")
			h.send(t, "jack", "agent")

			state := h.state(t, "jack")
			if tt.preempts {
				assert.Equal(t, tt.candidate.ID, state.FlowID)
				assert.Equal(t, []string{"order prompt", "agent prompt"}, h.messenger.texts())
			} else {
				assert.Equal(t, running.ID, state.FlowID)
				assert.Equal(t, "agent", state.Variables["answer"])
				assert.Equal(t, models.ExecutionStatusCompleted, state.Status)
			}
		})
	}
}

func TestEngine_WindowExpiredHandsOff(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateTestFlow("hi",
		testutil.CreateTestNode("entry",
			testutil.WithActions(&models.SendMessageConfig{Message: "hello"}),
			testutil.WithNext("next")),
		testutil.CreateTestNode("next", testutil.WithActions(&models.SendMessageConfig{Message: "unreachable"})),
	)
	h := newHarness(t, engine.DefaultConfig(), flow)
	h.messenger.err = fmt.Errorf("graph error 10: %w", protocol.ErrWindowExpired)

	outcome := h.send(t, "kate", "hi")
	require.NotNil(t, outcome)
	require.ErrorIs(t, outcome.Err, protocol.ErrWindowExpired)

	state := h.state(t, "kate")
	assert.Equal(t, models.ExecutionStatusHandedOff, state.Status)
	assert.Equal(t, engine.ReasonWindowExpired, state.HandoffReason)
	assert.Equal(t, "entry", state.CurrentNodeID)
}

func TestEngine_AIFailureApologizesAndHandsOff(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateTestFlow("ask",
		testutil.CreateTestNode("entry",
			testutil.WithKind(models.NodeKindAINode),
			testutil.WithActions(&models.AINodeConfig{
				Operation: models.AIOperationGenerateResponse,
				Prompt:    "Answer {{last_user_message}}",
			}),
			testutil.WithNext("after")),
		testutil.CreateTestNode("after", testutil.WithActions(&models.SendMessageConfig{Message: "unreachable"})),
	)
	h := newHarness(t, engine.DefaultConfig(), flow)
	h.ai.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("upstream unavailable"))

	outcome := h.send(t, "liam", "ask something")
	require.NotNil(t, outcome)

	var callErr *protocol.ExternalCallError
	require.ErrorAs(t, outcome.Err, &callErr)
	assert.Equal(t, protocol.CallKindAI, callErr.Kind)

	assert.Equal(t, []string{engine.DefaultAIFailureMessage}, h.messenger.texts())
	h.ai.AssertNumberOfCalls(t, "Complete", 2)

	state := h.state(t, "liam")
	assert.Equal(t, models.ExecutionStatusHandedOff, state.Status)
	assert.Equal(t, engine.ReasonAIFailure, state.HandoffReason)
	assert.Equal(t, "ask something", state.LastUserMessage)
}

func TestEngine_DuplicateAndStaleMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, engine.DefaultConfig(), testutil.CreateBookingFlow())
	conversation := testutil.Conversation("mia")

	first := &models.InboundMessage{ID: "m1", Conversation: conversation, Text: "book", Timestamp: start.Add(time.Minute)}

	outcome, err := h.engine.HandleInbound(ctx, first)
	require.NoError(t, err)
	require.NotNil(t, outcome)

	outcome, err = h.engine.HandleInbound(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, outcome)

	stale := &models.InboundMessage{ID: "m0", Conversation: conversation, Text: "Haircut", Timestamp: start}

	_, err = h.engine.HandleInbound(ctx, stale)
	require.ErrorIs(t, err, engine.ErrStaleMessage)

	assert.Len(t, h.messenger.texts(), 1)
	assert.Equal(t, "m1", h.state(t, "mia").LastMessageID)
}

func TestEngine_InvalidMessage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultConfig())

	_, err := h.engine.HandleInbound(context.Background(), &models.InboundMessage{ID: "m1", Text: "hi"})
	require.ErrorIs(t, err, engine.ErrInvalidMessage)

	_, err = h.engine.HandleInbound(context.Background(), nil)
	require.ErrorIs(t, err, engine.ErrInvalidMessage)
}

func TestEngine_FallbackWhenNothingMatches(t *testing.T) {
	t.Parallel()

	silent := newHarness(t, engine.DefaultConfig(), testutil.CreateBookingFlow())
	assert.Nil(t, silent.send(t, "nick", "what?"))
	assert.Empty(t, silent.messenger.texts())

	config := engine.DefaultConfig()
	config.FallbackMessage = "Sorry, I did not get that."

	chatty := newHarness(t, config, testutil.CreateBookingFlow())
	assert.Nil(t, chatty.send(t, "nick", "what?"))
	assert.Equal(t, []string{"Sorry, I did not get that."}, chatty.messenger.texts())

	_, err := chatty.engine.State(context.Background(), testutil.Conversation("nick").ID)
	require.ErrorIs(t, err, persistence.ErrConversationNotFound)
}

func TestEngine_HandedOffConversationStaysWithHuman(t *testing.T) {
	t.Parallel()

	h := newHarness(t, engine.DefaultConfig(), testutil.CreateBookingFlow())

	h.send(t, "olga", "book")
	h.send(t, "olga", "Nails")
	h.send(t, "olga", "Monday")
	require.Len(t, h.messenger.texts(), 2)

	assert.Nil(t, h.send(t, "olga", "book again"))
	assert.Len(t, h.messenger.texts(), 2)

	state := h.state(t, "olga")
	assert.Equal(t, models.ExecutionStatusHandedOff, state.Status)
	assert.Equal(t, "book again", state.LastUserMessage)
}

func TestEngine_Reset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, engine.DefaultConfig(), reminderFlow(), testutil.CreateBookingFlow())

	h.send(t, "pete", "remind me")

	conversationID := testutil.Conversation("pete").ID
	require.NoError(t, h.engine.Reset(ctx, conversationID))

	_, err := h.engine.State(ctx, conversationID)
	require.ErrorIs(t, err, persistence.ErrConversationNotFound)

	resumptions, err := h.store.DelayRepository().ListByConversation(ctx, conversationID)
	require.NoError(t, err)
	require.Len(t, resumptions, 1)
	assert.Equal(t, models.DelayStatusCancelled, resumptions[0].Status)

	h.send(t, "pete", "book")
	assert.Equal(t, models.ExecutionStatusPaused, h.state(t, "pete").Status)
}

func TestEngine_SystemVariablesAreBound(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateTestFlow("whoami",
		testutil.CreateTestNode("entry",
			testutil.WithActions(&models.SendMessageConfig{Message: "{{user_id}} on {{platform}} page {{page_id}} said {{last_user_message}}"})),
	)
	h := newHarness(t, engine.DefaultConfig(), flow)

	h.send(t, "quinn", "whoami")

	assert.Equal(t, []string{"quinn on messenger page page-1 said whoami"}, h.messenger.texts())
}

func TestEngine_OnMessageReceived(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, engine.DefaultConfig(), testutil.CreateBookingFlow())
	msg := testutil.InboundMessage(testutil.Conversation("rose"), "book", start.Add(time.Minute))

	require.NoError(t, h.engine.OnMessageReceived(ctx, &events.MessageReceived{Message: msg}))
	assert.Len(t, h.messenger.texts(), 1)

	stale := testutil.InboundMessage(testutil.Conversation("rose"), "late", start)
	require.NoError(t, h.engine.OnMessageReceived(ctx, &events.MessageReceived{Message: stale}))

	require.Error(t, h.engine.OnMessageReceived(ctx, "not an event"))
}

func TestEngine_ConcurrentConversationsAreSerialized(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, engine.DefaultConfig(), testutil.CreateBookingFlow())

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			msg := testutil.InboundMessage(testutil.Conversation(fmt.Sprintf("user-%d", i)), "book", start)
			_, err := h.engine.HandleInbound(ctx, msg)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.Len(t, h.messenger.texts(), 10)
}
