package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFlow() *FlowDefinition {
	return &FlowDefinition{
		ID:          "flow-1",
		Name:        "Booking",
		FlowType:    FlowTypeAutomation,
		Priority:    5,
		IsActive:    true,
		EntryNodeID: "entry",
		GlobalTriggers: []*Trigger{
			{Type: TriggerTypeKeyword, Value: "book"},
		},
		Nodes: []*FlowNode{
			{ID: "entry", Kind: NodeKindEntry, NextNodes: []string{"exit"}},
			{ID: "exit", Kind: NodeKindExit},
		},
	}
}

func TestFlowDefinition_Validation(t *testing.T) {
	validate := validator.New()

	tests := []struct {
		name    string
		mutate  func(f *FlowDefinition)
		wantErr bool
		field   string
	}{
		{name: "valid flow", mutate: func(*FlowDefinition) {}},
		{name: "missing name", mutate: func(f *FlowDefinition) { f.Name = "" }, wantErr: true, field: "Name"},
		{name: "unknown flow type", mutate: func(f *FlowDefinition) { f.FlowType = "other" }, wantErr: true, field: "FlowType"},
		{name: "no nodes", mutate: func(f *FlowDefinition) { f.Nodes = nil }, wantErr: true, field: "Nodes"},
		{
			name:    "bad node kind",
			mutate:  func(f *FlowDefinition) { f.Nodes[1].Kind = "loop" },
			wantErr: true,
			field:   "Kind",
		},
		{
			name:    "bad match mode",
			mutate:  func(f *FlowDefinition) { f.GlobalTriggers[0].MatchMode = "fuzzy" },
			wantErr: true,
			field:   "MatchMode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := validFlow()
			tt.mutate(flow)

			err := validate.Struct(flow)
			if !tt.wantErr {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)

			var validationErrors validator.ValidationErrors
			require.True(t, errors.As(err, &validationErrors))

			found := false

			for _, fieldErr := range validationErrors {
				if fieldErr.Field() == tt.field {
					found = true
				}
			}

			assert.True(t, found, "expected a validation error on %s", tt.field)
		})
	}
}

func TestFlowDefinition_Graph(t *testing.T) {
	flow := validFlow()

	graph := flow.Graph()
	assert.Len(t, graph, 2)
	assert.Equal(t, NodeKindExit, graph["exit"].Kind)

	node, ok := flow.Node("entry")
	require.True(t, ok)
	assert.Equal(t, "exit", node.Next(0))
	assert.Empty(t, node.Next(1))

	_, ok = flow.Node("missing")
	assert.False(t, ok)
}

func TestFlowNode_Branches(t *testing.T) {
	node := &FlowNode{ID: "c", Kind: NodeKindCondition, NextNodes: []string{"yes"}}

	assert.True(t, node.IsCondition())
	assert.Equal(t, "yes", node.TrueBranch())
	assert.Empty(t, node.FalseBranch())
}

func TestTrigger_ModeDefaultsToContains(t *testing.T) {
	assert.Equal(t, MatchModeContains, (&Trigger{}).Mode())
	assert.Equal(t, MatchModeExact, (&Trigger{MatchMode: MatchModeExact}).Mode())
}

func TestFlowAction_Decode(t *testing.T) {
	tests := []struct {
		name   string
		action string
		check  func(t *testing.T, config ActionConfig)
	}{
		{
			name:   "send_message",
			action: `{"type":"send_message","config":{"message":"Hi {{name}}"}}`,
			check: func(t *testing.T, config ActionConfig) {
				t.Helper()
				assert.Equal(t, "Hi {{name}}", config.(*SendMessageConfig).Message)
			},
		},
		{
			name:   "quick replies as strings and objects",
			action: `{"type":"send_quick_replies","config":{"message":"Pick","replies":["Yes",{"title":"No","payload":"NO_PAYLOAD"}]}}`,
			check: func(t *testing.T, config ActionConfig) {
				t.Helper()

				replies := config.(*SendQuickRepliesConfig).Replies
				require.Len(t, replies, 2)
				assert.Equal(t, QuickReply{Title: "Yes", Payload: "Yes"}, replies[0])
				assert.Equal(t, QuickReply{Title: "No", Payload: "NO_PAYLOAD"}, replies[1])
			},
		},
		{
			name:   "set_variable keeps raw json value",
			action: `{"type":"set_variable","config":{"variableName":"cart","value":{"items":2}}}`,
			check: func(t *testing.T, config ActionConfig) {
				t.Helper()
				assert.Equal(t, map[string]any{"items": float64(2)}, config.(*SetVariableConfig).Value)
			},
		},
		{
			name:   "goto_node",
			action: `{"type":"goto_node","config":{"targetNodeId":"n2"}}`,
			check: func(t *testing.T, config ActionConfig) {
				t.Helper()
				assert.Equal(t, "n2", config.(*GotoNodeConfig).TargetNodeID)
			},
		},
		{
			name:   "handoff without config",
			action: `{"type":"handoff"}`,
			check: func(t *testing.T, config ActionConfig) {
				t.Helper()
				assert.Equal(t, ActionTypeHandoff, config.ActionType())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var action FlowAction
			require.NoError(t, json.Unmarshal([]byte(tt.action), &action))

			config, err := action.Decode()
			require.NoError(t, err)
			assert.Equal(t, action.Type, config.ActionType())
			tt.check(t, config)
		})
	}
}

func TestFlowAction_DecodeErrors(t *testing.T) {
	_, err := (&FlowAction{Type: "teleport"}).Decode()
	require.ErrorIs(t, err, ErrUnknownActionType)

	_, err = (&FlowAction{Type: ActionTypeDelay, Config: json.RawMessage(`{"delayAmount":"soon"}`)}).Decode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid delay config")
}

func TestNewFlowAction_RoundTripsTypedConfig(t *testing.T) {
	action, err := NewFlowAction(&CollectInputConfig{Prompt: "Which service?", InputName: "service"})
	require.NoError(t, err)
	assert.Equal(t, ActionTypeCollectInput, action.Type)

	config, err := action.Decode()
	require.NoError(t, err)
	assert.Equal(t, &CollectInputConfig{Prompt: "Which service?", InputName: "service"}, config)
}

func TestActionTypes_AllDecodable(t *testing.T) {
	for _, actionType := range ActionTypes() {
		_, err := (&FlowAction{Type: actionType}).Decode()
		assert.NoError(t, err, actionType)
	}
}

func TestAINodeConfig_ShouldSendAsMessage(t *testing.T) {
	no := false

	tests := []struct {
		config AINodeConfig
		want   bool
	}{
		{config: AINodeConfig{Operation: AIOperationGenerateResponse}, want: true},
		{config: AINodeConfig{Operation: AIOperationGenerateContent}, want: true},
		{config: AINodeConfig{Operation: AIOperationCustom}, want: true},
		{config: AINodeConfig{Operation: AIOperationClassifyIntent}, want: false},
		{config: AINodeConfig{Operation: AIOperationExtractData}, want: false},
		{config: AINodeConfig{Operation: AIOperationGenerateResponse, SendAsMessage: &no}, want: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.config.Operation), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.ShouldSendAsMessage())
		})
	}
}

func TestDelayConfig_Duration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, (&DelayConfig{DelayAmount: 5, DelayUnit: DelayUnitMinutes}).Duration())
	assert.Equal(t, 2*time.Hour, (&DelayConfig{DelayAmount: 2, DelayUnit: DelayUnitHours}).Duration())
	assert.Equal(t, 24*time.Hour, (&DelayConfig{DelayAmount: 1, DelayUnit: DelayUnitDays}).Duration())
	assert.Zero(t, (&DelayConfig{DelayAmount: 1, DelayUnit: "weeks"}).Duration())
}

func TestDelayedResumption(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	claimedAt := now.Add(-2 * time.Minute)

	delay := &DelayedResumption{
		ID:             "d1",
		ConversationID: "c1",
		FlowID:         "f1",
		NodeID:         "n1",
		ActionIndex:    1,
		ResumeAt:       now.Add(-time.Second),
		Status:         DelayStatusScheduled,
	}

	require.NoError(t, delay.Validate())
	assert.True(t, delay.IsDue(now))
	assert.False(t, delay.IsDue(now.Add(-time.Minute)))

	delay.Status = DelayStatusClaimed
	delay.ClaimedAt = &claimedAt
	assert.False(t, delay.IsDue(now))
	assert.True(t, delay.IsClaimExpired(now, time.Minute))
	assert.False(t, delay.IsClaimExpired(now, 5*time.Minute))

	pending := delay.Pending()
	assert.Equal(t, "n1", pending.ScheduledNodeID)
	assert.Equal(t, 1, pending.ActionIndex)

	assert.ErrorIs(t, (&DelayedResumption{ID: "x"}).Validate(), ErrInvalidDelay)
}

func TestConversationState(t *testing.T) {
	now := time.Now().UTC()
	state := NewConversationState("c1", validFlow(), now)

	assert.Equal(t, "entry", state.CurrentNodeID)
	assert.Equal(t, ExecutionStatusRunning, state.Status)
	assert.True(t, state.IsActive())
	assert.NotNil(t, state.Variables)

	state.Status = ExecutionStatusHandedOff
	assert.False(t, state.IsActive())
	assert.True(t, state.IsHandedOff())

	var nilState *ConversationExecutionState
	assert.False(t, nilState.IsActive())
}

func TestConversationKey(t *testing.T) {
	assert.Equal(t, "messenger:page-1:user-9", ConversationKey(PlatformMessenger, "page-1", "user-9"))
}
