package services_test

import (
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/dukex/chatflow/pkg/mocks"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/dukex/chatflow/pkg/registry"
	"github.com/dukex/chatflow/pkg/services"
	"github.com/dukex/chatflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *services.Validator {
	t.Helper()

	reg, err := registry.NewDefaultRegistry(slog.New(slog.DiscardHandler), protocol.Dependencies{
		AI:   &mocks.MockAIClient{},
		HTTP: &mocks.MockHTTPFetcher{},
	})
	require.NoError(t, err)

	return services.NewValidator(nil, reg)
}

func problems(t *testing.T, err error) []string {
	t.Helper()

	var validationErr *services.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.ErrorIs(t, err, services.ErrInvalidFlow)
	assert.True(t, services.IsValidationError(err))

	return validationErr.Problems
}

func TestValidator_AcceptsBookingFlow(t *testing.T) {
	t.Parallel()

	require.NoError(t, newValidator(t).Validate(testutil.CreateBookingFlow()))
}

func TestValidator_RejectsNil(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, newValidator(t).Validate(nil), services.ErrFlowNil)
}

func TestValidator_GraphProblems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(flow *models.FlowDefinition)
		expected string
	}{
		{
			name:     "missing entry node",
			mutate:   func(flow *models.FlowDefinition) { flow.EntryNodeID = "nowhere" },
			expected: `entry node "nowhere" does not exist`,
		},
		{
			name:     "entry node of the wrong kind",
			mutate:   func(flow *models.FlowDefinition) { flow.EntryNodeID = "ask_service" },
			expected: `entry node "ask_service" has kind "action", want "entry"`,
		},
		{
			name: "entry points at a message node",
			mutate: func(flow *models.FlowDefinition) {
				flow.Nodes[0].Kind = models.NodeKindMessage
			},
			expected: `entry node "entry" has kind "message", want "entry"`,
		},
		{
			name:     "dangling next node",
			mutate:   func(flow *models.FlowDefinition) { flow.Nodes[0].NextNodes = []string{"ghost"} },
			expected: `node "entry" references missing node "ghost"`,
		},
		{
			name: "duplicate node id",
			mutate: func(flow *models.FlowDefinition) {
				flow.Nodes = append(flow.Nodes, testutil.CreateTestNode("entry"))
			},
			expected: `duplicate node id "entry"`,
		},
		{
			name: "dangling goto target",
			mutate: func(flow *models.FlowDefinition) {
				flow.Nodes[0].Actions = []*models.FlowAction{testutil.Action(&models.GotoNodeConfig{TargetNodeID: "ghost"})}
			},
			expected: `node "entry" action 0 (goto_node): goto target "ghost" does not exist`,
		},
		{
			name: "condition with three branches",
			mutate: func(flow *models.FlowDefinition) {
				flow.Nodes[0].Kind = models.NodeKindCondition
				flow.Nodes[0].NextNodes = []string{"ask_service", "ask_time", "handoff"}
			},
			expected: `condition node "entry" has more than two branches`,
		},
		{
			name: "unknown condition prefix",
			mutate: func(flow *models.FlowDefinition) {
				flow.Nodes[0].Conditions = []*models.FlowCondition{{Expression: "sounds_like:hello"}}
			},
			expected: `node "entry": `,
		},
		{
			name: "invalid regex trigger",
			mutate: func(flow *models.FlowDefinition) {
				flow.GlobalTriggers = append(flow.GlobalTriggers, &models.Trigger{Type: models.TriggerTypeRegex, Value: "(unclosed"})
			},
			expected: "trigger 1: invalid regex",
		},
		{
			name:     "missing name",
			mutate:   func(flow *models.FlowDefinition) { flow.Name = "" },
			expected: "Name is required",
		},
		{
			name:     "unknown flow type",
			mutate:   func(flow *models.FlowDefinition) { flow.FlowType = "campaign" },
			expected: "FlowType must be one of [automation override]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flow := testutil.CreateBookingFlow()
			tt.mutate(flow)

			found := problems(t, newValidator(t).Validate(flow))

			assert.True(t, anyContains(found, tt.expected), "expected %q in %v", tt.expected, found)
		})
	}
}

func TestValidator_ActionConfigAgainstSchema(t *testing.T) {
	t.Parallel()

	flow := testutil.CreateBookingFlow()
	flow.Nodes[1].Actions = []*models.FlowAction{
		{Type: models.ActionTypeCollectInput, Config: json.RawMessage(`{"prompt": 42}`)},
		{Type: models.ActionTypeDelay, Config: json.RawMessage(`{"delayAmount": 0, "delayUnit": "weeks"}`)},
		{Type: "send_sticker", Config: json.RawMessage(`{}`)},
	}

	found := problems(t, newValidator(t).Validate(flow))

	assert.True(t, anyContains(found, `node "ask_service" action 0 (collect_input)`), found)
	assert.True(t, anyContains(found, `node "ask_service" action 1 (delay)`), found)
	assert.True(t, anyContains(found, `unknown action type`), found)
}

func anyContains(values []string, sub string) bool {
	for _, value := range values {
		if strings.Contains(value, sub) {
			return true
		}
	}

	return false
}
