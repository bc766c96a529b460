// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"log/slog"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/dukex/chatflow/pkg/variables"
	"github.com/google/uuid"
)

// Action encodes a typed config into a FlowAction, panicking on failure.
func Action(config models.ActionConfig) *models.FlowAction {
	action, err := models.NewFlowAction(config)
	if err != nil {
		panic(err)
	}

	return action
}

// CreateTestNode creates a test FlowNode with default values that can be overridden.
func CreateTestNode(id string, overrides ...func(*models.FlowNode)) *models.FlowNode {
	node := &models.FlowNode{
		ID:   id,
		Name: id,
		Kind: models.NodeKindMessage,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithKind sets the node kind.
func WithKind(kind models.NodeKind) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.Kind = kind
	}
}

// WithActions appends actions built from typed configs.
func WithActions(configs ...models.ActionConfig) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		for _, config := range configs {
			n.Actions = append(n.Actions, Action(config))
		}
	}
}

// WithNext sets the outgoing edges.
func WithNext(ids ...string) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.NextNodes = ids
	}
}

// WithConditions makes the node a condition node with the given conditions.
func WithConditions(conditions ...*models.FlowCondition) func(*models.FlowNode) {
	return func(n *models.FlowNode) {
		n.Kind = models.NodeKindCondition
		n.Conditions = conditions
	}
}

// CreateTestFlow creates an active automation flow triggered by keyword.
func CreateTestFlow(keyword string, nodes ...*models.FlowNode) *models.FlowDefinition {
	entryID := ""
	if len(nodes) > 0 {
		entryID = nodes[0].ID
	}

	return &models.FlowDefinition{
		ID:          uuid.New().String(),
		Name:        "Test Flow " + keyword,
		FlowType:    models.FlowTypeAutomation,
		Priority:    1,
		IsActive:    true,
		EntryNodeID: entryID,
		GlobalTriggers: []*models.Trigger{
			{Type: models.TriggerTypeKeyword, Value: keyword},
		},
		Nodes:     nodes,
		Version:   1,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// CreateBookingFlow builds the appointment flow: entry, two collect_input
// steps and a handoff.
func CreateBookingFlow() *models.FlowDefinition {
	return CreateTestFlow("book",
		CreateTestNode("entry", WithKind(models.NodeKindEntry), WithNext("ask_service")),
		CreateTestNode("ask_service",
			WithKind(models.NodeKindAction),
			WithActions(&models.CollectInputConfig{Prompt: "Which service would you like?", InputName: "service"}),
			WithNext("ask_time")),
		CreateTestNode("ask_time",
			WithKind(models.NodeKindAction),
			WithActions(&models.CollectInputConfig{Prompt: "When would you like to come in?", InputName: "preferredTime"}),
			WithNext("handoff")),
		CreateTestNode("handoff",
			WithKind(models.NodeKindAction),
			WithActions(&models.HandoffConfig{Reason: "Appointment request"}),
			WithNext("after_handoff")),
		CreateTestNode("after_handoff",
			WithActions(&models.SendMessageConfig{Message: "never sent"})),
	)
}

// Conversation returns a messenger conversation for tests.
func Conversation(userID string) models.Conversation {
	return models.Conversation{
		ID:       models.ConversationKey(models.PlatformMessenger, "page-1", userID),
		Platform: models.PlatformMessenger,
		PageID:   "page-1",
		UserID:   userID,
	}
}

// InboundMessage builds an inbound text message for the conversation.
func InboundMessage(conversation models.Conversation, text string, at time.Time) *models.InboundMessage {
	return &models.InboundMessage{
		ID:           uuid.New().String(),
		Conversation: conversation,
		Text:         text,
		Timestamp:    at,
	}
}

// ExecutionContext creates an executor context over the given variables.
func ExecutionContext(vars map[string]any, lastUserMessage string) *protocol.ExecutionContext {
	return &protocol.ExecutionContext{
		Conversation:    Conversation("user-1"),
		ConversationID:  Conversation("user-1").ID,
		FlowID:          "flow-1",
		NodeID:          "node-1",
		Variables:       variables.New(vars),
		LastUserMessage: lastUserMessage,
		Logger:          slog.Default(),
	}
}
