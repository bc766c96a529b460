package models

import "time"

// ExecutionStatus is the lifecycle state of a conversation's flow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusHandedOff ExecutionStatus = "handed_off"
)

// PendingDelay records a scheduled resumption the conversation is waiting on.
type PendingDelay struct {
	ID              string      `json:"id"`
	ResumeAt        time.Time   `json:"resumeAt"`
	ScheduledNodeID string      `json:"scheduledNodeId"`
	ActionIndex     int         `json:"actionIndex"`
	Status          DelayStatus `json:"status"`
}

// AwaitingInput records a collect_input waiting for the next user message.
type AwaitingInput struct {
	NodeID      string `json:"nodeId"`
	ActionIndex int    `json:"actionIndex"`
	InputName   string `json:"inputName"`
}

// ConversationExecutionState is the persisted cursor of one conversation inside
// a flow. CurrentNodeID and ActionIndex together point at the next action to run.
type ConversationExecutionState struct {
	ConversationID  string          `json:"conversationId"`
	Conversation    Conversation    `json:"conversation"`
	FlowID          string          `json:"flowId"`
	FlowVersion     int             `json:"flowVersion,omitempty"`
	CurrentNodeID   string          `json:"currentNodeId"`
	ActionIndex     int             `json:"actionIndex"`
	Variables       map[string]any  `json:"variables"`
	PendingDelay    *PendingDelay   `json:"pendingDelay"`
	AwaitingInput   *AwaitingInput  `json:"awaitingInput,omitempty"`
	Status          ExecutionStatus `json:"status"`
	HandoffReason   string          `json:"handoffReason,omitempty"`
	LastError       string          `json:"lastError,omitempty"`
	LastMessageID   string          `json:"lastMessageId,omitempty"`
	LastMessageAt   time.Time       `json:"lastMessageAt,omitzero"`
	LastUserMessage string          `json:"lastUserMessage,omitempty"`
	StartedAt       time.Time       `json:"startedAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// NewConversationState creates a running state positioned at the flow's entry node.
func NewConversationState(conversationID string, flow *FlowDefinition, now time.Time) *ConversationExecutionState {
	return &ConversationExecutionState{
		ConversationID: conversationID,
		FlowID:         flow.ID,
		FlowVersion:    flow.Version,
		CurrentNodeID:  flow.EntryNodeID,
		Variables:      map[string]any{},
		Status:         ExecutionStatusRunning,
		StartedAt:      now,
		UpdatedAt:      now,
	}
}

// IsActive reports whether a flow is still in progress for the conversation.
func (s *ConversationExecutionState) IsActive() bool {
	return s != nil && (s.Status == ExecutionStatusRunning || s.Status == ExecutionStatusPaused)
}

// IsHandedOff reports whether a human owns the conversation.
func (s *ConversationExecutionState) IsHandedOff() bool {
	return s != nil && s.Status == ExecutionStatusHandedOff
}
