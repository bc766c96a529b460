// Package events defines the messages carried on the event bus: inbound user
// messages for the workers and engine lifecycle events for the team inbox.
package events

import (
	"time"

	"github.com/dukex/chatflow/pkg/models"
)

type EventType string

// Topics.
const (
	InboundTopic = "chatflow.inbound" // user messages, keyed by conversation id
	Topic        = "chatflow.events"  // engine lifecycle events
)

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	MessageReceivedEvent EventType = "message.received"

	FlowStartedEvent   EventType = "flow.started"
	FlowCompletedEvent EventType = "flow.completed"
	FlowHandedOffEvent EventType = "flow.handed_off"
	FlowFailedEvent    EventType = "flow.failed"

	DelayScheduledEvent EventType = "delay.scheduled"
	DelayCancelledEvent EventType = "delay.cancelled"
	DelayFiredEvent     EventType = "delay.fired"
)

// TopicFor returns the topic an event type travels on.
func TopicFor(eventType EventType) string {
	if eventType == MessageReceivedEvent {
		return InboundTopic
	}

	return Topic
}

type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	ConversationID string         `json:"conversation_id"`
	FlowID         string         `json:"flow_id,omitempty"`
	WorkerID       string         `json:"worker_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent fills the common event fields.
func NewBaseEvent(id string, eventType EventType, conversationID, flowID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:             id,
		Type:           eventType,
		Timestamp:      at,
		ConversationID: conversationID,
		FlowID:         flowID,
	}
}

// MessageReceived carries a normalized inbound message from the webhook to the workers.
type MessageReceived struct {
	BaseEvent

	Message *models.InboundMessage `json:"message"`
}

func (e MessageReceived) GetType() EventType {
	return MessageReceivedEvent
}

type FlowStarted struct {
	BaseEvent

	FlowName    string `json:"flow_name"`
	Preempted   string `json:"preempted_flow_id,omitempty"`
	TriggeredBy string `json:"triggered_by"`
}

func (e FlowStarted) GetType() EventType {
	return FlowStartedEvent
}

type FlowCompleted struct {
	BaseEvent

	NodeID string `json:"node_id"`
}

func (e FlowCompleted) GetType() EventType {
	return FlowCompletedEvent
}

// FlowHandedOff tells the team inbox a human must take over the conversation.
type FlowHandedOff struct {
	BaseEvent

	NodeID    string         `json:"node_id"`
	Reason    string         `json:"reason"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (e FlowHandedOff) GetType() EventType {
	return FlowHandedOffEvent
}

type FlowFailed struct {
	BaseEvent

	NodeID string `json:"node_id"`
	Error  string `json:"error"`
}

func (e FlowFailed) GetType() EventType {
	return FlowFailedEvent
}

type DelayScheduled struct {
	BaseEvent

	DelayID  string    `json:"delay_id"`
	NodeID   string    `json:"node_id"`
	ResumeAt time.Time `json:"resume_at"`
}

func (e DelayScheduled) GetType() EventType {
	return DelayScheduledEvent
}

type DelayCancelled struct {
	BaseEvent

	DelayID string `json:"delay_id"`
}

func (e DelayCancelled) GetType() EventType {
	return DelayCancelledEvent
}

type DelayFired struct {
	BaseEvent

	DelayID string `json:"delay_id"`
	NodeID  string `json:"node_id"`
}

func (e DelayFired) GetType() EventType {
	return DelayFiredEvent
}
