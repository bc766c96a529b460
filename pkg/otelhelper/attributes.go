package otelhelper

import (
	"github.com/dukex/chatflow/pkg/models"
	"go.opentelemetry.io/otel/attribute"
)

// ConversationAttributes returns the attribution triple as span attributes.
func ConversationAttributes(conversationID, flowID, nodeID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ConversationIDKey, conversationID),
		attribute.String(FlowIDKey, flowID),
		attribute.String(NodeIDKey, nodeID),
	}
}

func InboundAttributes(msg *models.InboundMessage) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ConversationIDKey, msg.Conversation.ID),
		attribute.String(MessageIDKey, msg.ID),
	}
}

func ResumeAttributes(resumption *models.DelayedResumption) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ConversationIDKey, resumption.ConversationID),
		attribute.String(FlowIDKey, resumption.FlowID),
		attribute.String(DelayIDKey, resumption.ID),
	}
}

// NodeAttributes adds the node kind to the attribution triple.
func NodeAttributes(conversationID string, flow *models.FlowDefinition, node *models.FlowNode) []attribute.KeyValue {
	return append(ConversationAttributes(conversationID, flow.ID, node.ID),
		attribute.String(FlowNameKey, flow.Name),
		attribute.String(NodeKindKey, string(node.Kind)),
	)
}
