package models

import (
	"fmt"
	"time"
)

// Platform is the messaging surface a conversation lives on.
type Platform string

const (
	PlatformMessenger Platform = "messenger"
	PlatformInstagram Platform = "instagram"
)

// Conversation identifies one user thread on one page.
type Conversation struct {
	ID       string   `json:"id"       validate:"required"`
	Platform Platform `json:"platform" validate:"required,oneof=messenger instagram"`
	PageID   string   `json:"pageId"   validate:"required"`
	UserID   string   `json:"userId"   validate:"required"`
}

// ConversationKey builds the conversation id used for state and locking.
func ConversationKey(platform Platform, pageID, userID string) string {
	return fmt.Sprintf("%s:%s:%s", platform, pageID, userID)
}

// InboundMessage is a user message (or platform event) delivered to the engine.
type InboundMessage struct {
	ID                string       `json:"id"                          validate:"required"`
	Conversation      Conversation `json:"conversation"                validate:"required"`
	Text              string       `json:"text"`
	Event             string       `json:"event,omitempty"`
	Intent            string       `json:"intent,omitempty"`
	QuickReplyPayload string       `json:"quickReplyPayload,omitempty"`
	Timestamp         time.Time    `json:"timestamp"`
}

// OutboundMessage is an automated message the engine asks the messenger to send.
type OutboundMessage struct {
	ConversationID string       `json:"conversationId"`
	Text           string       `json:"text"`
	QuickReplies   []QuickReply `json:"quickReplies,omitempty"`
}
