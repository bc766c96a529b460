package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/dukex/chatflow/pkg/events"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	eventReceived   = "EVENT_RECEIVED"

	// CommentEvent is the event name of a comment on a page or media.
	CommentEvent = "comment"
)

var errInvalidSignature = errors.New("invalid webhook signature")

// VerifyMetaWebhook answers the subscription handshake of the Meta platform.
func (h *APIHandlers) VerifyMetaWebhook(c fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || h.webhook.VerifyToken == "" || token != h.webhook.VerifyToken {
		h.logger.WarnContext(c.Context(), "Webhook verification rejected", "mode", mode)

		return forbidden(c, "verification token mismatch")
	}

	return c.SendString(challenge)
}

// ReceiveMetaWebhook normalizes Messenger and Instagram deliveries into
// inbound messages and publishes them for the workers.
func (h *APIHandlers) ReceiveMetaWebhook(c fiber.Ctx) error {
	body := c.Body()

	if h.webhook.AppSecret != "" {
		if err := verifySignature(h.webhook.AppSecret, c.Get(signatureHeader), body); err != nil {
			h.logger.WarnContext(c.Context(), "Webhook signature rejected", "error", err)

			return forbidden(c, err.Error())
		}
	}

	messages, err := parseWebhook(body)
	if err != nil {
		return badRequest(c, err.Error())
	}

	for _, msg := range messages {
		if err := h.validator.Struct(msg); err != nil {
			h.logger.WarnContext(c.Context(), "Skipping webhook entry", "message_id", msg.ID, "error", err)

			continue
		}

		event := events.MessageReceived{
			BaseEvent: events.NewBaseEvent(h.newID(), events.MessageReceivedEvent, msg.Conversation.ID, "", time.Now().UTC()),
			Message:   msg,
		}

		if err := h.publisher.Publish(c.Context(), msg.Conversation.ID, event); err != nil {
			h.logger.ErrorContext(c.Context(), "Failed to publish inbound message",
				"conversation_id", msg.Conversation.ID, "message_id", msg.ID, "error", err)

			return internalError(c, err)
		}

		h.logger.DebugContext(c.Context(), "Inbound message published",
			"conversation_id", msg.Conversation.ID, "message_id", msg.ID)
	}

	return c.SendString(eventReceived)
}

func verifySignature(secret, header string, body []byte) error {
	signature, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return errInvalidSignature
	}

	expected, err := hex.DecodeString(signature)
	if err != nil {
		return errInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	if !hmac.Equal(mac.Sum(nil), expected) {
		return errInvalidSignature
	}

	return nil
}

func parseWebhook(body []byte) ([]*models.InboundMessage, error) {
	payload, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	var platform models.Platform

	switch object, _ := payload.Path("object").Data().(string); object {
	case "page":
		platform = models.PlatformMessenger
	case "instagram":
		platform = models.PlatformInstagram
	default:
		return nil, fmt.Errorf("unsupported webhook object %q", object)
	}

	var messages []*models.InboundMessage

	for _, entry := range payload.S("entry").Children() {
		pageID := stringAt(entry, "id")

		for _, messaging := range entry.S("messaging").Children() {
			if msg := parseMessaging(platform, messaging); msg != nil {
				messages = append(messages, msg)
			}
		}

		for _, change := range entry.S("changes").Children() {
			if msg := parseComment(platform, pageID, change); msg != nil {
				messages = append(messages, msg)
			}
		}
	}

	return messages, nil
}

func parseMessaging(platform models.Platform, messaging *gabs.Container) *models.InboundMessage {
	userID := stringAt(messaging, "sender.id")
	pageID := stringAt(messaging, "recipient.id")
	at := millis(messaging.Path("timestamp").Data())

	msg := &models.InboundMessage{
		Conversation: conversation(platform, pageID, userID),
		Timestamp:    at,
	}

	switch {
	case messaging.Exists("message"):
		if echo, _ := messaging.Path("message.is_echo").Data().(bool); echo {
			return nil
		}

		msg.ID = stringAt(messaging, "message.mid")
		msg.Text = stringAt(messaging, "message.text")
		msg.QuickReplyPayload = stringAt(messaging, "message.quick_reply.payload")

	case messaging.Exists("postback"):
		msg.ID = stringAt(messaging, "postback.mid")
		msg.Text = stringAt(messaging, "postback.title")
		msg.Event = stringAt(messaging, "postback.payload")

	default:
		return nil
	}

	if msg.ID == "" {
		msg.ID = fmt.Sprintf("%s:%d", msg.Conversation.ID, at.UnixMilli())
	}

	return msg
}

func parseComment(platform models.Platform, pageID string, change *gabs.Container) *models.InboundMessage {
	field := stringAt(change, "field")
	if field != "comments" && field != "feed" {
		return nil
	}

	if field == "feed" && stringAt(change, "value.item") != CommentEvent {
		return nil
	}

	id := stringAt(change, "value.id")
	if id == "" {
		id = stringAt(change, "value.comment_id")
	}

	userID := stringAt(change, "value.from.id")

	text := stringAt(change, "value.text")
	if text == "" {
		text = stringAt(change, "value.message")
	}

	at := millis(change.Path("value.created_time").Data())
	if at.IsZero() {
		at = time.Now().UTC()
	}

	return &models.InboundMessage{
		ID:           id,
		Conversation: conversation(platform, pageID, userID),
		Text:         text,
		Event:        CommentEvent,
		Timestamp:    at,
	}
}

func conversation(platform models.Platform, pageID, userID string) models.Conversation {
	id := ""
	if pageID != "" && userID != "" {
		id = models.ConversationKey(platform, pageID, userID)
	}

	return models.Conversation{
		ID:       id,
		Platform: platform,
		PageID:   pageID,
		UserID:   userID,
	}
}

func stringAt(container *gabs.Container, path string) string {
	switch v := container.Path(path).Data().(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

// millis converts a Meta epoch timestamp. Messaging uses milliseconds and
// feed changes use seconds.
func millis(value any) time.Time {
	n, ok := value.(float64)
	if !ok || n <= 0 {
		return time.Time{}
	}

	if n < 1e12 {
		return time.Unix(int64(n), 0).UTC()
	}

	return time.UnixMilli(int64(n)).UTC()
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
