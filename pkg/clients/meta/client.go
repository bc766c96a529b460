// Package meta sends automated replies through the Meta Graph Send API for
// Messenger and Instagram conversations.
package meta

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultAPIURL = "https://graph.facebook.com/v21.0"

	// MaxQuickReplies is the platform limit of quick replies per message.
	MaxQuickReplies = 13

	// MaxQuickReplyTitle is the platform limit of a quick reply title, in characters.
	MaxQuickReplyTitle = 20

	windowExpiredCode    = 10
	windowExpiredSubcode = 2018278
)

// ErrNoPageToken is returned when no access token is configured for the page
// of a conversation.
var ErrNoPageToken = errors.New("no access token for page")

// GraphError is an error answered by the Graph API.
type GraphError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode"`
	TraceID string `json:"fbtrace_id"`
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api error %d/%d (status %d): %s", e.Code, e.Subcode, e.Status, e.Message)
}

// WindowExpired reports whether the send was refused because the reply
// window of the conversation is closed.
func (e *GraphError) WindowExpired() bool {
	return e.Code == windowExpiredCode || e.Subcode == windowExpiredSubcode
}

func (e *GraphError) Is(target error) bool {
	return target == protocol.ErrWindowExpired && e.WindowExpired()
}

type Config struct {
	APIURL     string
	PageTokens map[string]string
	Timeout    time.Duration
}

// Client implements protocol.Messenger.
type Client struct {
	client     *resty.Client
	pageTokens map[string]string
	logger     *slog.Logger
}

func NewClient(logger *slog.Logger, config Config) *Client {
	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(apiURL, "/")).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		pageTokens: config.PageTokens,
		logger:     logger.With("module", "meta_client"),
	}
}

type sendRequest struct {
	Recipient     recipient   `json:"recipient"`
	MessagingType string      `json:"messaging_type"`
	Message       sendMessage `json:"message"`
}

type recipient struct {
	ID string `json:"id"`
}

type sendMessage struct {
	Text         string       `json:"text"`
	QuickReplies []quickReply `json:"quick_replies,omitempty"`
}

type quickReply struct {
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Payload     string `json:"payload"`
}

type errorEnvelope struct {
	Error *GraphError `json:"error"`
}

// Send delivers msg to the user of the conversation. A closed reply window
// surfaces as an error matching protocol.ErrWindowExpired.
func (c *Client) Send(ctx context.Context, conversation models.Conversation, msg *models.OutboundMessage) error {
	token, ok := c.pageTokens[conversation.PageID]
	if !ok || token == "" {
		return fmt.Errorf("%w %s", ErrNoPageToken, conversation.PageID)
	}

	body := sendRequest{
		Recipient:     recipient{ID: conversation.UserID},
		MessagingType: "RESPONSE",
		Message: sendMessage{
			Text:         msg.Text,
			QuickReplies: quickReplies(msg.QuickReplies),
		},
	}

	var failure errorEnvelope

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetBody(body).
		SetError(&failure).
		Post("/me/messages")
	if err != nil {
		return fmt.Errorf("failed to call send api: %w", err)
	}

	if resp.IsError() {
		graphErr := failure.Error
		if graphErr == nil {
			graphErr = &GraphError{Message: resp.String()}
		}

		graphErr.Status = resp.StatusCode()

		c.logger.WarnContext(ctx, "Send API refused message",
			"conversation_id", conversation.ID,
			"code", graphErr.Code,
			"subcode", graphErr.Subcode,
			"trace_id", graphErr.TraceID)

		return graphErr
	}

	c.logger.DebugContext(ctx, "Message sent", "conversation_id", conversation.ID, "platform", conversation.Platform)

	return nil
}

// quickReplies converts replies to the platform shape, dropping replies past
// the platform maximum and truncating long titles.
func quickReplies(replies []models.QuickReply) []quickReply {
	if len(replies) == 0 {
		return nil
	}

	if len(replies) > MaxQuickReplies {
		replies = replies[:MaxQuickReplies]
	}

	out := make([]quickReply, 0, len(replies))

	for _, reply := range replies {
		payload := reply.Payload
		if payload == "" {
			payload = reply.Title
		}

		out = append(out, quickReply{
			ContentType: "text",
			Title:       truncate(reply.Title, MaxQuickReplyTitle),
			Payload:     payload,
		})
	}

	return out
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	return string([]rune(s)[:limit])
}

// ParsePageTokens parses "pageId=token,pageId=token".
func ParsePageTokens(raw string) (map[string]string, error) {
	tokens := map[string]string{}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		pageID, token, ok := strings.Cut(pair, "=")
		if !ok || pageID == "" || token == "" {
			return nil, fmt.Errorf("invalid page token entry %q", pair)
		}

		tokens[strings.TrimSpace(pageID)] = strings.TrimSpace(token)
	}

	return tokens, nil
}
