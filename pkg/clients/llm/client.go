// Package llm is the AI provider collaborator. It speaks the OpenAI
// compatible chat completions API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/dukex/chatflow/pkg/retry"
	"github.com/go-resty/resty/v2"
)

const DefaultTimeout = 30 * time.Second

var (
	ErrEmptyCompletion = errors.New("completion has no choices")
	ErrNoModel         = errors.New("no model configured")
)

type Config struct {
	BaseURL      string
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
}

type Client struct {
	client       *resty.Client
	defaultModel string
	logger       *slog.Logger
}

func NewClient(logger *slog.Logger, config Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(config.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	if config.APIKey != "" {
		client.SetAuthToken(config.APIKey)
	}

	return &Client{
		client:       client,
		defaultModel: config.DefaultModel,
		logger:       logger.With("module", "llm_client"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete asks the provider for one completion. Client errors other than
// rate limiting are permanent so the retry policy does not repeat them.
func (c *Client) Complete(ctx context.Context, req *protocol.AIRequest) (*protocol.AIResponse, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	if model == "" {
		return nil, retry.Permanent(ErrNoModel)
	}

	body := chatRequest{
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}

	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})

	structured := wantsStructured(req)
	if structured {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var (
		result  chatResponse
		failure apiError
	)

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&failure).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("failed to call completion api: %w", err)
	}

	if resp.IsError() {
		err = fmt.Errorf("completion api returned %d: %s", resp.StatusCode(), failure.Error.Message)
		if resp.StatusCode() < http.StatusInternalServerError && resp.StatusCode() != http.StatusTooManyRequests {
			return nil, retry.Permanent(err)
		}

		return nil, err
	}

	if len(result.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	text := strings.TrimSpace(result.Choices[0].Message.Content)
	out := &protocol.AIResponse{Text: text}

	if structured {
		var value any

		err = json.Unmarshal([]byte(stripFence(text)), &value)
		if err != nil {
			c.logger.WarnContext(ctx, "Structured completion is not valid JSON", "operation", req.Operation, "error", err)
		} else {
			out.Structured = value
		}
	}

	c.logger.DebugContext(ctx, "Completion received", "operation", req.Operation, "model", model)

	return out, nil
}

func wantsStructured(req *protocol.AIRequest) bool {
	return req.Schema != nil || req.Operation == models.AIOperationExtractData
}

// stripFence removes a markdown code fence around a JSON answer.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	return strings.TrimSpace(text)
}
