package protocol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/chatflow/pkg/models"
)

// ErrWindowExpired is returned by a Messenger when the platform refuses a send
// because the reply window of the conversation is closed. It is never retried.
var ErrWindowExpired = errors.New("messaging window expired")

// Messenger sends automated messages to the platform.
type Messenger interface {
	Send(ctx context.Context, conversation models.Conversation, msg *models.OutboundMessage) error
}

// AIRequest is a single completion asked of the AI provider.
type AIRequest struct {
	Operation    models.AIOperation
	Model        string
	Temperature  *float64
	MaxTokens    int
	SystemPrompt string
	Prompt       string
	Schema       map[string]any
}

// AIResponse is the provider's answer. Structured is set when a schema was
// requested and the answer parsed as JSON.
type AIResponse struct {
	Text       string
	Structured any
}

// AIClient is the AI provider collaborator.
type AIClient interface {
	Complete(ctx context.Context, req *AIRequest) (*AIResponse, error)
}

// HTTPRequest is a generic outbound HTTP call.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
	Timeout time.Duration
}

// HTTPResponse is the status and body of an outbound HTTP call.
type HTTPResponse struct {
	Status int
	Body   []byte
}

// IsSuccess reports a 2xx status.
func (r *HTTPResponse) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

// HTTPFetcher is the HTTP fetch collaborator.
type HTTPFetcher interface {
	Fetch(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// RetryPolicy runs an operation, retrying it on error.
type RetryPolicy interface {
	Do(ctx context.Context, operation func(ctx context.Context) error) error
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Status)
}
