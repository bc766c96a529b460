// Package protocol defines the contracts between the flow engine, its action
// executors and the external collaborators they call.
package protocol

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/template"
	"github.com/dukex/chatflow/pkg/variables"
	"github.com/jonboulle/clockwork"
)

// Executor runs one kind of FlowAction.
type Executor interface {
	Execute(ctx context.Context, config models.ActionConfig, execCtx *ExecutionContext) (*Result, error)
}

// ExecutorFactory creates the executor of an action type and describes its configuration.
type ExecutorFactory interface {
	// Create creates the executor with the given collaborators
	Create(deps Dependencies) (Executor, error)

	// ID returns the action type this factory executes
	ID() models.ActionType

	// Name returns the human-readable name of the action
	Name() string

	// Description returns a description of what the action does
	Description() string

	// Schema returns the JSON schema of the action config
	Schema() map[string]any
}

// Dependencies are the collaborators executors may use.
type Dependencies struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	AI     AIClient
	HTTP   HTTPFetcher
	Retry  RetryPolicy

	// HTTPTimeout bounds http_request calls that do not set their own timeout.
	HTTPTimeout time.Duration

	// DefaultModel is used by ai_node actions without a model.
	DefaultModel string
}

// ExecutionContext is what an executor sees of the current turn.
type ExecutionContext struct {
	Conversation    models.Conversation
	ConversationID  string
	FlowID          string
	NodeID          string
	ActionIndex     int
	Variables       *variables.Store
	LastUserMessage string
	Logger          *slog.Logger
}

// Render interpolates {{name}} placeholders against the variable store.
func (c *ExecutionContext) Render(input string) string {
	return template.Render(input, c.Variables)
}

// SuspendKind says what a suspended turn waits for.
type SuspendKind string

const (
	SuspendForInput SuspendKind = "input"
	SuspendForDelay SuspendKind = "delay"
)

// Suspension stops the walker until an external event resumes the conversation.
type Suspension struct {
	Kind      SuspendKind
	Duration  time.Duration
	InputName string
}

// Result is the outcome of one action. The walker applies variable writes,
// sends outbound messages in order, then honours suspension, terminal and goto.
type Result struct {
	VariableWrites   map[string]any
	OutboundMessages []*models.OutboundMessage
	Suspend          *Suspension
	Terminal         bool
	HandoffReason    string
	GotoNodeID       string
}

// Text builds an outbound text message for the current conversation.
func (c *ExecutionContext) Text(text string) *models.OutboundMessage {
	return &models.OutboundMessage{ConversationID: c.ConversationID, Text: text}
}
