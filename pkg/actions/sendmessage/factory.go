package sendmessage

import (
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

// ExecutorFactory creates send_message executors.
type ExecutorFactory struct{}

// NewExecutorFactory creates a new send_message executor factory.
func NewExecutorFactory() *ExecutorFactory {
	return &ExecutorFactory{}
}

// Create creates a new Executor.
func (*ExecutorFactory) Create(deps protocol.Dependencies) (protocol.Executor, error) {
	return NewExecutor(), nil
}

// ID returns the action type.
func (*ExecutorFactory) ID() models.ActionType {
	return models.ActionTypeSendMessage
}

// Name returns the name of the action.
func (*ExecutorFactory) Name() string {
	return "Send Message"
}

// Description returns a brief description of the action.
func (*ExecutorFactory) Description() string {
	return "Sends a text message to the user. Supports {{variable}} placeholders."
}

// Schema returns the JSON schema of the action config.
func (*ExecutorFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Text to send.",
				"examples":    []string{"Hi {{first_name}}, how can we help?"},
			},
		},
		"required": []string{"message"},
	}
}
