package delay

import (
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

// ExecutorFactory creates delay executors.
type ExecutorFactory struct{}

func NewExecutorFactory() *ExecutorFactory {
	return &ExecutorFactory{}
}

func (*ExecutorFactory) Create(deps protocol.Dependencies) (protocol.Executor, error) {
	return NewExecutor(), nil
}

func (*ExecutorFactory) ID() models.ActionType {
	return models.ActionTypeDelay
}

func (*ExecutorFactory) Name() string {
	return "Delay"
}

func (*ExecutorFactory) Description() string {
	return "Pauses the flow. A new user message during the wait cancels the delay."
}

func (*ExecutorFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"delayAmount": map[string]any{
				"type":    "integer",
				"minimum": 1,
			},
			"delayUnit": map[string]any{
				"type": "string",
				"enum": []string{"minutes", "hours", "days"},
			},
		},
		"required": []string{"delayAmount", "delayUnit"},
	}
}
