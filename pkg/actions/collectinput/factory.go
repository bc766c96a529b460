package collectinput

import (
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

// ExecutorFactory creates collect_input executors.
type ExecutorFactory struct{}

func NewExecutorFactory() *ExecutorFactory {
	return &ExecutorFactory{}
}

func (*ExecutorFactory) Create(deps protocol.Dependencies) (protocol.Executor, error) {
	return NewExecutor(), nil
}

func (*ExecutorFactory) ID() models.ActionType {
	return models.ActionTypeCollectInput
}

func (*ExecutorFactory) Name() string {
	return "Collect Input"
}

func (*ExecutorFactory) Description() string {
	return "Asks the user a question and stores the next reply in a variable."
}

func (*ExecutorFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"inputName": map[string]any{
				"type":    "string",
				"pattern": `^[A-Za-z_][A-Za-z0-9_]*$`,
			},
		},
		"required": []string{"prompt", "inputName"},
	}
}
