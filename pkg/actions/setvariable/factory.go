package setvariable

import (
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

// ExecutorFactory creates set_variable executors.
type ExecutorFactory struct{}

func NewExecutorFactory() *ExecutorFactory {
	return &ExecutorFactory{}
}

func (*ExecutorFactory) Create(deps protocol.Dependencies) (protocol.Executor, error) {
	return NewExecutor(), nil
}

func (*ExecutorFactory) ID() models.ActionType {
	return models.ActionTypeSetVariable
}

func (*ExecutorFactory) Name() string {
	return "Set Variable"
}

func (*ExecutorFactory) Description() string {
	return "Writes a value to a conversation variable."
}

func (*ExecutorFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"variableName": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"value": map[string]any{
				"description": "String values are interpolated; any other JSON value is stored as-is.",
			},
		},
		"required": []string{"variableName"},
	}
}
