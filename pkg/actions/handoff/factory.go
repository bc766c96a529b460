package handoff

import (
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

// ExecutorFactory creates handoff executors.
type ExecutorFactory struct{}

func NewExecutorFactory() *ExecutorFactory {
	return &ExecutorFactory{}
}

func (*ExecutorFactory) Create(deps protocol.Dependencies) (protocol.Executor, error) {
	return NewExecutor(), nil
}

func (*ExecutorFactory) ID() models.ActionType {
	return models.ActionTypeHandoff
}

func (*ExecutorFactory) Name() string {
	return "Handoff"
}

func (*ExecutorFactory) Description() string {
	return "Transfers the conversation to a human agent and ends the automation."
}

func (*ExecutorFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reason": map[string]any{
				"type":        "string",
				"description": "Shown to the agent taking over the conversation.",
			},
		},
	}
}
