package gotonode

import (
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

// ExecutorFactory creates goto_node executors.
type ExecutorFactory struct{}

func NewExecutorFactory() *ExecutorFactory {
	return &ExecutorFactory{}
}

func (*ExecutorFactory) Create(deps protocol.Dependencies) (protocol.Executor, error) {
	return NewExecutor(), nil
}

func (*ExecutorFactory) ID() models.ActionType {
	return models.ActionTypeGotoNode
}

func (*ExecutorFactory) Name() string {
	return "Go To Node"
}

func (*ExecutorFactory) Description() string {
	return "Jumps to another node of the flow, ignoring nextNodes."
}

func (*ExecutorFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"targetNodeId": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
		},
		"required": []string{"targetNodeId"},
	}
}
