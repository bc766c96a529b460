package quickreplies

import (
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

// ExecutorFactory creates send_quick_replies executors.
type ExecutorFactory struct{}

func NewExecutorFactory() *ExecutorFactory {
	return &ExecutorFactory{}
}

func (*ExecutorFactory) Create(deps protocol.Dependencies) (protocol.Executor, error) {
	return NewExecutor(), nil
}

func (*ExecutorFactory) ID() models.ActionType {
	return models.ActionTypeSendQuickReplies
}

func (*ExecutorFactory) Name() string {
	return "Send Quick Replies"
}

func (*ExecutorFactory) Description() string {
	return "Sends a message with quick-reply buttons."
}

func (*ExecutorFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
			"replies": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"oneOf": []any{
						map[string]any{"type": "string", "minLength": 1},
						map[string]any{
							"type": "object",
							"properties": map[string]any{
								"title":   map[string]any{"type": "string", "minLength": 1},
								"payload": map[string]any{"type": "string"},
							},
							"required": []string{"title"},
						},
					},
				},
			},
		},
		"required": []string{"message", "replies"},
	}
}
