package ainode

import (
	"errors"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

var (
	// ErrMissingAIClient is returned when no AI provider is configured.
	ErrMissingAIClient       = errors.New("ai_node requires an AI client")
	ErrMissingTargetLanguage = errors.New("translate requires a targetLanguage")
	ErrMissingCustomPrompt   = errors.New("custom operation requires a customPrompt")
)

// ExecutorFactory creates ai_node executors.
type ExecutorFactory struct{}

func NewExecutorFactory() *ExecutorFactory {
	return &ExecutorFactory{}
}

func (*ExecutorFactory) Create(deps protocol.Dependencies) (protocol.Executor, error) {
	if deps.AI == nil {
		return nil, ErrMissingAIClient
	}

	return NewExecutor(deps.AI, deps.Retry, deps.DefaultModel), nil
}

func (*ExecutorFactory) ID() models.ActionType {
	return models.ActionTypeAINode
}

func (*ExecutorFactory) Name() string {
	return "AI"
}

func (*ExecutorFactory) Description() string {
	return "Asks the AI provider to generate, extract, classify, analyze, summarize or translate."
}

func (*ExecutorFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []string{
					string(models.AIOperationGenerateResponse),
					string(models.AIOperationGenerateContent),
					string(models.AIOperationExtractData),
					string(models.AIOperationClassifyIntent),
					string(models.AIOperationAnalyzeSentiment),
					string(models.AIOperationSummarize),
					string(models.AIOperationTranslate),
					string(models.AIOperationCustom),
				},
			},
			"model":                    map[string]any{"type": "string"},
			"temperature":              map[string]any{"type": "number", "minimum": 0, "maximum": 2},
			"maxTokens":                map[string]any{"type": "integer", "minimum": 1},
			"systemPrompt":             map[string]any{"type": "string"},
			"prompt":                   map[string]any{"type": "string"},
			"customPrompt":             map[string]any{"type": "string"},
			"input":                    map[string]any{"type": "string"},
			"extractionSchema":         map[string]any{"type": "object"},
			"classificationCategories": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"targetLanguage":           map[string]any{"type": "string"},
			"outputVariable":           map[string]any{"type": "string"},
			"sendAsMessage":            map[string]any{"type": "boolean"},
		},
		"required": []string{"operation"},
	}
}
