package httprequest

import (
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

// ExecutorFactory creates http_request executors.
type ExecutorFactory struct{}

// NewExecutorFactory creates a new http_request executor factory.
func NewExecutorFactory() *ExecutorFactory {
	return &ExecutorFactory{}
}

// Create creates a new Executor from the HTTP fetch collaborator.
func (h *ExecutorFactory) Create(deps protocol.Dependencies) (protocol.Executor, error) {
	if deps.HTTP == nil {
		return nil, ErrMissingFetcher
	}

	return NewExecutor(deps.HTTP, deps.HTTPTimeout), nil
}

// ID returns the action type.
func (h *ExecutorFactory) ID() models.ActionType {
	return models.ActionTypeHTTPRequest
}

// Name returns the name of the action.
func (h *ExecutorFactory) Name() string {
	return "HTTP Request"
}

// Description returns a brief description of the action.
func (h *ExecutorFactory) Description() string {
	return "Performs an HTTP request and stores the parsed response in a variable."
}

// Schema returns the JSON schema for configuring this action.
func (h *ExecutorFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"title":       "URL",
				"type":        "string",
				"minLength":   1,
				"description": "The URL to send the HTTP request to. Supports {{variable}} placeholders.",
				"examples": []string{
					"https://api.example.com/orders/{{order_id}}",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method to use",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
			},
			"headers": map[string]any{
				"type":                 "object",
				"description":          "HTTP headers to include in the request. Values support placeholders.",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body": map[string]any{
				"description": "Request body. Strings inside are interpolated.",
			},
			"responseVariable": map[string]any{
				"type":        "string",
				"description": "Variable that receives the parsed response body.",
			},
			"timeoutSeconds": map[string]any{
				"type":    "integer",
				"minimum": 1,
				"maximum": 30,
			},
		},
		"required": []string{"url"},
	}
}
