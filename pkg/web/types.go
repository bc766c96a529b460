// Package web provides the HTTP API: Meta webhook ingress, flow management
// and conversation inspection.
package web

import (
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

// ActivationRequest turns trigger matching of a flow on or off.
type ActivationRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// ValidationResponse is the answer of the flow validation endpoint.
type ValidationResponse struct {
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

// ActionResponse describes an executable action type.
type ActionResponse struct {
	Type        models.ActionType `json:"type"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Schema      map[string]any    `json:"schema"`
}

// TransformActionResponse describes the action type of an executor factory.
func TransformActionResponse(factory protocol.ExecutorFactory) ActionResponse {
	return ActionResponse{
		Type:        factory.ID(),
		Name:        factory.Name(),
		Description: factory.Description(),
		Schema:      factory.Schema(),
	}
}
