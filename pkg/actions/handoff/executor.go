// Package handoff implements the handoff action.
package handoff

import (
	"context"
	"strings"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

// DefaultReason is used when the action does not give one.
const DefaultReason = "handoff requested by flow"

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

// Execute ends the walk. Nodes after a handoff never run.
func (e *Executor) Execute(_ context.Context, config models.ActionConfig, execCtx *protocol.ExecutionContext) (*protocol.Result, error) {
	cfg, ok := config.(*models.HandoffConfig)
	if !ok {
		return nil, protocol.UnexpectedConfig(models.ActionTypeHandoff, config)
	}

	reason := strings.TrimSpace(execCtx.Render(cfg.Reason))
	if reason == "" {
		reason = DefaultReason
	}

	return &protocol.Result{Terminal: true, HandoffReason: reason}, nil
}
