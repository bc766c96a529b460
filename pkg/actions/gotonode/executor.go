// Package gotonode implements the goto_node action.
package gotonode

import (
	"context"
	"errors"
	"strings"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

var ErrMissingTarget = errors.New("goto_node requires a targetNodeId")

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Execute(_ context.Context, config models.ActionConfig, _ *protocol.ExecutionContext) (*protocol.Result, error) {
	cfg, ok := config.(*models.GotoNodeConfig)
	if !ok {
		return nil, protocol.UnexpectedConfig(models.ActionTypeGotoNode, config)
	}

	target := strings.TrimSpace(cfg.TargetNodeID)
	if target == "" {
		return nil, ErrMissingTarget
	}

	return &protocol.Result{GotoNodeID: target}, nil
}
