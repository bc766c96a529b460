// Package setvariable implements the set_variable action.
package setvariable

import (
	"context"
	"errors"
	"strings"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

var ErrMissingVariableName = errors.New("set_variable requires a variableName")

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Execute(_ context.Context, config models.ActionConfig, execCtx *protocol.ExecutionContext) (*protocol.Result, error) {
	cfg, ok := config.(*models.SetVariableConfig)
	if !ok {
		return nil, protocol.UnexpectedConfig(models.ActionTypeSetVariable, config)
	}

	name := strings.TrimSpace(cfg.VariableName)
	if name == "" {
		return nil, ErrMissingVariableName
	}

	value := cfg.Value
	if text, isString := value.(string); isString {
		value = execCtx.Render(text)
	}

	return &protocol.Result{
		VariableWrites: map[string]any{name: value},
	}, nil
}
