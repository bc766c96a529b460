// Package collectinput implements the collect_input action.
package collectinput

import (
	"context"
	"errors"
	"strings"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

var ErrMissingInputName = errors.New("collect_input requires an inputName")

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

// Execute sends the prompt and suspends the turn. The engine binds the next
// user message to the input name when the conversation resumes.
func (e *Executor) Execute(_ context.Context, config models.ActionConfig, execCtx *protocol.ExecutionContext) (*protocol.Result, error) {
	cfg, ok := config.(*models.CollectInputConfig)
	if !ok {
		return nil, protocol.UnexpectedConfig(models.ActionTypeCollectInput, config)
	}

	if strings.TrimSpace(cfg.InputName) == "" {
		return nil, ErrMissingInputName
	}

	result := &protocol.Result{
		Suspend: &protocol.Suspension{
			Kind:      protocol.SuspendForInput,
			InputName: cfg.InputName,
		},
	}

	prompt := execCtx.Render(cfg.Prompt)
	if strings.TrimSpace(prompt) != "" {
		result.OutboundMessages = []*models.OutboundMessage{execCtx.Text(prompt)}
	}

	return result, nil
}
