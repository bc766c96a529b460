// Package sendmessage implements the send_message action.
package sendmessage

import (
	"context"
	"strings"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

// Execute emits the interpolated message. A message that renders empty is
// dropped, since platforms reject empty text.
func (e *Executor) Execute(_ context.Context, config models.ActionConfig, execCtx *protocol.ExecutionContext) (*protocol.Result, error) {
	cfg, ok := config.(*models.SendMessageConfig)
	if !ok {
		return nil, protocol.UnexpectedConfig(models.ActionTypeSendMessage, config)
	}

	text := execCtx.Render(cfg.Message)
	if strings.TrimSpace(text) == "" {
		execCtx.Logger.Warn("Skipping empty message")

		return &protocol.Result{}, nil
	}

	return &protocol.Result{
		OutboundMessages: []*models.OutboundMessage{execCtx.Text(text)},
	}, nil
}
