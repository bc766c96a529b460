// Package quickreplies implements the send_quick_replies action.
package quickreplies

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

// Execute emits the message with every configured reply. Platform limits on
// the number of replies and title length are applied by the messenger.
func (e *Executor) Execute(_ context.Context, config models.ActionConfig, execCtx *protocol.ExecutionContext) (*protocol.Result, error) {
	cfg, ok := config.(*models.SendQuickRepliesConfig)
	if !ok {
		return nil, protocol.UnexpectedConfig(models.ActionTypeSendQuickReplies, config)
	}

	replies := make([]models.QuickReply, 0, len(cfg.Replies))

	for _, reply := range cfg.Replies {
		title := strings.TrimSpace(execCtx.Render(reply.Title))
		if title == "" {
			continue
		}

		payload := execCtx.Render(reply.Payload)
		if payload == "" {
			payload = title
		}

		replies = append(replies, models.QuickReply{Title: title, Payload: payload})
	}

	msg := execCtx.Text(execCtx.Render(cfg.Message))
	msg.QuickReplies = replies

	return &protocol.Result{OutboundMessages: []*models.OutboundMessage{msg}}, nil
}
