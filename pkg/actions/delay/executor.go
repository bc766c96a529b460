// Package delay implements the delay action.
package delay

import (
	"context"
	"fmt"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

// Execute suspends the turn for the configured duration. The engine records
// the pending delay and hands it to the delay manager.
func (e *Executor) Execute(_ context.Context, config models.ActionConfig, _ *protocol.ExecutionContext) (*protocol.Result, error) {
	cfg, ok := config.(*models.DelayConfig)
	if !ok {
		return nil, protocol.UnexpectedConfig(models.ActionTypeDelay, config)
	}

	duration := cfg.Duration()
	if duration <= 0 {
		return nil, fmt.Errorf("invalid delay of %d %s", cfg.DelayAmount, cfg.DelayUnit)
	}

	return &protocol.Result{
		Suspend: &protocol.Suspension{Kind: protocol.SuspendForDelay, Duration: duration},
	}, nil
}
