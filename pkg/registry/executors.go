package registry

import (
	"log/slog"

	"github.com/dukex/chatflow/pkg/actions/ainode"
	"github.com/dukex/chatflow/pkg/actions/collectinput"
	"github.com/dukex/chatflow/pkg/actions/delay"
	"github.com/dukex/chatflow/pkg/actions/gotonode"
	"github.com/dukex/chatflow/pkg/actions/handoff"
	"github.com/dukex/chatflow/pkg/actions/httprequest"
	"github.com/dukex/chatflow/pkg/actions/quickreplies"
	"github.com/dukex/chatflow/pkg/actions/sendmessage"
	"github.com/dukex/chatflow/pkg/actions/setvariable"
	"github.com/dukex/chatflow/pkg/protocol"
)

// RegisterDefaultExecutors registers all built-in executor factories with the registry.
func (r *Registry) RegisterDefaultExecutors() {
	r.Register(sendmessage.NewExecutorFactory())
	r.Register(quickreplies.NewExecutorFactory())
	r.Register(collectinput.NewExecutorFactory())
	r.Register(setvariable.NewExecutorFactory())
	r.Register(handoff.NewExecutorFactory())
	r.Register(gotonode.NewExecutorFactory())
	r.Register(ainode.NewExecutorFactory())
	r.Register(delay.NewExecutorFactory())
	r.Register(httprequest.NewExecutorFactory())
}

// NewDefaultRegistry registers and builds every built-in executor.
func NewDefaultRegistry(logger *slog.Logger, deps protocol.Dependencies) (*Registry, error) {
	r := NewRegistry(logger)
	r.RegisterDefaultExecutors()

	err := r.Build(deps)
	if err != nil {
		return nil, err
	}

	return r, nil
}
