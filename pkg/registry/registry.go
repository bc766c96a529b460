// Package registry maps action types to their executors.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
)

var (
	ErrExecutorNotRegistered = errors.New("executor not registered")
	ErrMissingExecutors      = errors.New("action types without executor")
)

// Registry holds the executor factory and the created executor of every action type.
type Registry struct {
	logger    *slog.Logger
	factories map[models.ActionType]protocol.ExecutorFactory
	executors map[models.ActionType]protocol.Executor
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log.With("module", "registry"),
		factories: make(map[models.ActionType]protocol.ExecutorFactory),
		executors: make(map[models.ActionType]protocol.Executor),
	}
}

// Register adds a factory. Executors are created by Build.
func (r *Registry) Register(factory protocol.ExecutorFactory) {
	r.factories[factory.ID()] = factory
}

// Build creates every registered executor with deps and checks that every
// action type has one.
func (r *Registry) Build(deps protocol.Dependencies) error {
	for actionType, factory := range r.factories {
		executor, err := factory.Create(deps)
		if err != nil {
			return fmt.Errorf("failed to create %s executor: %w", actionType, err)
		}

		r.executors[actionType] = executor
		r.logger.Debug("Registered executor", "action_type", actionType, "name", factory.Name())
	}

	return r.CheckExhaustive()
}

// CheckExhaustive fails when an action type of the model has no executor.
func (r *Registry) CheckExhaustive() error {
	var missing []string

	for _, actionType := range models.ActionTypes() {
		if _, ok := r.executors[actionType]; !ok {
			missing = append(missing, string(actionType))
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)

		return fmt.Errorf("%w: %v", ErrMissingExecutors, missing)
	}

	return nil
}

// Executor returns the executor for the action type.
func (r *Registry) Executor(actionType models.ActionType) (protocol.Executor, error) {
	executor, ok := r.executors[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutorNotRegistered, actionType)
	}

	return executor, nil
}

// Schema returns the JSON schema of an action type config.
func (r *Registry) Schema(actionType models.ActionType) (map[string]any, bool) {
	factory, ok := r.factories[actionType]
	if !ok {
		return nil, false
	}

	return factory.Schema(), true
}

// Factories returns the registered factories sorted by action type.
func (r *Registry) Factories() []protocol.ExecutorFactory {
	factories := make([]protocol.ExecutorFactory, 0, len(r.factories))
	for _, factory := range r.factories {
		factories = append(factories, factory)
	}

	sort.Slice(factories, func(i, j int) bool {
		return factories[i].ID() < factories[j].ID()
	})

	return factories
}

// HealthCheck reports whether every action type has an executor.
func (r *Registry) HealthCheck() (string, bool) {
	err := r.CheckExhaustive()
	if err != nil {
		return "Registry is incomplete: " + err.Error(), false
	}

	return fmt.Sprintf("Registry has %d executors", len(r.executors)), true
}
