package registry

import (
	"log/slog"
	"testing"

	"github.com/dukex/chatflow/pkg/actions/sendmessage"
	"github.com/dukex/chatflow/pkg/mocks"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullDeps() protocol.Dependencies {
	return protocol.Dependencies{
		Logger: slog.Default(),
		AI:     &mocks.MockAIClient{},
		HTTP:   &mocks.MockHTTPFetcher{},
	}
}

func TestNewDefaultRegistry_CoversEveryActionType(t *testing.T) {
	registry, err := NewDefaultRegistry(slog.Default(), fullDeps())
	require.NoError(t, err)

	for _, actionType := range models.ActionTypes() {
		executor, err := registry.Executor(actionType)
		require.NoError(t, err, actionType)
		assert.NotNil(t, executor)

		schema, ok := registry.Schema(actionType)
		require.True(t, ok)
		assert.Equal(t, "object", schema["type"])
	}

	assert.Len(t, registry.Factories(), len(models.ActionTypes()))

	message, ok := registry.HealthCheck()
	assert.True(t, ok)
	assert.Equal(t, "Registry has 9 executors", message)
}

func TestRegistry_MissingExecutorsAreReported(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.Register(sendmessage.NewExecutorFactory())

	err := registry.Build(fullDeps())
	require.ErrorIs(t, err, ErrMissingExecutors)
	assert.Contains(t, err.Error(), "handoff")
	assert.NotContains(t, err.Error(), "send_message")

	_, err = registry.Executor(models.ActionTypeHandoff)
	require.ErrorIs(t, err, ErrExecutorNotRegistered)

	_, ok := registry.HealthCheck()
	assert.False(t, ok)
}

func TestRegistry_FactoryErrorsStopBuild(t *testing.T) {
	registry := NewRegistry(slog.Default())
	registry.RegisterDefaultExecutors()

	err := registry.Build(protocol.Dependencies{Logger: slog.Default()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create")
}
