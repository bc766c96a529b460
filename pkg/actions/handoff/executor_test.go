package handoff_test

import (
	"context"
	"testing"

	"github.com/dukex/chatflow/pkg/actions/handoff"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_IsTerminal(t *testing.T) {
	t.Parallel()

	result, err := handoff.NewExecutor().Execute(context.Background(),
		&models.HandoffConfig{Reason: "Order {{order}} needs review"},
		testutil.ExecutionContext(map[string]any{"order": "A1"}, ""))
	require.NoError(t, err)

	assert.True(t, result.Terminal)
	assert.Equal(t, "Order A1 needs review", result.HandoffReason)
	assert.Empty(t, result.OutboundMessages)
}

func TestExecutor_DefaultReason(t *testing.T) {
	t.Parallel()

	result, err := handoff.NewExecutor().Execute(context.Background(), &models.HandoffConfig{}, testutil.ExecutionContext(nil, ""))
	require.NoError(t, err)
	assert.Equal(t, handoff.DefaultReason, result.HandoffReason)
}
