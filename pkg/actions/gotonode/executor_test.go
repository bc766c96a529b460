package gotonode_test

import (
	"context"
	"testing"

	"github.com/dukex/chatflow/pkg/actions/gotonode"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()

	result, err := gotonode.NewExecutor().Execute(context.Background(),
		&models.GotoNodeConfig{TargetNodeID: "menu"}, testutil.ExecutionContext(nil, ""))
	require.NoError(t, err)
	assert.Equal(t, "menu", result.GotoNodeID)

	_, err = gotonode.NewExecutor().Execute(context.Background(), &models.GotoNodeConfig{}, testutil.ExecutionContext(nil, ""))
	require.ErrorIs(t, err, gotonode.ErrMissingTarget)
}
