package quickreplies_test

import (
	"context"
	"testing"

	"github.com/dukex/chatflow/pkg/actions/quickreplies"
	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()

	config := &models.SendQuickRepliesConfig{
		Message: "Hi {{name}}, pick one",
		Replies: []models.QuickReply{
			{Title: "Book", Payload: "BOOK"},
			{Title: "Prices"},
			{Title: "{{missing}}"},
			{Title: "Talk to {{agent}}", Payload: "AGENT_{{agent}}"},
			{Title: "Hours"},
			{Title: "Location"},
		},
	}

	result, err := quickreplies.NewExecutor().Execute(context.Background(), config,
		testutil.ExecutionContext(map[string]any{"name": "Ana", "agent": "Bo"}, ""))
	require.NoError(t, err)
	require.Len(t, result.OutboundMessages, 1)

	msg := result.OutboundMessages[0]
	assert.Equal(t, "Hi Ana, pick one", msg.Text)
	assert.Equal(t, []models.QuickReply{
		{Title: "Book", Payload: "BOOK"},
		{Title: "Prices", Payload: "Prices"},
		{Title: "Talk to Bo", Payload: "AGENT_Bo"},
		{Title: "Hours", Payload: "Hours"},
		{Title: "Location", Payload: "Location"},
	}, msg.QuickReplies, "replies beyond the editor limit pass through, empty titles are dropped")
}
