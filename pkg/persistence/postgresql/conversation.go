package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
)

// ConversationRepository stores one JSONB execution state per conversation.
type ConversationRepository struct {
	db *sql.DB
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Get(ctx context.Context, conversationID string) (*models.ConversationExecutionState, error) {
	var body []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT state FROM conversation_states WHERE conversation_id = $1`, conversationID,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewConversationError("Get", conversationID, persistence.ErrConversationNotFound)
		}

		return nil, persistence.NewConversationError("Get", conversationID, err)
	}

	var state models.ConversationExecutionState

	err = json.Unmarshal(body, &state)
	if err != nil {
		return nil, persistence.NewConversationError("Get", conversationID, fmt.Errorf("failed to unmarshal state: %w", err))
	}

	if state.Variables == nil {
		state.Variables = make(map[string]any)
	}

	return &state, nil
}

func (r *ConversationRepository) Save(ctx context.Context, state *models.ConversationExecutionState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(state)
	if err != nil {
		return persistence.NewConversationError("Save", state.ConversationID, fmt.Errorf("failed to marshal state: %w", err))
	}

	query := `
		INSERT INTO conversation_states (conversation_id, flow_id, status, state, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (conversation_id) DO UPDATE SET
			flow_id = EXCLUDED.flow_id,
			status = EXCLUDED.status,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		state.ConversationID, state.FlowID, string(state.Status), body, state.UpdatedAt,
	)
	if err != nil {
		return persistence.NewConversationError("Save", state.ConversationID, err)
	}

	return nil
}

func (r *ConversationRepository) Delete(ctx context.Context, conversationID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversation_states WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return persistence.NewConversationError("Delete", conversationID, err)
	}

	return nil
}
