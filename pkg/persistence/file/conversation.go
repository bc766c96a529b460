package file

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
)

const conversationsDir = "conversations"

// ConversationRepository stores conversation execution states as JSON files.
type ConversationRepository struct {
	root string
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(root string) *ConversationRepository {
	return &ConversationRepository{root: root}
}

func (cr *ConversationRepository) Get(_ context.Context, conversationID string) (*models.ConversationExecutionState, error) {
	err := validateID(conversationID)
	if err != nil {
		return nil, persistence.NewConversationError("Get", conversationID, err)
	}

	var state models.ConversationExecutionState

	err = readRecord(cr.root, conversationsDir, conversationID, &state)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewConversationError("Get", conversationID, persistence.ErrConversationNotFound)
		}

		return nil, persistence.NewConversationError("Get", conversationID, err)
	}

	if state.Variables == nil {
		state.Variables = make(map[string]any)
	}

	return &state, nil
}

func (cr *ConversationRepository) Save(_ context.Context, state *models.ConversationExecutionState) error {
	err := validateID(state.ConversationID)
	if err != nil {
		return persistence.NewConversationError("Save", state.ConversationID, err)
	}

	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	err = writeRecord(cr.root, conversationsDir, state.ConversationID, state)
	if err != nil {
		return persistence.NewConversationError("Save", state.ConversationID, err)
	}

	return nil
}

func (cr *ConversationRepository) Delete(_ context.Context, conversationID string) error {
	err := validateID(conversationID)
	if err != nil {
		return persistence.NewConversationError("Delete", conversationID, err)
	}

	err = removeRecord(cr.root, conversationsDir, conversationID)
	if err != nil {
		return persistence.NewConversationError("Delete", conversationID, err)
	}

	return nil
}
