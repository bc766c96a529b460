// Package persistence provides the storage abstraction for flow definitions,
// conversation execution states and the durable delay queue.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/chatflow/pkg/models"
)

type Persistence interface {
	FlowRepository() FlowRepository
	ConversationRepository() ConversationRepository
	DelayRepository() DelayRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FlowRepository stores published flow definitions.
type FlowRepository interface {
	GetAll(ctx context.Context) ([]*models.FlowDefinition, error)
	// GetActive returns the flows eligible for trigger matching.
	GetActive(ctx context.Context) ([]*models.FlowDefinition, error)
	// GetByID returns ErrFlowNotFound when the flow does not exist.
	GetByID(ctx context.Context, id string) (*models.FlowDefinition, error)
	Save(ctx context.Context, flow *models.FlowDefinition) error
	Delete(ctx context.Context, id string) error
}

// ConversationRepository stores one execution state per conversation.
type ConversationRepository interface {
	// Get returns ErrConversationNotFound when the conversation has no state.
	Get(ctx context.Context, conversationID string) (*models.ConversationExecutionState, error)
	Save(ctx context.Context, state *models.ConversationExecutionState) error
	Delete(ctx context.Context, conversationID string) error
}

// DelayRepository is the durable timer queue of delayed resumptions.
type DelayRepository interface {
	// Schedule stores a new resumption in the scheduled state.
	Schedule(ctx context.Context, delay *models.DelayedResumption) error

	// GetByID returns ErrDelayNotFound when the resumption does not exist.
	GetByID(ctx context.Context, id string) (*models.DelayedResumption, error)

	// Cancel moves a scheduled or claimed resumption to cancelled. Cancelling
	// a resumption that already fired or was cancelled is a no-op.
	Cancel(ctx context.Context, id string, now time.Time) error

	// ClaimDue atomically moves up to limit due resumptions from scheduled to
	// claimed and returns them. A resumption is handed to one claimer only.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.DelayedResumption, error)

	// MarkFired moves a claimed resumption to fired.
	MarkFired(ctx context.Context, id string, now time.Time) error

	// ReleaseExpiredClaims returns claims older than lease to scheduled so a
	// crashed claimer does not lose them.
	ReleaseExpiredClaims(ctx context.Context, now time.Time, lease time.Duration) (int, error)

	// ListByConversation returns the resumptions of a conversation, oldest first.
	ListByConversation(ctx context.Context, conversationID string) ([]*models.DelayedResumption, error)
}
