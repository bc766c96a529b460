// Package delay is the durable side of the delay action: it schedules and
// cancels resumptions in the delay repository and fires them when due.
package delay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Manager schedules and cancels delayed resumptions.
type Manager struct {
	repo   persistence.DelayRepository
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewManager(logger *slog.Logger, repo persistence.DelayRepository, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Manager{
		repo:   repo,
		clock:  clock,
		logger: logger.With("module", "delay_manager"),
	}
}

// Schedule records a resumption of the conversation at nodeID/actionIndex after d.
func (m *Manager) Schedule(
	ctx context.Context,
	conversationID, flowID, nodeID string,
	actionIndex int,
	d time.Duration,
) (*models.DelayedResumption, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate delay ID: %w", err)
	}

	now := m.clock.Now().UTC()

	resumption := &models.DelayedResumption{
		ID:             id.String(),
		ConversationID: conversationID,
		FlowID:         flowID,
		NodeID:         nodeID,
		ActionIndex:    actionIndex,
		ResumeAt:       now.Add(d),
		Status:         models.DelayStatusScheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = m.repo.Schedule(ctx, resumption)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Delay scheduled",
		"conversation_id", conversationID,
		"flow_id", flowID,
		"node_id", nodeID,
		"delay_id", resumption.ID,
		"resume_at", resumption.ResumeAt,
	)

	return resumption, nil
}

// Cancel abandons a resumption. A resumption that is already gone is not an error.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	err := m.repo.Cancel(ctx, id, m.clock.Now().UTC())
	if err != nil && !errors.Is(err, persistence.ErrDelayNotFound) {
		return err
	}

	m.logger.InfoContext(ctx, "Delay cancelled", "delay_id", id)

	return nil
}
