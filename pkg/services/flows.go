package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/google/uuid"
)

// Flows manages published flow definitions. Every save goes through the
// Validator, so the repository only ever holds executable flows.
type Flows struct {
	persistence persistence.Persistence
	validator   *Validator
	logger      *slog.Logger
}

func NewFlows(logger *slog.Logger, persistence persistence.Persistence, validator *Validator) *Flows {
	return &Flows{
		persistence: persistence,
		validator:   validator,
		logger:      logger.With("module", "flow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (f *Flows) HealthCheck(ctx context.Context) (string, bool) {
	if f.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := f.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (f *Flows) List(ctx context.Context) ([]*models.FlowDefinition, error) {
	flows, err := f.persistence.FlowRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	return flows, nil
}

func (f *Flows) FetchByID(ctx context.Context, id string) (*models.FlowDefinition, error) {
	return f.persistence.FlowRepository().GetByID(ctx, id)
}

// Validate checks a flow without storing it.
func (f *Flows) Validate(flow *models.FlowDefinition) error {
	return f.validator.Validate(flow)
}

// Create publishes a new flow at version 1.
func (f *Flows) Create(ctx context.Context, flow *models.FlowDefinition) (*models.FlowDefinition, error) {
	if flow == nil {
		return nil, ErrFlowNil
	}

	if flow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate flow ID: %w", err)
		}

		flow.ID = id.String()
	}

	now := time.Now().UTC()
	flow.Version = 1
	flow.CreatedAt = now
	flow.UpdatedAt = now

	return f.save(ctx, flow, "Flow created")
}

// Update publishes a new version of an existing flow. Conversations already
// inside the flow continue on the new version from their current node.
func (f *Flows) Update(ctx context.Context, id string, flow *models.FlowDefinition) (*models.FlowDefinition, error) {
	if flow == nil {
		return nil, ErrFlowNil
	}

	existing, err := f.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	flow.ID = id
	flow.Version = existing.Version + 1
	flow.CreatedAt = existing.CreatedAt
	flow.UpdatedAt = time.Now().UTC()

	return f.save(ctx, flow, "Flow updated")
}

// Import creates or updates a flow from an authored document.
func (f *Flows) Import(ctx context.Context, data []byte, format Format) (*models.FlowDefinition, error) {
	flow, err := ParseFlow(data, format)
	if err != nil {
		return nil, err
	}

	if flow.ID != "" {
		_, err = f.persistence.FlowRepository().GetByID(ctx, flow.ID)
		if err == nil {
			return f.Update(ctx, flow.ID, flow)
		}

		if !errors.Is(err, persistence.ErrFlowNotFound) {
			return nil, err
		}
	}

	return f.Create(ctx, flow)
}

// SetActive turns trigger matching of a flow on or off.
func (f *Flows) SetActive(ctx context.Context, id string, active bool) (*models.FlowDefinition, error) {
	flow, err := f.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	flow.IsActive = active
	flow.UpdatedAt = time.Now().UTC()

	err = f.persistence.FlowRepository().Save(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	f.logger.InfoContext(ctx, "Flow activation changed", "flow_id", id, "is_active", active)

	return flow, nil
}

func (f *Flows) Delete(ctx context.Context, id string) error {
	_, err := f.persistence.FlowRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = f.persistence.FlowRepository().Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}

	f.logger.InfoContext(ctx, "Flow deleted", "flow_id", id)

	return nil
}

func (f *Flows) save(ctx context.Context, flow *models.FlowDefinition, message string) (*models.FlowDefinition, error) {
	err := f.validator.Validate(flow)
	if err != nil {
		return nil, err
	}

	err = f.persistence.FlowRepository().Save(ctx, flow)
	if err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	f.logger.InfoContext(ctx, message, "flow_id", flow.ID, "version", flow.Version, "is_active", flow.IsActive)

	return flow, nil
}
