package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
	"github.com/google/uuid"
)

// FlowRepository handles flow-related database operations. The full
// definition is kept as JSONB; the columns beside it serve matching queries.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

// GetAll returns all flows from the database.
func (r *FlowRepository) GetAll(ctx context.Context) ([]*models.FlowDefinition, error) {
	return r.query(ctx, `SELECT definition FROM flows ORDER BY created_at ASC, id ASC`)
}

// GetActive returns the active flows, highest priority first.
func (r *FlowRepository) GetActive(ctx context.Context) ([]*models.FlowDefinition, error) {
	return r.query(ctx, `
		SELECT definition
		FROM flows
		WHERE is_active = true
		ORDER BY priority DESC, created_at DESC, id DESC
	`)
}

func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.FlowDefinition, error) {
	var body []byte

	err := r.db.QueryRowContext(ctx, `SELECT definition FROM flows WHERE id = $1`, id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("GetByID", id, err)
	}

	var flow models.FlowDefinition

	err = json.Unmarshal(body, &flow)
	if err != nil {
		return nil, persistence.NewFlowError("GetByID", id, fmt.Errorf("failed to unmarshal definition: %w", err))
	}

	return &flow, nil
}

// Save upserts a flow.
func (r *FlowRepository) Save(ctx context.Context, flow *models.FlowDefinition) error {
	now := time.Now().UTC()

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	if flow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate flow ID: %w", err)
		}

		flow.ID = id.String()
	}

	body, err := json.Marshal(flow)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, fmt.Errorf("failed to marshal definition: %w", err))
	}

	query := `
		INSERT INTO flows (id, name, flow_type, priority, is_active, version, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			flow_type = EXCLUDED.flow_type,
			priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			version = EXCLUDED.version,
			definition = EXCLUDED.definition,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.ID, flow.Name, string(flow.FlowType), flow.Priority, flow.IsActive, flow.Version, body, flow.CreatedAt, flow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM flows WHERE id = $1`, id)
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	return nil
}

func (r *FlowRepository) query(ctx context.Context, query string) ([]*models.FlowDefinition, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	flows := make([]*models.FlowDefinition, 0)

	for rows.Next() {
		var body []byte

		err := rows.Scan(&body)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		var flow models.FlowDefinition

		err = json.Unmarshal(body, &flow)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal flow: %w", err)
		}

		flows = append(flows, &flow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}
