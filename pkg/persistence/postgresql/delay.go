package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
)

const delayColumns = `id, conversation_id, flow_id, node_id, action_index, resume_at, status, claimed_at, created_at, updated_at`

// DelayRepository is the PostgreSQL delay queue. Claims use
// FOR UPDATE SKIP LOCKED so concurrent workers never share a resumption.
type DelayRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDelayRepository creates a new delay repository.
func NewDelayRepository(db *sql.DB, logger *slog.Logger) *DelayRepository {
	return &DelayRepository{db: db, logger: logger}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDelay(row scanner) (*models.DelayedResumption, error) {
	var (
		delay     models.DelayedResumption
		status    string
		claimedAt sql.NullTime
	)

	err := row.Scan(
		&delay.ID, &delay.ConversationID, &delay.FlowID, &delay.NodeID, &delay.ActionIndex,
		&delay.ResumeAt, &status, &claimedAt, &delay.CreatedAt, &delay.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	delay.Status = models.DelayStatus(status)

	if claimedAt.Valid {
		t := claimedAt.Time
		delay.ClaimedAt = &t
	}

	return &delay, nil
}

func (r *DelayRepository) Schedule(ctx context.Context, delay *models.DelayedResumption) error {
	err := delay.Validate()
	if err != nil {
		return persistence.NewDelayError("Schedule", delay.ID, err)
	}

	if delay.CreatedAt.IsZero() {
		delay.CreatedAt = time.Now().UTC()
	}

	delay.UpdatedAt = delay.CreatedAt
	delay.Status = models.DelayStatusScheduled
	delay.ClaimedAt = nil

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO delayed_resumptions (`+delayColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $9)
	`,
		delay.ID, delay.ConversationID, delay.FlowID, delay.NodeID, delay.ActionIndex,
		delay.ResumeAt, string(delay.Status), delay.CreatedAt, delay.UpdatedAt,
	)
	if err != nil {
		return persistence.NewDelayError("Schedule", delay.ID, err)
	}

	return nil
}

func (r *DelayRepository) GetByID(ctx context.Context, id string) (*models.DelayedResumption, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+delayColumns+` FROM delayed_resumptions WHERE id = $1`, id)

	delay, err := scanDelay(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewDelayError("GetByID", id, persistence.ErrDelayNotFound)
		}

		return nil, persistence.NewDelayError("GetByID", id, err)
	}

	return delay, nil
}

func (r *DelayRepository) Cancel(ctx context.Context, id string, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE delayed_resumptions
		SET status = 'cancelled', updated_at = $2
		WHERE id = $1 AND status IN ('scheduled', 'claimed')
	`, id, now)
	if err != nil {
		return persistence.NewDelayError("Cancel", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewDelayError("Cancel", id, err)
	}

	if affected == 0 {
		// Distinguish a finished resumption from a missing one.
		_, err := r.GetByID(ctx, id)

		return err
	}

	return nil
}

func (r *DelayRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*models.DelayedResumption, error) {
	if limit <= 0 {
		return []*models.DelayedResumption{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		UPDATE delayed_resumptions
		SET status = 'claimed', claimed_at = $1, updated_at = $1
		WHERE id IN (
			SELECT id
			FROM delayed_resumptions
			WHERE status = 'scheduled' AND resume_at <= $1
			ORDER BY resume_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+delayColumns,
		now, limit,
	)
	if err != nil {
		return nil, persistence.NewDelayError("ClaimDue", "", err)
	}

	defer closeRows(ctx, r.logger, rows)

	return collectDelays(rows)
}

func (r *DelayRepository) MarkFired(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE delayed_resumptions
		SET status = 'fired', updated_at = $2
		WHERE id = $1 AND status <> 'cancelled'
	`, id, now)
	if err != nil {
		return persistence.NewDelayError("MarkFired", id, err)
	}

	return nil
}

func (r *DelayRepository) ReleaseExpiredClaims(ctx context.Context, now time.Time, lease time.Duration) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE delayed_resumptions
		SET status = 'scheduled', claimed_at = NULL, updated_at = $1
		WHERE status = 'claimed' AND claimed_at <= $2
	`, now, now.Add(-lease))
	if err != nil {
		return 0, persistence.NewDelayError("ReleaseExpiredClaims", "", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, persistence.NewDelayError("ReleaseExpiredClaims", "", err)
	}

	return int(affected), nil
}

func (r *DelayRepository) ListByConversation(ctx context.Context, conversationID string) ([]*models.DelayedResumption, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+delayColumns+`
		FROM delayed_resumptions
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, persistence.NewDelayError("ListByConversation", "", err)
	}

	defer closeRows(ctx, r.logger, rows)

	return collectDelays(rows)
}

func collectDelays(rows *sql.Rows) ([]*models.DelayedResumption, error) {
	delays := make([]*models.DelayedResumption, 0)

	for rows.Next() {
		delay, err := scanDelay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delayed resumption: %w", err)
		}

		delays = append(delays, delay)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating delayed resumptions: %w", err)
	}

	return delays, nil
}
