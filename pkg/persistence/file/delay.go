package file

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dukex/chatflow/pkg/models"
	"github.com/dukex/chatflow/pkg/persistence"
)

const delaysDir = "delays"

// DelayRepository is a file-backed delay queue. Claims are serialized by a
// process-wide mutex, so it only suits a single worker process.
type DelayRepository struct {
	root string
	mu   sync.Mutex
}

// NewDelayRepository creates a new delay repository.
func NewDelayRepository(root string) *DelayRepository {
	return &DelayRepository{root: root}
}

func (dr *DelayRepository) Schedule(_ context.Context, delay *models.DelayedResumption) error {
	err := delay.Validate()
	if err != nil {
		return persistence.NewDelayError("Schedule", delay.ID, err)
	}

	err = validateID(delay.ID)
	if err != nil {
		return persistence.NewDelayError("Schedule", delay.ID, err)
	}

	dr.mu.Lock()
	defer dr.mu.Unlock()

	now := time.Now().UTC()
	if delay.CreatedAt.IsZero() {
		delay.CreatedAt = now
	}

	delay.UpdatedAt = delay.CreatedAt
	delay.Status = models.DelayStatusScheduled
	delay.ClaimedAt = nil

	err = writeRecord(dr.root, delaysDir, delay.ID, delay)
	if err != nil {
		return persistence.NewDelayError("Schedule", delay.ID, err)
	}

	return nil
}

func (dr *DelayRepository) GetByID(_ context.Context, id string) (*models.DelayedResumption, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	return dr.get("GetByID", id)
}

func (dr *DelayRepository) Cancel(_ context.Context, id string, now time.Time) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	delay, err := dr.get("Cancel", id)
	if err != nil {
		return err
	}

	if delay.Status == models.DelayStatusFired || delay.Status == models.DelayStatusCancelled {
		return nil
	}

	delay.Status = models.DelayStatusCancelled
	delay.UpdatedAt = now

	return dr.put("Cancel", delay)
}

func (dr *DelayRepository) ClaimDue(_ context.Context, now time.Time, limit int) ([]*models.DelayedResumption, error) {
	if limit <= 0 {
		return []*models.DelayedResumption{}, nil
	}

	dr.mu.Lock()
	defer dr.mu.Unlock()

	all, err := dr.list()
	if err != nil {
		return nil, persistence.NewDelayError("ClaimDue", "", err)
	}

	due := make([]*models.DelayedResumption, 0)

	for _, delay := range all {
		if delay.IsDue(now) {
			due = append(due, delay)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ResumeAt.Before(due[j].ResumeAt)
	})

	if len(due) > limit {
		due = due[:limit]
	}

	for _, delay := range due {
		claimedAt := now
		delay.Status = models.DelayStatusClaimed
		delay.ClaimedAt = &claimedAt
		delay.UpdatedAt = now

		err := dr.put("ClaimDue", delay)
		if err != nil {
			return nil, err
		}
	}

	return due, nil
}

func (dr *DelayRepository) MarkFired(_ context.Context, id string, now time.Time) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	delay, err := dr.get("MarkFired", id)
	if err != nil {
		return err
	}

	if delay.Status == models.DelayStatusCancelled {
		return nil
	}

	delay.Status = models.DelayStatusFired
	delay.UpdatedAt = now

	return dr.put("MarkFired", delay)
}

func (dr *DelayRepository) ReleaseExpiredClaims(_ context.Context, now time.Time, lease time.Duration) (int, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	all, err := dr.list()
	if err != nil {
		return 0, persistence.NewDelayError("ReleaseExpiredClaims", "", err)
	}

	released := 0

	for _, delay := range all {
		if !delay.IsClaimExpired(now, lease) {
			continue
		}

		delay.Status = models.DelayStatusScheduled
		delay.ClaimedAt = nil
		delay.UpdatedAt = now

		err := dr.put("ReleaseExpiredClaims", delay)
		if err != nil {
			return released, err
		}

		released++
	}

	return released, nil
}

func (dr *DelayRepository) ListByConversation(_ context.Context, conversationID string) ([]*models.DelayedResumption, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	all, err := dr.list()
	if err != nil {
		return nil, persistence.NewDelayError("ListByConversation", "", err)
	}

	delays := make([]*models.DelayedResumption, 0)

	for _, delay := range all {
		if delay.ConversationID == conversationID {
			delays = append(delays, delay)
		}
	}

	sort.SliceStable(delays, func(i, j int) bool {
		return delays[i].CreatedAt.Before(delays[j].CreatedAt)
	})

	return delays, nil
}

func (dr *DelayRepository) get(op, id string) (*models.DelayedResumption, error) {
	err := validateID(id)
	if err != nil {
		return nil, persistence.NewDelayError(op, id, err)
	}

	var delay models.DelayedResumption

	err = readRecord(dr.root, delaysDir, id, &delay)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewDelayError(op, id, persistence.ErrDelayNotFound)
		}

		return nil, persistence.NewDelayError(op, id, err)
	}

	return &delay, nil
}

func (dr *DelayRepository) put(op string, delay *models.DelayedResumption) error {
	err := writeRecord(dr.root, delaysDir, delay.ID, delay)
	if err != nil {
		return persistence.NewDelayError(op, delay.ID, err)
	}

	return nil
}

func (dr *DelayRepository) list() ([]*models.DelayedResumption, error) {
	delays := make([]*models.DelayedResumption, 0)

	err := readAll(dr.root, delaysDir, func(body []byte) error {
		var delay models.DelayedResumption

		err := json.Unmarshal(body, &delay)
		if err != nil {
			return err
		}

		delays = append(delays, &delay)

		return nil
	})

	return delays, err
}
