package models

import (
	"errors"
	"time"
)

// DelayStatus is the state of a durable delayed resumption.
type DelayStatus string

const (
	DelayStatusScheduled DelayStatus = "scheduled"
	DelayStatusClaimed   DelayStatus = "claimed"
	DelayStatusCancelled DelayStatus = "cancelled"
	DelayStatusFired     DelayStatus = "fired"
)

// ErrInvalidDelay is returned when a delayed resumption is missing required fields.
var ErrInvalidDelay = errors.New("invalid delayed resumption")

// DelayedResumption is an entry of the durable timer queue. The poller claims
// due entries and resumes the conversation at NodeID/ActionIndex.
type DelayedResumption struct {
	ID             string      `json:"id"             validate:"required"`
	ConversationID string      `json:"conversationId" validate:"required"`
	FlowID         string      `json:"flowId"         validate:"required"`
	NodeID         string      `json:"nodeId"         validate:"required"`
	ActionIndex    int         `json:"actionIndex"    validate:"gte=0"`
	ResumeAt       time.Time   `json:"resumeAt"       validate:"required"`
	Status         DelayStatus `json:"status"`
	ClaimedAt      *time.Time  `json:"claimedAt,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// IsDue checks if this resumption should fire at the given time.
func (d *DelayedResumption) IsDue(now time.Time) bool {
	return d.Status == DelayStatusScheduled && !d.ResumeAt.After(now)
}

// IsClaimExpired reports whether a claim is older than the lease.
func (d *DelayedResumption) IsClaimExpired(now time.Time, lease time.Duration) bool {
	return d.Status == DelayStatusClaimed && d.ClaimedAt != nil && now.Sub(*d.ClaimedAt) >= lease
}

// Validate performs validation on the resumption fields.
func (d *DelayedResumption) Validate() error {
	if d.ID == "" || d.ConversationID == "" || d.FlowID == "" || d.NodeID == "" {
		return ErrInvalidDelay
	}

	if d.ResumeAt.IsZero() || d.ActionIndex < 0 {
		return ErrInvalidDelay
	}

	return nil
}

// Pending projects the resumption onto the conversation state.
func (d *DelayedResumption) Pending() *PendingDelay {
	return &PendingDelay{
		ID:              d.ID,
		ResumeAt:        d.ResumeAt,
		ScheduledNodeID: d.NodeID,
		ActionIndex:     d.ActionIndex,
		Status:          d.Status,
	}
}
