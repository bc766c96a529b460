package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleMessage is returned for an inbound message older than the last
	// one processed for the conversation.
	ErrStaleMessage = errors.New("stale inbound message")

	// ErrNodeNotFound is returned when the cursor points at a node missing from the flow.
	ErrNodeNotFound = errors.New("node not found in flow")

	// ErrInvalidMessage is returned for an inbound message without a conversation.
	ErrInvalidMessage = errors.New("invalid inbound message")
)

// Handoff reasons set by the engine itself.
const (
	ReasonLoopDetected   = "flow loop detected"
	ReasonWindowExpired  = "messaging window expired"
	ReasonAIFailure      = "AI operation failed"
	ReasonExecutionError = "flow execution error"
)

// InfiniteLoopError aborts a turn that exceeded the step ceiling without
// suspending or terminating.
type InfiniteLoopError struct {
	ConversationID string
	FlowID         string
	NodeID         string
	Steps          int
}

func (e *InfiniteLoopError) Error() string {
	return fmt.Sprintf("flow %s exceeded %d steps at node %s for conversation %s",
		e.FlowID, e.Steps, e.NodeID, e.ConversationID)
}

// IsInfiniteLoop checks if an error is a step ceiling abort.
func IsInfiniteLoop(err error) bool {
	var target *InfiniteLoopError

	return errors.As(err, &target)
}

// ActionError attributes an executor failure to the action that raised it.
type ActionError struct {
	ConversationID string
	FlowID         string
	NodeID         string
	ActionIndex    int
	Err            error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d of node %s in flow %s failed for conversation %s: %v",
		e.ActionIndex, e.NodeID, e.FlowID, e.ConversationID, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
