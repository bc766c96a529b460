package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowNotFound indicates a flow was not found by the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrConversationNotFound indicates a conversation has no execution state.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrDelayNotFound indicates a delayed resumption was not found.
	ErrDelayNotFound = errors.New("delayed resumption not found")

	// ErrInvalidID indicates an identifier that cannot be stored safely.
	ErrInvalidID = errors.New("invalid identifier")
)

// FlowError wraps flow-related errors with additional context.
type FlowError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	FlowID string
	Err    error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s operation failed for flow %s: %v", e.Op, e.FlowID, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for flow errors.
func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowError creates a new flow error with context.
func NewFlowError(op, flowID string, err error) *FlowError {
	return &FlowError{Op: op, FlowID: flowID, Err: err}
}

// ConversationError wraps conversation state errors with additional context.
type ConversationError struct {
	Op             string
	ConversationID string
	Err            error
}

func (e *ConversationError) Error() string {
	return fmt.Sprintf("%s operation failed for conversation %s: %v", e.Op, e.ConversationID, e.Err)
}

func (e *ConversationError) Unwrap() error {
	return e.Err
}

func (e *ConversationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewConversationError creates a new conversation error with context.
func NewConversationError(op, conversationID string, err error) *ConversationError {
	return &ConversationError{Op: op, ConversationID: conversationID, Err: err}
}

// DelayError wraps delayed resumption errors with additional context.
type DelayError struct {
	Op      string
	DelayID string
	Err     error
}

func (e *DelayError) Error() string {
	return fmt.Sprintf("%s operation failed for delay %s: %v", e.Op, e.DelayID, e.Err)
}

func (e *DelayError) Unwrap() error {
	return e.Err
}

func (e *DelayError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDelayError creates a new delay error with context.
func NewDelayError(op, delayID string, err error) *DelayError {
	return &DelayError{Op: op, DelayID: delayID, Err: err}
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsConversationNotFound checks if an error indicates a conversation has no state.
func IsConversationNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}

// IsDelayNotFound checks if an error indicates a delayed resumption was not found.
func IsDelayNotFound(err error) bool {
	return errors.Is(err, ErrDelayNotFound)
}
