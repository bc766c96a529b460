package protocol

import (
	"errors"
	"fmt"

	"github.com/dukex/chatflow/pkg/models"
)

// ErrUnexpectedConfig is returned when an executor receives the config of another action type.
var ErrUnexpectedConfig = errors.New("unexpected action config")

// UnexpectedConfig builds the error for an executor of want receiving got.
func UnexpectedConfig(want models.ActionType, got models.ActionConfig) error {
	if got == nil {
		return fmt.Errorf("%w: %s executor received nil", ErrUnexpectedConfig, want)
	}

	return fmt.Errorf("%w: %s executor received %s", ErrUnexpectedConfig, want, got.ActionType())
}

// CallKind names the collaborator of a failed external call.
type CallKind string

const (
	CallKindAI   CallKind = "ai"
	CallKindHTTP CallKind = "http"
)

// ExternalCallError is an AI or HTTP call that failed after its retry policy.
type ExternalCallError struct {
	Kind           CallKind
	ConversationID string
	FlowID         string
	NodeID         string
	Err            error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("%s call failed in flow %s node %s for conversation %s: %v",
		e.Kind, e.FlowID, e.NodeID, e.ConversationID, e.Err)
}

func (e *ExternalCallError) Unwrap() error {
	return e.Err
}

// NewExternalCallError attributes err to the node being executed.
func NewExternalCallError(kind CallKind, execCtx *ExecutionContext, err error) *ExternalCallError {
	return &ExternalCallError{
		Kind:           kind,
		ConversationID: execCtx.ConversationID,
		FlowID:         execCtx.FlowID,
		NodeID:         execCtx.NodeID,
		Err:            err,
	}
}

// IsExternalCallError checks if an error is an exhausted external call.
func IsExternalCallError(err error) bool {
	var target *ExternalCallError

	return errors.As(err, &target)
}
