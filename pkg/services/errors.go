// Package services holds the flow publishing service: validation of authored
// flow definitions and their lifecycle in the flow repository.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/chatflow/pkg/persistence"
)

var (
	// ErrInvalidFlow is wrapped by every ValidationError.
	ErrInvalidFlow = errors.New("invalid flow definition")

	ErrFlowNil         = errors.New("flow cannot be nil")
	ErrUnsupportedType = errors.New("unsupported document format")

	ErrFlowNotFound = persistence.ErrFlowNotFound
)

// ValidationError lists every problem found in a flow definition.
type ValidationError struct {
	FlowID   string
	Problems []string
}

func (e *ValidationError) Error() string {
	if e.FlowID == "" {
		return fmt.Sprintf("%v: %s", ErrInvalidFlow, strings.Join(e.Problems, "; "))
	}

	return fmt.Sprintf("%v %s: %s", ErrInvalidFlow, e.FlowID, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidFlow
}

// IsValidationError checks if an error should be answered with HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidFlow) ||
		errors.Is(err, ErrFlowNil) ||
		errors.Is(err, ErrUnsupportedType)
}

// IsNotFound checks if an error should be answered with HTTP 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound) || errors.Is(err, persistence.ErrConversationNotFound)
}
