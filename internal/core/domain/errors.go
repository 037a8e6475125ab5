package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks missing credentials/config detected before any
	// network call. Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrConnectivity marks an unreachable backing store. Optional signals
	// degrade instead of aborting on it.
	ErrConnectivity = errors.New("connectivity error")
	// ErrGraphPaused is the hosted graph database suspended state, a
	// connectivity variant worth distinguishing in logs.
	ErrGraphPaused = errors.New("graph database paused")
	// ErrDenseSearch marks failure of the one required retrieval signal.
	ErrDenseSearch = errors.New("dense search failed")
	// ErrTimeout marks the pipeline-wide budget being exceeded.
	ErrTimeout      = errors.New("retrieval timed out")
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// UserMessage maps an internal error to the category-appropriate text shown
// to the end user. Internal details never leak through here.
func UserMessage(err error) string {
	switch {
	case IsKind(err, ErrInvalidInput):
		return "The question could not be processed, rephrase and try again."
	case IsKind(err, ErrTimeout):
		return "Document search timed out, try a narrower query."
	case IsKind(err, ErrGraphPaused), IsKind(err, ErrConnectivity):
		return "A document source is temporarily unavailable, try again shortly."
	case IsKind(err, ErrDenseSearch):
		return "Document search is unavailable right now, try again shortly."
	case IsKind(err, ErrConfiguration):
		return "The service is not fully configured, contact the operator."
	default:
		return "Something went wrong while searching documents."
	}
}
