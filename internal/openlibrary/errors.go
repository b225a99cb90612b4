package openlibrary

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfarr/booksearch/internal/metrics"
)

var (
	ErrEmptyKeyword     = errors.New("openlibrary: keyword is empty")
	ErrInvalidPage      = errors.New("openlibrary: page index out of range")
	ErrNetwork          = errors.New("openlibrary: network error")
	ErrUnexpectedStatus = errors.New("openlibrary: unexpected status")
	ErrResponseFormat   = errors.New("openlibrary: malformed response")
)

// StatusError is returned when the search API answers with a non-2xx status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("search failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("search failed with status %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrUnexpectedStatus) match any StatusError
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// outcome classifies an error for the upstream metrics
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, context.Canceled):
		return metrics.OutcomeCanceled
	case errors.Is(err, ErrUnexpectedStatus):
		return metrics.OutcomeStatus
	case errors.Is(err, ErrResponseFormat):
		return metrics.OutcomeFormat
	default:
		return metrics.OutcomeNetwork
	}
}
