package refresh

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"github.com/wonny/debtview/internal/feed"
)

// ErrorKind labels a cycle failure for logs and metrics.
func ErrorKind(err error) string {
	var (
		authErr   *feed.AuthError
		fetchErr  *feed.FetchError
		decodeErr *feed.DecompressionError
		parseErr  *feed.ParseError
		refErr    *referenceError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.As(err, &refErr):
		return "reference"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &decodeErr):
		return "decompress"
	case errors.As(err, &parseErr):
		return "parse"
	default:
		return "other"
	}
}

// referenceError marks a cycle that failed before fetching because the
// reference table could not be made current.
type referenceError struct {
	err error
}

func (e *referenceError) Error() string { return "reference data unavailable: " + e.err.Error() }
func (e *referenceError) Unwrap() error { return e.err }
