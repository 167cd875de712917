package utils

import (
	"errors"
	"fmt"
)

// ErrNetworkUnavailable marks a transport-level failure reaching the server.
// Expected during offline operation; callers swallow it and retry on the next
// scheduled cycle instead of surfacing it to the operator.
var ErrNetworkUnavailable = errors.New("network unavailable")

// ErrServerUnavailable marks a 5xx-class response. The whole operation is
// retried later.
var ErrServerUnavailable = errors.New("server unavailable")

// ErrSyncInProgress is returned when a bootstrap, push, or merge is requested
// while another sync operation holds the store.
var ErrSyncInProgress = errors.New("sync already in progress")

// ServerRejectedError marks a 4xx-class response. Item-specific; the affected
// transactions stay PENDING or are flagged for manual review.
type ServerRejectedError struct {
	StatusCode int
	Body       string
}

func (e *ServerRejectedError) Error() string {
	return fmt.Sprintf("server rejected request (%d): %s", e.StatusCode, e.Body)
}

// ValidationError marks a malformed transaction rejected at enqueue time.
// It never enters the queue.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

func IsNetworkUnavailable(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable)
}

func IsServerRejected(err error) bool {
	var rejected *ServerRejectedError
	return errors.As(err, &rejected)
}
