package types

import (
	"context"
	"errors"
	"fmt"
)

// Failure kinds for the retrieval pipeline. Wrapped around the underlying
// cause so callers can branch with errors.Is while logs keep the detail.
var (
	// ErrRetrievalUnavailable: the embedding service is unreachable or
	// returned an error. No partial results are fabricated.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrStorageUnavailable: the similarity store is unreachable.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrAnswerGenerationFailed: the completion service failed before
	// streaming started.
	ErrAnswerGenerationFailed = errors.New("answer generation failed")

	// ErrTimeout: an external call exceeded its bound. Kept distinct from
	// hard failures so the UI can suggest a retry.
	ErrTimeout = errors.New("timeout")
)

// WrapExternal tags err with kind, promoting context deadline errors to
// ErrTimeout first.
func WrapExternal(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	return fmt.Errorf("%w: %v", kind, err)
}

// UpstreamStatusError carries the HTTP status the completion service
// returned before its stream began.
type UpstreamStatusError struct {
	Status int
	Body   string
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}
