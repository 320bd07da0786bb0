// Package pipeline drives normalization, aggregation, and quality assessment
// per source, and orchestrates N sources x M sites with bounded concurrency
// and partial-failure tolerance.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/sitewind/windstats/internal/domain"
)

// Fetcher yields raw observations for a site over a date range. Fetchers own
// their transport, auth, and pagination; the core only consumes the decoded
// batch. A fetcher for a station-based source sets Station on the batch.
type Fetcher interface {
	Source() string
	Fetch(ctx context.Context, site domain.Site, start, end time.Time) (domain.ObservationBatch, error)
}

// transientError marks a fetch failure worth retrying (timeout, rate limit).
type transientError struct {
	err error
}

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

// MarkTransient wraps an error so the orchestrator retries it with backoff
// instead of failing the source immediately.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether a fetch error should be retried. Deadline
// expiry counts as transient; everything else must be marked explicitly.
func IsTransient(err error) bool {
	var t *transientError
	if errors.As(err, &t) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
