package vector

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ragchat/internal/apperr"
)

type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		Attempts:        attempts,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// RetryingIndex retries Search with exponential backoff. Mutating calls pass
// straight through and are never retried.
type RetryingIndex struct {
	Index
	policy RetryPolicy
}

func WithSearchRetry(idx Index, policy RetryPolicy) *RetryingIndex {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &RetryingIndex{Index: idx, policy: policy}
}

func (r *RetryingIndex) ValidatePoints(points []Point) error {
	return ValidatePoints(r.Index, points)
}

func (r *RetryingIndex) Search(ctx context.Context, collection string, query []float32, topK int) ([]Hit, error) {
	var hits []Hit

	op := func() error {
		var err error
		hits, err = r.Index.Search(ctx, collection, query, topK)
		if err != nil && !apperr.IsUpstreamFailure(err) && apperr.CodeOf(err) != "" {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.policy.InitialInterval
	eb.MaxInterval = r.policy.MaxInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.policy.Attempts-1)), ctx)

	notify := func(err error, wait time.Duration) {
		slog.WarnContext(ctx, "vector search failed, retrying", "collection", collection, "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return hits, nil
}
