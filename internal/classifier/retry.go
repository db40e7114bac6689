package classifier

import (
	"context"
	"time"

	"github.com/axiomhive/axiomd/pkg/types"
)

// ScoreWithRetry runs the scorer with a per-attempt timeout and a bounded
// retry budget. Only transient failures consume a retry; definitive
// classifier errors and parent-context cancellation return immediately.
func ScoreWithRetry(ctx context.Context, scorer Scorer, in types.NormalizedInput, timeout time.Duration, retries int) (Score, error) {
	if retries < 0 {
		retries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Score{}, err
		}

		attemptCtx := ctx
		cancel := func() {}
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		score, err := scorer.Score(attemptCtx, in)
		cancel()

		if err == nil {
			return score, nil
		}
		lastErr = err

		// The caller went away; the request is abandoned, not retried.
		if ctx.Err() != nil {
			return Score{}, ctx.Err()
		}
		if !IsTransient(err) {
			return Score{}, err
		}
	}
	return Score{}, lastErr
}
