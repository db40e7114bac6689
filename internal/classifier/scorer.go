// Package classifier wraps the external probabilistic scorer behind a
// narrow interface. The engine never depends on any model runtime; it
// sees a label, a confidence, or an error.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/axiomhive/axiomd/pkg/types"
)

// Score is one classifier result. Confidence is in [0,1].
type Score struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Scorer is the probabilistic adapter contract. Implementations must not
// mutate the input and must honor context cancellation.
type Scorer interface {
	Score(ctx context.Context, in types.NormalizedInput) (Score, error)
}

// ScoreError distinguishes transient failures (worth one retry) from
// definitive classifier errors (not worth retrying).
type ScoreError struct {
	Reason    string
	Transient bool
}

func (e *ScoreError) Error() string {
	return fmt.Sprintf("classifier: %s", e.Reason)
}

// IsTransient reports whether err is worth retrying. Timeouts and
// cancellations count as transient so a retry attempt with a fresh
// deadline may still succeed.
func IsTransient(err error) bool {
	var scoreErr *ScoreError
	if errors.As(err, &scoreErr) {
		return scoreErr.Transient
	}
	return errors.Is(err, context.DeadlineExceeded)
}
