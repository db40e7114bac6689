// Package fusion merges symbolic and probabilistic signals into one
// auditable decision. The precedence is strict: a conclusive symbolic
// verdict always wins and the classifier is never consulted for it, so
// no statistical signal can drift a symbolic outcome.
package fusion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/axiomhive/axiomd/internal/classifier"
	"github.com/axiomhive/axiomd/internal/crypto"
	"github.com/axiomhive/axiomd/internal/symbolic"
	"github.com/axiomhive/axiomd/pkg/types"
)

// Config fixes the fusion policy at initialization time.
type Config struct {
	// Labels maps classifier labels to verdicts. A label outside this
	// table is a fatal error; the engine never guesses.
	Labels map[string]types.Verdict
	// Default applies when the classifier fails or times out.
	Default types.Verdict
	// Timeout bounds each classifier attempt.
	Timeout time.Duration
	// Retries is the extra attempt budget for transient failures.
	Retries int
}

func (c Config) Validate() error {
	if !c.Default.Valid() {
		return fmt.Errorf("invalid default verdict %q", c.Default)
	}
	if len(c.Labels) == 0 {
		return fmt.Errorf("label mapping is empty")
	}
	for label, verdict := range c.Labels {
		if !verdict.Valid() {
			return fmt.Errorf("label %q maps to invalid verdict %q", label, verdict)
		}
	}
	return nil
}

// UnmappedLabelError is fatal: the classifier returned a label absent
// from the configured mapping table.
type UnmappedLabelError struct {
	Label string
}

func (e *UnmappedLabelError) Error() string {
	return fmt.Sprintf("classifier label %q has no configured verdict", e.Label)
}

// Orchestrator applies the fusion policy for one request at a time. It is
// stateless and safe for concurrent use.
type Orchestrator struct {
	Scorer classifier.Scorer
	Config Config
	Logger *zap.Logger
}

// Decide fuses a symbolic result (or a symbolic evaluation error) into a
// final decision with its reasoning path. symErr, when non-nil, is the
// fail-closed case: the symbolic engine could not evaluate, the error is
// recorded, and the probabilistic path proceeds as if inconclusive. The
// reasoning path is assembled in evaluation order and frozen on return.
func (o *Orchestrator) Decide(ctx context.Context, in types.NormalizedInput, sym symbolic.Result, symErr error) (types.Decision, []types.ReasoningStep, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var path []types.ReasoningStep

	if symErr == nil && sym.Conclusive {
		for _, match := range sym.Matches {
			path = append(path, types.ReasoningStep{
				Kind:    types.StepAxiomMatch,
				AxiomID: match.AxiomID,
				Verdict: match.Verdict,
			})
		}
		logger.Debug("symbolic verdict is conclusive, classifier skipped",
			zap.String("verdict", string(sym.Verdict)),
			zap.Int("matches", len(sym.Matches)))
		return types.Decision{
			Verdict:    sym.Verdict,
			Source:     types.SourceSymbolic,
			Confidence: 1.0,
		}, path, nil
	}

	if symErr != nil {
		step := types.ReasoningStep{
			Kind:   types.StepAxiomError,
			Detail: symErr.Error(),
		}
		if evalErr, ok := symErr.(*symbolic.EvalError); ok {
			step.AxiomID = evalErr.AxiomID
		}
		path = append(path, step)
		logger.Warn("symbolic evaluation failed closed", zap.Error(symErr))
	}

	score, err := classifier.ScoreWithRetry(ctx, o.Scorer, in, o.Config.Timeout, o.Config.Retries)
	if err != nil {
		// A caller that went away gets no decision at all; the partial
		// reasoning path is discarded, never attested.
		if ctx.Err() != nil {
			return types.Decision{}, nil, ctx.Err()
		}

		path = append(path, types.ReasoningStep{
			Kind:   types.StepClassifierError,
			Detail: err.Error(),
		})
		path = append(path, types.ReasoningStep{
			Kind:    types.StepFallback,
			Verdict: o.Config.Default,
			Detail:  "classifier unavailable, default verdict applied",
		})
		logger.Warn("classifier failed, default verdict applied",
			zap.String("default", string(o.Config.Default)),
			zap.Error(err))
		return types.Decision{
			Verdict:    o.Config.Default,
			Source:     types.SourceDefault,
			Confidence: 0.0,
		}, path, nil
	}

	confidence, err := crypto.FormatConfidence(score.Confidence)
	if err != nil {
		return types.Decision{}, nil, fmt.Errorf("classifier confidence: %w", err)
	}

	verdict, ok := o.Config.Labels[score.Label]
	if !ok {
		return types.Decision{}, nil, &UnmappedLabelError{Label: score.Label}
	}

	path = append(path, types.ReasoningStep{
		Kind:       types.StepClassifier,
		Label:      score.Label,
		Verdict:    verdict,
		Confidence: confidence,
	})
	logger.Debug("probabilistic verdict applied",
		zap.String("label", score.Label),
		zap.String("verdict", string(verdict)),
		zap.Float64("confidence", score.Confidence))
	return types.Decision{
		Verdict:    verdict,
		Source:     types.SourceProbabilistic,
		Confidence: score.Confidence,
	}, path, nil
}
