// Package symbolic implements the deterministic reasoning engine: a pure
// function of (axiom set, input). No state, no randomness; identical
// inputs against an identical set always yield identical results.
package symbolic

import (
	"fmt"
	"sort"

	"github.com/axiomhive/axiomd/internal/axiom"
	"github.com/axiomhive/axiomd/pkg/types"
)

// Match is one axiom whose predicate held, kept even when it does not win
// so the reasoning path records every applicable rule.
type Match struct {
	AxiomID  string
	Verdict  types.Verdict
	Priority int
}

// Result is either conclusive with the winning verdict and the full
// ordered match list, or inconclusive when no axiom applies.
type Result struct {
	Conclusive bool
	Verdict    types.Verdict
	Matches    []Match
}

// EvalError reports a predicate that failed to evaluate. The whole
// evaluation fails closed; the offending axiom is named, never skipped.
type EvalError struct {
	AxiomID string
	Err     error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("axiom %s failed to evaluate: %v", e.AxiomID, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// Evaluate runs every axiom's predicate against the input. Matches are
// ordered by descending priority, ties broken by axiom ID ascending, and
// the highest-ranked match supplies the verdict.
func Evaluate(set axiom.Set, in types.NormalizedInput) (Result, error) {
	var matches []Match
	for _, ax := range set.Axioms {
		ok, err := ax.When.Eval(in)
		if err != nil {
			return Result{}, &EvalError{AxiomID: ax.ID, Err: err}
		}
		if ok {
			matches = append(matches, Match{AxiomID: ax.ID, Verdict: ax.Verdict, Priority: ax.Priority})
		}
	}

	if len(matches) == 0 {
		return Result{}, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Priority != matches[j].Priority {
			return matches[i].Priority > matches[j].Priority
		}
		return matches[i].AxiomID < matches[j].AxiomID
	})

	return Result{
		Conclusive: true,
		Verdict:    matches[0].Verdict,
		Matches:    matches,
	}, nil
}
