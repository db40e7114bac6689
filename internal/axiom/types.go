// Package axiom holds the deterministic rule model: a closed, tagged set
// of predicate kinds evaluated by an interpreter. Predicates are data,
// never code, so evaluation stays total and auditable.
package axiom

import (
	"fmt"

	"github.com/axiomhive/axiomd/pkg/types"
)

// Op is a threshold comparison operator over integer fields.
type Op string

const (
	OpGT Op = "gt"
	OpGE Op = "ge"
	OpLT Op = "lt"
	OpLE Op = "le"
	OpEQ Op = "eq"
	OpNE Op = "ne"
)

func (o Op) valid() bool {
	switch o {
	case OpGT, OpGE, OpLT, OpLE, OpEQ, OpNE:
		return true
	default:
		return false
	}
}

// ThresholdPredicate compares an integer field against a constant.
type ThresholdPredicate struct {
	Field string `yaml:"field"`
	Op    Op     `yaml:"op"`
	Value int64  `yaml:"value"`
}

// MemberPredicate holds when a string field is one of the listed values.
type MemberPredicate struct {
	Field string   `yaml:"field"`
	In    []string `yaml:"in"`
}

// EqualsPredicate compares a field against a scalar constant of matching
// kind (string, integer, or boolean).
type EqualsPredicate struct {
	Field string `yaml:"field"`
	Value any    `yaml:"value"`
}

// Predicate is a tagged union: exactly one of the kinds must be set.
// All is a conjunction over its children.
type Predicate struct {
	Threshold *ThresholdPredicate `yaml:"threshold,omitempty"`
	Member    *MemberPredicate    `yaml:"member,omitempty"`
	Equals    *EqualsPredicate    `yaml:"equals,omitempty"`
	All       []Predicate         `yaml:"all,omitempty"`
}

// Axiom is a deterministic rule: when its predicate holds the axiom yields
// its verdict. Priority ranks simultaneously matching axioms; ties break
// on ID for determinism.
type Axiom struct {
	ID       string        `yaml:"id"`
	Priority int           `yaml:"priority"`
	Verdict  types.Verdict `yaml:"verdict"`
	When     Predicate     `yaml:"when"`
}

// Set is an immutable, loaded axiom collection. Hash is the sha256 digest
// of the raw definition file, binding attestations to the exact rule
// version in force.
type Set struct {
	Axioms []Axiom
	Hash   string
}

// Validate checks structural soundness: unique non-empty IDs, known
// verdicts, and exactly one predicate kind per node.
func Validate(axioms []Axiom) error {
	seen := map[string]struct{}{}
	for _, ax := range axioms {
		if ax.ID == "" {
			return fmt.Errorf("axiom with empty id")
		}
		if _, ok := seen[ax.ID]; ok {
			return fmt.Errorf("duplicate axiom id: %s", ax.ID)
		}
		seen[ax.ID] = struct{}{}

		if !ax.Verdict.Valid() {
			return fmt.Errorf("axiom %s: invalid verdict %q", ax.ID, ax.Verdict)
		}
		if err := validatePredicate(ax.When); err != nil {
			return fmt.Errorf("axiom %s: %w", ax.ID, err)
		}
	}
	return nil
}

func validatePredicate(p Predicate) error {
	kinds := 0
	if p.Threshold != nil {
		kinds++
		if p.Threshold.Field == "" {
			return fmt.Errorf("threshold predicate missing field")
		}
		if !p.Threshold.Op.valid() {
			return fmt.Errorf("threshold predicate has unknown op %q", p.Threshold.Op)
		}
	}
	if p.Member != nil {
		kinds++
		if p.Member.Field == "" {
			return fmt.Errorf("member predicate missing field")
		}
		if len(p.Member.In) == 0 {
			return fmt.Errorf("member predicate has empty set")
		}
	}
	if p.Equals != nil {
		kinds++
		if p.Equals.Field == "" {
			return fmt.Errorf("equals predicate missing field")
		}
		switch p.Equals.Value.(type) {
		case string, bool, int, int64:
		default:
			return fmt.Errorf("equals predicate value must be a string, integer, or boolean")
		}
	}
	if p.All != nil {
		kinds++
		if len(p.All) == 0 {
			return fmt.Errorf("conjunction with no children")
		}
		for _, child := range p.All {
			if err := validatePredicate(child); err != nil {
				return err
			}
		}
	}

	if kinds != 1 {
		return fmt.Errorf("predicate must have exactly one kind, found %d", kinds)
	}
	return nil
}
