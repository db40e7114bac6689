package types

// Verdict is the closed set of outcomes an adjudication can produce.
type Verdict string

const (
	VerdictAccept   Verdict = "accept"
	VerdictReject   Verdict = "reject"
	VerdictEscalate Verdict = "escalate"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictAccept, VerdictReject, VerdictEscalate:
		return true
	default:
		return false
	}
}

// DecisionSource records which pathway produced the final verdict.
type DecisionSource string

const (
	SourceSymbolic      DecisionSource = "symbolic"
	SourceProbabilistic DecisionSource = "probabilistic"
	SourceDefault       DecisionSource = "default"
)

type Decision struct {
	Verdict    Verdict        `json:"verdict"`
	Source     DecisionSource `json:"source"`
	Confidence float64        `json:"confidence"`
}

// StepKind tags one entry of a reasoning path.
type StepKind string

const (
	StepAxiomMatch      StepKind = "axiom_match"
	StepAxiomError      StepKind = "axiom_error"
	StepClassifier      StepKind = "classifier"
	StepClassifierError StepKind = "classifier_error"
	StepFallback        StepKind = "fallback"
)

// ReasoningStep describes one contribution to a Decision. Confidence is
// carried as a fixed four-digit decimal string so the reasoning path has a
// single byte representation.
type ReasoningStep struct {
	Kind       StepKind `json:"kind"`
	AxiomID    string   `json:"axiom_id,omitempty"`
	Verdict    Verdict  `json:"verdict,omitempty"`
	Label      string   `json:"label,omitempty"`
	Confidence string   `json:"confidence,omitempty"`
	Detail     string   `json:"detail,omitempty"`
}
