package axiom

import (
	"fmt"

	"github.com/axiomhive/axiomd/pkg/types"
)

// Eval interprets the predicate against a normalized input. A reference
// to a missing field or a field of the wrong kind is an error, never a
// silent non-match: a predicate that cannot be decided must surface so
// the evaluation fails closed.
func (p Predicate) Eval(in types.NormalizedInput) (bool, error) {
	switch {
	case p.Threshold != nil:
		return evalThreshold(*p.Threshold, in)
	case p.Member != nil:
		return evalMember(*p.Member, in)
	case p.Equals != nil:
		return evalEquals(*p.Equals, in)
	case p.All != nil:
		for _, child := range p.All {
			ok, err := child.Eval(in)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, fmt.Errorf("empty predicate")
	}
}

func evalThreshold(p ThresholdPredicate, in types.NormalizedInput) (bool, error) {
	field, err := lookupField(in, p.Field, types.FieldInt)
	if err != nil {
		return false, err
	}
	v := field.Int
	switch p.Op {
	case OpGT:
		return v > p.Value, nil
	case OpGE:
		return v >= p.Value, nil
	case OpLT:
		return v < p.Value, nil
	case OpLE:
		return v <= p.Value, nil
	case OpEQ:
		return v == p.Value, nil
	case OpNE:
		return v != p.Value, nil
	default:
		return false, fmt.Errorf("unknown threshold op %q", p.Op)
	}
}

func evalMember(p MemberPredicate, in types.NormalizedInput) (bool, error) {
	field, err := lookupField(in, p.Field, types.FieldString)
	if err != nil {
		return false, err
	}
	for _, candidate := range p.In {
		if field.Str == candidate {
			return true, nil
		}
	}
	return false, nil
}

func evalEquals(p EqualsPredicate, in types.NormalizedInput) (bool, error) {
	field, ok := in[p.Field]
	if !ok {
		return false, fmt.Errorf("field %q not present in input", p.Field)
	}

	switch want := p.Value.(type) {
	case string:
		if field.Kind != types.FieldString {
			return false, kindMismatch(p.Field, types.FieldString, field.Kind)
		}
		return field.Str == want, nil
	case bool:
		if field.Kind != types.FieldBool {
			return false, kindMismatch(p.Field, types.FieldBool, field.Kind)
		}
		return field.Bool == want, nil
	case int:
		if field.Kind != types.FieldInt {
			return false, kindMismatch(p.Field, types.FieldInt, field.Kind)
		}
		return field.Int == int64(want), nil
	case int64:
		if field.Kind != types.FieldInt {
			return false, kindMismatch(p.Field, types.FieldInt, field.Kind)
		}
		return field.Int == want, nil
	default:
		return false, fmt.Errorf("equals predicate on %q has unsupported constant type %T", p.Field, p.Value)
	}
}

func lookupField(in types.NormalizedInput, name string, kind types.FieldKind) (types.FieldValue, error) {
	field, ok := in[name]
	if !ok {
		return types.FieldValue{}, fmt.Errorf("field %q not present in input", name)
	}
	if field.Kind != kind {
		return types.FieldValue{}, kindMismatch(name, kind, field.Kind)
	}
	return field, nil
}

func kindMismatch(name string, want, got types.FieldKind) error {
	return fmt.Errorf("field %q is %s, predicate requires %s", name, got, want)
}
