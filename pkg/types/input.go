package types

// FieldKind tags the type of a normalized input field.
type FieldKind string

const (
	FieldString FieldKind = "string"
	FieldInt    FieldKind = "int"
	FieldBool   FieldKind = "bool"
)

// FieldValue is a typed scalar. Exactly the field selected by Kind is
// meaningful; floats are not representable so that the canonical encoding
// of an input is never ambiguous.
type FieldValue struct {
	Kind FieldKind
	Str  string
	Int  int64
	Bool bool
}

func StringField(v string) FieldValue {
	return FieldValue{Kind: FieldString, Str: v}
}

func IntField(v int64) FieldValue {
	return FieldValue{Kind: FieldInt, Int: v}
}

func BoolField(v bool) FieldValue {
	return FieldValue{Kind: FieldBool, Bool: v}
}

// NormalizedInput is the canonical, order-independent representation of a
// raw input. It is produced by an external normalization step and treated
// as an opaque, immutable value by the engine.
type NormalizedInput map[string]FieldValue

// CanonicalView returns the input as a plain map suitable for canonical
// JSON encoding. Field kinds survive the mapping because string, integer,
// and boolean JSON scalars are distinct.
func (in NormalizedInput) CanonicalView() map[string]any {
	view := make(map[string]any, len(in))
	for name, field := range in {
		switch field.Kind {
		case FieldInt:
			view[name] = field.Int
		case FieldBool:
			view[name] = field.Bool
		default:
			view[name] = field.Str
		}
	}
	return view
}
