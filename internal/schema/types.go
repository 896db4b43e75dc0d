package schema

import "strings"

// Kind is the value category a field's type string resolves to.
type Kind int

const (
	KindUnknown Kind = iota
	KindStr
	KindInt
	KindFloat
	KindBool
	KindList
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindStr:
		return "str"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "List"
	case KindDict:
		return "Dict"
	default:
		return "unknown"
	}
}

// FieldType is the parsed form of a FieldSpec "type" string. Raw keeps the
// text exactly as written so unknown or oddly-cased types survive a round trip.
type FieldType struct {
	Kind Kind
	// Elem is the element kind of a List; KindUnknown means any element.
	Elem Kind
	Raw  string
}

// ParseType maps the type strings used by schema documents ("str",
// "List[float]", "Dict", "integer", ...) onto a FieldType. Unrecognised
// strings yield KindUnknown with Raw preserved.
func ParseType(raw string) FieldType {
	t := FieldType{Raw: raw}
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.ReplaceAll(norm, " ", "")

	if k, ok := scalarKind(norm); ok {
		t.Kind = k
		return t
	}

	switch {
	case norm == "list" || norm == "array":
		t.Kind = KindList
	case strings.HasPrefix(norm, "list[") && strings.HasSuffix(norm, "]"):
		t.Kind = KindList
		if k, ok := scalarKind(norm[len("list[") : len(norm)-1]); ok {
			t.Elem = k
		}
	case norm == "dict" || norm == "object" || strings.HasPrefix(norm, "dict["):
		t.Kind = KindDict
	}
	return t
}

func scalarKind(norm string) (Kind, bool) {
	switch norm {
	case "str", "string":
		return KindStr, true
	case "int", "integer":
		return KindInt, true
	case "float", "number":
		return KindFloat, true
	case "bool", "boolean":
		return KindBool, true
	}
	return KindUnknown, false
}

// String returns the type as written, or a canonical spelling for
// types built in code.
func (t FieldType) String() string {
	if t.Raw != "" {
		return t.Raw
	}
	if t.Kind == KindList && t.Elem != KindUnknown {
		return "List[" + t.Elem.String() + "]"
	}
	return t.Kind.String()
}

// Str, Float, ... build FieldTypes for documents constructed in code.
func Str() FieldType { return FieldType{Kind: KindStr} }
func Int() FieldType { return FieldType{Kind: KindInt} }
func Float() FieldType { return FieldType{Kind: KindFloat} }
func Bool() FieldType { return FieldType{Kind: KindBool} }
func Dict() FieldType { return FieldType{Kind: KindDict} }
func ListOf(elem Kind) FieldType { return FieldType{Kind: KindList, Elem: elem} }
