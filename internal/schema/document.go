// Package schema models extraction schema documents: an ordered mapping
// from output field name to a typed FieldSpec, plus the built-in default
// invoice schema and JSON well-formedness validation.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
)

// FieldSpec describes one output field. Properties is only consulted when
// Type.Kind is KindDict; it is still kept for other kinds so documents
// round-trip unchanged.
type FieldSpec struct {
	Description string
	Type        FieldType
	Properties  *Document

	// shorthand is set for fields written as a bare type string
	// ("vendor_name": "str") instead of an object.
	shorthand bool
	hasDesc   bool
	hasType   bool
	extra     []member
}

type member struct {
	key   string
	value json.RawMessage
}

// Document is an ordered mapping from field name to FieldSpec.
type Document struct {
	names  []string
	fields map[string]*FieldSpec
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{fields: make(map[string]*FieldSpec)}
}

// Set adds or replaces a field. A replaced field keeps its position.
func (d *Document) Set(name string, spec *FieldSpec) {
	if d.fields == nil {
		d.fields = make(map[string]*FieldSpec)
	}
	if _, ok := d.fields[name]; !ok {
		d.names = append(d.names, name)
	}
	d.fields[name] = spec
}

// Get returns the field with the given name.
func (d *Document) Get(name string) (*FieldSpec, bool) {
	if d == nil {
		return nil, false
	}
	spec, ok := d.fields[name]
	return spec, ok
}

// Len returns the number of top-level fields.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// Names returns field names in document order.
func (d *Document) Names() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Fields iterates fields in document order.
func (d *Document) Fields() iter.Seq2[string, *FieldSpec] {
	return func(yield func(string, *FieldSpec) bool) {
		if d == nil {
			return
		}
		for _, name := range d.names {
			if !yield(name, d.fields[name]) {
				return
			}
		}
	}
}

// Parse decodes a schema document. Blank text yields an empty document.
func Parse(text string) (*Document, error) {
	if err := Validate(text); err != nil {
		return nil, err
	}
	doc := NewDocument()
	if isBlank(text) {
		return doc, nil
	}
	if err := json.Unmarshal([]byte(text), doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// MustParse is Parse for documents known to be valid.
func MustParse(text string) *Document {
	doc, err := Parse(text)
	if err != nil {
		panic(fmt.Sprintf("schema: MustParse: %v", err))
	}
	return doc
}

// UnmarshalJSON decodes a JSON object, keeping field order.
func (d *Document) UnmarshalJSON(data []byte) error {
	d.names = nil
	d.fields = make(map[string]*FieldSpec)
	return decodeObject(data, func(key string, raw json.RawMessage) error {
		spec, err := decodeFieldSpec(raw)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		d.Set(key, spec)
		return nil
	})
}

// MarshalJSON encodes the document with fields in order.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range d.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, name); err != nil {
			return nil, err
		}
		b, err := d.fields[name].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the spec, using the short string form when it was read that way.
func (f *FieldSpec) MarshalJSON() ([]byte, error) {
	if f.shorthand {
		return json.Marshal(f.Type.String())
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	n := 0
	next := func(key string) error {
		if n > 0 {
			buf.WriteByte(',')
		}
		n++
		return writeKey(&buf, key)
	}

	if f.Description != "" || f.hasDesc {
		if err := next("description"); err != nil {
			return nil, err
		}
		desc, _ := json.Marshal(f.Description)
		buf.Write(desc)
	}

	if f.Type.Raw != "" || f.Type.Kind != KindUnknown || f.hasType {
		if err := next("type"); err != nil {
			return nil, err
		}
		typ, _ := json.Marshal(f.Type.String())
		buf.Write(typ)
	}

	if f.Properties != nil {
		if err := next("properties"); err != nil {
			return nil, err
		}
		props, err := f.Properties.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(props)
	}

	for _, m := range f.extra {
		if err := next(m.key); err != nil {
			return nil, err
		}
		buf.Write(m.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeFieldSpec(raw json.RawMessage) (*FieldSpec, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var typ string
		if err := json.Unmarshal(raw, &typ); err != nil {
			return nil, err
		}
		return &FieldSpec{Type: ParseType(typ), shorthand: true}, nil
	}

	spec := &FieldSpec{}
	err := decodeObject(raw, func(key string, value json.RawMessage) error {
		switch key {
		case "description":
			if err := json.Unmarshal(value, &spec.Description); err != nil {
				return fmt.Errorf("description must be a string")
			}
			spec.hasDesc = true
		case "type":
			var typ string
			if err := json.Unmarshal(value, &typ); err != nil {
				return fmt.Errorf("type must be a string")
			}
			spec.Type = ParseType(typ)
			spec.hasType = true
		case "properties":
			nested := NewDocument()
			if err := nested.UnmarshalJSON(value); err != nil {
				return fmt.Errorf("properties: %w", err)
			}
			spec.Properties = nested
		default:
			spec.extra = append(spec.extra, member{key: key, value: append(json.RawMessage(nil), value...)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return spec, nil
}

var errNotObject = errors.New("expected a JSON object")

// decodeObject walks the members of a JSON object in order.
func decodeObject(data []byte, fn func(key string, value json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errNotObject
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func writeKey(buf *bytes.Buffer, key string) error {
	b, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}
