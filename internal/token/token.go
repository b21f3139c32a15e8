// Package token encodes and decodes the compound authorization strings that
// adapters hand back to callers and receive again on capture, void and refund.
// Each adapter owns its schemas; all of them share the rules enforced here.
package token

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrMalformed is matched by every DecodeError.
var ErrMalformed = errors.New("malformed authorization token")

// DecodeError reports a token that does not fit the expected schema.
type DecodeError struct {
	Schema string
	Token  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("token: cannot decode %q as %s: %s", e.Token, e.Schema, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformed, e.Err}
	}
	return []error{ErrMalformed}
}

// EncodeError reports values that cannot be packed without ambiguity.
type EncodeError struct {
	Schema string
	Field  string
	Reason string
}

func (e *EncodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("token: cannot encode %s: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("token: cannot encode %s field %s: %s", e.Schema, e.Field, e.Reason)
}

// Field describes one positional segment.
type Field struct {
	Name     string
	Required bool
}

// Required is shorthand for a mandatory field.
func Required(name string) Field { return Field{Name: name, Required: true} }

// Optional is shorthand for a field that may be encoded as an empty segment.
func Optional(name string) Field { return Field{Name: name} }

// Schema is an ordered tuple of fields joined by a delimiter.
type Schema struct {
	Name      string
	Delimiter string
	Fields    []Field
}

// NewSchema validates and returns a schema.
func NewSchema(name, delimiter string, fields ...Field) (Schema, error) {
	if utf8.RuneCountInString(delimiter) != 1 {
		return Schema{}, fmt.Errorf("token: schema %s needs a single-character delimiter, got %q", name, delimiter)
	}
	if len(fields) == 0 {
		return Schema{}, fmt.Errorf("token: schema %s needs at least one field", name)
	}
	return Schema{Name: name, Delimiter: delimiter, Fields: fields}, nil
}

// MustSchema is NewSchema for package-level schema declarations.
func MustSchema(name, delimiter string, fields ...Field) Schema {
	s, err := NewSchema(name, delimiter, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Encode joins values positionally. Optional values may be empty; no value may
// contain the delimiter.
func (s Schema) Encode(values []string) (string, error) {
	if len(values) != len(s.Fields) {
		return "", &EncodeError{Schema: s.Name, Reason: fmt.Sprintf("expected %d values, got %d", len(s.Fields), len(values))}
	}
	for i, f := range s.Fields {
		if strings.Contains(values[i], s.Delimiter) {
			return "", &EncodeError{Schema: s.Name, Field: f.Name, Reason: fmt.Sprintf("value contains delimiter %q", s.Delimiter)}
		}
		if f.Required && values[i] == "" {
			return "", &EncodeError{Schema: s.Name, Field: f.Name, Reason: "required value is empty"}
		}
	}
	return strings.Join(values, s.Delimiter), nil
}

// Decode splits a token and checks arity and required segments.
func (s Schema) Decode(tok string) ([]string, error) {
	// A lone optional field legitimately encodes to "".
	if tok == "" && (len(s.Fields) != 1 || s.Fields[0].Required) {
		return nil, &DecodeError{Schema: s.Name, Token: tok, Reason: "empty token"}
	}
	parts := strings.Split(tok, s.Delimiter)
	if len(parts) != len(s.Fields) {
		return nil, &DecodeError{
			Schema: s.Name,
			Token:  tok,
			Reason: fmt.Sprintf("expected %d segments, got %d", len(s.Fields), len(parts)),
		}
	}
	for i, f := range s.Fields {
		if f.Required && parts[i] == "" {
			return nil, &DecodeError{Schema: s.Name, Token: tok, Reason: "missing " + f.Name}
		}
	}
	return parts, nil
}
