package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jackzampolin/docextract/internal/apperr"
)

const unexpectedEnd = "unexpected end of JSON input"

// Validate checks that text is well-formed JSON. Empty or whitespace-only
// text is valid and means "no schema". Field types are never checked.
func Validate(text string) error {
	if isBlank(text) {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return &apperr.ParseError{Offset: syntaxErr.Offset, Cause: err}
		}
		return &apperr.ParseError{Offset: -1, Cause: err}
	}
	return nil
}

// IsIncomplete reports whether err is a ParseError caused by input that
// ended before the JSON value was closed.
func IsIncomplete(err error) bool {
	var pe *apperr.ParseError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Cause != nil && pe.Cause.Error() == unexpectedEnd
}

// Compact validates text and returns it re-serialised without insignificant
// whitespace. Blank text returns "".
func Compact(text string) (string, error) {
	if err := Validate(text); err != nil {
		return "", err
	}
	if isBlank(text) {
		return "", nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return "", &apperr.ParseError{Offset: -1, Cause: err}
	}
	return buf.String(), nil
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
