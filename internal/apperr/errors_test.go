package apperr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestValidationError_Is(t *testing.T) {
	err := fmt.Errorf("save template: %w", Validation("name", "must not be empty"))

	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected errors.Is(err, ErrValidation)")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("expected errors.As to find *ValidationError")
	}
	if ve.Field != "name" {
		t.Errorf("Field = %q, want name", ve.Field)
	}
	if got := ve.Error(); got != "name: must not be empty" {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidationError_WrapsCause(t *testing.T) {
	parseErr := &ParseError{Offset: 1, Cause: io.ErrUnexpectedEOF}
	err := &ValidationError{Field: "schema", Message: "invalid schema JSON", Cause: parseErr}

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatal("expected ValidationError to expose its ParseError cause")
	}
	if pe.Offset != 1 {
		t.Errorf("Offset = %d, want 1", pe.Offset)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected cause chain to reach io.ErrUnexpectedEOF")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", &NetworkError{Op: "POST", Cause: io.EOF}, true},
		{"server error", &HTTPError{Status: 502}, true},
		{"rate limited", &HTTPError{Status: 429}, true},
		{"bad request", &HTTPError{Status: 400}, false},
		{"format", &ResponseFormatError{Reason: "missing data"}, false},
		{"wrapped network", fmt.Errorf("submit: %w", &NetworkError{Op: "POST", Cause: io.EOF}), true},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPError_Message(t *testing.T) {
	if got := (&HTTPError{Status: 500}).Error(); got != "HTTP error! status: 500" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&HTTPError{Status: 400, Detail: "no files"}).Error(); got != "HTTP error! status: 400: no files" {
		t.Errorf("Error() = %q", got)
	}
}
