package providers

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseStructuredJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"plain object", `{"ok": true}`, `{"ok":true}`, false},
		{"code fence", "```json\n{\"ok\":true}\n```", `{"ok":true}`, false},
		{"fence after text", "Here you go:\n```json\n{\"ok\":true}\n```\nThanks", `{"ok":true}`, false},
		{"surrounding text", `Result: {"total": 12.5} done`, `{"total":12.5}`, false},
		{"array", `[1, 2]`, `[1,2]`, false},
		{"empty", "  ", "", true},
		{"no json", "no data here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStructuredJSON(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseStructuredJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("parseStructuredJSON() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseStructuredJSON_PreservesKeyOrder(t *testing.T) {
	got, err := parseStructuredJSON(`{"z": 1, "a": 2}`)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"z":1,"a":2}` {
		t.Errorf("key order changed: %s", got)
	}
}

func TestValidateStructuredJSON(t *testing.T) {
	schema, err := CompileSchema(json.RawMessage(`{
		"type": "object",
		"properties": {
			"total": {"type": ["number", "null"]},
			"items": {"type": ["array", "null"], "items": {"type": "string"}}
		}
	}`))
	if err != nil {
		t.Fatalf("CompileSchema() error = %v", err)
	}

	if err := validateStructuredJSON(schema, json.RawMessage(`{"total": 10, "items": ["a"]}`)); err != nil {
		t.Errorf("valid output rejected: %v", err)
	}
	if err := validateStructuredJSON(schema, json.RawMessage(`{"total": null}`)); err != nil {
		t.Errorf("null should be accepted: %v", err)
	}
	if err := validateStructuredJSON(schema, json.RawMessage(`{"total": "ten"}`)); err == nil {
		t.Error("expected type mismatch to fail")
	}
	if err := validateStructuredJSON(nil, json.RawMessage(`"anything"`)); err != nil {
		t.Errorf("nil schema should accept anything: %v", err)
	}
}

func TestCompileSchema_Invalid(t *testing.T) {
	if _, err := CompileSchema(json.RawMessage(`{"type":`)); err == nil {
		t.Error("expected compile error")
	}
	s, err := CompileSchema(nil)
	if err != nil || s != nil {
		t.Errorf("empty schema should compile to nil, got %v, %v", s, err)
	}
}

func TestStructuredRepairPrompt(t *testing.T) {
	p := structuredRepairPrompt(json.RawMessage(`{"type":"object"}`), "not json", errors.New("bad"))
	if !strings.Contains(p, `{"type":"object"}`) || !strings.Contains(p, "not json") {
		t.Errorf("repair prompt missing context: %s", p)
	}
	p = structuredRepairPrompt(nil, "not json", errors.New("bad"))
	if strings.Contains(p, "Schema:") {
		t.Errorf("repair prompt without schema should not mention one: %s", p)
	}
}
