package extraction

import (
	"encoding/json"

	"github.com/jackzampolin/docextract/internal/apperr"
)

// Result is the extraction service response.
type Result struct {
	// Data is whatever the service extracted; loosely shaped by the schema.
	Data  any   `json:"data" msgpack:"data"`
	Usage Usage `json:"usage" msgpack:"usage"`

	// rawData is data as received, kept for its key order.
	rawData json.RawMessage
}

// RawData returns data exactly as the service sent it, or nil when the
// result was not decoded from a response body.
func (r *Result) RawData() json.RawMessage {
	return r.rawData
}

// Usage aggregates token and cost metrics for a request.
type Usage struct {
	Files                 []FileUsage `json:"files" msgpack:"files"`
	FileCount             int         `json:"file_count" msgpack:"file_count"`
	SuccessfulExtractions int         `json:"successful_extractions" msgpack:"successful_extractions"`
	TotalCost             float64     `json:"total_cost" msgpack:"total_cost"`
}

// FileUsage is the usage for one uploaded file. Error is set, and the
// metrics are empty, when the file could not be processed.
type FileUsage struct {
	FileName    string       `json:"file_name" msgpack:"file_name"`
	PageCount   int          `json:"page_count,omitempty" msgpack:"page_count,omitempty"`
	PageMetrics []PageMetric `json:"page_metrics,omitempty" msgpack:"page_metrics,omitempty"`
	TotalCost   float64      `json:"total_cost" msgpack:"total_cost"`
	Error       string       `json:"error,omitempty" msgpack:"error,omitempty"`
}

// PageMetric is the usage for one page sent to the model.
type PageMetric struct {
	FileName         string  `json:"file_name,omitempty" msgpack:"file_name,omitempty"`
	PageNumber       int     `json:"page_number" msgpack:"page_number"`
	PromptTokens     int64   `json:"prompt_tokens,omitempty" msgpack:"prompt_tokens,omitempty"`
	CompletionTokens int64   `json:"completion_tokens,omitempty" msgpack:"completion_tokens,omitempty"`
	TotalTokens      int64   `json:"total_tokens" msgpack:"total_tokens"`
	TotalCost        float64 `json:"total_cost" msgpack:"total_cost"`
}

// DecodeResult parses a success body. Bodies that are not JSON objects or
// that lack data or usage yield a *apperr.ResponseFormatError.
func DecodeResult(body []byte) (*Result, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, &apperr.ResponseFormatError{Reason: "body is not a JSON object", Cause: err}
	}
	for _, key := range []string{"data", "usage"} {
		if _, ok := top[key]; !ok {
			return nil, &apperr.ResponseFormatError{Reason: "missing " + key}
		}
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &apperr.ResponseFormatError{Reason: "malformed usage", Cause: err}
	}
	res.rawData = top["data"]
	return &res, nil
}
