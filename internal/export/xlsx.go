package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/docextract/internal/extraction"
)

const (
	dataSheet  = "Data"
	usageSheet = "Usage"
)

func writeXLSX(w io.Writer, res *extraction.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(usageSheet); err != nil {
		return err
	}
	activeIndex, _ := f.GetSheetIndex(dataSheet)
	f.SetActiveSheet(activeIndex)

	if err := writeDataSheet(f, res.Data, dataKeyOrder(res.RawData())); err != nil {
		return fmt.Errorf("data sheet: %w", err)
	}
	if err := writeUsageSheet(f, res.Usage); err != nil {
		return fmt.Errorf("usage sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// writeDataSheet writes one row per record. A list of objects gives one
// row each; a single object gives one row. Nested objects become dotted
// columns and lists are written as JSON text. Columns follow order, then
// any remaining keys sorted.
func writeDataSheet(f *excelize.File, data any, order []string) error {
	var records []map[string]any
	switch d := data.(type) {
	case []any:
		for _, item := range d {
			records = append(records, flatten(item))
		}
	case nil:
	default:
		records = append(records, flatten(d))
	}

	var columns []string
	for _, k := range order {
		present := slices.ContainsFunc(records, func(rec map[string]any) bool {
			_, ok := rec[k]
			return ok
		})
		if present {
			columns = append(columns, k)
		}
	}
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !slices.Contains(columns, k) {
				columns = append(columns, k)
			}
		}
	}

	for i, col := range columns {
		if err := setCell(f, dataSheet, i+1, 1, col); err != nil {
			return err
		}
	}
	for r, rec := range records {
		for i, col := range columns {
			v, ok := rec[col]
			if !ok {
				continue
			}
			if err := setCell(f, dataSheet, i+1, r+2, v); err != nil {
				return err
			}
		}
	}
	if len(columns) > 0 {
		last, _ := excelize.ColumnNumberToName(len(columns))
		_ = f.SetColWidth(dataSheet, "A", last, 22)
	}
	return nil
}

func writeUsageSheet(f *excelize.File, u extraction.Usage) error {
	headers := []string{"File", "Page", "Prompt Tokens", "Completion Tokens", "Total Tokens", "Cost (USD)", "Error"}
	for i, h := range headers {
		if err := setCell(f, usageSheet, i+1, 1, h); err != nil {
			return err
		}
	}

	row := 2
	write := func(values ...any) error {
		for i, v := range values {
			if err := setCell(f, usageSheet, i+1, row, v); err != nil {
				return err
			}
		}
		row++
		return nil
	}

	for _, file := range u.Files {
		if file.Error != "" || len(file.PageMetrics) == 0 {
			if err := write(file.FileName, "", "", "", "", file.TotalCost, file.Error); err != nil {
				return err
			}
			continue
		}
		for _, pm := range file.PageMetrics {
			if err := write(file.FileName, pm.PageNumber, pm.PromptTokens, pm.CompletionTokens, pm.TotalTokens, pm.TotalCost, ""); err != nil {
				return err
			}
		}
	}

	row++
	summary := [][2]any{
		{"Files", u.FileCount},
		{"Successful Extractions", u.SuccessfulExtractions},
		{"Total Cost (USD)", u.TotalCost},
	}
	for _, kv := range summary {
		if err := write(kv[0], kv[1]); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(usageSheet, "A", "A", 32)
	_ = f.SetColWidth(usageSheet, "B", "F", 16)
	_ = f.SetColWidth(usageSheet, "G", "G", 48)
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, v)
}

// flatten turns nested objects into dotted keys. Non-object values are
// stored under "value".
func flatten(v any) map[string]any {
	out := map[string]any{}
	obj, ok := v.(map[string]any)
	if !ok {
		out["value"] = cellValue(v)
		return out
	}
	flattenInto(out, "", obj)
	return out
}

func flattenInto(out map[string]any, prefix string, obj map[string]any) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenInto(out, key, nested)
			continue
		}
		out[key] = cellValue(v)
	}
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string, bool, float64, int, int64:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// dataKeyOrder lists the flattened column names of raw in order of first
// appearance. It returns what it found before any decoding error.
func dataKeyOrder(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	k := &keyWalker{dec: json.NewDecoder(bytes.NewReader(raw)), seen: map[string]bool{}}
	tok, err := k.dec.Token()
	if err != nil {
		return nil
	}
	switch tok {
	case json.Delim('['):
		for k.dec.More() {
			if err := k.record(); err != nil {
				break
			}
		}
	case json.Delim('{'):
		_ = k.object("")
	}
	return k.order
}

var errUnexpectedToken = errors.New("unexpected token")

type keyWalker struct {
	dec   *json.Decoder
	seen  map[string]bool
	order []string
}

func (k *keyWalker) add(key string) {
	if !k.seen[key] {
		k.seen[key] = true
		k.order = append(k.order, key)
	}
}

// record reads one list element. Non-objects flatten to "value".
func (k *keyWalker) record() error {
	tok, err := k.dec.Token()
	if err != nil {
		return err
	}
	switch tok {
	case json.Delim('{'):
		return k.object("")
	case json.Delim('['):
		k.add("value")
		return k.skip()
	default:
		k.add("value")
		return nil
	}
}

// object reads the members of an object whose opening brace was consumed.
func (k *keyWalker) object(prefix string) error {
	for k.dec.More() {
		tok, err := k.dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errUnexpectedToken
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		tok, err = k.dec.Token()
		if err != nil {
			return err
		}
		switch tok {
		case json.Delim('{'):
			if !k.dec.More() {
				// Empty objects are a single cell, as in flatten.
				k.add(key)
				if _, err := k.dec.Token(); err != nil {
					return err
				}
				continue
			}
			if err := k.object(key); err != nil {
				return err
			}
		case json.Delim('['):
			k.add(key)
			if err := k.skip(); err != nil {
				return err
			}
		default:
			k.add(key)
		}
	}
	_, err := k.dec.Token()
	return err
}

// skip consumes the rest of an array whose opening bracket was consumed.
func (k *keyWalker) skip() error {
	for depth := 1; depth > 0; {
		tok, err := k.dec.Token()
		if err != nil {
			return err
		}
		switch tok {
		case json.Delim('['), json.Delim('{'):
			depth++
		case json.Delim(']'), json.Delim('}'):
			depth--
		}
	}
	return nil
}
