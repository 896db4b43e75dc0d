package extraction

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackzampolin/docextract/internal/apperr"
	"github.com/jackzampolin/docextract/internal/schema"
	"github.com/jackzampolin/docextract/internal/settings"
)

// Multipart form field names understood by the extraction endpoint.
const (
	FieldFiles           = "files"
	FieldPrompt          = "prompt"
	FieldAPIProvider     = "api_provider"
	FieldAPIKey          = "api_key"
	FieldModel           = "model"
	FieldTemperature     = "temperature"
	FieldMaxTokens       = "max_tokens"
	FieldSchema          = "schema_definition"
	FieldAzureEndpoint   = "azure_endpoint"
	FieldAzureDeployment = "azure_deployment"
	FieldAPIVersion      = "api_version"
)

// Field is one non-file form value.
type Field struct {
	Name  string
	Value string
}

// Request is an assembled, not yet encoded, extraction request.
type Request struct {
	files  []Blob
	fields []Field
}

// Files returns the blobs in upload order.
func (r *Request) Files() []Blob {
	return r.files
}

// Fields returns the form values in the order they are encoded.
func (r *Request) Fields() []Field {
	return r.fields
}

// Value returns the named form value.
func (r *Request) Value(name string) (string, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Build assembles a request from the upload set, the prompt, the current
// settings and the optional schema text. A nil or blank schemaText omits
// schema_definition. Nothing is read from the blobs until Encode.
func Build(files []Blob, prompt string, s settings.Settings, schemaText *string) (*Request, error) {
	if len(files) == 0 {
		return nil, apperr.Validation(FieldFiles, "at least one file is required")
	}

	var compact string
	if schemaText != nil {
		var err error
		compact, err = schema.Compact(*schemaText)
		if err != nil {
			return nil, &apperr.ValidationError{Field: FieldSchema, Message: "schema is not valid JSON", Cause: err}
		}
	}

	s = s.WithDefaults()
	fields := []Field{
		{FieldPrompt, prompt},
		{FieldAPIProvider, string(s.APIProvider)},
		{FieldAPIKey, s.ResolvedAPIKey()},
		{FieldModel, s.Model},
		{FieldTemperature, strconv.FormatFloat(s.Temperature, 'f', -1, 64)},
		{FieldMaxTokens, strconv.Itoa(s.MaxTokens)},
	}
	if compact != "" {
		fields = append(fields, Field{FieldSchema, compact})
	}
	if s.IsAzure() {
		fields = append(fields,
			Field{FieldAzureEndpoint, s.AzureEndpoint},
			Field{FieldAzureDeployment, s.AzureDeployment},
			Field{FieldAPIVersion, s.APIVersion},
		)
	}

	return &Request{
		files:  append([]Blob(nil), files...),
		fields: fields,
	}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Encode writes the multipart body and returns it with its content type.
// Each call re-reads the blobs, so a request can be encoded once per attempt.
func (r *Request) Encode() (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	for _, b := range r.files {
		if err := writeFilePart(mw, b); err != nil {
			return nil, "", err
		}
	}
	for _, f := range r.fields {
		if err := mw.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, mw.FormDataContentType(), nil
}

func writeFilePart(mw *multipart.Writer, b Blob) (err error) {
	rc, err := b.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", b.Name(), err)
	}
	defer func() {
		err = errors.Join(err, rc.Close())
	}()

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(b.Name())))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FieldFiles, quoteEscaper.Replace(b.Name())))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part for %s: %w", b.Name(), err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("read %s: %w", b.Name(), err)
	}
	return nil
}
