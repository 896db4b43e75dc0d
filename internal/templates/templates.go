// Package templates persists named (prompt, schema) pairs in local storage.
// The collection is stored as one JSON object under storage.KeyTemplates
// and is always rewritten whole.
package templates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/jackzampolin/docextract/internal/apperr"
	"github.com/jackzampolin/docextract/internal/storage"
)

// Template is a saved prompt and schema. Schema is raw editor text and may
// be invalid JSON.
type Template struct {
	Name   string `json:"-" yaml:"name"`
	Prompt string `json:"prompt" yaml:"prompt"`
	Schema string `json:"schema" yaml:"schema"`
}

// Store reads and writes the template collection.
type Store struct {
	mu      sync.Mutex
	storage storage.Storage
}

// NewStore creates a template store over s.
func NewStore(s storage.Storage) *Store {
	return &Store{storage: s}
}

// List returns the saved templates in insertion order. Overwriting a name
// keeps its position; deleting removes it. The sequence iterates a
// snapshot taken when List is called.
func (s *Store) List(ctx context.Context) (iter.Seq2[string, Template], error) {
	s.mu.Lock()
	c, err := s.read(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.all(), nil
}

// Names returns saved template names in insertion order.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), c.names...), nil
}

// Save stores a template under name, trimmed. An existing template with the
// same name is replaced.
func (s *Store) Save(ctx context.Context, name, prompt, schemaText string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validation("name", "template name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.read(ctx)
	if err != nil {
		return err
	}
	c.set(Template{Name: name, Prompt: prompt, Schema: schemaText})
	return s.write(ctx, c)
}

// Load returns the template saved under name, or apperr.ErrNotFound.
func (s *Store) Load(ctx context.Context, name string) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.read(ctx)
	if err != nil {
		return Template{}, err
	}
	t, ok := c.items[strings.TrimSpace(name)]
	if !ok {
		return Template{}, fmt.Errorf("template %q: %w", name, apperr.ErrNotFound)
	}
	return t, nil
}

// Delete removes the template saved under name. Deleting a missing name is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.read(ctx)
	if err != nil {
		return err
	}
	if !c.remove(strings.TrimSpace(name)) {
		return nil
	}
	return s.write(ctx, c)
}

func (s *Store) read(ctx context.Context) (*collection, error) {
	raw, ok, err := s.storage.GetItem(ctx, storage.KeyTemplates)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	c := &collection{items: make(map[string]Template)}
	if !ok || strings.TrimSpace(raw) == "" {
		return c, nil
	}
	if err := c.UnmarshalJSON([]byte(raw)); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	return c, nil
}

func (s *Store) write(ctx context.Context, c *collection) error {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode templates: %w", err)
	}
	if err := s.storage.SetItem(ctx, storage.KeyTemplates, string(data)); err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	return nil
}

// collection is the stored name -> template object, keeping key order.
type collection struct {
	names []string
	items map[string]Template
}

func (c *collection) set(t Template) {
	if _, ok := c.items[t.Name]; !ok {
		c.names = append(c.names, t.Name)
	}
	c.items[t.Name] = t
}

func (c *collection) remove(name string) bool {
	if _, ok := c.items[name]; !ok {
		return false
	}
	delete(c.items, name)
	for i, n := range c.names {
		if n == name {
			c.names = append(c.names[:i], c.names[i+1:]...)
			break
		}
	}
	return true
}

func (c *collection) all() iter.Seq2[string, Template] {
	return func(yield func(string, Template) bool) {
		for _, name := range c.names {
			if !yield(name, c.items[name]) {
				return
			}
		}
	}
}

func (c *collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range c.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.items[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *collection) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var t Template
		if err := dec.Decode(&t); err != nil {
			return fmt.Errorf("template %q: %w", name, err)
		}
		t.Name = name
		c.set(t)
	}
	_, err = dec.Token()
	return err
}
