package schema

import "sync"

// Editor is the text buffer holding the current schema. The schema text is
// authoritative there; this package only reads and replaces it wholesale.
type Editor interface {
	GetValue() string
	SetValue(text string) error
}

// Buffer is an in-memory Editor.
type Buffer struct {
	mu   sync.RWMutex
	text string
}

// NewBuffer returns a Buffer holding text.
func NewBuffer(text string) *Buffer {
	return &Buffer{text: text}
}

func (b *Buffer) GetValue() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

func (b *Buffer) SetValue(text string) error {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
	return nil
}

// Reset replaces the editor contents with the built-in default.
func Reset(e Editor) error {
	return e.SetValue(Default())
}
