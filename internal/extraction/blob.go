package extraction

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Blob is one uploaded file. Contents are read only when a request is encoded.
type Blob interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type fileBlob struct {
	path string
}

// FileBlob returns a Blob reading the file at path. The upload name is the base name.
func FileBlob(path string) Blob {
	return fileBlob{path: path}
}

func (b fileBlob) Name() string                 { return filepath.Base(b.path) }
func (b fileBlob) Open() (io.ReadCloser, error) { return os.Open(b.path) }

type bytesBlob struct {
	name string
	data []byte
}

// BytesBlob returns an in-memory Blob.
func BytesBlob(name string, data []byte) Blob {
	return bytesBlob{name: name, data: data}
}

func (b bytesBlob) Name() string { return b.name }
func (b bytesBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// FileSet is the current upload set. Removing an entry removes it from
// what gets submitted, not only from what is displayed.
type FileSet struct {
	mu    sync.Mutex
	blobs []Blob
}

// Add appends blobs in order.
func (s *FileSet) Add(blobs ...Blob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs = append(s.blobs, blobs...)
}

// Remove drops the first blob matching name and reports whether one was
// found. name is an upload name, or the path a FileBlob was created with.
func (s *FileSet) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.blobs, func(b Blob) bool {
		if fb, ok := b.(fileBlob); ok && filepath.Clean(fb.path) == filepath.Clean(name) {
			return true
		}
		return b.Name() == name
	})
	if i < 0 {
		return false
	}
	s.blobs = slices.Delete(s.blobs, i, i+1)
	return true
}

// Len returns the number of blobs in the set.
func (s *FileSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// Blobs returns a copy of the set in insertion order.
func (s *FileSet) Blobs() []Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.blobs)
}
