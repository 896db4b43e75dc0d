package extraction

import (
	"context"
	"errors"
	"sync"
)

// ErrSubmissionInFlight is returned when a Session is already submitting.
var ErrSubmissionInFlight = errors.New("an extraction is already in progress")

// Submitter sends one extraction request.
type Submitter interface {
	Submit(ctx context.Context, req *Request) (*Result, error)
}

// Session allows at most one submission in flight at a time.
type Session struct {
	submitter Submitter

	mu       sync.Mutex
	inFlight bool
}

// NewSession wraps s.
func NewSession(s Submitter) *Session {
	return &Session{submitter: s}
}

// Busy reports whether a submission is in progress.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Submit forwards req unless another submission is in flight. The slot is
// released on every return path.
func (s *Session) Submit(ctx context.Context, req *Request) (*Result, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	s.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	return s.submitter.Submit(ctx, req)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, req *Request) (*Result, error)

func (f SubmitterFunc) Submit(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}
