package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/motionlab/facerelay/internal/imgcodec"
	"github.com/motionlab/facerelay/internal/timeutil"
)

// Synthetic is an in-process engine for dev mode and tests. It completes
// every submission immediately with a configurable canned result; the
// default is a no-face result.
type Synthetic struct {
	clock timeutil.Clock

	mu     sync.Mutex
	result *Result
}

// NewSynthetic creates a Synthetic engine stamping completions with the
// given clock.
func NewSynthetic(clock timeutil.Clock) *Synthetic {
	return &Synthetic{clock: clock, result: &Result{}}
}

// SetResult replaces the canned result returned for every submission.
func (s *Synthetic) SetResult(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r
}

// Submit completes immediately with the canned result.
func (s *Synthetic) Submit(_ imgcodec.Frame, _ int64, token uuid.UUID) (<-chan Completion, error) {
	s.mu.Lock()
	result := s.result
	s.mu.Unlock()

	ch := make(chan Completion, 1)
	ch <- Completion{Token: token, Result: result, TSMs: s.clock.Now().UnixMilli()}
	return ch, nil
}

// Close implements Engine.
func (s *Synthetic) Close() error { return nil }
