// Package facetrack drives the per-connection detection pipeline: it
// submits frames to an engine, waits for the matching completion, and
// keeps a rolling throughput history.
package facetrack

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/motionlab/facerelay/internal/engine"
	"github.com/motionlab/facerelay/internal/imgcodec"
	"github.com/motionlab/facerelay/internal/monitoring"
	"github.com/motionlab/facerelay/internal/timeutil"
)

// DetectTimeout bounds how long a single detection may run before the
// frame is treated as face-absent.
const DetectTimeout = 1000 * time.Millisecond

// historySize caps the rolling window used for the FPS estimate.
const historySize = 30

// Tracker serializes detection for one client connection. At most one
// frame is in flight at a time; completions for superseded frames are
// discarded by token.
type Tracker struct {
	engine  engine.Engine
	clock   timeutil.Clock
	Timeout time.Duration

	history []int64
}

// New returns a tracker bound to the given engine and clock.
func New(eng engine.Engine, clock timeutil.Clock) *Tracker {
	return &Tracker{
		engine:  eng,
		clock:   clock,
		Timeout: DetectTimeout,
	}
}

// Process runs detection on one frame and blocks until the result
// arrives or the timeout elapses. A timeout is not an error: it returns
// (nil, nil), which callers render as a face-absent payload. A non-nil
// error means the engine itself failed on this frame.
func (t *Tracker) Process(frame imgcodec.Frame, tsMs int64) (*engine.Result, error) {
	token := uuid.New()

	ch, err := t.engine.Submit(frame, tsMs, token)
	if err != nil {
		return nil, fmt.Errorf("submit frame: %w", err)
	}

	timer := t.clock.NewTimer(t.Timeout)
	defer timer.Stop()

	select {
	case c := <-ch:
		if c.Token != token {
			// The engine handed back someone else's completion.
			// Treat it like a timeout rather than misattributing.
			monitoring.Logf("[FaceTrack] dropping completion for stale token %s", c.Token)
			return nil, nil
		}
		if c.Err != nil {
			return nil, fmt.Errorf("detection failed: %w", c.Err)
		}
		// The history holds the engine's completion timestamps, which
		// live in the engine's own clock domain.
		t.recordCompletion(c.TSMs)
		return c.Result, nil
	case <-timer.C():
		monitoring.Logf("[FaceTrack] detection timed out after %v (token %s)", t.Timeout, token)
		return nil, nil
	}
}

// recordCompletion appends a completion timestamp, evicting the oldest
// entries beyond the window.
func (t *Tracker) recordCompletion(tsMs int64) {
	t.history = append(t.history, tsMs)
	if n := len(t.history) - historySize; n > 0 {
		t.history = t.history[n:]
	}
}

// FPS estimates recent throughput from the frame history. It returns 0
// until at least two frames have completed, and 0 whenever the window
// spans no forward time.
func (t *Tracker) FPS() float64 {
	if len(t.history) < 2 {
		return 0
	}
	spanMs := t.history[len(t.history)-1] - t.history[0]
	if spanMs <= 0 {
		return 0
	}
	return float64(len(t.history)-1) / (float64(spanMs) / 1000)
}
