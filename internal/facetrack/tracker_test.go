package facetrack

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motionlab/facerelay/internal/engine"
	"github.com/motionlab/facerelay/internal/imgcodec"
	"github.com/motionlab/facerelay/internal/timeutil"
)

// scriptedEngine answers each Submit according to its mode.
type scriptedEngine struct {
	result     *engine.Result
	err        error
	submitErr  error
	silent     bool
	wrongToken bool
	submits    int
}

func (e *scriptedEngine) Submit(_ imgcodec.Frame, tsMs int64, token uuid.UUID) (<-chan engine.Completion, error) {
	e.submits++
	if e.submitErr != nil {
		return nil, e.submitErr
	}
	ch := make(chan engine.Completion, 1)
	if e.silent {
		return ch, nil
	}
	if e.wrongToken {
		token = uuid.New()
	}
	ch <- engine.Completion{Token: token, Result: e.result, TSMs: tsMs, Err: e.err}
	return ch, nil
}

func (e *scriptedEngine) Close() error { return nil }

func faceResult() *engine.Result {
	return &engine.Result{Landmarks: make([]engine.Landmark, 478)}
}

func TestProcessSuccess(t *testing.T) {
	t.Parallel()

	eng := &scriptedEngine{result: faceResult()}
	tr := New(eng, timeutil.RealClock{})

	result, err := tr.Process(imgcodec.Frame{}, 1000)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.HasFace())
	assert.Equal(t, 1, eng.submits)
}

func TestProcessTimeout(t *testing.T) {
	t.Parallel()

	eng := &scriptedEngine{silent: true}
	clock := timeutil.NewMockClock(time.UnixMilli(0))
	tr := New(eng, clock)

	// Process blocks on the deadline timer; fire it once it is armed.
	go func() {
		for clock.TimerCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		clock.Advance(DetectTimeout)
	}()

	result, err := tr.Process(imgcodec.Frame{}, 1000)
	require.NoError(t, err)
	assert.Nil(t, result)
	// Timed-out frames do not count toward throughput.
	assert.Equal(t, 0.0, tr.FPS())
}

func TestProcessStaleToken(t *testing.T) {
	t.Parallel()

	eng := &scriptedEngine{result: faceResult(), wrongToken: true}
	// The mismatched completion is rejected without consulting the
	// timer, so the mock clock never needs advancing.
	tr := New(eng, timeutil.NewMockClock(time.UnixMilli(0)))

	result, err := tr.Process(imgcodec.Frame{}, 1000)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 0.0, tr.FPS())
}

func TestProcessEngineFault(t *testing.T) {
	t.Parallel()

	eng := &scriptedEngine{err: errors.New("model crashed")}
	tr := New(eng, timeutil.RealClock{})

	_, err := tr.Process(imgcodec.Frame{}, 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model crashed")
	assert.Equal(t, 0.0, tr.FPS())
}

func TestProcessSubmitError(t *testing.T) {
	t.Parallel()

	eng := &scriptedEngine{submitErr: errors.New("broker unreachable")}
	tr := New(eng, timeutil.RealClock{})

	_, err := tr.Process(imgcodec.Frame{}, 1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submit frame")
}

func TestFPS(t *testing.T) {
	t.Parallel()

	eng := &scriptedEngine{result: faceResult()}
	tr := New(eng, timeutil.RealClock{})

	assert.Equal(t, 0.0, tr.FPS())

	_, err := tr.Process(imgcodec.Frame{}, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0.0, tr.FPS(), "one frame is not enough for a rate")

	for _, ts := range []int64{1100, 1200} {
		_, err := tr.Process(imgcodec.Frame{}, ts)
		require.NoError(t, err)
	}
	// Three frames over 200ms.
	assert.InDelta(t, 10.0, tr.FPS(), 1e-9)
}

func TestFPSZeroSpan(t *testing.T) {
	t.Parallel()

	eng := &scriptedEngine{result: faceResult()}
	tr := New(eng, timeutil.RealClock{})

	for i := 0; i < 3; i++ {
		_, err := tr.Process(imgcodec.Frame{}, 2000)
		require.NoError(t, err)
	}
	assert.Equal(t, 0.0, tr.FPS())
}

func TestHistoryBounded(t *testing.T) {
	t.Parallel()

	eng := &scriptedEngine{result: faceResult()}
	tr := New(eng, timeutil.RealClock{})

	for i := 0; i < 40; i++ {
		_, err := tr.Process(imgcodec.Frame{}, int64(i)*100)
		require.NoError(t, err)
	}
	require.Len(t, tr.history, 30)
	// Oldest entries were evicted: window now spans frames 10..39.
	assert.Equal(t, int64(1000), tr.history[0])
	assert.Equal(t, int64(3900), tr.history[len(tr.history)-1])
}
