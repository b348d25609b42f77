package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motionlab/facerelay/internal/imgcodec"
	"github.com/motionlab/facerelay/internal/timeutil"
)

func TestBlendshapeScore(t *testing.T) {
	t.Parallel()
	r := &Result{Blendshapes: []Blendshape{
		{Name: BlendJawOpen, Score: 0.6},
		{Name: BlendEyeBlinkLeft, Score: 0.2},
	}}
	assert.Equal(t, 0.6, r.BlendshapeScore(BlendJawOpen))
	assert.Equal(t, 0.2, r.BlendshapeScore(BlendEyeBlinkLeft))
	assert.Equal(t, 0.0, r.BlendshapeScore("noSuchCategory"))

	var nilResult *Result
	assert.Equal(t, 0.0, nilResult.BlendshapeScore(BlendJawOpen))
}

func TestHasFace(t *testing.T) {
	t.Parallel()
	assert.False(t, (*Result)(nil).HasFace())
	assert.False(t, (&Result{}).HasFace())
	assert.True(t, (&Result{Landmarks: []Landmark{{}}}).HasFace())
}

func TestMQTTDispatchCorrelatesByToken(t *testing.T) {
	t.Parallel()
	e := &MQTTEngine{pending: make(map[uuid.UUID]pendingRequest)}

	token := uuid.New()
	ch := make(chan Completion, 1)
	e.pending[token] = pendingRequest{ch: ch, submitted: time.Now()}

	payload, err := json.Marshal(detectResponse{
		Token: token.String(),
		TSMs:  1234,
		Result: &Result{
			Landmarks:   []Landmark{{X: 0.5, Y: 0.5, Z: 0}},
			Blendshapes: []Blendshape{{Name: BlendJawOpen, Score: 0.4}},
		},
	})
	require.NoError(t, err)

	e.dispatch(payload)

	select {
	case c := <-ch:
		assert.Equal(t, token, c.Token)
		assert.Equal(t, int64(1234), c.TSMs)
		assert.NoError(t, c.Err)
		require.True(t, c.Result.HasFace())
	default:
		t.Fatal("completion was not delivered")
	}
	assert.Empty(t, e.pending, "answered request should leave the pending map")
}

func TestMQTTDispatchDropsUnknownToken(t *testing.T) {
	t.Parallel()
	e := &MQTTEngine{pending: make(map[uuid.UUID]pendingRequest)}

	payload, err := json.Marshal(detectResponse{Token: uuid.NewString(), TSMs: 1})
	require.NoError(t, err)
	e.dispatch(payload) // must not panic or deliver anywhere
}

func TestMQTTDispatchSurfacesEngineFault(t *testing.T) {
	t.Parallel()
	e := &MQTTEngine{pending: make(map[uuid.UUID]pendingRequest)}

	token := uuid.New()
	ch := make(chan Completion, 1)
	e.pending[token] = pendingRequest{ch: ch, submitted: time.Now()}

	payload, err := json.Marshal(detectResponse{Token: token.String(), Error: "model blew up"})
	require.NoError(t, err)
	e.dispatch(payload)

	c := <-ch
	require.Error(t, c.Err)
	assert.Contains(t, c.Err.Error(), "model blew up")
}

func TestMQTTPurgeStale(t *testing.T) {
	t.Parallel()
	e := &MQTTEngine{pending: make(map[uuid.UUID]pendingRequest)}
	old := uuid.New()
	fresh := uuid.New()
	e.pending[old] = pendingRequest{ch: make(chan Completion, 1), submitted: time.Now().Add(-time.Minute)}
	e.pending[fresh] = pendingRequest{ch: make(chan Completion, 1), submitted: time.Now()}

	e.mu.Lock()
	e.purgeStaleLocked()
	e.mu.Unlock()

	assert.NotContains(t, e.pending, old)
	assert.Contains(t, e.pending, fresh)
}

func TestSyntheticCompletesImmediately(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.UnixMilli(5000))
	s := NewSynthetic(clock)
	s.SetResult(&Result{Landmarks: []Landmark{{X: 0.1}}})

	token := uuid.New()
	ch, err := s.Submit(imgcodec.Frame{}, 100, token)
	require.NoError(t, err)

	c := <-ch
	assert.Equal(t, token, c.Token)
	assert.Equal(t, int64(5000), c.TSMs)
	assert.True(t, c.Result.HasFace())
}
