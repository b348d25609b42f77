// Package engine defines the face-landmark detection boundary. The
// actual landmarker runs outside the relay process; this package holds
// the asynchronous submission contract, the detection result model, and
// the transports that implement it.
package engine

import (
	"github.com/google/uuid"

	"github.com/motionlab/facerelay/internal/imgcodec"
)

// Blendshape category names emitted by the MediaPipe FaceLandmarker.
// Only the categories the relay reports are named here.
const (
	BlendEyeBlinkLeft     = "eyeBlinkLeft"
	BlendEyeBlinkRight    = "eyeBlinkRight"
	BlendJawOpen          = "jawOpen"
	BlendMouthSmileLeft   = "mouthSmileLeft"
	BlendMouthSmileRight  = "mouthSmileRight"
	BlendBrowInnerUp      = "browInnerUp"
	BlendBrowOuterUpLeft  = "browOuterUpLeft"
	BlendBrowOuterUpRight = "browOuterUpRight"
)

// Landmark is a normalized 3D facial mesh point.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Blendshape is a named facial-expression intensity score in [0,1].
type Blendshape struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Transform is a row-major homogeneous 4x4 matrix expressing the
// detected face's rigid pose relative to the camera. The upper-left 3x3
// block is the rotation.
type Transform [16]float64

// Result is a single detection outcome for the primary subject. Zero
// detected faces is a valid result, represented by an empty landmark
// set.
type Result struct {
	Landmarks   []Landmark   `json:"landmarks,omitempty"`
	Blendshapes []Blendshape `json:"blendshapes,omitempty"`
	Transform   *Transform   `json:"transform,omitempty"`
}

// HasFace reports whether the result contains a detected subject.
func (r *Result) HasFace() bool {
	return r != nil && len(r.Landmarks) > 0
}

// BlendshapeScore returns the score for a named category, or 0.0 when
// the category is absent. It never fails.
func (r *Result) BlendshapeScore(name string) float64 {
	if r == nil {
		return 0
	}
	for _, b := range r.Blendshapes {
		if b.Name == name {
			return b.Score
		}
	}
	return 0
}

// Completion is delivered when an asynchronous detection finishes. TSMs
// originates from the engine's own clock domain. Err is non-nil when the
// engine faulted on this request rather than producing a result.
type Completion struct {
	Token  uuid.UUID
	Result *Result
	TSMs   int64
	Err    error
}

// Engine is the asynchronous detection boundary. Submit must not block:
// it returns a one-shot channel on which exactly one completion for the
// submitted frame is delivered, correlated by the request token. A
// completion for a request nobody is waiting on anymore (a timed-out
// request's late result) is dropped by the engine, never delivered to a
// newer request's channel.
type Engine interface {
	Submit(frame imgcodec.Frame, tsMs int64, token uuid.UUID) (<-chan Completion, error)
	Close() error
}
