// Package pose converts a detection result's geometry into a 3-axis
// head pose in degrees. The transformation-matrix path is authoritative;
// the landmark path is a coarse fallback for results without a matrix.
package pose

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/motionlab/facerelay/internal/engine"
)

// MediaPipe FaceLandmarker mesh indices used by the landmark fallback.
const (
	NoseTip             = 1
	LeftEyeOuterCorner  = 33
	RightEyeOuterCorner = 263
)

// singularEps is the gimbal-lock threshold for the Euler extraction.
const singularEps = 1e-6

// Angles is a head pose in degrees.
type Angles struct {
	YawDeg   float64
	PitchDeg float64
	RollDeg  float64
}

// FromTransform decomposes the rotation block of a row-major 4x4 facial
// transformation matrix into X-Y-Z Euler angles. In the singular (gimbal
// lock) regime roll is reported as exactly zero.
func FromTransform(tm engine.Transform) Angles {
	m := mat.NewDense(4, 4, append([]float64(nil), tm[:]...))

	r00, r10, r20 := m.At(0, 0), m.At(1, 0), m.At(2, 0)
	sy := math.Hypot(r00, r10)

	if sy < singularEps {
		return Angles{
			YawDeg:   degrees(math.Atan2(-r20, sy)),
			PitchDeg: degrees(math.Atan2(-m.At(1, 2), m.At(1, 1))),
			RollDeg:  0,
		}
	}
	return Angles{
		YawDeg:   degrees(math.Atan2(-r20, sy)),
		PitchDeg: degrees(math.Atan2(m.At(2, 1), m.At(2, 2))),
		RollDeg:  degrees(math.Atan2(r10, r00)),
	}
}

// FromLandmarks estimates the pose from the eye-to-eye vector and the
// nose tip. This is an approximation, not a rigorous solve: it assumes
// the eye line dominates yaw/roll and uses the nose depth for pitch.
func FromLandmarks(landmarks []engine.Landmark) (Angles, error) {
	if len(landmarks) <= RightEyeOuterCorner {
		return Angles{}, fmt.Errorf("landmark set too small for pose estimate: %d points", len(landmarks))
	}
	left := landmarks[LeftEyeOuterCorner]
	right := landmarks[RightEyeOuterCorner]
	nose := landmarks[NoseTip]

	vx := right.X - left.X
	vy := right.Y - left.Y
	vz := right.Z - left.Z

	return Angles{
		YawDeg:   degrees(math.Atan2(vz, vx)),
		PitchDeg: degrees(math.Atan2(nose.Z, vy)),
		RollDeg:  degrees(math.Atan2(vy, vx)),
	}, nil
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
