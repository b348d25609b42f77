// Package payload assembles the per-frame tracking message sent back to
// clients.
package payload

import (
	"math"

	"github.com/motionlab/facerelay/internal/engine"
	"github.com/motionlab/facerelay/internal/pose"
	"github.com/motionlab/facerelay/internal/wire"
)

// Pose is the head orientation block of a payload.
type Pose struct {
	YawDeg   float64 `json:"yawDeg"`
	PitchDeg float64 `json:"pitchDeg"`
	RollDeg  float64 `json:"rollDeg"`
}

// Eye reports per-eye openness in [0,1], where 1 is fully open.
type Eye struct {
	LeftOpen  float64 `json:"leftOpen"`
	RightOpen float64 `json:"rightOpen"`
}

// Mouth reports jaw openness and smile intensity in [0,1].
type Mouth struct {
	Open  float64 `json:"open"`
	Smile float64 `json:"smile"`
}

// Brow reports per-brow raise intensity in [0,1].
type Brow struct {
	LeftUp  float64 `json:"leftUp"`
	RightUp float64 `json:"rightUp"`
}

// Debug carries server-side diagnostics alongside the tracking data.
// LatencyMs stays 0 when the client declared no capture timestamp.
type Debug struct {
	ServerFPS float64 `json:"serverFps"`
	LatencyMs int64   `json:"latencyMs"`
}

// Payload is one tracking message. TS echoes the capture timestamp of the
// frame it describes so clients can correlate requests and responses.
type Payload struct {
	TS      int64 `json:"ts"`
	Present bool  `json:"present"`
	Pose    Pose  `json:"pose"`
	Eye     Eye   `json:"eye"`
	Mouth   Mouth `json:"mouth"`
	Brow    Brow  `json:"brow"`
	Debug   Debug `json:"debug"`
}

// Empty returns the no-face payload for a frame captured at tsMs. Eyes
// default to fully open so an absent face does not read as a blink.
func Empty(tsMs int64) Payload {
	return Payload{
		TS:  tsMs,
		Eye: Eye{LeftOpen: 1, RightOpen: 1},
	}
}

// Build assembles a payload from a detection result. A nil result, or one
// without a face, yields the Empty shape with diagnostics attached.
func Build(result *engine.Result, hdr wire.Header, serverFPS float64, nowMs int64) Payload {
	tsMs := hdr.CaptureTS(nowMs)

	p := Empty(tsMs)
	p.Debug.ServerFPS = serverFPS
	if hdr.TS != nil {
		if latency := nowMs - *hdr.TS; latency > 0 {
			p.Debug.LatencyMs = latency
		}
	}
	if result == nil || !result.HasFace() {
		return p
	}

	p.Present = true
	if result.Transform != nil {
		a := pose.FromTransform(*result.Transform)
		p.Pose = Pose{YawDeg: a.YawDeg, PitchDeg: a.PitchDeg, RollDeg: a.RollDeg}
	} else if a, err := pose.FromLandmarks(result.Landmarks); err == nil {
		p.Pose = Pose{YawDeg: a.YawDeg, PitchDeg: a.PitchDeg, RollDeg: a.RollDeg}
	}

	p.Eye = Eye{
		LeftOpen:  clamp01(1 - result.BlendshapeScore(engine.BlendEyeBlinkLeft)),
		RightOpen: clamp01(1 - result.BlendshapeScore(engine.BlendEyeBlinkRight)),
	}
	p.Mouth = Mouth{
		Open: clamp01(result.BlendshapeScore(engine.BlendJawOpen)),
		Smile: clamp01((result.BlendshapeScore(engine.BlendMouthSmileLeft) +
			result.BlendshapeScore(engine.BlendMouthSmileRight)) / 2),
	}
	inner := result.BlendshapeScore(engine.BlendBrowInnerUp)
	p.Brow = Brow{
		LeftUp:  clamp01(math.Max(inner, result.BlendshapeScore(engine.BlendBrowOuterUpLeft))),
		RightUp: clamp01(math.Max(inner, result.BlendshapeScore(engine.BlendBrowOuterUpRight))),
	}
	return p
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
