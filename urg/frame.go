package urg

import "github.com/hokuyo/urgscip/scip"

// MaxEcho is the maximum number of echoes a multi-echo reply carries
// per step, re-exported from scip for callers that only import urg.
const MaxEcho = scip.MaxEcho

// Kind identifies the shape of a measurement reply.
type Kind = scip.Kind

const (
	KindUnknown            = scip.KindUnknown
	KindDistance           = scip.KindDistance
	KindDistanceIntensity  = scip.KindDistanceIntensity
	KindMultiecho          = scip.KindMultiecho
	KindMultiechoIntensity = scip.KindMultiechoIntensity
	KindStop               = scip.KindStop
)

// Frame is one decoded measurement reply: per-step distance (and,
// depending on Kind, intensity) samples plus the sensor-reported
// timestamp. Length/Intensity are laid out step-major with up to
// MaxEcho slots per step for multi-echo kinds (spec.md §3, §6).
type Frame struct {
	Kind Kind

	FirstStep int
	LastStep  int
	SkipStep  int

	Timestamp int

	Length    []int
	Intensity []int
}

// FrameObserver receives a copy of every successfully decoded frame,
// in addition to the caller that invoked Get. Session.SetObserver
// attaches one; it is nil by default and never required for normal
// operation (spec.md §4.E's monitor-broadcast supplement).
type FrameObserver interface {
	Observe(Frame)
}
