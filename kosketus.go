// Package kosketus implements an interaction-to-sound state engine: short
// sound events triggered from discrete elements become one-off or looping
// voices, timed triggering gestures can be recorded and replayed as looping
// trajectories, and sounds can be arranged into independent tempo-quantized
// step sequences. Every state change compiles the currently active sources
// into a single declarative Signal graph which is handed to a Renderer.
//
// The root package contains the pure domain types and the collaborator
// interfaces; package engine holds the state engines, package asset the
// memoizing sample loader, and package interp a reference Renderer.
package kosketus

import "context"

// MaxVoices bounds the number of simultaneously active one-off voices. It is
// also the denominator of the gain scaling applied to every compiled source,
// so that the summed output level stays bounded.
const MaxVoices = 4

type (
	// SampleData is a decoded mono sample buffer.
	SampleData struct {
		Samples    []float32
		SampleRate int
	}

	// AssetLoader fetches and decodes the raw audio resource behind a ref.
	// Load is allowed to block; failures are recoverable and abort only the
	// operation that needed the asset.
	AssetLoader interface {
		Load(ctx context.Context, ref string) (SampleData, error)
	}

	// Renderer accepts compiled signal graphs and produces real-time audio.
	// RegisterAsset must have been called for every ref a graph references
	// before that graph is rendered; registering the same ref twice is an
	// error left to the implementation.
	Renderer interface {
		RegisterAsset(ref string, data SampleData) error
		Render(left, right Signal) error
	}
)

// Duration returns the length of the sample in seconds.
func (d SampleData) Duration() float64 {
	if d.SampleRate <= 0 {
		return 0
	}
	return float64(len(d.Samples)) / float64(d.SampleRate)
}
