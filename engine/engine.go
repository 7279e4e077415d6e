// Package engine implements the interaction-to-sound state engine: the voice
// manager, the trajectory recorder, the multi-sequence engine and the graph
// compiler merging their outputs. All state lives in the Engine and is
// mutated only through its operations; every mutation ends with a full
// rebuild of the signal graph, which is handed to the Renderer. There is no
// incremental update path.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kosketus"
	"kosketus/asset"
)

type (
	// Assets is the engine's view of the asset registry: blocking, memoized,
	// deduplicated loads plus duration lookup of already-loaded refs.
	// *asset.Registry implements it.
	Assets interface {
		Get(ctx context.Context, ref string) (*asset.Record, error)
		Duration(ref string) float64
	}

	// Engine owns all interaction state. Operations may be called from any
	// goroutine; state mutations run under a single mutex, so they execute
	// one at a time, run to completion, and end with a graph rebuild. Asset
	// loads block the calling operation but never the engine as a whole, as
	// they happen before the lock is taken.
	Engine struct {
		assets   Assets
		renderer kosketus.Renderer

		mu           sync.Mutex
		mode         Mode
		voices       voiceManager
		trajectories trajectoryEngine
		sequences    sequenceEngine

		alertFunc func(kosketus.Alert)
		now       func() time.Time
	}

	// Mode selects which voices of the voice manager are audible: one-off
	// voices or looping voices, never both.
	Mode int
)

const (
	ModeOneOff Mode = iota
	ModeLooping
)

func New(assets Assets, renderer kosketus.Renderer) *Engine {
	e := &Engine{
		assets:   assets,
		renderer: renderer,
		now:      time.Now,
	}
	e.sequences.globalBPM = defaultBPM
	return e
}

// SetAlertFunc sets the callback receiving passive notifications. The
// callback runs with the engine lock held, so it must not call back into the
// engine.
func (e *Engine) SetAlertFunc(f func(kosketus.Alert)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alertFunc = f
}

func (e *Engine) sendAlert(name, message string, priority kosketus.AlertPriority) {
	if e.alertFunc != nil {
		e.alertFunc(kosketus.Alert{Name: name, Message: message, Priority: priority})
	}
}

// rebuild compiles all currently active sources into one signal and hands it
// to the renderer, identical on both channels. Callers must hold e.mu. A
// renderer failure is fatal to this frame only: state is not rolled back and
// the next successful rebuild supersedes it.
func (e *Engine) rebuild() {
	var parts []kosketus.Signal
	if v := e.voiceSignal(); !v.IsSilence() {
		parts = append(parts, v)
	}
	if s := e.sequenceSignal(); !s.IsSilence() {
		parts = append(parts, s)
	}
	if t := e.trajectorySignal(); !t.IsSilence() {
		parts = append(parts, t)
	}
	master := kosketus.Add(parts...)
	if err := e.renderer.Render(master, master); err != nil {
		e.sendAlert("Render", fmt.Sprintf("renderer.Render: %v", err), kosketus.Error)
	}
}

// load fetches an asset through the registry without holding the engine
// lock. A failure aborts the calling operation with a warning alert and
// leaves all prior state unchanged.
func (e *Engine) load(ctx context.Context, ref string) (*asset.Record, error) {
	rec, err := e.assets.Get(ctx, ref)
	if err != nil {
		e.mu.Lock()
		e.sendAlert("AssetLoad", err.Error(), kosketus.Warning)
		e.mu.Unlock()
		return nil, err
	}
	return rec, nil
}
