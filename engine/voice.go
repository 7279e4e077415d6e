package engine

import (
	"context"
	"fmt"
	"time"

	"kosketus"
)

type (
	// voiceManager owns the one-off and looping voices. One-off voices are
	// kept in insertion order; when the bound is exceeded the oldest still
	// active voice is evicted. Looping voices are keyed by asset ref, at most
	// one per ref, also in insertion order so that rebuilds stay
	// deterministic.
	voiceManager struct {
		nextID  int
		oneOffs []oneOffVoice
		loops   []string
	}

	oneOffVoice struct {
		id    int
		ref   string
		timer *time.Timer
	}
)

// PlayOneOff starts a one-off voice for the asset. The voice expires by
// itself after the asset's duration, or earlier if it gets evicted to keep
// the active voice count within MaxVoices.
func (e *Engine) PlayOneOff(ctx context.Context, ref string) error {
	rec, err := e.load(ctx, ref)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.voices.oneOffs) >= kosketus.MaxVoices {
		e.evictOldestVoice()
	}
	id := e.voices.nextID
	e.voices.nextID++
	duration := time.Duration(rec.Duration * float64(time.Second))
	timer := time.AfterFunc(duration, func() { e.expireVoice(id) })
	e.voices.oneOffs = append(e.voices.oneOffs, oneOffVoice{id: id, ref: ref, timer: timer})
	e.rebuild()
	return nil
}

// evictOldestVoice removes the least recently added one-off voice, cancelling
// its expiry timer so the timer cannot fire against a reused slot later.
// Callers must hold e.mu.
func (e *Engine) evictOldestVoice() {
	if len(e.voices.oneOffs) == 0 {
		return
	}
	e.voices.oneOffs[0].timer.Stop()
	e.voices.oneOffs = e.voices.oneOffs[1:]
}

// expireVoice is the timer callback removing a one-off voice once its sample
// has played out. The voice may have been evicted already, in which case the
// id is gone and there is nothing to do.
func (e *Engine) expireVoice(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, v := range e.voices.oneOffs {
		if v.id == id {
			e.voices.oneOffs = append(e.voices.oneOffs[:i], e.voices.oneOffs[i+1:]...)
			e.rebuild()
			return
		}
	}
}

// ToggleLoop toggles continuous looping playback of the asset: on when it was
// off, off when it was on. Returns whether the asset is looping afterwards.
func (e *Engine) ToggleLoop(ctx context.Context, ref string) (bool, error) {
	if _, err := e.load(ctx, ref); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, r := range e.voices.loops {
		if r == ref {
			e.voices.loops = append(e.voices.loops[:i], e.voices.loops[i+1:]...)
			e.rebuild()
			return false, nil
		}
	}
	e.voices.loops = append(e.voices.loops, ref)
	e.rebuild()
	return true, nil
}

// IsLooping reports whether the asset currently has a looping voice.
func (e *Engine) IsLooping(ref string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.voices.loops {
		if r == ref {
			return true
		}
	}
	return false
}

// Mode returns the current exploration mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode switches between the one-off and looping exploration modes. All
// looping voices are cleared on any mode change; one-off voices and the other
// engines are unaffected.
func (e *Engine) SetMode(mode Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = mode
	e.voices.loops = nil
	e.rebuild()
}

// ActiveOneOffs returns the refs of the active one-off voices, oldest first.
func (e *Engine) ActiveOneOffs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	refs := make([]string, len(e.voices.oneOffs))
	for i, v := range e.voices.oneOffs {
		refs[i] = v.ref
	}
	return refs
}

// voiceSignal compiles the mode-selected voice mix: looping voices in looping
// mode, one-off voices otherwise, never both. Callers must hold e.mu.
func (e *Engine) voiceSignal() kosketus.Signal {
	var sigs []kosketus.Signal
	switch e.mode {
	case ModeLooping:
		for _, ref := range e.voices.loops {
			sigs = append(sigs, kosketus.Sampler("loop:"+ref, ref, kosketus.SamplerLoop, 1, 1, kosketus.Const(1)))
		}
	default:
		for _, v := range e.voices.oneOffs {
			key := fmt.Sprintf("voice:%d", v.id)
			sigs = append(sigs, kosketus.Sampler(key, v.ref, kosketus.SamplerOnce, 1, 1, kosketus.Const(1)))
		}
	}
	if len(sigs) == 0 {
		return kosketus.Silence()
	}
	return kosketus.Gain(1.0/kosketus.MaxVoices, kosketus.Add(sigs...))
}
