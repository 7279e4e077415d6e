package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"kosketus"
)

const defaultBPM = 120

// sequenceEngine owns the independent step sequences. Sequences are kept in
// creation order; at most one of them is the active recording target for new
// elements.
type sequenceEngine struct {
	nextID    int
	list      []*kosketus.Sequence
	activeID  int // 0 when no sequence is active
	globalBPM int
}

var errNoActiveSequence = errors.New("no sequence is active")

// AddSequence creates a new empty sequence and makes it the active recording
// target, returning its id.
func (e *Engine) AddSequence() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sequences.nextID++
	seq := &kosketus.Sequence{
		ID:        e.sequences.nextID,
		BPM:       e.sequences.globalBPM,
		BarLength: kosketus.OneBar,
		Volume:    1,
	}
	e.sequences.list = append(e.sequences.list, seq)
	e.sequences.activeID = seq.ID
	e.rebuild()
	return seq.ID
}

// RemoveSequence discards a sequence and its compiled signal.
func (e *Engine) RemoveSequence(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.sequences.list {
		if s.ID == id {
			e.sequences.list = append(e.sequences.list[:i], e.sequences.list[i+1:]...)
			if e.sequences.activeID == id {
				e.sequences.activeID = 0
			}
			e.rebuild()
			return nil
		}
	}
	return fmt.Errorf("no sequence %v", id)
}

// SetActiveSequence designates the sequence new elements are appended to,
// deactivating the previously active one. Passing 0 deactivates all.
func (e *Engine) SetActiveSequence(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id != 0 {
		if e.findSequence(id) == nil {
			return fmt.Errorf("no sequence %v", id)
		}
	}
	e.sequences.activeID = id
	return nil
}

// ActiveSequence returns the id of the active sequence, 0 when none is.
func (e *Engine) ActiveSequence() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequences.activeID
}

// AddElement appends an element for the asset to the active sequence, with
// default spacing weight, no transposition and no stretching.
func (e *Engine) AddElement(ctx context.Context, ref string) error {
	if _, err := e.load(ctx, ref); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	seq := e.findSequence(e.sequences.activeID)
	if seq == nil {
		return errNoActiveSequence
	}
	seq.Elements = append(seq.Elements, kosketus.SequenceElement{
		Ref:      ref,
		Offset:   1,
		Stretch:  1,
		Duration: 1,
	})
	e.rebuild()
	return nil
}

// RemoveElement removes element index from a sequence.
func (e *Engine) RemoveElement(id, index int) error {
	return e.updateSequence(id, func(s *kosketus.Sequence) error {
		if index < 0 || index >= len(s.Elements) {
			return fmt.Errorf("no element %v in sequence %v", index, id)
		}
		s.Elements = append(s.Elements[:index], s.Elements[index+1:]...)
		return nil
	})
}

// SetElementOffset sets the relative spacing weight of one element.
func (e *Engine) SetElementOffset(id, index int, offset float64) error {
	return e.updateElement(id, index, func(el *kosketus.SequenceElement) {
		el.Offset = offset
	})
}

// SetElementShift sets the pitch transposition of one element, in semitones.
func (e *Engine) SetElementShift(id, index int, semitones float64) error {
	return e.updateElement(id, index, func(el *kosketus.SequenceElement) {
		el.Shift = semitones
	})
}

// SetElementStretch sets the time stretch factor of one element.
func (e *Engine) SetElementStretch(id, index int, stretch float64) error {
	return e.updateElement(id, index, func(el *kosketus.SequenceElement) {
		el.Stretch = stretch
	})
}

// SetElementDuration sets the duration multiplier of one element.
func (e *Engine) SetElementDuration(id, index int, duration float64) error {
	return e.updateElement(id, index, func(el *kosketus.SequenceElement) {
		el.Duration = duration
	})
}

// SetSequenceBPM sets the tempo of one sequence.
func (e *Engine) SetSequenceBPM(id, bpm int) error {
	return e.updateSequence(id, func(s *kosketus.Sequence) error {
		if bpm < 1 {
			return errors.New("BPM should be > 0")
		}
		s.BPM = bpm
		return nil
	})
}

// SetBarLength sets the cycle length of one sequence.
func (e *Engine) SetBarLength(id int, bars kosketus.BarLength) error {
	return e.updateSequence(id, func(s *kosketus.Sequence) error {
		s.BarLength = bars
		return nil
	})
}

// SetVolume sets the volume of one sequence, clamped to [0,1].
func (e *Engine) SetVolume(id int, volume float64) error {
	return e.updateSequence(id, func(s *kosketus.Sequence) error {
		s.Volume = math.Min(math.Max(volume, 0), 1)
		return nil
	})
}

// SetStartOffset sets the fraction of the cycle before the first element,
// clamped to [0,1].
func (e *Engine) SetStartOffset(id int, offset float64) error {
	return e.updateSequence(id, func(s *kosketus.Sequence) error {
		s.StartOffset = math.Min(math.Max(offset, 0), 1)
		return nil
	})
}

// SetMuted mutes or unmutes one sequence.
func (e *Engine) SetMuted(id int, muted bool) error {
	return e.updateSequence(id, func(s *kosketus.Sequence) error {
		s.Muted = muted
		return nil
	})
}

// SetSolo solos or unsolos one sequence. While any sequence is soloed, all
// non-soloed sequences are forced silent.
func (e *Engine) SetSolo(id int, solo bool) error {
	return e.updateSequence(id, func(s *kosketus.Sequence) error {
		s.Solo = solo
		return nil
	})
}

// SetGlobalBPM propagates a tempo to every sequence.
func (e *Engine) SetGlobalBPM(bpm int) error {
	if bpm < 1 {
		return errors.New("BPM should be > 0")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sequences.globalBPM = bpm
	for _, s := range e.sequences.list {
		s.BPM = bpm
	}
	e.rebuild()
	return nil
}

// Sequences returns copies of all sequences, oldest first.
func (e *Engine) Sequences() []kosketus.Sequence {
	e.mu.Lock()
	defer e.mu.Unlock()
	ret := make([]kosketus.Sequence, len(e.sequences.list))
	for i, s := range e.sequences.list {
		ret[i] = s.Copy()
	}
	return ret
}

// findSequence returns the sequence with the id, or nil. Callers must hold
// e.mu.
func (e *Engine) findSequence(id int) *kosketus.Sequence {
	for _, s := range e.sequences.list {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (e *Engine) updateSequence(id int, f func(*kosketus.Sequence) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	seq := e.findSequence(id)
	if seq == nil {
		return fmt.Errorf("no sequence %v", id)
	}
	if err := f(seq); err != nil {
		return err
	}
	e.rebuild()
	return nil
}

func (e *Engine) updateElement(id, index int, f func(*kosketus.SequenceElement)) error {
	return e.updateSequence(id, func(s *kosketus.Sequence) error {
		if index < 0 || index >= len(s.Elements) {
			return fmt.Errorf("no element %v in sequence %v", index, id)
		}
		f(&s.Elements[index])
		return nil
	})
}

// sequenceSignal sums the compiled signals of all sequences. Callers must
// hold e.mu.
func (e *Engine) sequenceSignal() kosketus.Signal {
	anySolo := false
	for _, s := range e.sequences.list {
		if s.Solo {
			anySolo = true
			break
		}
	}
	var sigs []kosketus.Signal
	for _, s := range e.sequences.list {
		if sig := compileSequence(s, anySolo, e.assets.Duration); !sig.IsSilence() {
			sigs = append(sigs, sig)
		}
	}
	if len(sigs) == 0 {
		return kosketus.Silence()
	}
	return kosketus.Add(sigs...)
}

// compileSequence builds the looping step player of one sequence. Every
// element gets a gate window on a shared cycle ramp so that all elements stay
// phase-locked; the window opens at the element's normalized position and the
// triggered player then sounds for its full sample length regardless of when
// the gate closes, so a step is never shorter than its sample even if that
// overlaps the next cycle. Pitch shift and time stretch are realized as
// playback rate factors.
func compileSequence(s *kosketus.Sequence, anySolo bool, duration func(ref string) float64) kosketus.Signal {
	if !s.Audible(anySolo) || len(s.Elements) == 0 {
		return kosketus.Silence()
	}
	cycleLen := s.DurationSeconds()
	if cycleLen <= 0 || s.Volume <= 0 {
		return kosketus.Silence()
	}
	positions := s.Positions()
	cycle := kosketus.Cycle(fmt.Sprintf("seq:%d", s.ID), cycleLen)
	sigs := make([]kosketus.Signal, 0, len(s.Elements))
	for i, el := range s.Elements {
		start := s.StartOffset*cycleLen + positions[i]*(1-s.StartOffset)*cycleLen
		end := start + duration(el.Ref)
		if end < cycleLen {
			end = cycleLen
		}
		// a window covering the whole cycle would keep the gate high across
		// the ramp wrap and the player would never see a fresh trigger edge;
		// close it mid-cycle, the player keeps sounding past its gate anyway
		if start == 0 {
			end = cycleLen / 2
		}
		rate := math.Pow(2, el.Shift/12)
		if el.Stretch > 0 {
			rate /= el.Stretch
		}
		durScale := el.Duration
		if durScale <= 0 {
			durScale = 1
		}
		gate := kosketus.Window(start, end, cycle)
		key := fmt.Sprintf("seq:%d:el:%d", s.ID, i)
		sigs = append(sigs, kosketus.Sampler(key, el.Ref, kosketus.SamplerTrigger, rate, durScale, gate))
	}
	return kosketus.Gain(s.Volume/kosketus.MaxVoices, kosketus.Add(sigs...))
}
