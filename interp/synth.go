// Package interp is a reference Renderer: it compiles declarative signal
// graphs into small programs of stateful units and evaluates them block by
// block into stereo float32 audio. Unit state (clock phases, sample playback
// positions) is carried across graph rebuilds by the node Key, so swapping in
// a recompiled graph does not restart already-sounding sources.
package interp

import (
	"errors"
	"fmt"
	"sync"

	"kosketus"
)

// SampleRate is the output sample rate of the interpreter.
const SampleRate = 44100

// blockSize is the internal evaluation block length, in frames.
const blockSize = 512

type (
	// Synth implements kosketus.Renderer. The two channels are evaluated as
	// independent programs with independent state namespaces; since the
	// engines render the identical signal to both channels, the channels stay
	// sample-exact copies of each other.
	Synth struct {
		mu      sync.Mutex
		samples map[string]kosketus.SampleData
		chans   [2]channel
	}

	channel struct {
		program *unit
		order   []*unit
		states  map[string]interface{}
	}
)

func NewSynth() *Synth {
	return &Synth{samples: make(map[string]kosketus.SampleData)}
}

// RegisterAsset makes a decoded sample buffer available to sampler nodes.
// Each ref can be registered only once; the buffer is immutable afterwards.
func (s *Synth) RegisterAsset(ref string, data kosketus.SampleData) error {
	if ref == "" {
		return errors.New("asset ref cannot be empty")
	}
	if data.SampleRate <= 0 {
		return fmt.Errorf("asset %q has invalid sample rate %v", ref, data.SampleRate)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.samples[ref]; ok {
		return fmt.Errorf("asset %q is already registered", ref)
	}
	s.samples[ref] = data
	return nil
}

// Render replaces the current graphs with newly compiled ones. The old
// programs keep playing until Render returns, and keyed unit states move over
// to the new programs.
func (s *Synth) Render(left, right kosketus.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next [2]channel
	for i, sig := range [2]kosketus.Signal{left, right} {
		c := compiler{
			samples:   s.samples,
			oldStates: s.chans[i].states,
			states:    make(map[string]interface{}),
		}
		root, err := c.compile(sig)
		if err != nil {
			return fmt.Errorf("could not compile channel %d: %w", i, err)
		}
		next[i] = channel{program: root, order: c.order, states: c.states}
	}
	s.chans = next
	return nil
}

// Process fills the buffer with the next frames of the current graphs. An
// empty graph produces silence.
func (s *Synth) Process(buffer kosketus.AudioBuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(buffer) > 0 {
		n := len(buffer)
		if n > blockSize {
			n = blockSize
		}
		for ci := range s.chans {
			out := s.chans[ci].run(n)
			for i := 0; i < n; i++ {
				buffer[i][ci] = out[i]
			}
		}
		buffer = buffer[n:]
	}
}

func (c *channel) run(n int) []float32 {
	if c.program == nil {
		return make([]float32, n)
	}
	for _, u := range c.order {
		u.proc.process(u.out[:n], u.inBufs(n))
	}
	return c.program.out[:n]
}
