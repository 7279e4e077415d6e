package interp

import (
	"fmt"
	"testing"

	"kosketus"
)

func renderBoth(t *testing.T, s *Synth, sig kosketus.Signal) {
	t.Helper()
	if err := s.Render(sig, sig); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
}

func process(s *Synth, frames int) kosketus.AudioBuffer {
	buffer := make(kosketus.AudioBuffer, frames)
	s.Process(buffer)
	return buffer
}

func registerRamp(t *testing.T, s *Synth, ref string, values ...float32) {
	t.Helper()
	err := s.RegisterAsset(ref, kosketus.SampleData{Samples: values, SampleRate: SampleRate})
	if err != nil {
		t.Fatalf("RegisterAsset failed: %v", err)
	}
}

func expectFrames(t *testing.T, buffer kosketus.AudioBuffer, expected ...float32) {
	t.Helper()
	if len(buffer) != len(expected) {
		t.Fatalf("expected %v frames, got %v", len(expected), len(buffer))
	}
	for i, want := range expected {
		if buffer[i][0] != want {
			t.Fatalf("frame %v: expected %v, got %v", i, want, buffer[i][0])
		}
		if buffer[i][1] != buffer[i][0] {
			t.Fatalf("frame %v: channels differ: %v vs %v", i, buffer[i][0], buffer[i][1])
		}
	}
}

func TestConstMath(t *testing.T) {
	s := NewSynth()
	renderBoth(t, s, kosketus.Gain(0.5, kosketus.Add(kosketus.Const(1), kosketus.Const(2))))
	expectFrames(t, process(s, 4), 1.5, 1.5, 1.5, 1.5)
}

func TestEmptyGraphIsSilent(t *testing.T) {
	s := NewSynth()
	expectFrames(t, process(s, 3), 0, 0, 0)
	renderBoth(t, s, kosketus.Silence())
	expectFrames(t, process(s, 3), 0, 0, 0)
}

func TestProcessSpansBlocks(t *testing.T) {
	s := NewSynth()
	renderBoth(t, s, kosketus.Const(1))
	buffer := process(s, blockSize*2+7)
	for i, frame := range buffer {
		if frame[0] != 1 || frame[1] != 1 {
			t.Fatalf("frame %v: expected 1, got %v", i, frame)
		}
	}
}

func TestRegisterAssetValidation(t *testing.T) {
	s := NewSynth()
	if err := s.RegisterAsset("", kosketus.SampleData{SampleRate: 44100}); err == nil {
		t.Errorf("empty ref should be rejected")
	}
	if err := s.RegisterAsset("a", kosketus.SampleData{}); err == nil {
		t.Errorf("zero sample rate should be rejected")
	}
	registerRamp(t, s, "a", 1)
	if err := s.RegisterAsset("a", kosketus.SampleData{Samples: []float32{1}, SampleRate: 44100}); err == nil {
		t.Errorf("duplicate registration should be rejected")
	}
}

func TestRenderUnregisteredAssetKeepsOldGraph(t *testing.T) {
	s := NewSynth()
	renderBoth(t, s, kosketus.Const(1))
	bad := kosketus.Sampler("k", "missing", kosketus.SamplerOnce, 1, 1, kosketus.Const(1))
	if err := s.Render(bad, bad); err == nil {
		t.Fatalf("rendering an unregistered asset should fail")
	}
	// the failed swap leaves the previous program playing
	expectFrames(t, process(s, 2), 1, 1)
}

func TestSamplerOnce(t *testing.T) {
	s := NewSynth()
	registerRamp(t, s, "ramp", 1, 2, 3, 4)
	renderBoth(t, s, kosketus.Sampler("v", "ramp", kosketus.SamplerOnce, 1, 1, kosketus.Const(1)))
	// the constant-high gate rises on the very first frame, the sample plays
	// through once and never restarts
	expectFrames(t, process(s, 6), 1, 2, 3, 4, 0, 0)
	expectFrames(t, process(s, 2), 0, 0)
}

func TestSamplerOnceIgnoresLaterEdges(t *testing.T) {
	s := NewSynth()
	registerRamp(t, s, "ramp", 1, 2)
	play := kosketus.Sampler("v", "ramp", kosketus.SamplerOnce, 1, 1, kosketus.Const(1))
	renderBoth(t, s, play)
	expectFrames(t, process(s, 3), 1, 2, 0)
	// drop the gate and raise it again under the same key
	renderBoth(t, s, kosketus.Sampler("v", "ramp", kosketus.SamplerOnce, 1, 1, kosketus.Const(0)))
	process(s, 2)
	renderBoth(t, s, play)
	expectFrames(t, process(s, 2), 0, 0)
}

func TestSamplerLoop(t *testing.T) {
	s := NewSynth()
	registerRamp(t, s, "ramp", 1, 2, 3)
	// a looping sampler plays regardless of its gate
	renderBoth(t, s, kosketus.Sampler("l", "ramp", kosketus.SamplerLoop, 1, 1, kosketus.Const(0)))
	expectFrames(t, process(s, 7), 1, 2, 3, 1, 2, 3, 1)
}

func TestSamplerTriggerRestarts(t *testing.T) {
	s := NewSynth()
	registerRamp(t, s, "ramp", 1, 2, 3)
	high := kosketus.Sampler("v", "ramp", kosketus.SamplerTrigger, 1, 1, kosketus.Const(1))
	low := kosketus.Sampler("v", "ramp", kosketus.SamplerTrigger, 1, 1, kosketus.Const(0))
	renderBoth(t, s, high)
	expectFrames(t, process(s, 4), 1, 2, 3, 0)
	// no new rising edge, no restart
	renderBoth(t, s, high)
	expectFrames(t, process(s, 2), 0, 0)
	// gate low then high again restarts from the beginning
	renderBoth(t, s, low)
	process(s, 1)
	renderBoth(t, s, high)
	expectFrames(t, process(s, 3), 1, 2, 3)
}

func TestSamplerRate(t *testing.T) {
	s := NewSynth()
	registerRamp(t, s, "ramp", 0, 2)
	renderBoth(t, s, kosketus.Sampler("v", "ramp", kosketus.SamplerOnce, 0.5, 1, kosketus.Const(1)))
	// half rate reads the buffer at half speed with linear interpolation
	buffer := process(s, 3)
	if buffer[0][0] != 0 || buffer[1][0] != 1 || buffer[2][0] != 2 {
		t.Errorf("expected interpolated frames [0 1 2], got %v %v %v",
			buffer[0][0], buffer[1][0], buffer[2][0])
	}
}

func TestSamplerDurationScale(t *testing.T) {
	s := NewSynth()
	registerRamp(t, s, "ramp", 1, 2, 3, 4)
	renderBoth(t, s, kosketus.Sampler("v", "ramp", kosketus.SamplerOnce, 1, 0.5, kosketus.Const(1)))
	// half the duration budget cuts playback after two frames
	expectFrames(t, process(s, 4), 1, 2, 0, 0)
}

func TestKeyedStateSurvivesRender(t *testing.T) {
	s := NewSynth()
	registerRamp(t, s, "ramp", 1, 2, 3)
	loop := kosketus.Sampler("keyed", "ramp", kosketus.SamplerLoop, 1, 1, kosketus.Const(0))
	renderBoth(t, s, loop)
	expectFrames(t, process(s, 2), 1, 2)
	// a rebuild naming the same key continues from the running position
	renderBoth(t, s, loop)
	expectFrames(t, process(s, 2), 3, 1)
	// an unkeyed node starts fresh on every rebuild
	unkeyed := kosketus.Sampler("", "ramp", kosketus.SamplerLoop, 1, 1, kosketus.Const(0))
	renderBoth(t, s, unkeyed)
	expectFrames(t, process(s, 2), 1, 2)
	renderBoth(t, s, unkeyed)
	expectFrames(t, process(s, 2), 1, 2)
}

func TestRenderValidation(t *testing.T) {
	s := NewSynth()
	for _, bad := range []kosketus.Signal{
		{Type: "gargle"},
		{Type: kosketus.TypeAdd},
		{Type: kosketus.TypeTrain, Props: map[string]float64{"rate": 0}},
		{Type: kosketus.TypeCycle, Props: map[string]float64{"period": -1}},
		{Type: kosketus.TypeSeq},
		{Type: kosketus.TypeEq, Inputs: []kosketus.Signal{kosketus.Const(0)}},
	} {
		if err := s.Render(bad, bad); err == nil {
			t.Errorf("expected Render of %+v to fail", bad)
		}
	}
}

func TestTrainPulseRate(t *testing.T) {
	s := NewSynth()
	renderBoth(t, s, kosketus.Train("t", 4410))
	buffer := process(s, 441)
	if buffer[0][0] != 1 {
		t.Errorf("a fresh train should pulse on its first sample")
	}
	pulses := 0
	for _, frame := range buffer {
		if frame[0] == 1 {
			pulses++
		} else if frame[0] != 0 {
			t.Fatalf("train output must be 0 or 1, got %v", frame[0])
		}
	}
	// 4410 Hz over 10 ms is 44 pulses, give or take rounding at the edge
	if pulses < 44 || pulses > 45 {
		t.Errorf("expected about 44 pulses, got %v", pulses)
	}
}

func TestSeqLoopWrap(t *testing.T) {
	p := &seqProc{
		steps: []kosketus.Step{{Tick: 0, Value: 1}, {Tick: 2, Value: 2}},
		loop:  kosketus.LoopWindow{Start: -1, End: 2},
		state: &seqState{counter: -1},
	}
	in := make([]float32, 8)
	for i := range in {
		in[i] = 1 // advance one tick per frame
	}
	out := make([]float32, len(in))
	p.process(out, [][]float32{in})
	// ticks 0 1 2 wrap -1 0 1 2 wrap -1
	expected := []float32{1, 1, 2, 0, 1, 1, 2, 0}
	for i, want := range expected {
		if out[i] != want {
			t.Errorf("frame %v: expected %v, got %v", i, want, out[i])
		}
	}
}

func TestSeqHoldsBetweenPulses(t *testing.T) {
	p := &seqProc{
		steps: []kosketus.Step{{Tick: 0, Value: 5}},
		loop:  kosketus.LoopWindow{Start: -1, End: 10},
		state: &seqState{counter: -1},
	}
	in := []float32{0, 1, 0, 0, 1, 0}
	out := make([]float32, len(in))
	p.process(out, [][]float32{in})
	expected := []float32{0, 5, 5, 5, 5, 5}
	for i, want := range expected {
		if out[i] != want {
			t.Errorf("frame %v: expected %v, got %v", i, want, out[i])
		}
	}
}

func TestWindowGate(t *testing.T) {
	p := &windowProc{on: 1, off: 2}
	in := []float32{0, 0.5, 1, 1.5, 2, 2.5}
	out := make([]float32, len(in))
	p.process(out, [][]float32{in})
	expected := []float32{0, 0, 1, 1, 0, 0}
	for i, want := range expected {
		if out[i] != want {
			t.Errorf("value %v: expected gate %v, got %v", in[i], want, out[i])
		}
	}
}

func TestCycleWraps(t *testing.T) {
	// two frames per cycle keeps the phase arithmetic exact
	p := &cycleProc{period: 2.0 / SampleRate, state: &cycleState{}}
	out := make([]float32, 5)
	p.process(out, nil)
	dt := float32(1.0 / SampleRate)
	expected := []float32{0, dt, 0, dt, 0}
	for i, want := range expected {
		if out[i] != want {
			t.Errorf("frame %v: expected %v, got %v", i, want, out[i])
		}
	}
}

func TestTrajectoryPlayback(t *testing.T) {
	// a full trajectory-style program: a clocked master sequence gating two
	// one-shot players, as the engines emit it
	s := NewSynth()
	registerRamp(t, s, "a", 1, 1)
	registerRamp(t, s, "b", -1, -1)
	clock := kosketus.Train("clock", 4410) // one tick per 10 frames
	steps := []kosketus.Step{{Tick: 0, Value: 1}, {Tick: 2, Value: 2}}
	master := kosketus.Seq("master", steps, kosketus.LoopWindow{Start: -1, End: 2}, clock)
	players := kosketus.Add(
		kosketus.Sampler("p0", "a", kosketus.SamplerTrigger, 1, 1, kosketus.Eq(master, kosketus.Const(1))),
		kosketus.Sampler("p1", "b", kosketus.SamplerTrigger, 1, 1, kosketus.Eq(master, kosketus.Const(2))),
	)
	renderBoth(t, s, players)
	buffer := process(s, 45)
	var aFires, bFires int
	for i := 0; i+1 < len(buffer); i++ {
		if buffer[i][0] == 1 && buffer[i+1][0] != 1 {
			aFires++
		}
		if buffer[i][0] == -1 && buffer[i+1][0] != -1 {
			bFires++
		}
	}
	if aFires < 1 || bFires < 1 {
		t.Fatalf("both players should have fired, got a=%v b=%v", aFires, bFires)
	}
	// the loop wraps to one tick before the first step, so player a fires on
	// every pass
	if aFires < 2 {
		t.Errorf("player a should re-fire after the loop wraps, got %v", aFires)
	}
}

func TestPlayerPumpsAudio(t *testing.T) {
	s := NewSynth()
	renderBoth(t, s, kosketus.Const(0.25))
	sink := newCollectingSink(playerBufferLength*2, false)
	p := Play(s, sink)
	<-sink.full
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(sink.frames) < playerBufferLength {
		t.Fatalf("expected at least one full buffer, got %v frames", len(sink.frames))
	}
	for i, frame := range sink.frames[:playerBufferLength] {
		if frame[0] != 0.25 || frame[1] != 0.25 {
			t.Fatalf("frame %v: expected 0.25, got %v", i, frame)
		}
	}
}

func TestPlayerStopsOnSinkError(t *testing.T) {
	s := NewSynth()
	sink := newCollectingSink(1, true)
	p := Play(s, sink)
	<-sink.full
	if err := p.Close(); err == nil {
		t.Fatalf("Close should return the sink error")
	}
}

type collectingSink struct {
	limit         int
	failAfterFull bool
	frames        kosketus.AudioBuffer
	full          chan struct{}
	closedFull    bool
}

func newCollectingSink(limit int, failAfterFull bool) *collectingSink {
	return &collectingSink{limit: limit, failAfterFull: failAfterFull, full: make(chan struct{})}
}

func (s *collectingSink) WriteAudio(buffer kosketus.AudioBuffer) error {
	if s.closedFull && s.failAfterFull {
		return fmt.Errorf("sink is full")
	}
	s.frames = append(s.frames, buffer...)
	if !s.closedFull && len(s.frames) >= s.limit {
		s.closedFull = true
		close(s.full)
		if s.failAfterFull {
			return fmt.Errorf("sink is full")
		}
	}
	return nil
}

func (s *collectingSink) Close() error { return nil }
