package interp

import (
	"fmt"
	"sort"

	"github.com/viterin/vek/vek32"

	"kosketus"
)

type (
	// unit is one compiled node: a processor plus its input units and an
	// output block buffer.
	unit struct {
		proc   processor
		inputs []*unit
		out    []float32
		bufs   [][]float32
	}

	// processor renders one block of output from the input blocks. All
	// slices have equal length.
	processor interface {
		process(out []float32, in [][]float32)
	}

	// compiler builds the post-order unit list of one channel, adopting
	// keyed states from the previous program of the same channel.
	compiler struct {
		samples   map[string]kosketus.SampleData
		oldStates map[string]interface{}
		states    map[string]interface{}
		order     []*unit
	}
)

func (u *unit) inBufs(n int) [][]float32 {
	for i, in := range u.inputs {
		u.bufs[i] = in.out[:n]
	}
	return u.bufs
}

// adoptState fetches the previous state stored under key, or creates a fresh
// one. Unkeyed stateful nodes always start fresh.
func adoptState[T any](c *compiler, key string, fresh func() *T) *T {
	if key != "" {
		if old, ok := c.oldStates[key]; ok {
			if st, ok := old.(*T); ok {
				c.states[key] = st
				return st
			}
		}
	}
	st := fresh()
	if key != "" {
		c.states[key] = st
	}
	return st
}

func (c *compiler) compile(sig kosketus.Signal) (*unit, error) {
	inputs := make([]*unit, len(sig.Inputs))
	for i := range sig.Inputs {
		in, err := c.compile(sig.Inputs[i])
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}
	proc, err := c.makeProcessor(sig)
	if err != nil {
		return nil, err
	}
	u := &unit{
		proc:   proc,
		inputs: inputs,
		out:    make([]float32, blockSize),
		bufs:   make([][]float32, len(inputs)),
	}
	c.order = append(c.order, u)
	return u, nil
}

func (c *compiler) makeProcessor(sig kosketus.Signal) (processor, error) {
	switch sig.Type {
	case kosketus.TypeConst:
		return &constProc{value: float32(sig.Value)}, nil
	case kosketus.TypeAdd:
		if len(sig.Inputs) == 0 {
			return nil, fmt.Errorf("add node needs at least one input")
		}
		return addProc{}, nil
	case kosketus.TypeMul:
		if len(sig.Inputs) == 0 {
			return nil, fmt.Errorf("mul node needs at least one input")
		}
		return mulProc{}, nil
	case kosketus.TypeTrain:
		rate := sig.Props["rate"]
		if rate <= 0 {
			return nil, fmt.Errorf("train node has invalid rate %v", rate)
		}
		period := 1 / rate
		state := adoptState(c, sig.Key, func() *trainState {
			// a fresh train pulses on its very first sample
			return &trainState{untilPulse: 0}
		})
		return &trainProc{period: period, state: state}, nil
	case kosketus.TypeSeq:
		if len(sig.Inputs) != 1 {
			return nil, fmt.Errorf("seq node needs exactly one input")
		}
		state := adoptState(c, sig.Key, func() *seqState {
			return &seqState{counter: sig.Loop.Start}
		})
		return &seqProc{steps: sig.Steps, loop: sig.Loop, state: state}, nil
	case kosketus.TypeEq:
		if len(sig.Inputs) != 2 {
			return nil, fmt.Errorf("eq node needs exactly two inputs")
		}
		return eqProc{}, nil
	case kosketus.TypeCycle:
		period := sig.Props["period"]
		if period <= 0 {
			return nil, fmt.Errorf("cycle node has invalid period %v", period)
		}
		state := adoptState(c, sig.Key, func() *cycleState { return &cycleState{} })
		return &cycleProc{period: period, state: state}, nil
	case kosketus.TypeWindow:
		if len(sig.Inputs) != 1 {
			return nil, fmt.Errorf("window node needs exactly one input")
		}
		return &windowProc{
			on:  float32(sig.Props["on"]),
			off: float32(sig.Props["off"]),
		}, nil
	case kosketus.TypeSampler:
		data, ok := c.samples[sig.Ref]
		if !ok {
			return nil, fmt.Errorf("asset %q is not registered", sig.Ref)
		}
		if len(sig.Inputs) != 1 {
			return nil, fmt.Errorf("sampler node needs exactly one input")
		}
		rate := sig.Props["rate"]
		if rate <= 0 {
			rate = 1
		}
		durScale := sig.Props["durscale"]
		if durScale <= 0 {
			durScale = 1
		}
		step := rate * float64(data.SampleRate) / SampleRate
		state := adoptState(c, sig.Key, func() *samplerState { return &samplerState{} })
		return &samplerProc{
			samples: data.Samples,
			step:    step,
			maxOut:  durScale * float64(len(data.Samples)) / step,
			mode:    int(sig.Props["mode"]),
			state:   state,
		}, nil
	}
	return nil, fmt.Errorf("unknown signal type %q", sig.Type)
}

type constProc struct{ value float32 }

func (p *constProc) process(out []float32, in [][]float32) {
	for i := range out {
		out[i] = p.value
	}
}

type addProc struct{}

func (addProc) process(out []float32, in [][]float32) {
	copy(out, in[0])
	for _, buf := range in[1:] {
		vek32.Add_Inplace(out, buf)
	}
}

type mulProc struct{}

func (mulProc) process(out []float32, in [][]float32) {
	copy(out, in[0])
	for _, buf := range in[1:] {
		vek32.Mul_Inplace(out, buf)
	}
}

type (
	trainProc struct {
		period float64
		state  *trainState
	}
	trainState struct {
		untilPulse float64 // seconds until the next pulse
	}
)

func (p *trainProc) process(out []float32, in [][]float32) {
	const dt = 1.0 / SampleRate
	st := p.state
	for i := range out {
		if st.untilPulse <= 0 {
			out[i] = 1
			st.untilPulse += p.period
		} else {
			out[i] = 0
		}
		st.untilPulse -= dt
	}
}

type (
	seqProc struct {
		steps []kosketus.Step
		loop  kosketus.LoopWindow
		state *seqState
	}
	seqState struct {
		counter int
	}
)

func (p *seqProc) process(out []float32, in [][]float32) {
	st := p.state
	value := p.valueAt(st.counter)
	for i, pulse := range in[0] {
		if pulse >= 0.5 {
			st.counter++
			if st.counter > p.loop.End {
				st.counter = p.loop.Start
			}
			value = p.valueAt(st.counter)
		}
		out[i] = value
	}
}

// valueAt returns the value of the latest step at or before the tick, or 0
// when the tick precedes all steps.
func (p *seqProc) valueAt(tick int) float32 {
	i := sort.Search(len(p.steps), func(i int) bool { return p.steps[i].Tick > tick })
	if i == 0 {
		return 0
	}
	return float32(p.steps[i-1].Value)
}

type eqProc struct{}

func (eqProc) process(out []float32, in [][]float32) {
	for i := range out {
		if in[0][i] == in[1][i] {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
}

type (
	cycleProc struct {
		period float64
		state  *cycleState
	}
	cycleState struct {
		phase float64
	}
)

func (p *cycleProc) process(out []float32, in [][]float32) {
	const dt = 1.0 / SampleRate
	st := p.state
	for i := range out {
		out[i] = float32(st.phase)
		st.phase += dt
		if st.phase >= p.period {
			st.phase -= p.period
		}
	}
}

type windowProc struct {
	on, off float32
}

func (p *windowProc) process(out []float32, in [][]float32) {
	for i, v := range in[0] {
		if v >= p.on && v < p.off {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
}

type (
	samplerProc struct {
		samples []float32
		step    float64 // sample frames consumed per output frame
		maxOut  float64 // output frame budget of one triggering
		mode    int
		state   *samplerState
	}
	samplerState struct {
		pos      float64
		frames   float64
		active   bool
		started  bool
		lastGate float32
	}
)

func (p *samplerProc) process(out []float32, in [][]float32) {
	st := p.state
	for i, gate := range in[0] {
		rising := gate >= 0.5 && st.lastGate < 0.5
		st.lastGate = gate
		switch p.mode {
		case kosketus.SamplerLoop:
			out[i] = p.at(st.pos)
			st.pos += p.step
			if st.pos >= float64(len(p.samples)) {
				st.pos -= float64(len(p.samples))
			}
			continue
		case kosketus.SamplerOnce:
			if rising && !st.started {
				st.started = true
				st.active = true
				st.pos = 0
				st.frames = 0
			}
		case kosketus.SamplerTrigger:
			if rising {
				st.active = true
				st.pos = 0
				st.frames = 0
			}
		}
		if !st.active {
			out[i] = 0
			continue
		}
		if st.pos >= float64(len(p.samples)) || st.frames >= p.maxOut {
			st.active = false
			out[i] = 0
			continue
		}
		out[i] = p.at(st.pos)
		st.pos += p.step
		st.frames++
	}
}

// at reads the sample buffer at a fractional position with linear
// interpolation.
func (p *samplerProc) at(pos float64) float32 {
	idx := int(pos)
	if idx < 0 || idx >= len(p.samples) {
		return 0
	}
	s0 := p.samples[idx]
	var s1 float32
	if idx+1 < len(p.samples) {
		s1 = p.samples[idx+1]
	}
	frac := float32(pos - float64(idx))
	return s0 + (s1-s0)*frac
}
