package kosketus

type (
	// Signal is one node in the declarative signal graph that the engines
	// compile and hand to a Renderer. The graph is a pure value: rebuilding it
	// from scratch after every state change is the normal mode of operation,
	// and a Renderer is expected to carry the state of stateful nodes (sample
	// playback positions, clock phases) across rebuilds, matching nodes by
	// their Key. A node with an empty Key gets a fresh state on every rebuild.
	Signal struct {
		// Type is the node type, e.g. "const", "add" or "sampler". Always in
		// lowercase. See the Type* constants for all valid values.
		Type string

		// Key identifies the node state across graph rebuilds. Two successive
		// graphs naming the same Key refer to the same running clock phase or
		// playback position. Only stateful node types (train, seq, cycle,
		// sampler) use it.
		Key string

		// Value is the constant output of a "const" node; ignored otherwise.
		Value float64

		// Props is a map of the numeric parameters of the node, e.g. a "train"
		// node has Props["rate"] and a "sampler" node has Props["rate"],
		// Props["durscale"] and Props["mode"].
		Props map[string]float64

		// Ref is the asset reference played by a "sampler" node. The asset
		// must have been registered with the Renderer before the graph is
		// rendered.
		Ref string

		// Steps is the sparse tick/value list of a "seq" node, in strictly
		// increasing Tick order.
		Steps []Step

		// Loop is the tick loop window of a "seq" node: after the node's tick
		// counter passes Loop.End it wraps back to Loop.Start.
		Loop LoopWindow

		// Inputs are the child signals feeding this node.
		Inputs []Signal
	}

	// Step is one entry of a "seq" node: at tick Tick the node output becomes
	// Value and holds until the next step.
	Step struct {
		Tick  int
		Value float64
	}

	// LoopWindow is the inclusive tick window a "seq" node loops over.
	LoopWindow struct {
		Start int
		End   int
	}
)

// All the node types a Signal can have. A Renderer must support exactly this
// set.
const (
	TypeConst   = "const"   // constant value
	TypeAdd     = "add"     // sum of all inputs
	TypeMul     = "mul"     // product of all inputs
	TypeTrain   = "train"   // single-sample pulses at Props["rate"] Hz
	TypeSeq     = "seq"     // sparse step sequence advanced by input pulses
	TypeEq      = "eq"      // 1 when the two inputs are equal, else 0
	TypeCycle   = "cycle"   // ramp from 0 to Props["period"] seconds, wrapping
	TypeWindow  = "window"  // 1 while input is in [Props["on"], Props["off"])
	TypeSampler = "sampler" // sample playback gated by the input signal
)

// Playback modes of a "sampler" node, stored in Props["mode"].
const (
	SamplerOnce    = iota // play once from the first rising edge of the input
	SamplerLoop    = iota // play continuously, wrapping at the sample end
	SamplerTrigger = iota // restart from the beginning on every rising edge
)

// Const returns a constant-valued signal.
func Const(value float64) Signal {
	return Signal{Type: TypeConst, Value: value}
}

// Silence is the canonical empty graph: a zero constant.
func Silence() Signal {
	return Const(0)
}

// IsSilence reports whether the signal is a zero constant, i.e. contributes
// nothing to a mix.
func (s Signal) IsSilence() bool {
	return s.Type == TypeConst && s.Value == 0
}

// Add sums the given signals. Zero inputs give silence and a single input is
// returned as-is.
func Add(inputs ...Signal) Signal {
	if len(inputs) == 0 {
		return Silence()
	}
	if len(inputs) == 1 {
		return inputs[0]
	}
	return Signal{Type: TypeAdd, Inputs: inputs}
}

// Mul multiplies the given signals.
func Mul(inputs ...Signal) Signal {
	if len(inputs) == 0 {
		return Silence()
	}
	if len(inputs) == 1 {
		return inputs[0]
	}
	return Signal{Type: TypeMul, Inputs: inputs}
}

// Gain scales a signal by a constant factor.
func Gain(gain float64, input Signal) Signal {
	return Mul(Const(gain), input)
}

// Train returns a pulse train emitting single-sample 1.0 pulses at the given
// rate, in pulses per second.
func Train(key string, rate float64) Signal {
	return Signal{Type: TypeTrain, Key: key, Props: map[string]float64{"rate": rate}}
}

// Seq returns a sparse step sequence: each input pulse advances the tick
// counter, the output holds the value of the latest step at or before the
// current tick, and the counter wraps from loop.End back to loop.Start. Steps
// must be in increasing tick order.
func Seq(key string, steps []Step, loop LoopWindow, clock Signal) Signal {
	return Signal{Type: TypeSeq, Key: key, Steps: steps, Loop: loop, Inputs: []Signal{clock}}
}

// Eq outputs 1 while its two inputs are equal and 0 otherwise.
func Eq(a, b Signal) Signal {
	return Signal{Type: TypeEq, Inputs: []Signal{a, b}}
}

// Cycle returns a time ramp in seconds, wrapping at period.
func Cycle(key string, period float64) Signal {
	return Signal{Type: TypeCycle, Key: key, Props: map[string]float64{"period": period}}
}

// Window outputs 1 while the input value lies in [on, off) and 0 otherwise.
// Keyed on a Cycle input it turns a time ramp into a looping gate.
func Window(on, off float64, input Signal) Signal {
	return Signal{Type: TypeWindow, Props: map[string]float64{"on": on, "off": off}, Inputs: []Signal{input}}
}

// Sampler returns a sample player for the asset ref, gated by the input
// signal. rate is the playback rate factor (1 plays at the asset's native
// pitch), durScale scales how long the sample keeps sounding after a trigger,
// and mode is one of the Sampler* constants.
func Sampler(key, ref string, mode int, rate, durScale float64, gate Signal) Signal {
	return Signal{
		Type: TypeSampler,
		Key:  key,
		Ref:  ref,
		Props: map[string]float64{
			"mode":     float64(mode),
			"rate":     rate,
			"durscale": durScale,
		},
		Inputs: []Signal{gate},
	}
}

// Copy makes a deep copy of a signal.
func (s *Signal) Copy() Signal {
	var props map[string]float64
	if s.Props != nil {
		props = make(map[string]float64, len(s.Props))
		for k, v := range s.Props {
			props[k] = v
		}
	}
	steps := make([]Step, len(s.Steps))
	copy(steps, s.Steps)
	inputs := make([]Signal, len(s.Inputs))
	for i := range s.Inputs {
		inputs[i] = s.Inputs[i].Copy()
	}
	return Signal{
		Type:   s.Type,
		Key:    s.Key,
		Value:  s.Value,
		Props:  props,
		Ref:    s.Ref,
		Steps:  steps,
		Loop:   s.Loop,
		Inputs: inputs,
	}
}
