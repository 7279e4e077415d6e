package kosketus

type (
	// Sequence is a tempo-quantized, looping arrangement of elements. Each
	// element occupies a position along one cycle of the sequence, computed
	// from the insertion-order spacing weights, and plays its asset with its
	// own pitch shift, time stretch and duration scaling. A sequence is
	// silent when muted, or when any other sequence is soloed and this one is
	// not.
	Sequence struct {
		ID          int
		Elements    []SequenceElement
		BPM         int
		BarLength   BarLength
		Volume      float64 // linear gain in [0,1]
		Muted       bool
		Solo        bool
		StartOffset float64 // fraction of the cycle before the first element, in [0,1]
	}

	// SequenceElement is one step of a sequence.
	SequenceElement struct {
		Ref      string  // asset reference
		Offset   float64 // relative spacing weight, 1 by default
		Shift    float64 // pitch transposition in semitones
		Stretch  float64 // time stretch factor, 1 by default
		Duration float64 // duration multiplier, 1 by default
	}

	// BarLength is the length of one sequence cycle, in bars of four beats.
	BarLength int
)

const (
	QuarterBar BarLength = iota
	HalfBar
	OneBar
	TwoBars
	ThreeBars
	FourBars
	EightBars
)

// Multiplier returns the numeric bar multiplier of the cycle length.
// Unrecognized values count as one bar.
func (b BarLength) Multiplier() float64 {
	switch b {
	case QuarterBar:
		return 0.25
	case HalfBar:
		return 0.5
	case OneBar:
		return 1
	case TwoBars:
		return 2
	case ThreeBars:
		return 3
	case FourBars:
		return 4
	case EightBars:
		return 8
	}
	return 1
}

func (b BarLength) String() string {
	switch b {
	case QuarterBar:
		return "1/4 bar"
	case HalfBar:
		return "1/2 bar"
	case OneBar:
		return "1 bar"
	case TwoBars:
		return "2 bars"
	case ThreeBars:
		return "3 bars"
	case FourBars:
		return "4 bars"
	case EightBars:
		return "8 bars"
	}
	return "1 bar"
}

// DurationSeconds returns the length of one cycle of the sequence: four beats
// to a bar at the sequence BPM, times the bar multiplier.
func (s *Sequence) DurationSeconds() float64 {
	if s.BPM <= 0 {
		return 0
	}
	return 60 / float64(s.BPM) * 4 * s.BarLength.Multiplier()
}

// Positions returns the normalized position of every element in [0,1):
// position i is the sum of the spacing weights of all elements before i,
// divided by the total weight. Non-positive weights count as zero.
func (s *Sequence) Positions() []float64 {
	positions := make([]float64, len(s.Elements))
	var total float64
	for _, e := range s.Elements {
		if e.Offset > 0 {
			total += e.Offset
		}
	}
	if total == 0 {
		return positions
	}
	var cum float64
	for i, e := range s.Elements {
		positions[i] = cum / total
		if e.Offset > 0 {
			cum += e.Offset
		}
	}
	return positions
}

// Audible reports whether the sequence should produce sound, given whether
// any sequence in the set is currently soloed. Mute always wins for its own
// sequence: a muted sequence stays silent even when it is the soloed one.
func (s *Sequence) Audible(anySolo bool) bool {
	if s.Muted {
		return false
	}
	if anySolo && !s.Solo {
		return false
	}
	return true
}

// Copy makes a deep copy of a Sequence.
func (s *Sequence) Copy() Sequence {
	elements := make([]SequenceElement, len(s.Elements))
	copy(elements, s.Elements)
	ret := *s
	ret.Elements = elements
	return ret
}
