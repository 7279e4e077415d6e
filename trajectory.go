package kosketus

import "math"

// TicksPerSecond is the fixed rate used to discretize trajectory event times
// when a trajectory is compiled into a clocked sequence.
const TicksPerSecond = 100

type (
	// Trajectory is a recorded list of timed trigger events, replayed as a
	// looping clocked sequence. Event times are seconds since the first
	// recorded event, so the first event is always at time zero. The last
	// event of a finished recording has an empty Ref: it marks the moment
	// recording stopped and stretches the loop to cover the trailing silence.
	//
	// Events are appended against a monotonic clock and must be in
	// non-decreasing time order; the compiler assumes this.
	Trajectory struct {
		ID      int64 // the recording start instant, in unix nanoseconds
		Events  []TrajectoryEvent
		Playing bool
	}

	// TrajectoryEvent is one recorded trigger. An empty Ref is the
	// end-of-recording marker.
	TrajectoryEvent struct {
		Time float64
		Ref  string
	}
)

// Tick quantizes the event time to the fixed tick rate.
func (e TrajectoryEvent) Tick() int {
	return int(math.Round(e.Time * TicksPerSecond))
}

// Copy makes a deep copy of a Trajectory.
func (t *Trajectory) Copy() Trajectory {
	events := make([]TrajectoryEvent, len(t.Events))
	copy(events, t.Events)
	return Trajectory{ID: t.ID, Events: events, Playing: t.Playing}
}
