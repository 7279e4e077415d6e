package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kosketus"
)

// trajectoryEngine records timed trigger gestures and replays them as looping
// clocked sequences. At most one recording is open at a time. Finished
// trajectories are kept in creation order so rebuilds stay deterministic.
type trajectoryEngine struct {
	recording   *kosketus.Trajectory
	recordStart time.Time // zero until the first event sets the time reference
	list        []*kosketus.Trajectory
}

var errNotRecording = errors.New("no recording is open")

// StartRecording opens a new trajectory. The clock does not start yet: the
// first recorded event defines time zero.
func (e *Engine) StartRecording() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.now().UnixNano()
	e.trajectories.recording = &kosketus.Trajectory{ID: id}
	e.trajectories.recordStart = time.Time{}
	e.rebuild()
	return id
}

// RecordEvent appends a trigger to the open recording, stamped with the time
// elapsed since the first event; the first call establishes the zero
// reference. The asset is loaded eagerly so the trajectory can play as soon
// as recording stops.
func (e *Engine) RecordEvent(ctx context.Context, ref string) error {
	if _, err := e.load(ctx, ref); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rec := e.trajectories.recording
	if rec == nil {
		return errNotRecording
	}
	rec.Events = append(rec.Events, kosketus.TrajectoryEvent{Time: e.recordElapsed(), Ref: ref})
	e.rebuild()
	return nil
}

// StopRecording appends the end-of-recording marker, closes the recording and
// immediately starts playback of the trajectory.
func (e *Engine) StopRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec := e.trajectories.recording
	if rec == nil {
		return errNotRecording
	}
	rec.Events = append(rec.Events, kosketus.TrajectoryEvent{Time: e.recordElapsed()})
	rec.Playing = true
	e.trajectories.recording = nil
	e.trajectories.list = append(e.trajectories.list, rec)
	e.rebuild()
	return nil
}

// recordElapsed returns seconds since the first recorded event, starting the
// clock on first use. Callers must hold e.mu.
func (e *Engine) recordElapsed() float64 {
	if e.trajectories.recordStart.IsZero() {
		e.trajectories.recordStart = e.now()
		return 0
	}
	return e.now().Sub(e.trajectories.recordStart).Seconds()
}

// IsRecording reports whether a recording is open.
func (e *Engine) IsRecording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trajectories.recording != nil
}

// PlayTrajectory resumes playback of a stopped trajectory.
func (e *Engine) PlayTrajectory(id int64) error {
	return e.setTrajectoryPlaying(id, true)
}

// StopTrajectory silences a trajectory without discarding it.
func (e *Engine) StopTrajectory(id int64) error {
	return e.setTrajectoryPlaying(id, false)
}

func (e *Engine) setTrajectoryPlaying(id int64, playing bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.trajectories.list {
		if t.ID == id {
			t.Playing = playing
			e.rebuild()
			return nil
		}
	}
	return fmt.Errorf("no trajectory %v", id)
}

// ClearTrajectory discards a trajectory and its compiled signal.
func (e *Engine) ClearTrajectory(id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, t := range e.trajectories.list {
		if t.ID == id {
			e.trajectories.list = append(e.trajectories.list[:i], e.trajectories.list[i+1:]...)
			e.rebuild()
			return nil
		}
	}
	return fmt.Errorf("no trajectory %v", id)
}

// Trajectories returns copies of all finished trajectories, oldest first.
func (e *Engine) Trajectories() []kosketus.Trajectory {
	e.mu.Lock()
	defer e.mu.Unlock()
	ret := make([]kosketus.Trajectory, len(e.trajectories.list))
	for i, t := range e.trajectories.list {
		ret[i] = t.Copy()
	}
	return ret
}

// trajectorySignal sums the signals of all playing trajectories. Callers must
// hold e.mu.
func (e *Engine) trajectorySignal() kosketus.Signal {
	var sigs []kosketus.Signal
	for _, t := range e.trajectories.list {
		if !t.Playing {
			continue
		}
		if sig := compileTrajectory(t); !sig.IsSilence() {
			sigs = append(sigs, sig)
		}
	}
	if len(sigs) == 0 {
		return kosketus.Silence()
	}
	return kosketus.Add(sigs...)
}

// compileTrajectory turns the event list into a clocked, looping trigger
// sequence. Event times are quantized to the fixed tick rate and each event
// gets a unique non-zero index; a master sequence driven by a fixed-rate
// clock steps through the indices, looping over [first tick - 1, last tick].
// Starting the loop one tick before the first event keeps the first tick
// strictly inside the window, as a loop point coinciding with a step would
// not re-trigger it on wrap. Each non-marker event gates a one-shot player
// that fires while the master value equals the event's index.
func compileTrajectory(t *kosketus.Trajectory) kosketus.Signal {
	if len(t.Events) == 0 {
		return kosketus.Silence()
	}
	steps := make([]kosketus.Step, len(t.Events))
	for i, ev := range t.Events {
		steps[i] = kosketus.Step{Tick: ev.Tick(), Value: float64(i + 1)}
	}
	loop := kosketus.LoopWindow{
		Start: steps[0].Tick - 1,
		End:   steps[len(steps)-1].Tick,
	}
	key := fmt.Sprintf("traj:%d", t.ID)
	clock := kosketus.Train(key+":clock", kosketus.TicksPerSecond)
	master := kosketus.Seq(key+":seq", steps, loop, clock)
	var players []kosketus.Signal
	for i, ev := range t.Events {
		if ev.Ref == "" {
			continue
		}
		trigger := kosketus.Eq(master, kosketus.Const(float64(i+1)))
		player := kosketus.Sampler(fmt.Sprintf("%s:%d", key, i), ev.Ref, kosketus.SamplerTrigger, 1, 1, trigger)
		players = append(players, player)
	}
	if len(players) == 0 {
		return kosketus.Silence()
	}
	return kosketus.Gain(1.0/kosketus.MaxVoices, kosketus.Add(players...))
}
