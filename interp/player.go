package interp

import (
	"kosketus"
)

// Player pumps audio from a Synth to an AudioSink in a background goroutine
// until closed. The sink is expected to block when its internal buffer is
// full, pacing the rendering to real time.
type Player struct {
	stop chan struct{}
	done chan struct{}
	err  error
}

const playerBufferLength = 2048

// Play starts rendering the synth output into the sink.
func Play(synth *Synth, output kosketus.AudioSink) *Player {
	p := &Player{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		buffer := make(kosketus.AudioBuffer, playerBufferLength)
		for {
			select {
			case <-p.stop:
				return
			default:
			}
			synth.Process(buffer)
			if err := output.WriteAudio(buffer); err != nil {
				p.err = err
				return
			}
		}
	}()
	return p
}

// Close stops the playback loop and returns the error that ended it early,
// if any.
func (p *Player) Close() error {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	<-p.done
	return p.err
}
