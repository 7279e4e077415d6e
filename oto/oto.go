// Package oto implements the audio output over the oto library.
package oto

import (
	"fmt"
	"io"

	"github.com/ebitengine/oto/v3"

	"kosketus"
)

type (
	OtoContext struct {
		context *oto.Context
	}

	// OtoOutput feeds pushed audio buffers to an oto player through a pipe.
	// The pipe applies backpressure: WriteAudio blocks until the player has
	// consumed the previous buffer, pacing the producer to real time.
	OtoOutput struct {
		player    *oto.Player
		pipe      *io.PipeWriter
		tmpBuffer []byte
	}
)

// NewContext creates an oto context at 44100 Hz, 16-bit stereo.
func NewContext() (*OtoContext, error) {
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   44100,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{context: context}, nil
}

func (c *OtoContext) Output() kosketus.AudioSink {
	pr, pw := io.Pipe()
	player := c.context.NewPlayer(pr)
	player.Play()
	return &OtoOutput{player: player, pipe: pw, tmpBuffer: make([]byte, 0)}
}

func (c *OtoContext) Close() error {
	return nil // oto v3 contexts cannot be closed
}

func (o *OtoOutput) WriteAudio(buffer kosketus.AudioBuffer) error {
	// reuse the capacity of tmpBuffer by setting its length to zero, and keep
	// the converted buffer around for the next call
	o.tmpBuffer = stereoTo16BitLE(buffer, o.tmpBuffer[:0])
	if _, err := o.pipe.Write(o.tmpBuffer); err != nil {
		return fmt.Errorf("cannot write to player: %w", err)
	}
	return nil
}

func (o *OtoOutput) Close() error {
	o.pipe.Close()
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
