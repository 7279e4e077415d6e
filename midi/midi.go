// Package midi maps MIDI note input onto engine triggers, so the engine can
// be played without a graphical presentation layer. A note-on acts like a
// click or hover on the element the note is mapped to in the bank.
package midi

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Input owns the MIDI driver and at most one open input device.
type Input struct {
	driver     *rtmididrv.Driver
	currentIn  drivers.In
	stopListen func()
}

// NewInput opens the MIDI driver. A nil driver (no MIDI support on the
// system) is not an error; such an Input just has no devices.
func NewInput() *Input {
	m := &Input{}
	// there's not much we can do if this fails, so just use m.driver = nil to
	// indicate no driver available
	m.driver, _ = rtmididrv.New()
	return m
}

// Devices lists the names of the available input devices.
func (m *Input) Devices() []string {
	if m.driver == nil {
		return nil
	}
	ins, err := m.driver.Ins()
	if err != nil {
		return nil
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names
}

// Open opens the input device at the index and starts delivering note events
// to onNote, closing the previously open device if any. onNote runs on the
// driver's callback goroutine.
func (m *Input) Open(index int, onNote func(note byte, on bool)) error {
	if m.driver == nil {
		return errors.New("no MIDI driver available")
	}
	ins, err := m.driver.Ins()
	if err != nil {
		return fmt.Errorf("listing MIDI inputs failed: %w", err)
	}
	if index < 0 || index >= len(ins) {
		return fmt.Errorf("no MIDI input %v", index)
	}
	m.closeCurrent()
	in := ins[index]
	if err := in.Open(); err != nil {
		return fmt.Errorf("opening MIDI input failed: %w", err)
	}
	stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
		var channel, key, velocity uint8
		switch {
		case msg.GetNoteOn(&channel, &key, &velocity):
			onNote(key, true)
		case msg.GetNoteOff(&channel, &key, &velocity):
			onNote(key, false)
		}
	})
	if err != nil {
		in.Close()
		return fmt.Errorf("listening to MIDI input failed: %w", err)
	}
	m.currentIn = in
	m.stopListen = stop
	return nil
}

func (m *Input) closeCurrent() {
	if m.stopListen != nil {
		m.stopListen()
		m.stopListen = nil
	}
	if m.currentIn != nil && m.currentIn.IsOpen() {
		m.currentIn.Close()
	}
	m.currentIn = nil
}

// Close closes the open device and the driver.
func (m *Input) Close() {
	if m.driver == nil {
		return
	}
	m.closeCurrent()
	m.driver.Close()
}
