package kosketus

// AudioBuffer is a buffer of stereo audio samples of variable length, each
// sample represented by [2]float32.
type AudioBuffer [][2]float32

type AudioSink interface {
	WriteAudio(buffer AudioBuffer) error
	Close() error
}

type AudioContext interface {
	Output() AudioSink
	Close() error
}
