package asset

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"kosketus"
)

// FileLoader loads assets from the local filesystem. The ref is a file path,
// resolved against Root when relative. WAV and MP3 files are supported;
// multi-channel sources are downmixed to mono.
type FileLoader struct {
	Root string
}

func (l FileLoader) Load(ctx context.Context, ref string) (kosketus.SampleData, error) {
	if err := ctx.Err(); err != nil {
		return kosketus.SampleData{}, err
	}
	path := ref
	if !filepath.IsAbs(path) && l.Root != "" {
		path = filepath.Join(l.Root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return kosketus.SampleData{}, fmt.Errorf("could not read %v: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return decodeMP3(data)
	default:
		return decodeWAV(data)
	}
}

func decodeWAV(data []byte) (kosketus.SampleData, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return kosketus.SampleData{}, fmt.Errorf("could not decode wav: %w", err)
	}
	return downmix(buf)
}

// downmix folds an integer PCM buffer into normalized mono float32 samples.
func downmix(buf *audio.IntBuffer) (kosketus.SampleData, error) {
	numChans := buf.Format.NumChannels
	if numChans < 1 {
		return kosketus.SampleData{}, fmt.Errorf("wav has invalid channel count %v", numChans)
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(int(1) << (bitDepth - 1))
	frames := len(buf.Data) / numChans
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < numChans; c++ {
			sum += float32(buf.Data[i*numChans+c]) / scale
		}
		samples[i] = sum / float32(numChans)
	}
	return kosketus.SampleData{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

func decodeMP3(data []byte) (kosketus.SampleData, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return kosketus.SampleData{}, fmt.Errorf("could not decode mp3: %w", err)
	}
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return kosketus.SampleData{}, fmt.Errorf("could not decode mp3: %w", err)
	}
	// go-mp3 always outputs 16-bit little-endian stereo
	frames := len(pcm) / 4
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		samples[i] = (float32(left) + float32(right)) / (2 * 32768)
	}
	return kosketus.SampleData{Samples: samples, SampleRate: decoder.SampleRate()}, nil
}
