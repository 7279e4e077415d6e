package oto

import (
	"math"

	"kosketus"
)

// stereoTo16BitLE converts a stereo float32 buffer into interleaved 16-bit
// little-endian bytes, clamping out-of-range values. The result is appended
// to recycleBuffer so the caller can reuse one byte slice across calls.
func stereoTo16BitLE(buffer kosketus.AudioBuffer, recycleBuffer []byte) []byte {
	for _, frame := range buffer {
		for _, v := range frame {
			var uv int16
			if v < -1.0 {
				uv = -math.MaxInt16
			} else if v > 1.0 {
				uv = math.MaxInt16
			} else {
				uv = int16(v * math.MaxInt16)
			}
			recycleBuffer = append(recycleBuffer, byte(uv), byte(uv>>8))
		}
	}
	return recycleBuffer
}
