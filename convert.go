package avindex

import (
	"encoding/binary"
	"math"
)

// sampleLayout describes one interleaved sample as the decoder produces it.
type sampleLayout struct {
	bytes int
	float bool
}

// outputBytes returns the size of one sample written in format f.
func (l sampleLayout) outputBytes(f SampleFormat) int {
	switch f {
	case SampleFormatS16:
		return 2
	case SampleFormatF32:
		return 4
	default:
		return l.bytes
	}
}

// convertSamples converts the whole samples in src into dst and returns the
// number of bytes written. dst must hold len(src)/l.bytes output samples.
func convertSamples(dst, src []byte, l sampleLayout, f SampleFormat) int {
	if f == SampleFormatNative || (f == SampleFormatS16 && l.bytes == 2 && !l.float) ||
		(f == SampleFormatF32 && l.bytes == 4 && l.float) {
		return copy(dst, src[:len(src)-len(src)%l.bytes])
	}
	n := len(src) / l.bytes
	switch f {
	case SampleFormatS16:
		for i := range n {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(toS16(src[i*l.bytes:], l))) //nolint:gosec // two's complement reinterpretation
		}
		return n * 2
	case SampleFormatF32:
		for i := range n {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(toF32(src[i*l.bytes:], l)))
		}
		return n * 4
	}
	return 0
}

// leftJustify returns an integer sample scaled to the full int32 range.
// 8-bit samples are unsigned, wider ones signed.
func leftJustify(b []byte, size int) int32 {
	switch size {
	case 1:
		return int32(int8(b[0]^0x80)) << 24
	case 2:
		return int32(int16(binary.LittleEndian.Uint16(b))) << 16 //nolint:gosec // two's complement reinterpretation
	case 3:
		return int32(uint32(b[0])<<8 | uint32(b[1])<<16 | uint32(b[2])<<24) //nolint:gosec // two's complement reinterpretation
	default:
		return int32(binary.LittleEndian.Uint32(b)) //nolint:gosec // two's complement reinterpretation
	}
}

func readFloat(b []byte, size int) float64 {
	if size == 8 {
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
}

func toS16(b []byte, l sampleLayout) int16 {
	if !l.float {
		return int16(leftJustify(b, l.bytes) >> 16)
	}
	v := math.Round(readFloat(b, l.bytes) * 32768)
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

func toF32(b []byte, l sampleLayout) float32 {
	if l.float {
		return float32(readFloat(b, l.bytes))
	}
	return float32(float64(leftJustify(b, l.bytes)) / (1 << 31))
}
