package avindex

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func f32(v float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
}

func f64(v float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
}

func TestConvertToS16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		layout sampleLayout
		in     []byte
		want   int16
	}{
		{name: "u8 mid", layout: sampleLayout{bytes: 1}, in: []byte{0x80}, want: 0},
		{name: "u8 min", layout: sampleLayout{bytes: 1}, in: []byte{0x00}, want: math.MinInt16},
		{name: "u8 max", layout: sampleLayout{bytes: 1}, in: []byte{0xFF}, want: 0x7F00},
		{name: "s16", layout: sampleLayout{bytes: 2}, in: []byte{0x34, 0x92}, want: -0x6DCC},
		{name: "s24", layout: sampleLayout{bytes: 3}, in: []byte{0xFF, 0x34, 0x12}, want: 0x1234},
		{name: "s24 negative", layout: sampleLayout{bytes: 3}, in: []byte{0x00, 0x00, 0x80}, want: math.MinInt16},
		{name: "s32", layout: sampleLayout{bytes: 4}, in: []byte{0xFF, 0xFF, 0x34, 0x12}, want: 0x1234},
		{name: "f32 half", layout: sampleLayout{bytes: 4, float: true}, in: f32(0.5), want: 16384},
		{name: "f32 clip", layout: sampleLayout{bytes: 4, float: true}, in: f32(1.5), want: math.MaxInt16},
		{name: "f64 negative", layout: sampleLayout{bytes: 8, float: true}, in: f64(-1), want: math.MinInt16},
		{name: "f32 nan", layout: sampleLayout{bytes: 4, float: true}, in: f32(float32(math.NaN())), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, 2)
			n := convertSamples(dst, tt.in, tt.layout, SampleFormatS16)
			assert.Equal(t, 2, n)
			assert.Equal(t, tt.want, int16(binary.LittleEndian.Uint16(dst)))
		})
	}
}

func TestConvertToF32(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		layout sampleLayout
		in     []byte
		want   float32
	}{
		{name: "u8", layout: sampleLayout{bytes: 1}, in: []byte{0x00}, want: -1},
		{name: "s16", layout: sampleLayout{bytes: 2}, in: []byte{0x00, 0x40}, want: 0.5},
		{name: "s24", layout: sampleLayout{bytes: 3}, in: []byte{0x00, 0x00, 0xC0}, want: -0.5},
		{name: "f32", layout: sampleLayout{bytes: 4, float: true}, in: f32(0.25), want: 0.25},
		{name: "f64", layout: sampleLayout{bytes: 8, float: true}, in: f64(-0.125), want: -0.125},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, 4)
			n := convertSamples(dst, tt.in, tt.layout, SampleFormatF32)
			assert.Equal(t, 4, n)
			assert.InDelta(t, tt.want, math.Float32frombits(binary.LittleEndian.Uint32(dst)), 1e-6)
		})
	}
}

func TestConvertNativeCopies(t *testing.T) {
	t.Parallel()

	src := []byte{1, 2, 3, 4, 5, 6, 7}
	dst := make([]byte, 8)
	n := convertSamples(dst, src, sampleLayout{bytes: 3}, SampleFormatNative)
	assert.Equal(t, 6, n, "partial samples are dropped")
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 0, 0}, dst)

	n = convertSamples(dst, src[:4], sampleLayout{bytes: 2}, SampleFormatS16)
	assert.Equal(t, 4, n)
}

func TestOutputBytes(t *testing.T) {
	t.Parallel()

	l := sampleLayout{bytes: 3}
	assert.Equal(t, 3, l.outputBytes(SampleFormatNative))
	assert.Equal(t, 2, l.outputBytes(SampleFormatS16))
	assert.Equal(t, 4, l.outputBytes(SampleFormatF32))
}
