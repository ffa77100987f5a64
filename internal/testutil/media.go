package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// WAVSpec describes a generated WAV file.
type WAVSpec struct {
	SampleRate int
	Channels   int
	Bits       int
	Float      bool
	Frames     int64

	// Extensible writes a WAVE_FORMAT_EXTENSIBLE fmt chunk.
	Extensible bool

	// StreamedSize writes 0xFFFFFFFF as the data chunk size.
	StreamedSize bool
}

// FrameSize returns the bytes per sample frame.
func (s WAVSpec) FrameSize() int {
	return s.Channels * s.Bits / 8
}

// PCMData returns the deterministic sample bytes of frames [start, start+count).
// Every byte depends on its absolute position so misplaced reads are caught.
func PCMData(s WAVSpec, start, count int64) []byte {
	fs := int64(s.FrameSize())
	out := make([]byte, count*fs)
	for i := range out {
		pos := start*fs + int64(i)
		out[i] = byte((pos*2654435761)>>13) ^ byte(pos)
	}
	return out
}

// WAV builds a RIFF/WAVE file per s.
func WAV(s WAVSpec) []byte {
	data := PCMData(s, 0, s.Frames)

	var fmtChunk bytes.Buffer
	tag := uint16(1)
	if s.Float {
		tag = 3
	}
	writeTag := tag
	if s.Extensible {
		writeTag = 0xFFFE
	}
	le := binary.LittleEndian
	_ = binary.Write(&fmtChunk, le, writeTag)
	_ = binary.Write(&fmtChunk, le, uint16(s.Channels))
	_ = binary.Write(&fmtChunk, le, uint32(s.SampleRate))
	_ = binary.Write(&fmtChunk, le, uint32(s.SampleRate*s.FrameSize()))
	_ = binary.Write(&fmtChunk, le, uint16(s.FrameSize()))
	_ = binary.Write(&fmtChunk, le, uint16(s.Bits))
	if s.Extensible {
		_ = binary.Write(&fmtChunk, le, uint16(22))
		_ = binary.Write(&fmtChunk, le, uint16(s.Bits))
		_ = binary.Write(&fmtChunk, le, uint32(0))
		_ = binary.Write(&fmtChunk, le, tag)
		fmtChunk.Write([]byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71})
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, le, uint32(4+8+fmtChunk.Len()+8+len(data)+8+4))
	out.WriteString("WAVE")
	// An unrelated chunk before fmt exercises chunk skipping.
	out.WriteString("LIST")
	_ = binary.Write(&out, le, uint32(4))
	out.WriteString("INFO")
	out.WriteString("fmt ")
	_ = binary.Write(&out, le, uint32(fmtChunk.Len()))
	out.Write(fmtChunk.Bytes())
	out.WriteString("data")
	size := uint32(len(data))
	if s.StreamedSize {
		size = 0xFFFFFFFF
	}
	_ = binary.Write(&out, le, size)
	out.Write(data)
	return out.Bytes()
}

// Y4MSpec describes a generated YUV4MPEG2 file.
type Y4MSpec struct {
	Width      int
	Height     int
	FPS        string
	Colorspace string
	Frames     int
}

// FrameSize returns the bytes per frame for the 8-bit 4:2:0 layout or the
// named colorspace.
func (s Y4MSpec) FrameSize() int {
	w, h := s.Width, s.Height
	cw, ch := (w+1)/2, (h+1)/2
	switch s.Colorspace {
	case "444":
		return 3 * w * h
	case "mono":
		return w * h
	case "420p10":
		return 2 * (w*h + 2*cw*ch)
	default:
		return w*h + 2*cw*ch
	}
}

// Y4MFrame returns the deterministic content of frame i.
func Y4MFrame(s Y4MSpec, i int) []byte {
	out := make([]byte, s.FrameSize())
	for j := range out {
		out[j] = byte(i*13 + j*7)
	}
	return out
}

// Y4M builds a YUV4MPEG2 file per s.
func Y4M(s Y4MSpec) []byte {
	var out bytes.Buffer
	fps := s.FPS
	if fps == "" {
		fps = "30000:1001"
	}
	fmt.Fprintf(&out, "YUV4MPEG2 W%d H%d F%s Ip A1:1", s.Width, s.Height, fps)
	if s.Colorspace != "" {
		fmt.Fprintf(&out, " C%s", s.Colorspace)
	}
	out.WriteString("\n")
	for i := range s.Frames {
		if i%2 == 1 {
			// Frame parameters are legal and must be skipped.
			out.WriteString("FRAME Ixyz\n")
		} else {
			out.WriteString("FRAME\n")
		}
		out.Write(Y4MFrame(s, i))
	}
	return out.Bytes()
}

// MP3 frame constants for MPEG-1 Layer III, 128 kbit/s, 44.1 kHz, stereo.
const (
	MP3FrameSize    = 417
	MP3FrameSamples = 1152
	MP3SampleRate   = 44100
)

// MP3Spec describes a generated MP3 stream of silent frames.
type MP3Spec struct {
	Frames int

	// Xing prepends an Info frame carrying the frame count.
	Xing bool

	// ID3 prepends an ID3v2 tag; ID3v1 appends a trailing tag.
	ID3   bool
	ID3v1 bool

	// MainDataBegin returns the bit reservoir back pointer of frame i.
	MainDataBegin func(i int) int

	// Noise fills frames with Huffman coded random spectra that decode to
	// non-silent audio. Unless MainDataBegin is set, every frame but the
	// first borrows up to 199 bytes from the bit reservoir. Seed makes the
	// stream reproducible.
	Noise bool
	Seed  uint64
}

// MP3 builds an MPEG-1 Layer III stream. Frames carry zeroed side
// information and main data, which decodes to digital silence, unless
// s.Noise is set.
func MP3(s MP3Spec) []byte {
	var out bytes.Buffer
	rng := rand.New(rand.NewPCG(s.Seed, 0x6d7033)) //nolint:gosec // reproducible fixtures
	if s.ID3 {
		out.Write([]byte{'I', 'D', '3', 3, 0, 0, 0, 0, 0, 20})
		out.Write(make([]byte, 20))
	}
	if s.Xing {
		f := mp3Frame(0)
		copy(f[36:], "Info")
		binary.BigEndian.PutUint32(f[40:], 1)
		binary.BigEndian.PutUint32(f[44:], uint32(s.Frames))
		out.Write(f)
	}
	for i := range s.Frames {
		begin := 0
		switch {
		case s.MainDataBegin != nil:
			begin = s.MainDataBegin(i)
		case s.Noise && i > 0:
			begin = rng.IntN(200)
		}
		f := mp3Frame(begin)
		if s.Noise {
			fillMP3Noise(f, rng)
		}
		out.Write(f)
	}
	if s.ID3v1 {
		tag := make([]byte, 128)
		copy(tag, "TAG")
		out.Write(tag)
	}
	return out.Bytes()
}

func mp3Frame(mainDataBegin int) []byte {
	f := make([]byte, MP3FrameSize)
	copy(f, []byte{0xFF, 0xFB, 0x90, 0x04})
	f[4] = byte(mainDataBegin >> 1)
	f[5] = byte(mainDataBegin&1) << 7
	return f
}

// fillMP3Noise writes side information for two granules of two long-block
// channels using Huffman table 1 and count1 table B, both of which decode
// any bit sequence, followed by random main data. Scalefactors take no bits.
func fillMP3Noise(f []byte, rng *rand.Rand) {
	// Skip main_data_begin and the private bits; scfsi stays zero.
	w := bitWriter{buf: f[4:36], pos: 20}
	for range 4 {
		part23 := 300 + rng.IntN(300)
		bigValues := 10 + rng.IntN(min(288, part23/4)-10)
		globalGain := 170 + rng.IntN(30)

		w.put(uint32(part23), 12)    //nolint:gosec // bounded above
		w.put(uint32(bigValues), 9)  //nolint:gosec // bounded above
		w.put(uint32(globalGain), 8) //nolint:gosec // bounded above
		// scalefac_compress and window_switching_flag.
		w.put(0, 5)
		// table_select for three regions.
		w.put(1, 5)
		w.put(1, 5)
		w.put(1, 5)
		// region0_count and region1_count.
		w.put(7, 4)
		w.put(7, 3)
		// preflag, scalefac_scale and count1table_select.
		w.put(1, 3)
	}
	for i := 36; i < len(f); i++ {
		f[i] = byte(rng.Uint32())
	}
}

type bitWriter struct {
	buf []byte
	pos int
}

// put writes the low n bits of v, most significant first.
func (w *bitWriter) put(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		if v>>uint(i)&1 != 0 {
			w.buf[w.pos/8] |= 0x80 >> uint(w.pos%8)
		}
		w.pos++
	}
}
