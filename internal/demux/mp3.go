package demux

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/avindex/internal/avtype"
)

const (
	mpegVersion1  = 3
	mpegVersion2  = 2
	mpegVersion25 = 0

	mpegLayer3 = 1

	// mp3MaxHistory bounds how many frames back a bit reservoir lookup goes.
	mp3MaxHistory = 64
)

var mp3Bitrates = [2][16]int{
	{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
	{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
}

var mp3SampleRates = [3]int{44100, 48000, 32000}

// MP3 recognizes MPEG-1 and MPEG-2 Layer III streams, optionally preceded
// by ID3v2 tags.
type MP3 struct{}

// Name returns "mp3".
func (MP3) Name() string { return "mp3" }

// Match reports an ID3v2 tag or a Layer III frame header.
func (MP3) Match(head []byte) bool {
	if len(head) >= 3 && bytes.Equal(head[:3], []byte("ID3")) {
		return true
	}
	if len(head) < 4 {
		return false
	}
	h, ok := parseMP3Header(head)
	return ok && h.layer == mpegLayer3
}

// Open skips leading tags and reads the first frame header.
func (MP3) Open(r io.ReaderAt, size int64, opts Options) (Demuxer, error) {
	d := &mp3Demuxer{r: r, end: size}
	start, err := skipID3v2(r, size)
	if err != nil {
		return nil, err
	}
	var hdr [4]byte
	if err := readAt(r, hdr[:], start); err != nil {
		return nil, fmt.Errorf("%w: no audio frame after tags", avtype.ErrUnsupported)
	}
	h, ok := parseMP3Header(hdr[:])
	if !ok {
		return nil, fmt.Errorf("%w: no frame sync at offset %d", avtype.ErrUnsupported, start)
	}
	switch {
	case h.layer != mpegLayer3:
		return nil, fmt.Errorf("%w: mpeg audio layer %d", avtype.ErrUnsupported, 4-h.layer)
	case h.version == mpegVersion25:
		return nil, fmt.Errorf("%w: mpeg 2.5 audio", avtype.ErrUnsupported)
	}
	d.first = h
	d.start = start
	estimate := int64(0)
	if frames, ok := d.tagFrame(h); ok {
		// The tag frame carries no audio; decoders skip it.
		d.start += h.frameSize()
		estimate = frames
	}
	if estimate <= 0 {
		estimate = (d.end - d.start) / h.frameSize()
	}
	d.pos = d.start
	d.stream = Stream{
		Track: avtype.Track{
			Kind:           avtype.KindAudio,
			Codec:          "mp3",
			SampleRate:     h.sampleRate,
			Channels:       h.channels,
			BytesPerSample: 2,
		},
		EstimatedPackets: estimate,
	}
	return d, nil
}

type mp3Header struct {
	version    int
	layer      int
	crc        bool
	bitrate    int
	sampleRate int
	padding    bool
	channels   int
}

func parseMP3Header(b []byte) (mp3Header, bool) {
	v := binary.BigEndian.Uint32(b)
	if v&0xFFE00000 != 0xFFE00000 {
		return mp3Header{}, false
	}
	h := mp3Header{
		version:  int(v>>19) & 3,
		layer:    int(v>>17) & 3,
		crc:      (v>>16)&1 == 0,
		padding:  (v>>9)&1 == 1,
		channels: 2,
	}
	bitrateIndex := int(v>>12) & 0xF
	srIndex := int(v>>10) & 3
	if h.version == 1 || h.layer == 0 || bitrateIndex == 0 || bitrateIndex == 15 || srIndex == 3 || v&3 == 2 {
		return mp3Header{}, false
	}
	if (v>>6)&3 == 3 {
		h.channels = 1
	}
	table := 1
	if h.version == mpegVersion1 {
		table = 0
	}
	h.bitrate = mp3Bitrates[table][bitrateIndex] * 1000
	h.sampleRate = mp3SampleRates[srIndex]
	switch h.version {
	case mpegVersion2:
		h.sampleRate /= 2
	case mpegVersion25:
		h.sampleRate /= 4
	}
	return h, true
}

func (h mp3Header) samples() int64 {
	if h.version == mpegVersion1 {
		return 1152
	}
	return 576
}

func (h mp3Header) frameSize() int64 {
	n := int64(h.samples()/8) * int64(h.bitrate) / int64(h.sampleRate)
	if h.padding {
		n++
	}
	return n
}

func (h mp3Header) sideInfoSize() int64 {
	switch {
	case h.version == mpegVersion1 && h.channels == 1:
		return 17
	case h.version == mpegVersion1:
		return 32
	case h.channels == 1:
		return 9
	default:
		return 17
	}
}

// dataStart is the offset of the side information within a frame.
func (h mp3Header) dataStart() int64 {
	if h.crc {
		return 6
	}
	return 4
}

func (h mp3Header) compatible(o mp3Header) bool {
	return h.version == o.version && h.layer == o.layer && h.sampleRate == o.sampleRate
}

// mainDataBegin extracts the bit reservoir back pointer from the side info.
func (h mp3Header) mainDataBegin(frame []byte) int64 {
	si := frame[h.dataStart():]
	if h.version == mpegVersion1 {
		return int64(si[0])<<1 | int64(si[1]>>7)
	}
	return int64(si[0])
}

func skipID3v2(r io.ReaderAt, size int64) (int64, error) {
	var off int64
	var hdr [10]byte
	for off+10 <= size {
		if err := readAt(r, hdr[:], off); err != nil {
			return 0, fmt.Errorf("read tag header: %w", err)
		}
		if !bytes.Equal(hdr[:3], []byte("ID3")) {
			break
		}
		n := int64(hdr[6]&0x7F)<<21 | int64(hdr[7]&0x7F)<<14 | int64(hdr[8]&0x7F)<<7 | int64(hdr[9]&0x7F)
		off += 10 + n
		if hdr[5]&0x10 != 0 {
			off += 10
		}
	}
	if off >= size {
		return 0, fmt.Errorf("%w: no audio after tags", avtype.ErrUnsupported)
	}
	return off, nil
}

type mp3Demuxer struct {
	r      io.ReaderAt
	stream Stream
	first  mp3Header
	start  int64
	end    int64
	pos    int64

	// history holds the main data sizes of the most recent frames.
	history []int64
}

// tagFrame reports whether the first frame is a Xing, Info or VBRI header
// frame, and the audio frame count it declares (0 when absent).
func (d *mp3Demuxer) tagFrame(h mp3Header) (int64, bool) {
	frame := make([]byte, min(h.frameSize(), d.end-d.start))
	if err := readAt(d.r, frame, d.start); err != nil {
		return 0, false
	}
	if off := h.dataStart() + h.sideInfoSize(); off+8 <= int64(len(frame)) {
		tag := string(frame[off : off+4])
		if tag == "Xing" || tag == "Info" {
			flags := binary.BigEndian.Uint32(frame[off+4:])
			if flags&1 != 0 && off+12 <= int64(len(frame)) {
				return int64(binary.BigEndian.Uint32(frame[off+8:])), true
			}
			return 0, true
		}
	}
	// VBRI sits at a fixed offset behind the header.
	if off := int64(36); off+18 <= int64(len(frame)) && string(frame[off:off+4]) == "VBRI" {
		return int64(binary.BigEndian.Uint32(frame[off+14:])), true
	}
	return 0, false
}

func (d *mp3Demuxer) Format() string { return "mp3" }

func (d *mp3Demuxer) Streams() []Stream { return []Stream{d.stream} }

func (d *mp3Demuxer) Next() (Packet, error) {
	if d.pos+4 > d.end {
		return Packet{}, io.EOF
	}
	var hdr [8]byte
	n := min(int64(len(hdr)), d.end-d.pos)
	if err := readAt(d.r, hdr[:n], d.pos); err != nil {
		return Packet{}, err
	}
	if isMP3Trailer(hdr[:n]) {
		return Packet{}, io.EOF
	}
	h, ok := parseMP3Header(hdr[:4])
	if !ok {
		return Packet{}, fmt.Errorf("%w: lost frame sync at offset %d", avtype.ErrCorrupt, d.pos)
	}
	if !h.compatible(d.first) {
		return Packet{}, fmt.Errorf("%w: frame at offset %d changes stream parameters", avtype.ErrCorrupt, d.pos)
	}
	size := h.frameSize()
	if size < h.dataStart()+h.sideInfoSize() {
		return Packet{}, fmt.Errorf("%w: frame at offset %d too small", avtype.ErrCorrupt, d.pos)
	}
	if d.pos+size > d.end {
		// A cut-off final frame cannot be decoded.
		return Packet{}, io.EOF
	}
	data := make([]byte, size)
	if err := readAt(d.r, data, d.pos); err != nil {
		return Packet{}, err
	}

	begin := h.mainDataBegin(data)
	p := Packet{
		Offset:  d.pos,
		Data:    data,
		Samples: h.samples(),
		Key:     begin == 0,
		Preroll: d.preroll(begin),
	}
	d.remember(size - h.dataStart() - h.sideInfoSize())
	d.pos += size
	return p, nil
}

// preroll counts the preceding frames holding the begin reservoir bytes.
func (d *mp3Demuxer) preroll(begin int64) int {
	var sum int64
	n := 0
	for i := len(d.history) - 1; i >= 0 && sum < begin; i-- {
		sum += d.history[i]
		n++
	}
	return n
}

func (d *mp3Demuxer) remember(mainSize int64) {
	if len(d.history) == mp3MaxHistory {
		copy(d.history, d.history[1:])
		d.history = d.history[:mp3MaxHistory-1]
	}
	d.history = append(d.history, mainSize)
}

func (d *mp3Demuxer) SeekTo(off int64) error {
	if off < d.start || off > d.end {
		return errors.New("seek outside audio data")
	}
	d.pos = off
	d.history = d.history[:0]
	return nil
}

func isMP3Trailer(b []byte) bool {
	return bytes.HasPrefix(b, []byte("TAG")) || bytes.HasPrefix(b, []byte("APETAGEX")) || bytes.HasPrefix(b, []byte("LYRICS"))
}
