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
	wavFormatPCM        = 0x0001
	wavFormatFloat      = 0x0003
	wavFormatExtensible = 0xFFFE

	wavMaxChannels   = 32
	wavMaxSampleRate = 768000
)

// WAV recognizes RIFF/WAVE files carrying integer or float PCM.
type WAV struct{}

// Name returns "wav".
func (WAV) Name() string { return "wav" }

// Match reports a RIFF header with a WAVE form type.
func (WAV) Match(head []byte) bool {
	return len(head) >= 12 && bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE"))
}

// Open parses the fmt and data chunks.
func (WAV) Open(r io.ReaderAt, size int64, opts Options) (Demuxer, error) {
	d := &wavDemuxer{r: r, samplesPerUnit: int64(opts.samplesPerUnit())}
	if err := d.parse(size); err != nil {
		return nil, err
	}
	d.pos = d.dataStart
	return d, nil
}

type wavFmt struct {
	FormatTag     uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

type wavDemuxer struct {
	r              io.ReaderAt
	stream         Stream
	dataStart      int64
	dataEnd        int64
	blockAlign     int64
	samplesPerUnit int64
	pos            int64
}

func (d *wavDemuxer) parse(size int64) error {
	var chunk [8]byte
	off := int64(12)
	var format *wavFmt
	for off+8 <= size {
		if err := readAt(d.r, chunk[:], off); err != nil {
			return fmt.Errorf("read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunk[4:8]))
		body := off + 8
		switch id {
		case "fmt ":
			f, err := d.parseFmt(body, chunkSize)
			if err != nil {
				return err
			}
			format = f
		case "data":
			if format == nil {
				return errors.New("data chunk before fmt chunk")
			}
			end := body + chunkSize
			// Streamed writers leave the size at 0 or 0xFFFFFFFF.
			if chunkSize == 0 || chunkSize == 0xFFFFFFFF || end > size {
				end = size
			}
			d.dataStart = body
			d.dataEnd = end
			return d.setup(format)
		}
		off = body + chunkSize + chunkSize&1
	}
	if format == nil {
		return errors.New("missing fmt chunk")
	}
	return errors.New("missing data chunk")
}

func (d *wavDemuxer) parseFmt(off, size int64) (*wavFmt, error) {
	if size < 16 {
		return nil, fmt.Errorf("fmt chunk too small: %d bytes", size)
	}
	buf := make([]byte, min(size, 40))
	if err := readAt(d.r, buf, off); err != nil {
		return nil, fmt.Errorf("read fmt chunk: %w", err)
	}
	var f wavFmt
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &f); err != nil {
		return nil, fmt.Errorf("decode fmt chunk: %w", err)
	}
	if f.FormatTag == wavFormatExtensible {
		if len(buf) < 26 {
			return nil, errors.New("extensible fmt chunk too small")
		}
		// The first two bytes of the sub-format GUID carry the format tag.
		f.FormatTag = binary.LittleEndian.Uint16(buf[24:26])
	}
	return &f, nil
}

func (d *wavDemuxer) setup(f *wavFmt) error {
	var isFloat bool
	switch f.FormatTag {
	case wavFormatPCM:
		switch f.BitsPerSample {
		case 8, 16, 24, 32:
		default:
			return fmt.Errorf("%w: %d-bit integer pcm", avtype.ErrUnsupported, f.BitsPerSample)
		}
	case wavFormatFloat:
		if f.BitsPerSample != 32 && f.BitsPerSample != 64 {
			return fmt.Errorf("%w: %d-bit float pcm", avtype.ErrUnsupported, f.BitsPerSample)
		}
		isFloat = true
	default:
		return fmt.Errorf("%w: wave format tag 0x%04x", avtype.ErrUnsupported, f.FormatTag)
	}
	if f.Channels == 0 || f.Channels > wavMaxChannels {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	if f.SampleRate == 0 || f.SampleRate > wavMaxSampleRate {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	bps := int(f.BitsPerSample) / 8
	if int(f.BlockAlign) != bps*int(f.Channels) {
		return fmt.Errorf("block align %d does not match %d channels of %d bytes", f.BlockAlign, f.Channels, bps)
	}

	d.blockAlign = int64(f.BlockAlign)
	frames := (d.dataEnd - d.dataStart) / d.blockAlign
	d.dataEnd = d.dataStart + frames*d.blockAlign
	d.stream = Stream{
		Track: avtype.Track{
			Kind:           avtype.KindAudio,
			Codec:          "pcm",
			SampleRate:     int(f.SampleRate),
			Channels:       int(f.Channels),
			BytesPerSample: bps,
			Float:          isFloat,
		},
		ExactTiming:      true,
		EstimatedPackets: (frames + d.samplesPerUnit - 1) / d.samplesPerUnit,
	}
	return nil
}

func (d *wavDemuxer) Format() string { return "wav" }

func (d *wavDemuxer) Streams() []Stream { return []Stream{d.stream} }

func (d *wavDemuxer) Next() (Packet, error) {
	if d.pos >= d.dataEnd {
		return Packet{}, io.EOF
	}
	n := min(d.samplesPerUnit*d.blockAlign, d.dataEnd-d.pos)
	data := make([]byte, n)
	if err := readAt(d.r, data, d.pos); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Packet{}, fmt.Errorf("%w: data chunk truncated at %d", avtype.ErrCorrupt, d.pos)
		}
		return Packet{}, err
	}
	p := Packet{
		Offset:  d.pos,
		Data:    data,
		Samples: n / d.blockAlign,
		Key:     true,
	}
	d.pos += n
	return p, nil
}

func (d *wavDemuxer) SeekTo(off int64) error {
	if off < d.dataStart || off > d.dataEnd || (off-d.dataStart)%d.blockAlign != 0 {
		return fmt.Errorf("seek %d: not a sample boundary", off)
	}
	d.pos = off
	return nil
}
