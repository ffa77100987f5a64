package demux

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/meigma/avindex/internal/avtype"
)

const (
	y4mMagic     = "YUV4MPEG2 "
	y4mFrame     = "FRAME"
	y4mMaxHeader = 4096
	y4mMaxDim    = 1 << 15
)

// Y4M recognizes YUV4MPEG2 raw video streams.
type Y4M struct{}

// Name returns "y4m".
func (Y4M) Name() string { return "y4m" }

// Match reports the YUV4MPEG2 signature.
func (Y4M) Match(head []byte) bool {
	return bytes.HasPrefix(head, []byte(y4mMagic))
}

// Open parses the stream header.
func (Y4M) Open(r io.ReaderAt, size int64, opts Options) (Demuxer, error) {
	buf := make([]byte, min(size, y4mMaxHeader))
	if err := readAt(r, buf, 0); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	line, _, ok := bytes.Cut(buf, []byte{'\n'})
	if !ok {
		return nil, errors.New("unterminated stream header")
	}
	track, err := parseY4MHeader(string(line))
	if err != nil {
		return nil, err
	}
	d := &y4mDemuxer{
		r:     r,
		size:  size,
		start: int64(len(line)) + 1,
	}
	d.pos = d.start
	d.stream = Stream{
		Track:            track,
		ExactTiming:      true,
		EstimatedPackets: (size - d.start) / (int64(track.FrameBytes) + int64(len(y4mFrame)) + 1),
	}
	return d, nil
}

func parseY4MHeader(line string) (avtype.Track, error) {
	t := avtype.Track{
		Kind:   avtype.KindVideo,
		Codec:  "rawvideo",
		FPSNum: 25,
		FPSDen: 1,
	}
	colorspace := "420jpeg"
	for _, field := range strings.Fields(strings.TrimPrefix(line, y4mMagic)) {
		value := field[1:]
		var err error
		switch field[0] {
		case 'W':
			t.Width, err = strconv.Atoi(value)
		case 'H':
			t.Height, err = strconv.Atoi(value)
		case 'F':
			num, den, ok := strings.Cut(value, ":")
			if !ok {
				return t, fmt.Errorf("invalid frame rate %q", value)
			}
			if t.FPSNum, err = strconv.Atoi(num); err == nil {
				t.FPSDen, err = strconv.Atoi(den)
			}
		case 'C':
			colorspace = value
		case 'I':
			if value != "p" && value != "?" {
				return t, fmt.Errorf("%w: interlaced y4m (%s)", avtype.ErrUnsupported, value)
			}
		}
		if err != nil {
			return t, fmt.Errorf("invalid header field %q: %w", field, err)
		}
	}
	if t.Width <= 0 || t.Height <= 0 || t.Width > y4mMaxDim || t.Height > y4mMaxDim {
		return t, fmt.Errorf("invalid frame size %dx%d", t.Width, t.Height)
	}
	if t.FPSNum <= 0 || t.FPSDen <= 0 {
		return t, fmt.Errorf("invalid frame rate %d:%d", t.FPSNum, t.FPSDen)
	}
	pixfmt, size, err := y4mFrameSize(colorspace, t.Width, t.Height)
	if err != nil {
		return t, err
	}
	t.PixelFormat = pixfmt
	t.FrameBytes = size
	return t, nil
}

// y4mFrameSize maps a colorspace tag to a pixel format name and frame size.
func y4mFrameSize(colorspace string, w, h int) (string, int, error) {
	base, depth := colorspace, 8
	if i := strings.LastIndexAny(colorspace, "pmono"); i >= 0 && i+1 < len(colorspace) {
		if bits, err := strconv.Atoi(colorspace[i+1:]); err == nil {
			if bits < 8 || bits > 16 {
				return "", 0, fmt.Errorf("%w: colorspace %s", avtype.ErrUnsupported, colorspace)
			}
			base, depth = strings.TrimSuffix(colorspace[:i+1], "p"), bits
		}
	}
	cw, ch := (w+1)/2, (h+1)/2
	var name string
	var size int
	switch base {
	case "420", "420jpeg", "420paldv", "420mpeg2":
		name, size = "yuv420p", w*h+2*cw*ch
	case "422":
		name, size = "yuv422p", w*h+2*cw*h
	case "444":
		name, size = "yuv444p", 3*w*h
	case "444alpha":
		name, size = "yuva444p", 4*w*h
	case "mono":
		name, size = "gray", w*h
	default:
		return "", 0, fmt.Errorf("%w: colorspace %s", avtype.ErrUnsupported, colorspace)
	}
	if depth > 8 {
		return name + strconv.Itoa(depth), size * 2, nil
	}
	return name, size, nil
}

type y4mDemuxer struct {
	r      io.ReaderAt
	stream Stream
	size   int64
	start  int64
	pos    int64
}

func (d *y4mDemuxer) Format() string { return "y4m" }

func (d *y4mDemuxer) Streams() []Stream { return []Stream{d.stream} }

func (d *y4mDemuxer) Next() (Packet, error) {
	if d.pos >= d.size {
		return Packet{}, io.EOF
	}
	// Frame headers may carry parameters; they end at the first newline.
	buf := make([]byte, min(256, d.size-d.pos))
	if err := readAt(d.r, buf, d.pos); err != nil {
		return Packet{}, err
	}
	line, _, ok := bytes.Cut(buf, []byte{'\n'})
	if !ok || !bytes.HasPrefix(line, []byte(y4mFrame)) {
		return Packet{}, fmt.Errorf("%w: missing frame header at offset %d", avtype.ErrCorrupt, d.pos)
	}
	dataStart := d.pos + int64(len(line)) + 1
	frameBytes := int64(d.stream.FrameBytes)
	if dataStart+frameBytes > d.size {
		return Packet{}, fmt.Errorf("%w: frame at offset %d is truncated", avtype.ErrCorrupt, d.pos)
	}
	data := make([]byte, frameBytes)
	if err := readAt(d.r, data, dataStart); err != nil {
		return Packet{}, err
	}
	p := Packet{
		Offset:  d.pos,
		Data:    data,
		Samples: 1,
		Key:     true,
	}
	d.pos = dataStart + frameBytes
	return p, nil
}

func (d *y4mDemuxer) SeekTo(off int64) error {
	if off < d.start || off > d.size {
		return errors.New("seek outside video data")
	}
	if off < d.size {
		var tag [len(y4mFrame)]byte
		if err := readAt(d.r, tag[:], off); err != nil || string(tag[:]) != y4mFrame {
			return fmt.Errorf("seek %d: not a frame boundary", off)
		}
	}
	d.pos = off
	return nil
}
