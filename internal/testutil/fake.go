package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/meigma/avindex/internal/avtype"
	"github.com/meigma/avindex/internal/codec"
	"github.com/meigma/avindex/internal/demux"
)

// The FAKE container models a compressed format with inexact container
// timing and a stateful decoder:
//
//	"FAKE" | u32 sample rate | packet...
//	packet: 0xA5 | u32 size | u32 samples | u8 flags | u8 preroll | payload
//	payload: u8 kind | u32 decoded samples | u8 seed
//
// The decoder output of a non-key packet depends on the seed of the packet
// decoded before it, so decoding it without its predecessor yields
// different bytes.
const (
	fakeMagic       = "FAKE"
	fakeSync        = 0xA5
	fakeHeaderSize  = 8
	fakePacketHdr   = 11
	fakePayloadSize = 6
	fakeCorrupt     = 0xFF

	// FakeSampleRate is the sample rate of generated FAKE files.
	FakeSampleRate = 8000
)

// FakePacket describes one packet of a FAKE file.
type FakePacket struct {
	// Samples is the container-reported duration.
	Samples int64

	// Decoded is the duration the decoder produces; 0 means Samples.
	Decoded int64

	Key     bool
	Preroll int
	Seed    byte

	// Corrupt makes the decoder reject the packet.
	Corrupt bool

	// BadSync breaks the container framing at this packet.
	BadSync bool
}

// FakePackets returns n packets of samples each. Every packet except the
// first depends on its predecessor.
func FakePackets(n int, samples int64) []FakePacket {
	pkts := make([]FakePacket, n)
	for i := range pkts {
		pkts[i] = FakePacket{
			Samples: samples,
			Key:     i == 0,
			Preroll: min(i, 1),
			Seed:    byte(i%250 + 1),
		}
	}
	return pkts
}

// FakeFile encodes packets as a FAKE file.
func FakeFile(pkts []FakePacket) []byte {
	var out bytes.Buffer
	out.WriteString(fakeMagic)
	_ = binary.Write(&out, binary.LittleEndian, uint32(FakeSampleRate))
	for _, p := range pkts {
		sync := byte(fakeSync)
		if p.BadSync {
			sync = 0
		}
		var flags byte
		if p.Key {
			flags = 1
		}
		decoded := p.Decoded
		if decoded == 0 {
			decoded = p.Samples
		}
		kind := byte(0)
		if p.Corrupt {
			kind = fakeCorrupt
		}
		out.WriteByte(sync)
		_ = binary.Write(&out, binary.LittleEndian, uint32(fakePayloadSize))
		_ = binary.Write(&out, binary.LittleEndian, uint32(p.Samples))
		out.WriteByte(flags)
		out.WriteByte(byte(p.Preroll))
		out.WriteByte(kind)
		_ = binary.Write(&out, binary.LittleEndian, uint32(decoded))
		out.WriteByte(p.Seed)
	}
	return out.Bytes()
}

// FakeOutput returns the exact decoded bytes of every packet when the file
// is decoded from the start.
func FakeOutput(pkts []FakePacket) [][]byte {
	out := make([][]byte, len(pkts))
	var prev byte
	for i, p := range pkts {
		decoded := p.Decoded
		if decoded == 0 {
			decoded = p.Samples
		}
		out[i] = fakeDecode(p.Seed, prev, p.Key, decoded)
		prev = p.Seed
	}
	return out
}

func fakeDecode(seed, prev byte, key bool, samples int64) []byte {
	if key {
		prev = 0
	}
	out := make([]byte, samples*2)
	for j := range samples {
		v := uint16(seed)*31 + uint16(prev)*7 + uint16(j)
		binary.LittleEndian.PutUint16(out[j*2:], v)
	}
	return out
}

// FakeFormat is a demux.Format for FAKE files. It counts Open and SeekTo
// calls.
type FakeFormat struct {
	opens atomic.Int64
	seeks atomic.Int64
}

// Opens returns how many demuxers were opened.
func (f *FakeFormat) Opens() int64 { return f.opens.Load() }

// Seeks returns how many seeks its demuxers performed.
func (f *FakeFormat) Seeks() int64 { return f.seeks.Load() }

func (f *FakeFormat) Name() string { return "fake" }

func (f *FakeFormat) Match(head []byte) bool {
	return bytes.HasPrefix(head, []byte(fakeMagic))
}

func (f *FakeFormat) Open(r io.ReaderAt, size int64, _ demux.Options) (demux.Demuxer, error) {
	f.opens.Add(1)
	var hdr [fakeHeaderSize]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, err
	}
	rate := int(binary.LittleEndian.Uint32(hdr[4:]))
	return &fakeDemuxer{
		f:    f,
		r:    r,
		size: size,
		pos:  fakeHeaderSize,
		stream: demux.Stream{
			Track: avtype.Track{
				Kind:           avtype.KindAudio,
				Codec:          "fake",
				SampleRate:     rate,
				Channels:       1,
				BytesPerSample: 2,
			},
			EstimatedPackets: (size - fakeHeaderSize) / (fakePacketHdr + fakePayloadSize),
		},
	}, nil
}

type fakeDemuxer struct {
	f      *FakeFormat
	r      io.ReaderAt
	size   int64
	pos    int64
	stream demux.Stream
}

func (d *fakeDemuxer) Format() string { return "fake" }

func (d *fakeDemuxer) Streams() []demux.Stream { return []demux.Stream{d.stream} }

func (d *fakeDemuxer) Next() (demux.Packet, error) {
	if d.pos >= d.size {
		return demux.Packet{}, io.EOF
	}
	var hdr [fakePacketHdr]byte
	if n, err := d.r.ReadAt(hdr[:], d.pos); n < len(hdr) {
		if err == nil || err == io.EOF {
			return demux.Packet{}, fmt.Errorf("%w: short packet header at %d", avtype.ErrCorrupt, d.pos)
		}
		return demux.Packet{}, err
	}
	if hdr[0] != fakeSync {
		return demux.Packet{}, fmt.Errorf("%w: lost sync at %d", avtype.ErrCorrupt, d.pos)
	}
	size := int64(binary.LittleEndian.Uint32(hdr[1:]))
	data := make([]byte, size)
	if n, err := d.r.ReadAt(data, d.pos+fakePacketHdr); int64(n) < size {
		if err == nil || err == io.EOF {
			return demux.Packet{}, fmt.Errorf("%w: short packet at %d", avtype.ErrCorrupt, d.pos)
		}
		return demux.Packet{}, err
	}
	p := demux.Packet{
		Offset:  d.pos,
		Data:    data,
		Samples: int64(binary.LittleEndian.Uint32(hdr[5:])),
		Key:     hdr[9]&1 != 0,
		Preroll: int(hdr[10]),
	}
	d.pos += fakePacketHdr + size
	return p, nil
}

func (d *fakeDemuxer) SeekTo(off int64) error {
	if off < fakeHeaderSize || off > d.size {
		return fmt.Errorf("seek %d outside stream", off)
	}
	d.f.seeks.Add(1)
	d.pos = off
	return nil
}

// FakeCodecs returns the built-in decoders plus the FAKE decoder.
func FakeCodecs() codec.Registry {
	r := codec.DefaultRegistry()
	r["fake"] = func(stream demux.Stream) (codec.Decoder, error) {
		return &fakeDecoder{track: stream.Track}, nil
	}
	return r
}

type fakeDecoder struct {
	track avtype.Track
	prev  byte
}

func (d *fakeDecoder) Decode(pkt demux.Packet) ([]byte, error) {
	if len(pkt.Data) != fakePayloadSize || pkt.Data[0] == fakeCorrupt {
		d.Reset()
		return nil, fmt.Errorf("%w: bad fake payload at %d", avtype.ErrCorrupt, pkt.Offset)
	}
	samples := int64(binary.LittleEndian.Uint32(pkt.Data[1:]))
	seed := pkt.Data[5]
	out := fakeDecode(seed, d.prev, pkt.Key, samples)
	d.prev = seed
	return out, nil
}

func (d *fakeDecoder) Reset() { d.prev = 0 }

func (d *fakeDecoder) Track() avtype.Track { return d.track }

func (d *fakeDecoder) Warmup() int { return 0 }

func (d *fakeDecoder) Close() error { return nil }
