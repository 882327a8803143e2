package voice

import (
	"encoding/binary"
	"errors"
	"log"
	"math"

	"github.com/aeolun/mumblewire/pkg/varint"
)

var (
	errBadFrameHeader = errors.New("invalid frame header varint")
	errShortFrame     = errors.New("insufficient bytes for declared frame length")
	errMissingHeader  = errors.New("missing frame header")
)

// Decoder parses voice and ping datagrams for one direction of a
// connection.
//
// Decoding is deliberately tolerant: the voice channel is unreliable and
// corruption is routine, so a malformed datagram is dropped silently
// rather than surfaced as an error that would tear down the stream. Every
// drop invokes OnDrop and writes a line to Log.
type Decoder struct {
	Direction Direction

	// OnDrop is invoked with a human-readable reason and the offending
	// datagram whenever a packet is dropped. Nil means no callback.
	OnDrop func(reason string, chunk []byte)

	// Log receives a debug line per dropped packet. Nil means no
	// logging.
	Log *log.Logger
}

// Decode parses one datagram. It returns a *VoicePacket or *PingPacket,
// or nil if the datagram was malformed and dropped.
func (d *Decoder) Decode(chunk []byte) Packet {
	if len(chunk) == 0 {
		return d.drop("empty chunk", chunk)
	}

	codec := Codec(chunk[0] >> 5)
	mode := chunk[0] & 0x1F
	rest := chunk[1:]

	if codec == codecPing {
		ts, _, err := varint.Decode(rest)
		if err != nil {
			return d.drop("invalid ping timestamp", chunk)
		}
		return &PingPacket{Timestamp: ts}
	}

	p := &VoicePacket{
		Mode:   mode,
		Codec:  codec,
		Target: targetForMode(mode),
	}

	if d.Direction == ToClient {
		src, n, err := varint.Decode(rest)
		if err != nil {
			return d.drop("invalid session id", chunk)
		}
		p.Source = uint32(src)
		rest = rest[n:]
	}
	seq, n, err := varint.Decode(rest)
	if err != nil {
		return d.drop("invalid sequence number", chunk)
	}
	p.SeqNum = seq
	rest = rest[n:]

	switch codec {
	case CodecOpus:
		rest, err = decodeOpusFrames(p, rest)
	case CodecCELTAlpha, CodecCELTBeta, CodecSpeex:
		rest, err = decodeLegacyFrames(p, rest)
	default:
		return d.drop("unknown codec id", chunk)
	}
	if err != nil {
		return d.drop(err.Error(), chunk)
	}

	// The strict inequality matches deployed senders: exactly 12
	// trailing bytes do not count as positional audio.
	if len(rest) > 12 {
		p.Position = &Position{
			X: math.Float32frombits(binary.BigEndian.Uint32(rest[0:4])),
			Y: math.Float32frombits(binary.BigEndian.Uint32(rest[4:8])),
			Z: math.Float32frombits(binary.BigEndian.Uint32(rest[8:12])),
		}
	}
	return p
}

func decodeOpusFrames(p *VoicePacket, rest []byte) ([]byte, error) {
	sizeAndEnd, n, err := varint.Decode(rest)
	if err != nil {
		return nil, errBadFrameHeader
	}
	rest = rest[n:]
	p.End = sizeAndEnd&0x2000 != 0
	size := int(sizeAndEnd & 0x1FFF)
	if size > len(rest) {
		return nil, errShortFrame
	}
	if size > 0 {
		frame := make([]byte, size)
		copy(frame, rest)
		p.Frames = append(p.Frames, frame)
	}
	return rest[size:], nil
}

func decodeLegacyFrames(p *VoicePacket, rest []byte) ([]byte, error) {
	for {
		if len(rest) == 0 {
			return nil, errMissingHeader
		}
		h := rest[0]
		rest = rest[1:]
		if h == 0 {
			p.End = true
			return rest, nil
		}
		size := int(h & 0x7F)
		if size > len(rest) {
			return nil, errShortFrame
		}
		frame := make([]byte, size)
		copy(frame, rest)
		p.Frames = append(p.Frames, frame)
		rest = rest[size:]
		if h&0x80 == 0 {
			p.End = false
			return rest, nil
		}
	}
}

// drop records a diagnostic for a malformed datagram and yields no packet.
func (d *Decoder) drop(reason string, chunk []byte) Packet {
	if d.OnDrop != nil {
		d.OnDrop(reason, chunk)
	}
	if d.Log != nil {
		d.Log.Printf("dropped voice datagram (%d bytes): %s", len(chunk), reason)
	}
	return nil
}
