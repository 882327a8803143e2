package voice

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/aeolun/mumblewire/pkg/varint"
)

// Encoder serializes voice and ping packets for one direction of a
// connection.
type Encoder struct {
	Direction Direction
}

// Encode returns the datagram bytes for p. Unlike decoding, encoding is
// strict: malformed packets are the local application's fault and surface
// as errors.
func (e *Encoder) Encode(p Packet) ([]byte, error) {
	switch p := p.(type) {
	case *PingPacket:
		return encodePing(p)
	case *VoicePacket:
		return e.encodeVoice(p)
	default:
		return nil, fmt.Errorf("voice: cannot encode %T", p)
	}
}

func encodePing(p *PingPacket) ([]byte, error) {
	ts, err := varint.Encode(p.Timestamp)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 1+len(ts))
	buf = append(buf, byte(codecPing)<<5)
	return append(buf, ts...), nil
}

func (e *Encoder) encodeVoice(p *VoicePacket) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(p.Codec)<<5 | p.Mode&0x1F)

	if e.Direction == ToClient {
		src, err := varint.Encode(int64(p.Source))
		if err != nil {
			return nil, err
		}
		buf.Write(src)
	}
	seq, err := varint.Encode(p.SeqNum)
	if err != nil {
		return nil, err
	}
	buf.Write(seq)

	if p.Codec == CodecOpus {
		err = encodeOpusFrames(buf, p)
	} else {
		err = encodeLegacyFrames(buf, p)
	}
	if err != nil {
		return nil, err
	}

	if p.Position != nil {
		var pos [12]byte
		binary.BigEndian.PutUint32(pos[0:4], math.Float32bits(p.Position.X))
		binary.BigEndian.PutUint32(pos[4:8], math.Float32bits(p.Position.Y))
		binary.BigEndian.PutUint32(pos[8:12], math.Float32bits(p.Position.Z))
		buf.Write(pos[:])
	}
	return buf.Bytes(), nil
}

// encodeOpusFrames writes the single size-prefixed Opus frame. The
// transmission-end flag rides in bit 13 of the size varint.
func encodeOpusFrames(buf *bytes.Buffer, p *VoicePacket) error {
	if len(p.Frames) > 1 {
		return ErrOpusMultiframe
	}
	var size int64
	if len(p.Frames) == 1 {
		if len(p.Frames[0]) > MaxOpusFrame {
			return fmt.Errorf("%w: opus frame of %d bytes", ErrFrameTooLarge, len(p.Frames[0]))
		}
		size = int64(len(p.Frames[0]))
	}
	if p.End {
		size |= 0x2000
	}
	header, err := varint.Encode(size)
	if err != nil {
		return err
	}
	buf.Write(header)
	if len(p.Frames) == 1 {
		buf.Write(p.Frames[0])
	}
	return nil
}

// encodeLegacyFrames writes the CELT/Speex frame chain. Each frame is a
// 7-bit length with the high bit signalling a successor; a transmission
// end is a zero length byte after the chain, so the last real frame keeps
// its continuation bit in that case.
func encodeLegacyFrames(buf *bytes.Buffer, p *VoicePacket) error {
	if len(p.Frames) == 0 && !p.End {
		return ErrNoFramesNoEnd
	}
	for i, frame := range p.Frames {
		if len(frame) > MaxLegacyFrame {
			return fmt.Errorf("%w: frame of %d bytes", ErrFrameTooLarge, len(frame))
		}
		h := byte(len(frame)) | 0x80
		if i == len(p.Frames)-1 && !p.End {
			h &^= 0x80
		}
		buf.WriteByte(h)
		buf.Write(frame)
	}
	if p.End {
		buf.WriteByte(0x00)
	}
	return nil
}
