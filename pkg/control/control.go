// Package control implements the framing layer of the Mumble control
// channel: a reliable byte stream carrying structured messages, each
// prefixed with a 6-byte header of type id and payload length.
//
// Payload serialization is delegated to a Registry of per-message schemas,
// so the framing layer itself has no knowledge of the protocol-buffer
// types. The UDPTunnel message is the one exception: its payload is an
// encrypted datagram relayed verbatim.
package control

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// HeaderSize is the fixed frame header: u16 type id + u32 payload length.
	HeaderSize = 6

	// DefaultMaxPayload caps the payload length accepted by Decoder
	// unless overridden. The wire format itself has no limit.
	DefaultMaxPayload = 8 * 1024 * 1024
)

var (
	ErrUnknownMessageID   = errors.New("control: unknown message type id")
	ErrUnknownMessageName = errors.New("control: unknown message name")
	ErrSchemaEncode       = errors.New("control: payload serialization failed")
	ErrSchemaDecode       = errors.New("control: payload deserialization failed")
	ErrFrameTooLarge      = errors.New("control: frame exceeds maximum payload size")
)

// Message is one decoded control-channel frame. Payload is whatever the
// schema for Name produced: a []byte for UDPTunnel and raw schemas, a
// proto.Message for proto schemas.
type Message struct {
	Name    string
	Payload any
}

// Encoder frames control messages for the wire. The zero value uses a
// default registry with raw byte-string schemas.
type Encoder struct {
	Registry *Registry
}

// Encode frames one message and returns the wire bytes.
func (e *Encoder) Encode(name string, payload any) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := e.EncodeTo(buf, name, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo frames one message directly to a writer.
func (e *Encoder) EncodeTo(w io.Writer, name string, payload any) error {
	reg := e.registry()
	id, ok := reg.ID(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessageName, name)
	}

	var body []byte
	if name == MsgUDPTunnel {
		b, ok := payload.([]byte)
		if !ok {
			return fmt.Errorf("%w: %s payload must be []byte, got %T", ErrSchemaEncode, MsgUDPTunnel, payload)
		}
		body = b
	} else {
		b, err := reg.Schema(name).Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSchemaEncode, name, err)
		}
		body = b
	}

	var header [HeaderSize]byte
	binary.BigEndian.PutUint16(header[0:2], id)
	binary.BigEndian.PutUint32(header[2:6], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) registry() *Registry {
	if e.Registry != nil {
		return e.Registry
	}
	return defaultRegistry
}

var defaultRegistry = NewRegistry()

// Decoder reassembles control messages from a byte stream. Chunks pushed
// into it may split or merge frames arbitrarily; partial frames are
// buffered until complete.
type Decoder struct {
	// Registry resolves type ids and payload schemas. Nil means a
	// default registry with raw byte-string schemas.
	Registry *Registry

	// MaxPayload rejects frames whose declared payload length exceeds
	// it. Zero means DefaultMaxPayload; negative disables the cap.
	MaxPayload int

	buf []byte
}

// Push appends a chunk to the stream and returns all messages that became
// complete. A decode error is returned alongside the messages extracted
// before it; the offending frame has been drained (its length header is
// trusted), so further pushes keep working. Frames still buffered after an
// error are delivered on the next call; Push(nil) flushes them. The
// exception is ErrFrameTooLarge: the oversized frame is not drained, so
// every later push reports it again.
func (d *Decoder) Push(chunk []byte) ([]Message, error) {
	reg := d.Registry
	if reg == nil {
		reg = defaultRegistry
	}
	maxPayload := d.MaxPayload
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}

	d.buf = append(d.buf, chunk...)

	var msgs []Message
	var err error
	off := 0
	for {
		if len(d.buf)-off < HeaderSize {
			break
		}
		id := binary.BigEndian.Uint16(d.buf[off : off+2])
		size := binary.BigEndian.Uint32(d.buf[off+2 : off+6])
		if maxPayload > 0 && int64(size) > int64(maxPayload) {
			// Cannot skip a frame we refuse to buffer; the
			// stream is unrecoverable from here.
			err = fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
			break
		}
		if len(d.buf)-off < HeaderSize+int(size) {
			break
		}
		body := d.buf[off+HeaderSize : off+HeaderSize+int(size)]
		off += HeaderSize + int(size)

		name, ok := reg.Name(id)
		if !ok {
			err = fmt.Errorf("%w: %d", ErrUnknownMessageID, id)
			break
		}
		var payload any
		if name == MsgUDPTunnel {
			out := make([]byte, len(body))
			copy(out, body)
			payload = out
		} else {
			payload, err = reg.Schema(name).Unmarshal(body)
			if err != nil {
				err = fmt.Errorf("%w: %s: %v", ErrSchemaDecode, name, err)
				break
			}
		}
		msgs = append(msgs, Message{Name: name, Payload: payload})
	}

	// Compact instead of re-slicing so the decoder never pins a large
	// exhausted buffer.
	d.buf = append(d.buf[:0], d.buf[off:]...)
	return msgs, err
}
