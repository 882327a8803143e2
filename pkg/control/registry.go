package control

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Message names in wire order. The position of a name in this list is its
// 16-bit type id.
const (
	MsgVersion             = "Version"
	MsgUDPTunnel           = "UDPTunnel"
	MsgAuthenticate        = "Authenticate"
	MsgPing                = "Ping"
	MsgReject              = "Reject"
	MsgServerSync          = "ServerSync"
	MsgChannelRemove       = "ChannelRemove"
	MsgChannelState        = "ChannelState"
	MsgUserRemove          = "UserRemove"
	MsgUserState           = "UserState"
	MsgBanList             = "BanList"
	MsgTextMessage         = "TextMessage"
	MsgPermissionDenied    = "PermissionDenied"
	MsgACL                 = "ACL"
	MsgQueryUsers          = "QueryUsers"
	MsgCryptSetup          = "CryptSetup"
	MsgContextActionModify = "ContextActionModify"
	MsgContextAction       = "ContextAction"
	MsgUserList            = "UserList"
	MsgVoiceTarget         = "VoiceTarget"
	MsgPermissionQuery     = "PermissionQuery"
	MsgCodecVersion        = "CodecVersion"
	MsgUserStats           = "UserStats"
	MsgRequestBlob         = "RequestBlob"
	MsgServerConfig        = "ServerConfig"
	MsgSuggestConfig       = "SuggestConfig"
)

var messageNames = []string{
	MsgVersion,
	MsgUDPTunnel,
	MsgAuthenticate,
	MsgPing,
	MsgReject,
	MsgServerSync,
	MsgChannelRemove,
	MsgChannelState,
	MsgUserRemove,
	MsgUserState,
	MsgBanList,
	MsgTextMessage,
	MsgPermissionDenied,
	MsgACL,
	MsgQueryUsers,
	MsgCryptSetup,
	MsgContextActionModify,
	MsgContextAction,
	MsgUserList,
	MsgVoiceTarget,
	MsgPermissionQuery,
	MsgCodecVersion,
	MsgUserStats,
	MsgRequestBlob,
	MsgServerConfig,
	MsgSuggestConfig,
}

// Schema serializes and deserializes one control message kind. The codec
// treats payloads as opaque; the schema decides their concrete type.
type Schema interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// RawSchema is the identity schema over byte strings. It is the permanent
// schema for UDPTunnel and the default for every other message until the
// caller installs a typed one.
type RawSchema struct{}

func (RawSchema) Marshal(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("raw schema requires []byte payload, got %T", v)
	}
	return b, nil
}

func (RawSchema) Unmarshal(data []byte) (any, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// ProtoSchema adapts a generated protocol-buffer message type to the
// Schema interface. New must return a fresh, empty message on each call.
type ProtoSchema struct {
	New func() proto.Message
}

func (s ProtoSchema) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("proto schema requires proto.Message payload, got %T", v)
	}
	return proto.Marshal(m)
}

func (s ProtoSchema) Unmarshal(data []byte) (any, error) {
	m := s.New()
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Registry maps control message names to their 16-bit type ids and to the
// schema used for their payloads. The name/id table is fixed by the
// protocol; schemas may be swapped per message (typically to the generated
// Mumble.proto types via UseProto, or to mocks in tests).
type Registry struct {
	byName  map[string]uint16
	byID    map[uint16]string
	schemas map[string]Schema
}

// NewRegistry returns a registry with the full 26-message table and raw
// byte-string schemas everywhere.
func NewRegistry() *Registry {
	r := &Registry{
		byName:  make(map[string]uint16, len(messageNames)),
		byID:    make(map[uint16]string, len(messageNames)),
		schemas: make(map[string]Schema, len(messageNames)),
	}
	for i, name := range messageNames {
		id := uint16(i)
		r.byName[name] = id
		r.byID[id] = name
		r.schemas[name] = RawSchema{}
	}
	return r
}

// ID resolves a message name to its type id.
func (r *Registry) ID(name string) (uint16, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Name resolves a type id to its message name.
func (r *Registry) Name(id uint16) (string, bool) {
	name, ok := r.byID[id]
	return name, ok
}

// Schema returns the schema registered for name, or nil if the name is not
// part of the protocol.
func (r *Registry) Schema(name string) Schema {
	return r.schemas[name]
}

// Names returns the message names in type-id order.
func (r *Registry) Names() []string {
	out := make([]string, len(messageNames))
	copy(out, messageNames)
	return out
}

// Use installs a schema for name. UDPTunnel payloads are verbatim byte
// strings by protocol definition and cannot be rebound.
func (r *Registry) Use(name string, s Schema) error {
	if _, ok := r.byName[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessageName, name)
	}
	if name == MsgUDPTunnel {
		return fmt.Errorf("%s payload is always a raw byte string", MsgUDPTunnel)
	}
	r.schemas[name] = s
	return nil
}

// UseProto installs a protocol-buffer schema for name. newMsg must return
// a fresh message of the generated type on each call.
func (r *Registry) UseProto(name string, newMsg func() proto.Message) error {
	return r.Use(name, ProtoSchema{New: newMsg})
}
