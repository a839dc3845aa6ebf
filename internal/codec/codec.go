package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	ugorji "github.com/ugorji/go/codec"
	"google.golang.org/protobuf/proto"
)

// Codec converts queue values to and from stored payload bytes.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
}

// Error reports a failed encode or decode.
type Error struct {
	Codec string
	Op    string // "encode" or "decode"
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec %s: %s: %v", e.Codec, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func encodeErr(c string, err error) error { return &Error{Codec: c, Op: "encode", Err: err} }
func decodeErr(c string, err error) error { return &Error{Codec: c, Op: "decode", Err: err} }

// Gob encodes values with encoding/gob. Each payload carries its own type
// description so items can be decoded independently of each other.
type Gob struct{}

func (Gob) Name() string { return "gob" }

func (Gob) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, encodeErr("gob", err)
	}
	return buf.Bytes(), nil
}

func (Gob) Unmarshal(b []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(v); err != nil {
		return decodeErr("gob", err)
	}
	return nil
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON encodes values with json-iterator in encoding/json compatible mode.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Marshal(v any) ([]byte, error) {
	b, err := jsonAPI.Marshal(v)
	if err != nil {
		return nil, encodeErr("json", err)
	}
	return b, nil
}

func (JSON) Unmarshal(b []byte, v any) error {
	if err := jsonAPI.Unmarshal(b, v); err != nil {
		return decodeErr("json", err)
	}
	return nil
}

// Msgpack encodes values as MessagePack.
type Msgpack struct {
	h *ugorji.MsgpackHandle
}

// NewMsgpack returns a MessagePack codec that writes str8/bin types and
// decodes raw strings into Go strings.
func NewMsgpack() *Msgpack {
	h := &ugorji.MsgpackHandle{}
	h.WriteExt = true
	h.RawToString = true
	return &Msgpack{h: h}
}

func (*Msgpack) Name() string { return "msgpack" }

func (m *Msgpack) Marshal(v any) ([]byte, error) {
	var out []byte
	if err := ugorji.NewEncoderBytes(&out, m.h).Encode(v); err != nil {
		return nil, encodeErr("msgpack", err)
	}
	return out, nil
}

func (m *Msgpack) Unmarshal(b []byte, v any) error {
	if err := ugorji.NewDecoderBytes(b, m.h).Decode(v); err != nil {
		return decodeErr("msgpack", err)
	}
	return nil
}

// Proto encodes protobuf messages. Values must implement proto.Message.
type Proto struct{}

func (Proto) Name() string { return "proto" }

func (Proto) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, encodeErr("proto", fmt.Errorf("%T is not a proto.Message", v))
	}
	b, err := proto.Marshal(m)
	if err != nil {
		return nil, encodeErr("proto", err)
	}
	return b, nil
}

func (Proto) Unmarshal(b []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return decodeErr("proto", fmt.Errorf("%T is not a proto.Message", v))
	}
	if err := proto.Unmarshal(b, m); err != nil {
		return decodeErr("proto", err)
	}
	return nil
}

// ByName resolves a codec name from configuration. An empty name selects gob.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gob":
		return Gob{}, nil
	case "json":
		return JSON{}, nil
	case "msgpack":
		return NewMsgpack(), nil
	case "proto", "protobuf":
		return Proto{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
