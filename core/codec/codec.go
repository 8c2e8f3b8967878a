// Package codec encodes server statistics for the admin endpoint.
package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
)

// Codec encodes and decodes values
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
	ContentType() string
}

// GetCodec returns a codec by name
func GetCodec(name string) (Codec, error) {
	switch name {
	case "json":
		return JSONCodec{}, nil
	case "protobuf", "proto":
		return ProtobufCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, name)
	}
}

// ForAccept picks the codec matching an Accept header, JSON by default.
func ForAccept(accept string) Codec {
	for _, part := range strings.Split(accept, ",") {
		mt := strings.TrimSpace(part)
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = strings.TrimSpace(mt[:i])
		}
		switch mt {
		case "application/x-protobuf", "application/protobuf", "application/vnd.google.protobuf":
			return ProtobufCodec{}
		case "application/json":
			return JSONCodec{}
		}
	}
	return JSONCodec{}
}

// JSONCodec implements JSON encoding/decoding
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string {
	return "json"
}

func (JSONCodec) ContentType() string {
	return "application/json"
}

// ProtobufCodec implements Protocol Buffers encoding/decoding. Values that
// are not proto messages travel as a google.protobuf.Struct built from
// their JSON form.
type ProtobufCodec struct{}

func (ProtobufCodec) Encode(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return proto.Marshal(msg)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("protobuf codec needs an object, got %T: %w", v, err)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(st)
}

func (ProtobufCodec) Decode(data []byte, v any) error {
	if msg, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, msg)
	}

	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return err
	}
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func (ProtobufCodec) Name() string {
	return "protobuf"
}

func (ProtobufCodec) ContentType() string {
	return "application/x-protobuf"
}
