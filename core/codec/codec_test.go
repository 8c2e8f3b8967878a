package codec

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type snapshot struct {
	Accepted uint64            `json:"accepted"`
	Slots    int               `json:"slots"`
	Env      string            `json:"env"`
	Outcomes map[string]uint64 `json:"outcomes"`
}

func TestProtobufCodecStruct(t *testing.T) {
	c := ProtobufCodec{}
	original := snapshot{Accepted: 42, Slots: 8, Env: "dev", Outcomes: map[string]uint64{"file": 3}}

	data, err := c.Encode(original)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	// The wire form is a plain google.protobuf.Struct.
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		t.Fatalf("not a Struct: %v", err)
	}
	if st.Fields["env"].GetStringValue() != "dev" || st.Fields["accepted"].GetNumberValue() != 42 {
		t.Errorf("unexpected fields: %v", st.Fields)
	}

	var decoded snapshot
	if err := c.Decode(data, &decoded); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if decoded.Accepted != 42 || decoded.Slots != 8 || decoded.Outcomes["file"] != 3 {
		t.Errorf("got %+v, want %+v", decoded, original)
	}
}

func TestProtobufCodecMessage(t *testing.T) {
	c := ProtobufCodec{}

	data, err := c.Encode(wrapperspb.Int32(42))
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	decoded := &wrapperspb.Int32Value{}
	if err := c.Decode(data, decoded); err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if decoded.Value != 42 {
		t.Errorf("got %d, want 42", decoded.Value)
	}
}

func TestProtobufCodecRejectsScalars(t *testing.T) {
	if _, err := (ProtobufCodec{}).Encode(7); err == nil {
		t.Error("Encode of a scalar should fail")
	}
}

func TestForAccept(t *testing.T) {
	tests := []struct {
		accept string
		want   string
	}{
		{"", "json"},
		{"*/*", "json"},
		{"application/json", "json"},
		{"application/x-protobuf", "protobuf"},
		{"text/html, application/protobuf;q=0.9", "protobuf"},
		{"application/json, application/x-protobuf", "json"},
	}

	for _, tt := range tests {
		if got := ForAccept(tt.accept).Name(); got != tt.want {
			t.Errorf("ForAccept(%q) = %s, want %s", tt.accept, got, tt.want)
		}
	}
}

func TestGetCodec(t *testing.T) {
	if c, err := GetCodec("json"); err != nil || c.ContentType() != "application/json" {
		t.Errorf("GetCodec(json) = %v, %v", c, err)
	}
	if _, err := GetCodec("msgpack"); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("GetCodec(msgpack) err = %v, want ErrUnsupportedCodec", err)
	}
}
