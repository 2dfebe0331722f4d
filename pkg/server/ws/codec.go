package ws

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/peter-kozarec/tickreplay/pkg/bus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type Codec int

const (
	CodecJSON Codec = iota
	CodecProto
)

func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "json":
		return CodecJSON, nil
	case "proto", "protobuf":
		return CodecProto, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", s)
	}
}

func (c Codec) String() string {
	if c == CodecProto {
		return "proto"
	}
	return "json"
}

func (c Codec) messageType() int {
	if c == CodecProto {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// Envelope is the frame every event travels in.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (c Codec) Encode(id bus.EventId, payload any) ([]byte, error) {
	env := Envelope{Type: id.String(), Payload: payload}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s: %w", id, err)
	}
	if c == CodecJSON {
		return b, nil
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unable to encode %s: %w", id, err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s: %w", id, err)
	}
	return proto.Marshal(st)
}

// Decode reverses Encode into a generic envelope, payload as a map.
func (c Codec) Decode(data []byte) (map[string]any, error) {
	if c == CodecJSON {
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return st.AsMap(), nil
}
