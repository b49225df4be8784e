package proto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec names accepted in the websocket query string.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Codec encodes outbound frames and decodes inbound envelopes for one
// connection.
type Codec interface {
	Name() string
	// Binary reports whether frames go out as binary websocket messages.
	Binary() bool
	Encode(v any) ([]byte, error)
	Decode(data []byte) (ClientMessage, error)
}

// CodecByName returns the named codec, defaulting to JSON for "".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// JSONCodec speaks text frames.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte) (ClientMessage, error) {
	return DecodeClientMessage(data)
}

// MsgpackCodec speaks binary frames. Struct fields are keyed by their json
// tags so both codecs share one field vocabulary.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }

func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type msgpackEnvelope struct {
	Ver       int    `msgpack:"ver"`
	Type      string `msgpack:"type"`
	RequestID string `msgpack:"requestId"`
	Payload   any    `msgpack:"payload"`
}

// Decode reads a msgpack envelope. The payload is re-encoded as JSON so the
// request handlers and the input gateway see one representation.
func (MsgpackCodec) Decode(data []byte) (ClientMessage, error) {
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return ClientMessage{}, err
	}
	msg := ClientMessage{Ver: env.Ver, Type: env.Type, RequestID: env.RequestID}
	if env.Payload != nil {
		raw, err := json.Marshal(env.Payload)
		if err != nil {
			return msg, fmt.Errorf("re-encode payload: %w", err)
		}
		msg.Payload = raw
	}
	return normalize(msg)
}
