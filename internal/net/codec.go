package net

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tilerealm/server/internal/net/packet"
)

// ErrEmptyFrame is returned for a frame that carries no message.
var ErrEmptyFrame = errors.New("empty frame")

// Codec turns a tick's outbound messages into one frame and splits an
// inbound frame into messages. A frame is either one [op, payload] pair or an
// array of them.
type Codec interface {
	Name() string
	MessageType() int
	Encode(msgs []packet.Message) ([]byte, error)
	Decode(frame []byte) ([]*packet.Reader, error)
}

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return jsonCodec{}, nil
	case "msgpack":
		return msgpackCodec{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

func pairs(msgs []packet.Message) []any {
	out := make([]any, len(msgs))
	for i, m := range msgs {
		out[i] = []any{uint8(m.Op), m.Data}
	}
	return out
}

type jsonCodec struct{}

func (jsonCodec) Name() string     { return "json" }
func (jsonCodec) MessageType() int { return websocket.TextMessage }

func (jsonCodec) Encode(msgs []packet.Message) ([]byte, error) {
	return json.Marshal(pairs(msgs))
}

func (jsonCodec) Decode(frame []byte) ([]*packet.Reader, error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(frame, &outer); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if len(outer) == 0 {
		return nil, ErrEmptyFrame
	}
	if first := bytes.TrimSpace(outer[0]); len(first) > 0 && first[0] == '[' {
		out := make([]*packet.Reader, 0, len(outer))
		for _, raw := range outer {
			var pair []json.RawMessage
			if err := json.Unmarshal(raw, &pair); err != nil {
				return nil, fmt.Errorf("decode message: %w", err)
			}
			r, err := jsonPair(pair)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, nil
	}
	r, err := jsonPair(outer)
	if err != nil {
		return nil, err
	}
	return []*packet.Reader{r}, nil
}

func jsonPair(pair []json.RawMessage) (*packet.Reader, error) {
	if len(pair) == 0 || len(pair) > 2 {
		return nil, fmt.Errorf("message has %d elements", len(pair))
	}
	var op uint8
	if err := json.Unmarshal(pair[0], &op); err != nil {
		return nil, fmt.Errorf("decode opcode: %w", err)
	}
	var payload []byte
	if len(pair) == 2 && !bytes.Equal(bytes.TrimSpace(pair[1]), []byte("null")) {
		payload = pair[1]
	}
	return packet.NewReader(packet.Opcode(op), payload, json.Unmarshal), nil
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string     { return "msgpack" }
func (msgpackCodec) MessageType() int { return websocket.BinaryMessage }

func (msgpackCodec) Encode(msgs []packet.Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(pairs(msgs)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func msgpackUnmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// isMsgpackArray reports whether b starts with a msgpack array header.
func isMsgpackArray(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	c := b[0]
	return (c >= 0x90 && c <= 0x9f) || c == 0xdc || c == 0xdd
}

func (msgpackCodec) Decode(frame []byte) ([]*packet.Reader, error) {
	var outer []msgpack.RawMessage
	if err := msgpackUnmarshal(frame, &outer); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if len(outer) == 0 {
		return nil, ErrEmptyFrame
	}
	if isMsgpackArray(outer[0]) {
		out := make([]*packet.Reader, 0, len(outer))
		for _, raw := range outer {
			var pair []msgpack.RawMessage
			if err := msgpackUnmarshal(raw, &pair); err != nil {
				return nil, fmt.Errorf("decode message: %w", err)
			}
			r, err := msgpackPair(pair)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
		return out, nil
	}
	r, err := msgpackPair(outer)
	if err != nil {
		return nil, err
	}
	return []*packet.Reader{r}, nil
}

func msgpackPair(pair []msgpack.RawMessage) (*packet.Reader, error) {
	if len(pair) == 0 || len(pair) > 2 {
		return nil, fmt.Errorf("message has %d elements", len(pair))
	}
	var op uint8
	if err := msgpackUnmarshal(pair[0], &op); err != nil {
		return nil, fmt.Errorf("decode opcode: %w", err)
	}
	var payload []byte
	if len(pair) == 2 && !(len(pair[1]) == 1 && pair[1][0] == 0xc0) {
		payload = pair[1]
	}
	return packet.NewReader(packet.Opcode(op), payload, msgpackUnmarshal), nil
}
