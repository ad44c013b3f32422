package packet

import "errors"

// ErrNoPayload is returned by Decode when the message carried no payload.
var ErrNoPayload = errors.New("packet: no payload")

// Unmarshaler decodes a raw payload in the connection's wire format.
type Unmarshaler func(data []byte, v any) error

// Reader wraps one inbound message: its opcode and still-encoded payload.
// Payloads are decoded lazily by the handler that knows their shape.
type Reader struct {
	op        Opcode
	payload   []byte
	unmarshal Unmarshaler
}

func NewReader(op Opcode, payload []byte, unmarshal Unmarshaler) *Reader {
	return &Reader{op: op, payload: payload, unmarshal: unmarshal}
}

func (r *Reader) Opcode() Opcode { return r.op }

// Empty reports a message without payload.
func (r *Reader) Empty() bool { return len(r.payload) == 0 }

func (r *Reader) Size() int { return len(r.payload) }

// Decode unmarshals the payload into v.
func (r *Reader) Decode(v any) error {
	if r.Empty() {
		return ErrNoPayload
	}
	return r.unmarshal(r.payload, v)
}
