package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tilerealm/server/internal/net/packet"
)

func TestNewCodec(t *testing.T) {
	for _, name := range []string{"", "json", "msgpack"} {
		c, err := NewCodec(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, c.Name())
	}
	_, err := NewCodec("xml")
	assert.Error(t, err)
}

func TestJSONCodec_Decode(t *testing.T) {
	c := jsonCodec{}
	tests := []struct {
		name  string
		frame string
		ops   []packet.Opcode
		err   bool
	}{
		{"single", `[7, {"opcode": 1, "x": 3, "y": 4}]`, []packet.Opcode{packet.OpMovement}, false},
		{"no payload", `[3]`, []packet.Opcode{packet.OpReady}, false},
		{"batch", `[[7, {"opcode": 1}], [9, {"opcode": 0}]]`, []packet.Opcode{packet.OpMovement, packet.OpCombat}, false},
		{"empty", `[]`, nil, true},
		{"garbage", `{"op": 1}`, nil, true},
		{"bad opcode", `["move", {}]`, nil, true},
		{"too long", `[1, {}, {}]`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := c.Decode([]byte(tt.frame))
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, msgs, len(tt.ops))
			for i, op := range tt.ops {
				assert.Equal(t, op, msgs[i].Opcode())
			}
		})
	}
}

func TestJSONCodec_PayloadDecode(t *testing.T) {
	msgs, err := jsonCodec{}.Decode([]byte(`[7, {"opcode": 1, "x": 3, "y": 4}]`))
	require.NoError(t, err)
	var req packet.MovementRequest
	require.NoError(t, msgs[0].Decode(&req))
	assert.Equal(t, 3, req.X)
	assert.Equal(t, 4, req.Y)

	msgs, err = jsonCodec{}.Decode([]byte(`[3, null]`))
	require.NoError(t, err)
	assert.True(t, msgs[0].Empty())
	assert.ErrorIs(t, msgs[0].Decode(&req), packet.ErrNoPayload)
}

func TestJSONCodec_Encode(t *testing.T) {
	frame, err := jsonCodec{}.Encode([]packet.Message{
		packet.Despawn(5),
		packet.Notify("hi"),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[[5, {"instance": 5}], [17, {"opcode": 0, "message": "hi"}]]`, string(frame))
}

func TestMsgpackCodec_RoundTrip(t *testing.T) {
	c := msgpackCodec{}

	frame, err := msgpack.Marshal([]any{uint8(packet.OpMovement), map[string]any{"opcode": 1, "x": 9, "y": 2}})
	require.NoError(t, err)
	msgs, err := c.Decode(frame)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	var req packet.MovementRequest
	require.NoError(t, msgs[0].Decode(&req))
	assert.Equal(t, 9, req.X)
	assert.Equal(t, 2, req.Y)

	batch, err := msgpack.Marshal([]any{
		[]any{uint8(packet.OpReady)},
		[]any{uint8(packet.OpChat), map[string]any{"text": "yo"}},
	})
	require.NoError(t, err)
	msgs, err = c.Decode(batch)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Empty())
	var chat packet.ChatRequest
	require.NoError(t, msgs[1].Decode(&chat))
	assert.Equal(t, "yo", chat.Text)

	_, err = c.Decode([]byte{0xc1})
	assert.Error(t, err)
}

func TestMsgpackCodec_EncodeUsesJSONTags(t *testing.T) {
	frame, err := msgpackCodec{}.Encode([]packet.Message{packet.Despawn(42)})
	require.NoError(t, err)

	var raw [][]msgpack.RawMessage
	require.NoError(t, msgpack.Unmarshal(frame, &raw))
	require.Len(t, raw, 1)
	var data map[string]any
	require.NoError(t, msgpack.Unmarshal(raw[0][1], &data))
	assert.Contains(t, data, "instance")
}
