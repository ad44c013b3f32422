package net

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/net/packet"
)

func TestServer_UpgradeAndExchange(t *testing.T) {
	cfg := config.Default().Network
	cfg.Codec = "json"
	srv, err := NewServer(cfg, zap.NewNop())
	require.NoError(t, err)

	hs := httptest.NewServer(srv)
	defer hs.Close()

	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	var sess *Session
	select {
	case sess = <-srv.NewSessions():
	case <-time.After(2 * time.Second):
		t.Fatal("no session queued")
	}
	defer sess.Close()
	assert.Equal(t, packet.StateConnected, sess.State())

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`[16, {"text": "hi"}]`)))
	select {
	case r := <-sess.InQueue:
		assert.Equal(t, packet.OpChat, r.Opcode())
	case <-time.After(2 * time.Second):
		t.Fatal("no inbound message")
	}

	sess.Send(packet.Notify("welcome"))
	sess.FlushOutput()
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, frame, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.JSONEq(t, `[[17, {"opcode": 0, "message": "welcome"}]]`, string(frame))

	client.Close()
	select {
	case id := <-srv.DeadSessions():
		assert.Equal(t, sess.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("dead session not reported")
	}
}

func TestServer_RejectsAfterShutdown(t *testing.T) {
	srv, err := NewServer(config.Default().Network, zap.NewNop())
	require.NoError(t, err)
	srv.Shutdown()

	hs := httptest.NewServer(srv)
	defer hs.Close()

	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.StatusCode)
}
