package net

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/net/packet"
)

// fakeConn feeds frames from in and records written frames. Like a real
// websocket, writes fail once the connection is closed.
type fakeConn struct {
	in      chan []byte
	mu      sync.Mutex
	written [][]byte
	goodbye bool
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-c.in:
		return 1, b, nil
	case <-c.closed:
		return 0, nil, errors.New("closed")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	if messageType == websocket.CloseMessage {
		c.goodbye = true
		return nil
	}
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) saidGoodbye() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.goodbye
}

func (c *fakeConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetReadLimit(int64)               {}
func (c *fakeConn) RemoteAddr() net.Addr             { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000} }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func testSession(conn Conn, cfg SessionConfig) *Session {
	return NewSession(conn, 1, jsonCodec{}, cfg, zap.NewNop())
}

func TestSession_FlushBatchesOneFrame(t *testing.T) {
	conn := newFakeConn()
	s := testSession(conn, SessionConfig{InQueueSize: 4, OutQueueSize: 4})
	assert.Equal(t, "127.0.0.1:9000", s.IP)

	s.Send(packet.Despawn(1))
	s.Send(packet.Despawn(2))
	assert.Equal(t, 2, s.Pending())
	s.FlushOutput()
	assert.Equal(t, 0, s.Pending())

	require.Len(t, s.OutQueue, 1)
	assert.JSONEq(t, `[[5, {"instance": 1}], [5, {"instance": 2}]]`, string(<-s.OutQueue))

	s.FlushOutput()
	assert.Len(t, s.OutQueue, 0, "empty buffer sends nothing")
}

func TestSession_FullOutQueueCloses(t *testing.T) {
	var dead []uint64
	s := testSession(newFakeConn(), SessionConfig{OutQueueSize: 1})
	s.OnClose(func(id uint64) { dead = append(dead, id) })

	s.Send(packet.Despawn(1))
	s.FlushOutput()
	s.Send(packet.Despawn(2))
	s.FlushOutput()

	assert.True(t, s.IsClosed())
	assert.Equal(t, packet.StateDisconnecting, s.State())
	assert.Equal(t, []uint64{1}, dead)

	s.Close()
	assert.Len(t, dead, 1, "close runs once")

	s.Send(packet.Despawn(3))
	assert.Equal(t, 0, s.Pending(), "closed sessions drop sends")
}

func TestSession_ReadLoopDecodes(t *testing.T) {
	conn := newFakeConn()
	s := testSession(conn, SessionConfig{InQueueSize: 4, OutQueueSize: 4})
	s.Start()
	defer s.Close()

	conn.in <- []byte(`not json`)
	conn.in <- []byte(`[[3], [16, {"text": "hello"}]]`)

	first := <-s.InQueue
	assert.Equal(t, packet.OpReady, first.Opcode())
	second := <-s.InQueue
	var chat packet.ChatRequest
	require.NoError(t, second.Decode(&chat))
	assert.Equal(t, "hello", chat.Text)
	assert.False(t, s.IsClosed(), "malformed frames do not drop the client")
}

func TestSession_WriteLoopWritesFrames(t *testing.T) {
	conn := newFakeConn()
	s := testSession(conn, SessionConfig{InQueueSize: 1, OutQueueSize: 4})
	s.Start()
	defer s.Close()

	s.Send(packet.Despawn(7))
	s.FlushOutput()

	require.Eventually(t, func() bool { return len(conn.frames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `[[5, {"instance": 7}]]`, string(conn.frames()[0]))
}

func TestSession_RateLimit(t *testing.T) {
	s := testSession(newFakeConn(), SessionConfig{PacketsPerSecond: 2})
	assert.True(t, s.allow(100))
	assert.True(t, s.allow(100))
	assert.False(t, s.allow(100))
	assert.True(t, s.allow(101), "budget resets each second")

	unlimited := testSession(newFakeConn(), SessionConfig{})
	for i := 0; i < 1000; i++ {
		require.True(t, unlimited.allow(100))
	}
}

func TestHub(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := NewSession(newFakeConn(), 2, jsonCodec{}, SessionConfig{OutQueueSize: 2}, zap.NewNop())
	b := NewSession(newFakeConn(), 1, jsonCodec{}, SessionConfig{OutQueueSize: 2}, zap.NewNop())
	h.Add(a)
	h.Add(b)
	assert.Equal(t, 2, h.Len())

	var order []uint64
	h.Each(func(s *Session) { order = append(order, s.ID) })
	assert.Equal(t, []uint64{1, 2}, order)

	h.Send(2, packet.Despawn(9))
	h.Send(99, packet.Despawn(9))
	h.FlushAll()
	assert.Len(t, a.OutQueue, 1)
	assert.Len(t, b.OutQueue, 0)

	b.Close()
	assert.Equal(t, []uint64{1}, h.Closed())
	assert.Same(t, b, h.Remove(1))
	assert.Nil(t, h.Remove(1))
	assert.Nil(t, h.Get(1))
}

func TestSession_CloseFlushDeliversLastFrame(t *testing.T) {
	conn := newFakeConn()
	s := testSession(conn, SessionConfig{InQueueSize: 1, OutQueueSize: 4})
	var dead []uint64
	var mu sync.Mutex
	s.OnClose(func(id uint64) {
		mu.Lock()
		dead = append(dead, id)
		mu.Unlock()
	})
	s.Start()

	s.Send(packet.Notify("timeout"))
	s.CloseFlush()
	assert.True(t, s.IsClosed(), "reported closed before the socket goes")
	s.Close()
	s.Send(packet.Notify("ignored"))

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session never closed")
	}
	frames := conn.frames()
	require.Len(t, frames, 1)
	assert.Contains(t, string(frames[0]), "timeout")
	assert.NotContains(t, string(frames[0]), "ignored")
	assert.True(t, conn.saidGoodbye())
	mu.Lock()
	assert.Equal(t, []uint64{1}, dead)
	mu.Unlock()
}

func TestSession_CloseFlushWithoutWriter(t *testing.T) {
	conn := newFakeConn()
	s := testSession(conn, SessionConfig{OutQueueSize: 4})

	s.Send(packet.Despawn(3))
	s.CloseFlush()

	assert.True(t, s.IsClosed())
	require.Len(t, conn.frames(), 1)
	assert.JSONEq(t, `[[5, {"instance": 3}]]`, string(conn.frames()[0]))
	select {
	case <-s.Done():
	default:
		t.Fatal("session not closed")
	}
}

func TestHub_DisconnectDeliversPending(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := newFakeConn()
	s := NewSession(conn, 4, jsonCodec{}, SessionConfig{InQueueSize: 1, OutQueueSize: 2}, zap.NewNop())
	s.Start()
	h.Add(s)

	h.Send(4, packet.Notify("timeout"))
	h.Disconnect(4)
	assert.Equal(t, []uint64{4}, h.Closed())

	require.Eventually(t, func() bool { return len(conn.frames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, string(conn.frames()[0]), "timeout")
}

func TestHub_CloseAllNotifiesEveryone(t *testing.T) {
	h := NewHub(zap.NewNop())
	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	for i, c := range conns {
		s := NewSession(c, uint64(i+1), jsonCodec{}, SessionConfig{InQueueSize: 1, OutQueueSize: 2}, zap.NewNop())
		s.Start()
		h.Add(s)
	}

	h.CloseAll(time.Second)

	for _, c := range conns {
		frames := c.frames()
		require.Len(t, frames, 1)
		assert.Contains(t, string(frames[0]), ShutdownNotice)
		assert.True(t, c.saidGoodbye())
	}
}
