package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	stdnet "net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/core/timer"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/game"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/persist"
	"github.com/tilerealm/server/internal/world"
)

type stubConn struct{ closed chan struct{} }

func (c *stubConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}
func (c *stubConn) WriteMessage(int, []byte) error   { return nil }
func (c *stubConn) SetReadDeadline(time.Time) error  { return nil }
func (c *stubConn) SetWriteDeadline(time.Time) error { return nil }
func (c *stubConn) SetReadLimit(int64)               {}
func (c *stubConn) RemoteAddr() stdnet.Addr          { return &stdnet.TCPAddr{IP: stdnet.IPv4(10, 0, 0, 1)} }

func (c *stubConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

type recorder struct {
	sent map[uint64][]packet.Message
}

func (r *recorder) Send(session uint64, msg packet.Message) {
	r.sent[session] = append(r.sent[session], msg)
}

func (r *recorder) last(session uint64, op packet.Opcode) (packet.Message, bool) {
	msgs := r.sent[session]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Op == op {
			return msgs[i], true
		}
	}
	return packet.Message{}, false
}

func (r *recorder) count(session uint64, op packet.Opcode) int {
	n := 0
	for _, m := range r.sent[session] {
		if m.Op == op {
			n++
		}
	}
	return n
}

type harness struct {
	deps  *Deps
	reg   *packet.Registry
	out   *recorder
	store *persist.Memory
	clock *timer.ManualClock
	codec net.Codec
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tiles := make([][]int, 30*30)
	for i := range tiles {
		tiles[i] = []int{data.DefaultGround}
	}
	m, err := data.NewMap(data.MapDef{Width: 30, Height: 30, Data: tiles})
	require.NoError(t, err)
	mobs, err := data.NewMobTable([]data.MobTemplate{{Key: "rat", Name: "Rat", HitPoints: 10, Level: 1}})
	require.NoError(t, err)
	trees, err := data.NewTreeTable(nil)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Server.Admins = []string{"root"}
	cfg.Database.AutoCreateAccounts = true
	cfg.World.RegionWidth, cfg.World.RegionHeight = 10, 10
	cfg.World.SpawnX, cfg.World.SpawnY = 5, 5

	codec, err := net.NewCodec("json")
	require.NoError(t, err)

	h := &harness{
		out:   &recorder{sent: make(map[uint64][]packet.Message)},
		store: persist.NewMemory(),
		clock: timer.NewManualClock(time.Unix(1_700_000_000, 0)),
		codec: codec,
	}
	w := game.NewWorld(game.Deps{
		Config:   cfg,
		Map:      m,
		Mobs:     mobs,
		Items:    data.NewItemTable([]data.ItemTemplate{{Key: data.GoldKey, Stackable: true}}),
		Npcs:     data.NewNpcTable(nil),
		Trees:    trees,
		Wheel:    timer.NewWheel(h.clock),
		Bus:      event.NewBus(),
		Outbox:   h.out,
		Formulas: combat.Fixed{Amount: 5, HP: 100},
		Rand:     rand.New(rand.NewSource(1)),
		Log:      zap.NewNop(),
	})
	h.deps = &Deps{Config: cfg, World: w, Store: h.store, Out: h.out, Log: zap.NewNop()}
	h.reg = packet.NewRegistry(zap.NewNop())
	RegisterAll(h.reg, h.deps)
	return h
}

func (h *harness) session(id uint64) *net.Session {
	return net.NewSession(&stubConn{closed: make(chan struct{})}, id, h.codec, net.SessionConfig{}, zap.NewNop())
}

func (h *harness) dispatch(t *testing.T, sess *net.Session, op packet.Opcode, payload any) error {
	t.Helper()
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	return h.reg.Dispatch(sess, sess.State(), packet.NewReader(op, raw, json.Unmarshal))
}

// awaitTasks waits for the login goroutine to post its result and runs it.
func (h *harness) awaitTasks(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return h.deps.World.RunTasks() > 0 }, time.Second, time.Millisecond)
}

func (h *harness) login(t *testing.T, id uint64, name, password string) *net.Session {
	t.Helper()
	sess := h.session(id)
	require.NoError(t, h.dispatch(t, sess, packet.OpLogin, packet.LoginRequest{Username: name, Password: password}))
	h.awaitTasks(t)
	return sess
}

func (h *harness) enter(t *testing.T, id uint64, name string) (*net.Session, *world.Player) {
	t.Helper()
	sess := h.login(t, id, name, "secret")
	require.Equal(t, packet.StateLoaded, sess.State())
	require.NoError(t, h.dispatch(t, sess, packet.OpReady, nil))
	p := h.deps.World.PlayerBySession(id)
	require.NotNil(t, p)
	return sess, p
}

func TestHandshake(t *testing.T) {
	h := newHarness(t)
	sess := h.session(1)
	require.NoError(t, h.dispatch(t, sess, packet.OpHandshake, nil))
	msg, ok := h.out.last(1, packet.OpHandshake)
	require.True(t, ok)
	assert.Equal(t, ProtocolVersion, msg.Data.(packet.HandshakeData).Version)
}

func TestLoginCreatesAccountAndEntersWorld(t *testing.T) {
	h := newHarness(t)
	sess := h.login(t, 1, "Alice", "secret")

	assert.Equal(t, packet.StateLoaded, sess.State())
	assert.Equal(t, "alice", sess.Username)
	msg, ok := h.out.last(1, packet.OpLogin)
	require.True(t, ok)
	assert.True(t, msg.Data.(packet.LoginData).OK)

	_, err := h.store.LoadAccount(context.Background(), "alice")
	assert.NoError(t, err)

	require.NoError(t, h.dispatch(t, sess, packet.OpReady, nil))
	assert.Equal(t, packet.StateInWorld, sess.State())
	p := h.deps.World.PlayerBySession(1)
	require.NotNil(t, p)
	assert.True(t, p.Attached())
	assert.Equal(t, 1, h.out.count(1, packet.OpWelcome))
	assert.Positive(t, h.out.count(1, packet.OpRegion))
}

func TestLoginRejections(t *testing.T) {
	h := newHarness(t)
	h.enter(t, 1, "alice")

	tests := []struct {
		name     string
		user     string
		password string
		reason   string
	}{
		{"wrong password", "alice", "nope", "Invalid username or password."},
		{"already online", "ALICE", "secret", "That player is already logged in."},
		{"empty name", "", "secret", "Invalid username or password."},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := uint64(10 + i)
			sess := h.login(t, id, tt.user, tt.password)
			assert.Equal(t, packet.StateConnected, sess.State())
			msg, ok := h.out.last(id, packet.OpLogin)
			require.True(t, ok)
			data := msg.Data.(packet.LoginData)
			assert.False(t, data.OK)
			assert.Equal(t, tt.reason, data.Reason)
			assert.Nil(t, h.deps.World.PlayerBySession(id))
		})
	}
}

func TestLoginRestoresSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.store.CreateAccount(ctx, "bob", "secret", "")
	require.NoError(t, err)
	require.NoError(t, h.store.SavePlayer(ctx, world.Snapshot{
		Username: "bob", Name: "Bob", X: 12, Y: 14, HitPoints: 40, MaxHitPoints: 100, Experience: 200,
		Inventory: []world.Slot{{Key: data.GoldKey, Count: 7}},
	}))

	_, p := h.enter(t, 1, "bob")
	x, y := p.Position()
	assert.Equal(t, [2]int{12, 14}, [2]int{x, y})
	assert.Equal(t, 40, p.HitPoints())
	assert.Equal(t, 7, p.Inventory().Count(data.GoldKey))
}

func TestLoginAfterDisconnectIsDropped(t *testing.T) {
	h := newHarness(t)
	sess := h.session(1)
	require.NoError(t, h.dispatch(t, sess, packet.OpLogin, packet.LoginRequest{Username: "carl", Password: "x"}))
	sess.Close()
	h.awaitTasks(t)
	assert.Nil(t, h.deps.World.PlayerBySession(1))
	assert.Zero(t, h.deps.World.PlayerCount())
}

func TestStateGuards(t *testing.T) {
	h := newHarness(t)
	sess := h.session(1)
	err := h.dispatch(t, sess, packet.OpMovement, packet.MovementRequest{Opcode: packet.MoveStep, X: 6, Y: 5})
	assert.Error(t, err)
	assert.Error(t, h.dispatch(t, sess, packet.OpReady, nil))
}

func TestMovement(t *testing.T) {
	h := newHarness(t)
	sess, p := h.enter(t, 1, "alice")

	require.NoError(t, h.dispatch(t, sess, packet.OpMovement, packet.MovementRequest{Opcode: packet.MoveStarted, X: 5, Y: 5}))
	require.NoError(t, h.dispatch(t, sess, packet.OpMovement, packet.MovementRequest{Opcode: packet.MoveStep, X: 6, Y: 5}))
	h.clock.Advance(time.Second)
	require.NoError(t, h.dispatch(t, sess, packet.OpMovement, packet.MovementRequest{Opcode: packet.MoveStop, X: 7, Y: 5}))

	x, y := p.Position()
	assert.Equal(t, [2]int{7, 5}, [2]int{x, y})
	assert.Zero(t, p.CheatScore())

	require.NoError(t, h.dispatch(t, sess, packet.OpMovement, packet.MovementRequest{Opcode: packet.MoveStep, X: 99, Y: 5}))
	x, _ = p.Position()
	assert.Equal(t, 7, x, "out of bounds step is rejected")

	require.NoError(t, h.dispatch(t, sess, packet.OpMovement, packet.MovementRequest{Opcode: packet.MoveOrientate, Orientation: world.OrientationLeft}))
	assert.Equal(t, world.OrientationLeft, p.Orientation())
}

func TestMalformedPayloadIsIgnored(t *testing.T) {
	h := newHarness(t)
	sess, p := h.enter(t, 1, "alice")
	reader := packet.NewReader(packet.OpMovement, []byte("{not json"), json.Unmarshal)
	assert.NoError(t, h.reg.Dispatch(sess, sess.State(), reader))
	x, y := p.Position()
	assert.Equal(t, [2]int{5, 5}, [2]int{x, y})
}

func TestTargetAttack(t *testing.T) {
	h := newHarness(t)
	sess, p := h.enter(t, 1, "alice")
	rat, err := h.deps.World.SpawnMob("rat", 6, 5)
	require.NoError(t, err)

	require.NoError(t, h.dispatch(t, sess, packet.OpTarget, packet.TargetRequest{Opcode: packet.TargetAttack, Instance: rat.Instance()}))
	assert.Equal(t, rat.Instance(), p.Target())
	assert.True(t, p.Combat().Started())

	require.NoError(t, h.dispatch(t, sess, packet.OpTarget, packet.TargetRequest{Opcode: packet.TargetNone}))
	assert.False(t, p.HasTarget())
	assert.False(t, p.Combat().Started())
}

func TestChatBroadcast(t *testing.T) {
	h := newHarness(t)
	sess, _ := h.enter(t, 1, "alice")
	h.enter(t, 2, "bob")

	require.NoError(t, h.dispatch(t, sess, packet.OpChat, packet.ChatRequest{Text: "  hello  "}))
	msg, ok := h.out.last(2, packet.OpChat)
	require.True(t, ok)
	chat := msg.Data.(packet.ChatData)
	assert.Equal(t, "hello", chat.Text)
	assert.Equal(t, "Alice", chat.Name)
	assert.Empty(t, chat.Colour)

	// commands from non-admins are plain chat
	require.NoError(t, h.dispatch(t, sess, packet.OpChat, packet.ChatRequest{Text: "/give gold 5"}))
	msg, _ = h.out.last(2, packet.OpChat)
	assert.Equal(t, "/give gold 5", msg.Data.(packet.ChatData).Text)
}

func TestAdminCommands(t *testing.T) {
	h := newHarness(t)
	sess, root := h.enter(t, 1, "root")
	_, bob := h.enter(t, 2, "bob")
	require.True(t, root.IsAdmin())

	chat := func(text string) {
		require.NoError(t, h.dispatch(t, sess, packet.OpChat, packet.ChatRequest{Text: text}))
	}

	chat("/give gold 25")
	assert.Equal(t, 25, root.Inventory().Count(data.GoldKey))

	chat("/teleport 20 21")
	x, y := root.Position()
	assert.Equal(t, [2]int{20, 21}, [2]int{x, y})

	chat("/teletome bob")
	x, y = bob.Position()
	assert.Equal(t, [2]int{20, 21}, [2]int{x, y})

	before := h.deps.World.MobCount()
	chat("/mob rat 3")
	assert.Equal(t, before+3, h.deps.World.MobCount())

	chat("/invincible")
	assert.True(t, root.Invincible())

	chat("/kill bob")
	assert.True(t, bob.IsDead())

	chat("/nonsense")
	msg, ok := h.out.last(1, packet.OpNotification)
	require.True(t, ok)
	assert.Equal(t, "Unknown command /nonsense.", msg.Data.(packet.NotificationData).Message)
	assert.Zero(t, h.out.count(2, packet.OpChat), "commands are never broadcast")
}

func TestRespawn(t *testing.T) {
	h := newHarness(t)
	sess, p := h.enter(t, 1, "alice")
	h.deps.World.Kill(p)
	require.True(t, p.IsDead())

	require.NoError(t, h.dispatch(t, sess, packet.OpRespawn, nil))
	assert.False(t, p.IsDead())
	assert.True(t, p.Attached())
	assert.Equal(t, p.MaxHitPoints(), p.HitPoints())
}
