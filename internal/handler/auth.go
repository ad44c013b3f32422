package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/game"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/persist"
	"github.com/tilerealm/server/internal/world"
)

const loginTimeout = 5 * time.Second

// HandleHandshake answers the client's hello with the server name and
// protocol version.
func HandleHandshake(sess *net.Session, _ *packet.Reader, deps *Deps) {
	deps.Out.Send(sess.ID, packet.Handshake(deps.Config.Server.Name, ProtocolVersion))
}

type loginResult struct {
	account *persist.Account
	snap    *world.Snapshot
	created bool
	err     error
}

// HandleLogin verifies credentials off the game loop. The outcome is posted
// back into the tick through the world task queue.
func HandleLogin(sess *net.Session, r *packet.Reader, deps *Deps) {
	var req packet.LoginRequest
	if err := r.Decode(&req); err != nil {
		deps.Log.Warn("malformed login", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}
	sess.SetState(packet.StateAuthenticating)
	ip := sess.IP

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()
		res := authenticate(ctx, deps, req, ip)
		deps.World.Post(func() { completeLogin(sess, res, deps) })
	}()
}

func authenticate(ctx context.Context, deps *Deps, req packet.LoginRequest, ip string) loginResult {
	acc, created, err := persist.Authenticate(ctx, deps.Store, req.Username, req.Password, ip,
		deps.Config.Database.AutoCreateAccounts)
	if err != nil {
		return loginResult{err: err}
	}
	res := loginResult{account: acc, created: created}
	if created {
		return res
	}
	snap, err := deps.Store.LoadPlayer(ctx, acc.Name)
	switch {
	case errors.Is(err, persist.ErrNotFound):
	case err != nil:
		res.err = fmt.Errorf("load player %s: %w", acc.Name, err)
	default:
		res.snap = snap
	}
	return res
}

func completeLogin(sess *net.Session, res loginResult, deps *Deps) {
	if sess.IsClosed() {
		return
	}
	if res.err == nil {
		admin := res.account.Admin || deps.Config.IsAdmin(res.account.Name)
		p, err := deps.World.AddPlayer(sess.ID, res.account.Name, res.snap, admin)
		if err == nil {
			sess.Username = p.Username()
			sess.Player = p.Instance()
			sess.SetState(packet.StateLoaded)
			deps.Out.Send(sess.ID, packet.LoginAccepted())
			deps.Log.Info("login accepted",
				zap.String("player", p.Name()),
				zap.Uint64("session", sess.ID),
				zap.Bool("created", res.created),
				zap.Bool("admin", admin),
			)
			return
		}
		res.err = err
	}

	sess.SetState(packet.StateConnected)
	deps.Out.Send(sess.ID, packet.LoginRejected(loginReason(res.err)))
	if isExpectedLoginError(res.err) {
		deps.Log.Info("login rejected", zap.Uint64("session", sess.ID), zap.Error(res.err))
	} else {
		deps.Log.Error("login failed", zap.Uint64("session", sess.ID), zap.Error(res.err))
	}
}

func loginReason(err error) string {
	switch {
	case errors.Is(err, persist.ErrBadCredentials):
		return "Invalid username or password."
	case errors.Is(err, persist.ErrBanned):
		return "This account has been banned."
	case errors.Is(err, game.ErrWorldFull):
		return "The world is full, please try again later."
	case errors.Is(err, game.ErrAlreadyOnline):
		return "That player is already logged in."
	}
	return "Login failed, please try again."
}

func isExpectedLoginError(err error) bool {
	return errors.Is(err, persist.ErrBadCredentials) ||
		errors.Is(err, persist.ErrBanned) ||
		errors.Is(err, game.ErrWorldFull) ||
		errors.Is(err, game.ErrAlreadyOnline)
}

// HandleReady places the loaded player into the world.
func HandleReady(sess *net.Session, _ *packet.Reader, deps *Deps) {
	p := deps.World.PlayerBySession(sess.ID)
	if p == nil {
		return
	}
	deps.World.ReadyPlayer(p)
	sess.Joined = deps.World.Now()
	sess.SetState(packet.StateInWorld)
}
