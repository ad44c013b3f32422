package handler

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

const (
	maxChatLength = 128
	adminColour   = "rgba(191, 161, 63, 1.0)"
)

// HandleChat broadcasts a chat line to the player's surrounding zones.
// Admin lines starting with "/" run as commands instead.
func HandleChat(sess *net.Session, p *world.Player, r *packet.Reader, deps *Deps) {
	var req packet.ChatRequest
	if err := r.Decode(&req); err != nil {
		deps.Log.Warn("malformed chat", zap.Uint64("session", sess.ID), zap.Error(err))
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return
	}
	if utf8.RuneCountInString(text) > maxChatLength {
		text = string([]rune(text)[:maxChatLength])
	}

	if p.IsAdmin() && HandleAdminCommand(p, text, deps) {
		return
	}

	deps.Log.Debug("chat", zap.String("player", p.Name()), zap.String("text", text))

	colour := ""
	if p.IsAdmin() {
		colour = adminColour
	}
	deps.World.Bridge().PushToSurrounding(p.Region(), packet.Chat(p.Instance(), p.Name(), text, colour))
}
