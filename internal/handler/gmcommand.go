package handler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

const (
	maxSpawnCount  = 50
	poisonDuration = 10 * time.Second
	poisonDamage   = 5
)

type adminCommand func(p *world.Player, args []string, deps *Deps)

var adminCommands map[string]adminCommand

func init() {
	adminCommands = map[string]adminCommand{
		"players":      gmPlayers,
		"coords":       gmCoords,
		"teleport":     gmTeleport,
		"teleto":       gmTeleTo,
		"teletome":     gmTeleToMe,
		"mob":          gmMob,
		"give":         gmGive,
		"kill":         gmKill,
		"resetregions": gmResetRegions,
		"invincible":   gmInvincible,
		"poison":       gmPoison,
		"stun":         gmStun,
		"aoe":          gmAoE,
		"tree":         gmTree,
		"regrow":       gmRegrow,
		"help":         gmHelp,
	}
}

// HandleAdminCommand processes a "/" prefixed admin command.
// Returns true if the text was a command (consumed), false otherwise.
func HandleAdminCommand(p *world.Player, text string, deps *Deps) bool {
	if !strings.HasPrefix(text, "/") {
		return false
	}
	parts := strings.Fields(text[1:])
	if len(parts) == 0 {
		return true
	}
	name := strings.ToLower(parts[0])
	cmd, ok := adminCommands[name]
	if !ok {
		gmMsgf(deps, p, "Unknown command /%s.", name)
		return true
	}
	deps.Log.Info("admin command",
		zap.String("player", p.Name()),
		zap.String("command", name),
		zap.Strings("args", parts[1:]),
	)
	cmd(p, parts[1:], deps)
	return true
}

func gmMsg(deps *Deps, p *world.Player, text string) { notify(deps, p, text) }

func gmMsgf(deps *Deps, p *world.Player, format string, args ...any) {
	notify(deps, p, fmt.Sprintf(format, args...))
}

func gmHelp(p *world.Player, _ []string, deps *Deps) {
	names := make([]string, 0, len(adminCommands))
	for name := range adminCommands {
		names = append(names, "/"+name)
	}
	sort.Strings(names)
	gmMsg(deps, p, strings.Join(names, " "))
}

func gmPlayers(p *world.Player, _ []string, deps *Deps) {
	players := deps.World.Players()
	names := make([]string, 0, len(players))
	for _, o := range players {
		names = append(names, o.Name())
	}
	gmMsgf(deps, p, "%d online: %s", len(names), strings.Join(names, ", "))
}

func gmCoords(p *world.Player, _ []string, deps *Deps) {
	x, y := p.Position()
	gmMsgf(deps, p, "x: %d y: %d region: %d", x, y, p.Region())
}

// parseCoords reads two integer arguments.
func parseCoords(args []string) (int, int, bool) {
	if len(args) < 2 {
		return 0, 0, false
	}
	x, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, false
	}
	return x, y, true
}

// parseCount reads an optional positive count, clamped to limit.
func parseCount(args []string, i, limit int) int {
	if len(args) <= i {
		return 1
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 1 {
		return 1
	}
	if n > limit {
		return limit
	}
	return n
}

func gmTeleport(p *world.Player, args []string, deps *Deps) {
	x, y, ok := parseCoords(args)
	if !ok {
		gmMsg(deps, p, "Usage: /teleport <x> <y>")
		return
	}
	if !deps.World.Map().InBounds(x, y) || deps.World.IsColliding(x, y) {
		gmMsg(deps, p, "That tile is not walkable.")
		return
	}
	deps.World.Teleport(p, x, y)
}

func findPlayer(p *world.Player, args []string, deps *Deps) *world.Player {
	if len(args) < 1 {
		return nil
	}
	name := strings.Join(args, " ")
	target := deps.World.PlayerByName(name)
	if target == nil || !target.Attached() {
		gmMsgf(deps, p, "Player %s is not online.", name)
		return nil
	}
	return target
}

func gmTeleTo(p *world.Player, args []string, deps *Deps) {
	if t := findPlayer(p, args, deps); t != nil {
		x, y := t.Position()
		deps.World.Teleport(p, x, y)
	}
}

func gmTeleToMe(p *world.Player, args []string, deps *Deps) {
	if t := findPlayer(p, args, deps); t != nil {
		x, y := p.Position()
		deps.World.Teleport(t, x, y)
	}
}

func gmMob(p *world.Player, args []string, deps *Deps) {
	if len(args) < 1 {
		gmMsg(deps, p, "Usage: /mob <kind> [count]")
		return
	}
	count := parseCount(args, 1, maxSpawnCount)
	x, y := p.Position()
	for i := 0; i < count; i++ {
		if _, err := deps.World.SpawnMob(args[0], x, y); err != nil {
			gmMsgf(deps, p, "Cannot spawn %s: %v", args[0], err)
			return
		}
	}
	gmMsgf(deps, p, "Spawned %d %s.", count, args[0])
}

func gmGive(p *world.Player, args []string, deps *Deps) {
	if len(args) < 1 {
		gmMsg(deps, p, "Usage: /give <item> [count]")
		return
	}
	tpl := deps.World.Items().Get(args[0])
	if tpl == nil {
		gmMsgf(deps, p, "Unknown item %s.", args[0])
		return
	}
	count := parseCount(args, 1, 1_000_000)
	if !p.Inventory().Add(tpl.Key, count, tpl.Stackable) {
		gmMsg(deps, p, "You do not have enough space in your inventory.")
		return
	}
	p.MarkDirty()
	deps.Out.Send(p.Session(), packet.InventoryAdded(tpl.Key, count))
}

func gmKill(p *world.Player, args []string, deps *Deps) {
	if t := findPlayer(p, args, deps); t != nil {
		deps.World.Kill(t)
	}
}

func gmResetRegions(p *world.Player, _ []string, deps *Deps) {
	p.ResetRegions()
	deps.World.Bridge().ResetRegions(p)
}

func gmInvincible(p *world.Player, _ []string, deps *Deps) {
	p.SetInvincible(!p.Invincible())
	gmMsgf(deps, p, "Invincible: %t", p.Invincible())
}

func gmPoison(p *world.Player, _ []string, deps *Deps) {
	deps.World.Combat().Poison(p, world.NewPoison(deps.World.Now(), poisonDuration, poisonDamage))
}

func gmStun(p *world.Player, _ []string, deps *Deps) {
	deps.World.Combat().Stun(p)
}

func gmAoE(p *world.Player, args []string, deps *Deps) {
	radius := parseCount(args, 0, 10)
	deps.World.Combat().DealAoE(p, radius, false)
}

func gmTree(p *world.Player, args []string, deps *Deps) {
	x, y, ok := parseCoords(args)
	if !ok {
		x, y = p.Position()
	}
	tpl, err := deps.World.DestroyTree(x, y)
	if err != nil {
		gmMsgf(deps, p, "No tree cut at %d, %d: %v", x, y, err)
		return
	}
	gmMsgf(deps, p, "Cut %s at %d, %d.", tpl.Key, x, y)
}

func gmRegrow(p *world.Player, _ []string, deps *Deps) {
	n := deps.World.RegrowTrees(time.Time{})
	gmMsgf(deps, p, "Regrew %d trees.", n)
}
