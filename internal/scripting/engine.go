package scripting

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/world"
)

const (
	fnDamage       = "calc_damage"
	fnAoEDamage    = "calc_aoe_damage"
	fnMaxHitPoints = "max_hit_points"
)

// Engine wraps a single gopher-lua VM and serves combat formulas from it.
// Any formula the scripts do not define, or that fails, falls back to the
// built-in one. Game loop only.
type Engine struct {
	vm       *lua.LState
	fallback combat.Formulas
	rng      *rand.Rand
	log      *zap.Logger
}

// NewEngine creates a Lua engine and loads every script under dir/core and
// dir/combat, in that order.
func NewEngine(dir string, fallback combat.Formulas, rng *rand.Rand, log *zap.Logger) (*Engine, error) {
	if fallback == nil {
		fallback = combat.Default{Rand: rng}
	}
	vm := lua.NewState()
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, fallback: fallback, rng: rng, log: log}
	vm.SetGlobal("random", vm.NewFunction(e.luaRandom))

	for _, sub := range []string{"core", "combat"} {
		if err := e.loadDir(filepath.Join(dir, sub)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// Close releases the VM.
func (e *Engine) Close() { e.vm.Close() }

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Has reports whether the scripts define a global function name.
func (e *Engine) Has(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// random(n) returns an integer in [0, n) from the server's generator.
func (e *Engine) luaRandom(L *lua.LState) int {
	n := L.CheckInt(1)
	if n <= 0 || e.rng == nil {
		L.Push(lua.LNumber(0))
		return 1
	}
	L.Push(lua.LNumber(e.rng.Intn(n)))
	return 1
}

func (e *Engine) fighterTable(c world.Fighter) *lua.LTable {
	ch := c.Char()
	t := e.vm.NewTable()
	t.RawSetString("level", lua.LNumber(ch.Level()))
	t.RawSetString("attack", lua.LNumber(ch.AttackStat()))
	t.RawSetString("defense", lua.LNumber(ch.DefenseStat()))
	t.RawSetString("hit_points", lua.LNumber(ch.HitPoints()))
	t.RawSetString("max_hit_points", lua.LNumber(ch.MaxHitPoints()))
	t.RawSetString("is_player", lua.LBool(c.Core().IsPlayer()))
	return t
}

// call runs a global function returning one number.
func (e *Engine) call(name string, args ...lua.LValue) (int, bool) {
	fn, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return 0, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		e.log.Error("lua call failed", zap.String("fn", name), zap.Error(err))
		return 0, false
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok {
		e.log.Error("lua function returned non-number", zap.String("fn", name), zap.String("type", ret.Type().String()))
		return 0, false
	}
	return int(n), true
}

// Damage calls calc_damage(attacker, target, critical).
func (e *Engine) Damage(attacker, target world.Fighter, critical bool) int {
	dmg, ok := e.call(fnDamage, e.fighterTable(attacker), e.fighterTable(target), lua.LBool(critical))
	if !ok {
		return e.fallback.Damage(attacker, target, critical)
	}
	if dmg < 0 {
		dmg = 0
	}
	return dmg
}

// AoEDamage calls calc_aoe_damage(attacker, target).
func (e *Engine) AoEDamage(attacker, target world.Fighter) int {
	dmg, ok := e.call(fnAoEDamage, e.fighterTable(attacker), e.fighterTable(target))
	if !ok {
		return e.fallback.AoEDamage(attacker, target)
	}
	if dmg < 0 {
		dmg = 0
	}
	return dmg
}

// MaxHitPoints calls max_hit_points(level).
func (e *Engine) MaxHitPoints(level int) int {
	hp, ok := e.call(fnMaxHitPoints, lua.LNumber(level))
	if !ok || hp < 1 {
		return e.fallback.MaxHitPoints(level)
	}
	return hp
}
