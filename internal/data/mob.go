package data

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// MobTemplate is the static definition of one mob kind.
type MobTemplate struct {
	Key              string         `yaml:"key"`
	Name             string         `yaml:"name"`
	HitPoints        int            `yaml:"hit_points"`
	Level            int            `yaml:"level"`
	Experience       int            `yaml:"experience"`
	Attack           int            `yaml:"attack"`
	Defense          int            `yaml:"defense"`
	AttackRange      int            `yaml:"attack_range"`
	AttackRateMs     int            `yaml:"attack_rate"`
	MovementSpeedMs  int            `yaml:"movement_speed"`
	AggroRange       int            `yaml:"aggro_range"`
	Aggressive       bool           `yaml:"aggressive"`
	AlwaysAggressive bool           `yaml:"always_aggressive"`
	Roaming          bool           `yaml:"roaming"`
	RespawnMs        int            `yaml:"respawn_delay"`
	Projectile       string         `yaml:"projectile"`
	Combat           string         `yaml:"combat"` // specialised behaviour, empty for default
	Minion           string         `yaml:"minion"`
	Poisonous        bool           `yaml:"poisonous"`
	Drops            map[string]int `yaml:"drops"` // item key -> threshold out of combat.drop_probability
}

func (m *MobTemplate) AttackRate() time.Duration {
	return time.Duration(m.AttackRateMs) * time.Millisecond
}

func (m *MobTemplate) MovementSpeed() time.Duration {
	return time.Duration(m.MovementSpeedMs) * time.Millisecond
}

func (m *MobTemplate) RespawnDelay() time.Duration {
	return time.Duration(m.RespawnMs) * time.Millisecond
}

// Ranged reports whether the mob attacks with projectiles.
func (m *MobTemplate) Ranged() bool { return m.AttackRange > 1 }

type mobListFile struct {
	Mobs []MobTemplate `yaml:"mobs"`
}

// MobTable resolves mob kinds by key.
type MobTable struct {
	mobs map[string]*MobTemplate
}

func LoadMobTable(path string) (*MobTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mob list: %w", err)
	}
	var f mobListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse mob list: %w", err)
	}
	return NewMobTable(f.Mobs)
}

// NewMobTable indexes templates and fills defaults for omitted fields.
func NewMobTable(list []MobTemplate) (*MobTable, error) {
	t := &MobTable{mobs: make(map[string]*MobTemplate, len(list))}
	for i := range list {
		m := list[i]
		if m.Key == "" {
			return nil, fmt.Errorf("mob #%d has no key", i)
		}
		if _, dup := t.mobs[m.Key]; dup {
			return nil, fmt.Errorf("duplicate mob %q", m.Key)
		}
		if m.Name == "" {
			m.Name = m.Key
		}
		if m.HitPoints <= 0 {
			m.HitPoints = 10
		}
		if m.Level <= 0 {
			m.Level = 1
		}
		if m.AttackRange <= 0 {
			m.AttackRange = 1
		}
		if m.AttackRateMs <= 0 {
			m.AttackRateMs = 1000
		}
		if m.MovementSpeedMs <= 0 {
			m.MovementSpeedMs = 250
		}
		if m.AggroRange <= 0 {
			m.AggroRange = 2
		}
		if m.RespawnMs <= 0 {
			m.RespawnMs = 30000
		}
		t.mobs[m.Key] = &m
	}
	return t, nil
}

// Get returns the template for key, or nil.
func (t *MobTable) Get(key string) *MobTemplate {
	return t.mobs[key]
}

func (t *MobTable) Count() int { return len(t.mobs) }

// Keys returns every mob key, sorted.
func (t *MobTable) Keys() []string {
	keys := make([]string, 0, len(t.mobs))
	for k := range t.mobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
