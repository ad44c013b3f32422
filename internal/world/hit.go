package world

// HitType classifies a hit for the client's damage splash.
type HitType uint8

const (
	HitDamage HitType = iota
	HitStun
	HitCritical
	HitHeal
	HitMana
	HitPoison
	HitExperience
)

func (t HitType) String() string {
	switch t {
	case HitDamage:
		return "damage"
	case HitStun:
		return "stun"
	case HitCritical:
		return "critical"
	case HitHeal:
		return "heal"
	case HitMana:
		return "mana"
	case HitPoison:
		return "poison"
	case HitExperience:
		return "experience"
	}
	return "unknown"
}

// Miss is the damage value of a hit that did not connect.
const Miss = -1

// Hit is one pending or delivered blow. It lives only between being queued
// and being applied.
type Hit struct {
	Type   HitType `json:"type"`
	Damage int     `json:"damage"`
	Ranged bool    `json:"isRanged,omitempty"`
	AoE    bool    `json:"isAoE,omitempty"`
	Terror bool    `json:"hasTerror,omitempty"`
}

func NewHit(t HitType, damage int) Hit {
	return Hit{Type: t, Damage: damage}
}

func (h Hit) IsMiss() bool { return h.Damage < 0 }

// Amount is the damage to apply, zero for a miss.
func (h Hit) Amount() int {
	if h.Damage < 0 {
		return 0
	}
	return h.Damage
}
