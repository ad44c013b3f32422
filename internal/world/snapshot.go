package world

import "time"

// Snapshot is the persisted form of a player.
type Snapshot struct {
	Username     string      `json:"username"`
	Name         string      `json:"name"`
	X            int         `json:"x"`
	Y            int         `json:"y"`
	Orientation  Orientation `json:"orientation"`
	HitPoints    int         `json:"hitPoints"`
	MaxHitPoints int         `json:"maxHitPoints"`
	Experience   int         `json:"experience"`
	Poison       string      `json:"poison,omitempty"`
	Inventory    []Slot      `json:"inventory"`
	Doors        []string    `json:"doors,omitempty"`
	Kills        int         `json:"kills"`
	Deaths       int         `json:"deaths"`
}

// Snapshot captures the player's persistent state.
func (p *Player) Snapshot() Snapshot {
	s := Snapshot{
		Username:     p.username,
		Name:         p.name,
		X:            p.x,
		Y:            p.y,
		Orientation:  p.orientation,
		HitPoints:    p.hitPoints,
		MaxHitPoints: p.maxHitPoints,
		Experience:   p.experience,
		Inventory:    p.inventory.Slots(),
		Kills:        p.kills,
		Deaths:       p.deaths,
	}
	if p.poison != nil {
		s.Poison = p.poison.String()
	}
	for k, v := range p.doors {
		if v {
			s.Doors = append(s.Doors, k)
		}
	}
	return s
}

// Restore loads a snapshot into a freshly created player. It positions the
// player without running move hooks. An expired poison is discarded.
func (p *Player) Restore(s Snapshot, now time.Time) error {
	p.name = s.Name
	if p.name == "" {
		p.name = s.Username
	}
	p.x, p.y = s.X, s.Y
	p.oldX, p.oldY = s.X, s.Y
	p.orientation = s.Orientation
	p.experience = s.Experience
	p.level = levelFor(s.Experience)
	if s.MaxHitPoints > 0 {
		p.maxHitPoints = s.MaxHitPoints
	}
	p.SetHitPoints(s.HitPoints)
	if p.hitPoints == 0 {
		p.hitPoints = p.maxHitPoints
	}
	p.inventory.Load(s.Inventory)
	for _, d := range s.Doors {
		p.doors[d] = true
	}
	p.kills, p.deaths = s.Kills, s.Deaths
	poison, err := ParsePoison(s.Poison)
	if err != nil {
		return err
	}
	if poison != nil && !poison.Expired(now) {
		p.poison = poison
	}
	return nil
}
