package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Area is an axis-aligned rectangle of tiles with kind-specific extras.
type Area struct {
	ID     int `yaml:"id"`
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	Song     string   `yaml:"song"`     // music
	Darkness float64  `yaml:"darkness"` // overlay
	Type     string   `yaml:"type"`     // overlay and camera
	ChestX   int      `yaml:"chest_x"`  // chest
	ChestY   int      `yaml:"chest_y"`
	Items    []string `yaml:"items"`
	SpawnMs  int      `yaml:"spawn_delay"`
}

func (a *Area) Contains(x, y int) bool {
	return x >= a.X && y >= a.Y && x < a.X+a.Width && y < a.Y+a.Height
}

// Door teleports a player standing on (X,Y) to (ToX,ToY). Closed and Open are
// the tile ids rendered at the door depending on whether the viewer has it
// unlocked.
type Door struct {
	Key         string `yaml:"key"`
	X           int    `yaml:"x"`
	Y           int    `yaml:"y"`
	ToX         int    `yaml:"to_x"`
	ToY         int    `yaml:"to_y"`
	Orientation int    `yaml:"orientation"`
	Closed      int    `yaml:"closed"`
	Open        int    `yaml:"open"`
	Locked      bool   `yaml:"locked"`
}

type MobSpawn struct {
	Key     string `yaml:"key"`
	X       int    `yaml:"x"`
	Y       int    `yaml:"y"`
	Roaming bool   `yaml:"roaming"`
}

type ItemSpawn struct {
	Key   string `yaml:"key"`
	X     int    `yaml:"x"`
	Y     int    `yaml:"y"`
	Count int    `yaml:"count"`
}

type ChestSpawn struct {
	X     int      `yaml:"x"`
	Y     int      `yaml:"y"`
	Items []string `yaml:"items"`
}

type NpcSpawn struct {
	Key string `yaml:"key"`
	X   int    `yaml:"x"`
	Y   int    `yaml:"y"`
}

// MapDef is the on-disk map layout. Data holds one tile stack per index
// (index = y*Width + x); an empty stack is an unmapped tile.
type MapDef struct {
	Width      int          `yaml:"width"`
	Height     int          `yaml:"height"`
	Data       [][]int      `yaml:"data"`
	Collisions []int        `yaml:"collisions"`
	Doors      []Door       `yaml:"doors"`
	PVP        []Area       `yaml:"pvp_areas"`
	Music      []Area       `yaml:"music_areas"`
	Overlay    []Area       `yaml:"overlay_areas"`
	Camera     []Area       `yaml:"camera_areas"`
	Chest      []Area       `yaml:"chest_areas"`
	Mobs       []MobSpawn   `yaml:"mobs"`
	Items      []ItemSpawn  `yaml:"items"`
	Chests     []ChestSpawn `yaml:"chests"`
	Npcs       []NpcSpawn   `yaml:"npcs"`
}

// Map is the read-only map provider.
type Map struct {
	def        MapDef
	collisions map[int]struct{}
	doors      map[int]*Door
}

// DefaultGround fills tiles when a MapDef carries no Data.
const DefaultGround = 1

// LoadMap reads a map file. JSON exports load as well since they are valid YAML.
func LoadMap(path string) (*Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	var def MapDef
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse map: %w", err)
	}
	return NewMap(def)
}

func NewMap(def MapDef) (*Map, error) {
	if def.Width <= 0 || def.Height <= 0 {
		return nil, fmt.Errorf("map size %dx%d", def.Width, def.Height)
	}
	size := def.Width * def.Height
	if def.Data == nil {
		def.Data = make([][]int, size)
		for i := range def.Data {
			def.Data[i] = []int{DefaultGround}
		}
	}
	if len(def.Data) != size {
		return nil, fmt.Errorf("map data has %d tiles, want %d", len(def.Data), size)
	}
	m := &Map{
		def:        def,
		collisions: make(map[int]struct{}, len(def.Collisions)),
		doors:      make(map[int]*Door, len(def.Doors)),
	}
	for _, id := range def.Collisions {
		m.collisions[id] = struct{}{}
	}
	for i := range m.def.Doors {
		d := &m.def.Doors[i]
		if !m.InBounds(d.X, d.Y) || !m.InBounds(d.ToX, d.ToY) {
			return nil, fmt.Errorf("door %q out of bounds", d.Key)
		}
		m.doors[m.Index(d.X, d.Y)] = d
	}
	return m, nil
}

func (m *Map) Width() int  { return m.def.Width }
func (m *Map) Height() int { return m.def.Height }

func (m *Map) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.def.Width && y < m.def.Height
}

func (m *Map) Index(x, y int) int { return y*m.def.Width + x }

func (m *Map) Coords(index int) (x, y int) {
	return index % m.def.Width, index / m.def.Width
}

// Tile returns the static tile stack at (x,y), nil when out of bounds.
func (m *Map) Tile(x, y int) []int {
	if !m.InBounds(x, y) {
		return nil
	}
	return m.def.Data[m.Index(x, y)]
}

// TileAt returns the stack for a raw index.
func (m *Map) TileAt(index int) []int {
	if index < 0 || index >= len(m.def.Data) {
		return nil
	}
	return m.def.Data[index]
}

// IsEmpty reports an unmapped tile. Out of bounds counts as empty.
func (m *Map) IsEmpty(x, y int) bool {
	return len(m.Tile(x, y)) == 0
}

// IsColliding reports whether a tile blocks movement: out of bounds,
// unmapped, or any layer carrying a collision tile id.
func (m *Map) IsColliding(x, y int) bool {
	stack := m.Tile(x, y)
	if len(stack) == 0 {
		return true
	}
	for _, id := range stack {
		if m.IsCollisionTile(id) {
			return true
		}
	}
	return false
}

func (m *Map) IsCollisionTile(id int) bool {
	_, ok := m.collisions[id]
	return ok
}

// Door returns the door at (x,y), or nil.
func (m *Map) Door(x, y int) *Door {
	if !m.InBounds(x, y) {
		return nil
	}
	return m.doors[m.Index(x, y)]
}

func (m *Map) Doors() []Door             { return m.def.Doors }
func (m *Map) PVPAreas() []Area          { return m.def.PVP }
func (m *Map) MusicAreas() []Area        { return m.def.Music }
func (m *Map) OverlayAreas() []Area      { return m.def.Overlay }
func (m *Map) CameraAreas() []Area       { return m.def.Camera }
func (m *Map) ChestAreas() []Area        { return m.def.Chest }
func (m *Map) MobSpawns() []MobSpawn     { return m.def.Mobs }
func (m *Map) ItemSpawns() []ItemSpawn   { return m.def.Items }
func (m *Map) ChestSpawns() []ChestSpawn { return m.def.Chests }
func (m *Map) NpcSpawns() []NpcSpawn     { return m.def.Npcs }
