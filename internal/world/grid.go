package world

import (
	"fmt"
	"strconv"
	"strings"
)

// RegionID identifies one zone of the grid. Zones are numbered row-major:
// id = ry*cols + rx.
type RegionID int32

// NoRegion marks an entity that is not placed in any zone.
const NoRegion RegionID = -1

// Grid partitions a width x height tile map into fixed-size zones.
// Accessed only from the game loop goroutine, no locks.
type Grid struct {
	zoneW, zoneH int
	cols, rows   int
	offset       int
	links        map[RegionID][]RegionID
}

func NewGrid(mapW, mapH, zoneW, zoneH, offset int) *Grid {
	if zoneW <= 0 {
		zoneW = 1
	}
	if zoneH <= 0 {
		zoneH = 1
	}
	if offset < 0 {
		offset = 0
	}
	return &Grid{
		zoneW:  zoneW,
		zoneH:  zoneH,
		cols:   (mapW + zoneW - 1) / zoneW,
		rows:   (mapH + zoneH - 1) / zoneH,
		offset: offset,
		links:  make(map[RegionID][]RegionID),
	}
}

func (g *Grid) Cols() int       { return g.cols }
func (g *Grid) Rows() int       { return g.rows }
func (g *Grid) Count() int      { return g.cols * g.rows }
func (g *Grid) ZoneWidth() int  { return g.zoneW }
func (g *Grid) ZoneHeight() int { return g.zoneH }

// floorDiv rounds toward negative infinity so tiles left of or above the
// origin never collapse into zone 0.
func floorDiv(v, d int) int {
	if v < 0 {
		return (v - d + 1) / d
	}
	return v / d
}

// RegionAt returns the zone containing tile (x,y), or NoRegion when the tile
// lies outside the grid.
func (g *Grid) RegionAt(x, y int) RegionID {
	rx, ry := floorDiv(x, g.zoneW), floorDiv(y, g.zoneH)
	return g.fromCoords(rx, ry)
}

func (g *Grid) fromCoords(rx, ry int) RegionID {
	if rx < 0 || ry < 0 || rx >= g.cols || ry >= g.rows {
		return NoRegion
	}
	return RegionID(ry*g.cols + rx)
}

// Valid reports whether id names a zone of this grid.
func (g *Grid) Valid(id RegionID) bool {
	return id >= 0 && int(id) < g.Count()
}

// Coords returns the zone's column and row.
func (g *Grid) Coords(id RegionID) (rx, ry int, ok bool) {
	if !g.Valid(id) {
		return 0, 0, false
	}
	return int(id) % g.cols, int(id) / g.cols, true
}

// Origin returns the top-left tile of the zone.
func (g *Grid) Origin(id RegionID) (x, y int, ok bool) {
	rx, ry, ok := g.Coords(id)
	if !ok {
		return 0, 0, false
	}
	return rx * g.zoneW, ry * g.zoneH, true
}

// Bounds returns the zone's tile rectangle, exclusive on the right/bottom.
func (g *Grid) Bounds(id RegionID) (minX, minY, maxX, maxY int, ok bool) {
	minX, minY, ok = g.Origin(id)
	if !ok {
		return
	}
	return minX, minY, minX + g.zoneW, minY + g.zoneH, true
}

// Link makes to part of from's surroundings, as doors do.
func (g *Grid) Link(from, to RegionID) {
	if !g.Valid(from) || !g.Valid(to) || from == to {
		return
	}
	for _, l := range g.links[from] {
		if l == to {
			return
		}
	}
	g.links[from] = append(g.links[from], to)
}

// Linked returns the zones reachable from id through links.
func (g *Grid) Linked(id RegionID) []RegionID { return g.links[id] }

// Surrounding returns the block of zones within the configured offset of id,
// id included, followed by linked zones. Out-of-grid zones are skipped and an
// invalid id yields nil.
func (g *Grid) Surrounding(id RegionID) []RegionID {
	return g.SurroundingN(id, g.offset)
}

func (g *Grid) SurroundingN(id RegionID, offset int) []RegionID {
	rx, ry, ok := g.Coords(id)
	if !ok {
		return nil
	}
	side := 2*offset + 1
	out := make([]RegionID, 0, side*side+len(g.links[id]))
	for dy := -offset; dy <= offset; dy++ {
		for dx := -offset; dx <= offset; dx++ {
			if n := g.fromCoords(rx+dx, ry+dy); n != NoRegion {
				out = append(out, n)
			}
		}
	}
	for _, l := range g.links[id] {
		if !containsRegion(out, l) {
			out = append(out, l)
		}
	}
	return out
}

// Adjacent returns the cross-shaped subset of the surroundings: zones sharing
// the center's row or column, center included.
func (g *Grid) Adjacent(id RegionID) []RegionID {
	rx, ry, ok := g.Coords(id)
	if !ok {
		return nil
	}
	out := make([]RegionID, 0, 4*g.offset+1)
	for _, n := range g.SurroundingN(id, g.offset) {
		nx, ny, _ := g.Coords(n)
		if (nx == rx || ny == ry) && abs(nx-rx) <= g.offset && abs(ny-ry) <= g.offset {
			out = append(out, n)
		}
	}
	return out
}

// IsSurrounding reports whether other lies in id's surroundings.
func (g *Grid) IsSurrounding(id, other RegionID) bool {
	return containsRegion(g.Surrounding(id), other)
}

func containsRegion(list []RegionID, id RegionID) bool {
	for _, r := range list {
		if r == id {
			return true
		}
	}
	return false
}

// RegionDiff returns the zones in a that are not in b.
func RegionDiff(a, b []RegionID) []RegionID {
	var out []RegionID
	for _, r := range a {
		if !containsRegion(b, r) {
			out = append(out, r)
		}
	}
	return out
}

// Key renders a zone in "rx-ry" form.
func (g *Grid) Key(id RegionID) string {
	rx, ry, ok := g.Coords(id)
	if !ok {
		return ""
	}
	return strconv.Itoa(rx) + "-" + strconv.Itoa(ry)
}

// ParseKey is the inverse of Key.
func (g *Grid) ParseKey(key string) (RegionID, error) {
	xs, ys, found := strings.Cut(key, "-")
	if !found {
		return NoRegion, fmt.Errorf("region key %q", key)
	}
	rx, err := strconv.Atoi(xs)
	if err != nil {
		return NoRegion, fmt.Errorf("region key %q: %w", key, err)
	}
	ry, err := strconv.Atoi(ys)
	if err != nil {
		return NoRegion, fmt.Errorf("region key %q: %w", key, err)
	}
	id := g.fromCoords(rx, ry)
	if id == NoRegion {
		return NoRegion, fmt.Errorf("region key %q out of bounds", key)
	}
	return id, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
