package game

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

const defaultTreeSearch = 64

// cutTree is one harvested tree instance, keyed by its lowest tile index.
type cutTree struct {
	tpl      *data.TreeTemplate
	original map[int][]int
	regrowAt time.Time
}

type treeState struct {
	cut       map[int]*cutTree // root index -> tree
	owner     map[int]int      // tile index -> root index
	overrides map[int][]int    // tile index -> stump data
}

func newTreeState() *treeState {
	return &treeState{
		cut:       make(map[int]*cutTree),
		owner:     make(map[int]int),
		overrides: make(map[int][]int),
	}
}

// CutTrees returns the number of trees currently cut down.
func (w *World) CutTrees() int { return len(w.trees.cut) }

// IsTreeCut reports whether the tile at index belongs to a cut tree.
func (w *World) IsTreeCut(index int) bool {
	_, ok := w.trees.owner[index]
	return ok
}

// tileData is the tile stack at index with stump overrides applied.
func (w *World) tileData(index int) []int {
	if d, ok := w.trees.overrides[index]; ok {
		return d
	}
	return w.m.TileAt(index)
}

func (w *World) treeAt(index int) *data.TreeTemplate {
	if w.treeT == nil {
		return nil
	}
	for _, id := range w.m.TileAt(index) {
		if tpl := w.treeT.ByTile(id); tpl != nil {
			return tpl
		}
	}
	return nil
}

// searchTree walks the 4-connected tiles of tree type tpl starting at start
// with an explicit worklist, visiting at most limit tiles. The result is
// sorted so the first element is the tree's root.
func (w *World) searchTree(tpl *data.TreeTemplate, start, limit int) []int {
	seen := map[int]struct{}{start: {}}
	stack := []int{start}
	var out []int
	for len(stack) > 0 && len(out) < limit {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, idx)
		x, y := w.m.Coords(idx)
		for _, d := range [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
			nx, ny := x+d[0], y+d[1]
			if !w.m.InBounds(nx, ny) {
				continue
			}
			n := w.m.Index(nx, ny)
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			if w.treeAt(n) == tpl {
				stack = append(stack, n)
			}
		}
	}
	sort.Ints(out)
	return out
}

// DestroyTree swaps the tree at (x,y) to stumps and schedules its regrowth.
// A tree that is already cut is unavailable until it regrows.
func (w *World) DestroyTree(x, y int) (*data.TreeTemplate, error) {
	if !w.m.InBounds(x, y) {
		return nil, ErrOutOfBounds
	}
	start := w.m.Index(x, y)
	if w.IsTreeCut(start) {
		return nil, ErrTreeUnavailable
	}
	tpl := w.treeAt(start)
	if tpl == nil {
		return nil, ErrTreeNotFound
	}
	limit := tpl.MaxSearch
	if limit <= 0 {
		limit = defaultTreeSearch
	}
	tiles := w.searchTree(tpl, start, limit)
	root := tiles[0]
	if _, ok := w.trees.cut[root]; ok {
		return nil, ErrTreeUnavailable
	}
	for _, idx := range tiles {
		if w.IsTreeCut(idx) {
			return nil, ErrTreeUnavailable
		}
	}

	ct := &cutTree{tpl: tpl, original: make(map[int][]int, len(tiles)), regrowAt: w.Now().Add(tpl.RegrowDelay())}
	changed := make(map[world.RegionID][]packet.Tile)
	for _, idx := range tiles {
		orig := w.m.TileAt(idx)
		stump := make([]int, len(orig))
		for i, id := range orig {
			if s, ok := tpl.Stump(id); ok {
				stump[i] = s
			} else {
				stump[i] = id
			}
		}
		ct.original[idx] = orig
		w.trees.owner[idx] = root
		w.trees.overrides[idx] = stump
		tx, ty := w.m.Coords(idx)
		rid := w.grid.RegionAt(tx, ty)
		changed[rid] = append(changed[rid], w.bridge.TileFrom(idx, stump))
	}
	w.trees.cut[root] = ct
	w.pushTiles(changed)
	return tpl, nil
}

// CutTree is a player harvesting the tree at (x,y).
func (w *World) CutTree(p *world.Player, x, y int) error {
	if p.DistanceTo(x, y) > 1 {
		return ErrOutOfBounds
	}
	if !w.m.InBounds(x, y) {
		return ErrOutOfBounds
	}
	tpl := w.treeAt(w.m.Index(x, y))
	if tpl == nil {
		return ErrTreeNotFound
	}
	if tpl.Level > p.Level() {
		w.bridge.SendTo(p, packet.Notify(fmt.Sprintf("You must be at least level %d to cut this tree.", tpl.Level)))
		return ErrTreeUnavailable
	}
	if w.IsTreeCut(w.m.Index(x, y)) {
		return ErrTreeUnavailable
	}
	stackable := false
	if it := w.itemT.Get(tpl.Item); it != nil {
		stackable = it.Stackable
	}
	inv := p.Inventory()
	if tpl.Item != "" && inv.Free() == 0 && !(stackable && inv.Has(tpl.Item)) {
		w.bridge.SendTo(p, packet.Notify("You do not have enough space in your inventory."))
		return ErrNoSpace
	}
	if _, err := w.DestroyTree(x, y); err != nil {
		return err
	}
	if tpl.Item != "" && inv.Add(tpl.Item, 1, stackable) {
		w.bridge.SendTo(p, packet.InventoryAdded(tpl.Item, 1))
		p.MarkDirty()
	}
	return nil
}

// RegrowTrees restores every cut tree whose regrowth time has passed. A zero
// now regrows everything.
func (w *World) RegrowTrees(now time.Time) int {
	roots := make([]int, 0, len(w.trees.cut))
	for root, ct := range w.trees.cut {
		if now.IsZero() || !now.Before(ct.regrowAt) {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)
	changed := make(map[world.RegionID][]packet.Tile)
	for _, root := range roots {
		ct := w.trees.cut[root]
		for idx, orig := range ct.original {
			delete(w.trees.owner, idx)
			delete(w.trees.overrides, idx)
			x, y := w.m.Coords(idx)
			rid := w.grid.RegionAt(x, y)
			changed[rid] = append(changed[rid], w.bridge.TileFrom(idx, orig))
		}
		delete(w.trees.cut, root)
	}
	w.pushTiles(changed)
	if len(roots) > 0 {
		w.log.Debug("trees regrown", zap.Int("count", len(roots)))
	}
	return len(roots)
}

func (w *World) pushTiles(changed map[world.RegionID][]packet.Tile) {
	ids := make([]world.RegionID, 0, len(changed))
	for id := range changed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		tiles := changed[id]
		sort.Slice(tiles, func(i, j int) bool { return tiles[i].Index < tiles[j].Index })
		w.bridge.ModifyTiles(id, tiles)
	}
}

// DynamicTiles is the per-player tile overlay for zone id: tree stumps and
// door tiles rendered open or closed for p.
func (w *World) DynamicTiles(p *world.Player, id world.RegionID) map[int][]int {
	var out map[int][]int
	set := func(idx int, d []int) {
		if out == nil {
			out = make(map[int][]int)
		}
		out[idx] = d
	}
	for idx, d := range w.trees.overrides {
		x, y := w.m.Coords(idx)
		if w.grid.RegionAt(x, y) == id {
			set(idx, d)
		}
	}
	for _, door := range w.m.Doors() {
		if w.grid.RegionAt(door.X, door.Y) != id || (door.Open == 0 && door.Closed == 0) {
			continue
		}
		idx := w.m.Index(door.X, door.Y)
		tile := door.Closed
		if !door.Locked || p.HasDoor(door.Key) {
			tile = door.Open
		}
		base := w.tileData(idx)
		d := make([]int, 0, len(base)+1)
		d = append(d, base...)
		set(idx, append(d, tile))
	}
	return out
}
