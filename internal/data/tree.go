package data

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TreeTemplate describes one harvestable tree type. Tiles and Stumps are
// parallel: cutting replaces Tiles[i] with Stumps[i].
type TreeTemplate struct {
	Key       string `yaml:"key"`
	Tiles     []int  `yaml:"tiles"`
	Stumps    []int  `yaml:"stumps"`
	RegrowMs  int    `yaml:"regrow"`
	Item      string `yaml:"item"`
	Level     int    `yaml:"level"`
	MaxSearch int    `yaml:"max_search"`
}

func (t *TreeTemplate) RegrowDelay() time.Duration {
	return time.Duration(t.RegrowMs) * time.Millisecond
}

// Stump returns the stump tile replacing tile, or false when tile is not part
// of this tree type.
func (t *TreeTemplate) Stump(tile int) (int, bool) {
	for i, id := range t.Tiles {
		if id == tile {
			return t.Stumps[i], true
		}
	}
	return 0, false
}

type treeListFile struct {
	Trees []TreeTemplate `yaml:"trees"`
}

// TreeTable maps tile ids to the tree type that owns them.
type TreeTable struct {
	trees  map[string]*TreeTemplate
	byTile map[int]*TreeTemplate
}

func LoadTreeTable(path string) (*TreeTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree list: %w", err)
	}
	var f treeListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse tree list: %w", err)
	}
	return NewTreeTable(f.Trees)
}

func NewTreeTable(list []TreeTemplate) (*TreeTable, error) {
	t := &TreeTable{
		trees:  make(map[string]*TreeTemplate, len(list)),
		byTile: make(map[int]*TreeTemplate),
	}
	for i := range list {
		tr := list[i]
		if len(tr.Tiles) != len(tr.Stumps) {
			return nil, fmt.Errorf("tree %q: %d tiles but %d stumps", tr.Key, len(tr.Tiles), len(tr.Stumps))
		}
		if tr.RegrowMs <= 0 {
			tr.RegrowMs = 30000
		}
		if tr.MaxSearch <= 0 {
			tr.MaxSearch = 64
		}
		t.trees[tr.Key] = &tr
		for _, tile := range tr.Tiles {
			t.byTile[tile] = t.trees[tr.Key]
		}
	}
	return t, nil
}

func (t *TreeTable) Get(key string) *TreeTemplate { return t.trees[key] }

// ByTile returns the tree type a tile id belongs to, or nil.
func (t *TreeTable) ByTile(tile int) *TreeTemplate { return t.byTile[tile] }

func (t *TreeTable) Count() int { return len(t.trees) }
