package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NpcTemplate is a non-combat character kind.
type NpcTemplate struct {
	Key  string   `yaml:"key"`
	Name string   `yaml:"name"`
	Text []string `yaml:"text"`
}

type npcListFile struct {
	Npcs []NpcTemplate `yaml:"npcs"`
}

type NpcTable struct {
	npcs map[string]*NpcTemplate
}

func LoadNpcTable(path string) (*NpcTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read npc list: %w", err)
	}
	var f npcListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse npc list: %w", err)
	}
	return NewNpcTable(f.Npcs), nil
}

func NewNpcTable(list []NpcTemplate) *NpcTable {
	t := &NpcTable{npcs: make(map[string]*NpcTemplate, len(list))}
	for i := range list {
		n := list[i]
		if n.Name == "" {
			n.Name = n.Key
		}
		t.npcs[n.Key] = &n
	}
	return t
}

func (t *NpcTable) Get(key string) *NpcTemplate { return t.npcs[key] }

func (t *NpcTable) Count() int { return len(t.npcs) }
