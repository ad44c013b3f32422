package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ItemKind groups items by how the server treats them.
type ItemKind string

const (
	ItemObject ItemKind = "object"
	ItemWeapon ItemKind = "weapon"
	ItemArmour ItemKind = "armour"
	ItemFood   ItemKind = "food"
	ItemGold   ItemKind = "gold"
)

// GoldKey is the item key whose drop count scales with mob level.
const GoldKey = "gold"

type ItemTemplate struct {
	Key       string   `yaml:"key"`
	Name      string   `yaml:"name"`
	Kind      ItemKind `yaml:"kind"`
	Stackable bool     `yaml:"stackable"`
	Heal      int      `yaml:"heal"`
	Attack    int      `yaml:"attack"`
	Defense   int      `yaml:"defense"`
	Price     int      `yaml:"price"`
}

type itemListFile struct {
	Items []ItemTemplate `yaml:"items"`
}

// ItemTable resolves item keys to templates.
type ItemTable struct {
	items map[string]*ItemTemplate
}

func LoadItemTable(path string) (*ItemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read item list: %w", err)
	}
	var f itemListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse item list: %w", err)
	}
	return NewItemTable(f.Items), nil
}

func NewItemTable(list []ItemTemplate) *ItemTable {
	t := &ItemTable{items: make(map[string]*ItemTemplate, len(list))}
	for i := range list {
		it := list[i]
		if it.Name == "" {
			it.Name = it.Key
		}
		if it.Kind == "" {
			it.Kind = ItemObject
		}
		if it.Key == GoldKey {
			it.Kind = ItemGold
			it.Stackable = true
		}
		t.items[it.Key] = &it
	}
	return t
}

func (t *ItemTable) Get(key string) *ItemTemplate { return t.items[key] }

func (t *ItemTable) Exists(key string) bool {
	_, ok := t.items[key]
	return ok
}

func (t *ItemTable) Count() int { return len(t.items) }
