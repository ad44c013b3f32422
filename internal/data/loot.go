package data

import (
	"fmt"
	"strconv"
	"strings"
)

// Loot is one chest entry, written in data files as "key:probability:count".
// Probability and count are optional and default to 100 and 1.
type Loot struct {
	Key         string
	Probability int
	Count       int
}

func ParseLoot(s string) (Loot, error) {
	parts := strings.Split(s, ":")
	l := Loot{Key: strings.TrimSpace(parts[0]), Probability: 100, Count: 1}
	if l.Key == "" {
		return Loot{}, fmt.Errorf("loot %q: empty key", s)
	}
	if len(parts) > 3 {
		return Loot{}, fmt.Errorf("loot %q: too many fields", s)
	}
	if len(parts) > 1 {
		p, err := strconv.Atoi(parts[1])
		if err != nil || p < 0 {
			return Loot{}, fmt.Errorf("loot %q: bad probability", s)
		}
		l.Probability = p
	}
	if len(parts) > 2 {
		c, err := strconv.Atoi(parts[2])
		if err != nil || c < 1 {
			return Loot{}, fmt.Errorf("loot %q: bad count", s)
		}
		l.Count = c
	}
	return l, nil
}

// ParseLootList parses every entry, failing on the first bad one.
func ParseLootList(list []string) ([]Loot, error) {
	out := make([]Loot, 0, len(list))
	for _, s := range list {
		l, err := ParseLoot(s)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (l Loot) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Key, l.Probability, l.Count)
}
