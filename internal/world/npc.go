package world

import "github.com/tilerealm/server/internal/data"

// NPC is a non-combat character. It never enters the combat engine.
type NPC struct {
	Base
	tpl  *data.NpcTemplate
	talk map[Instance]int
}

func NewNPC(id Instance, tpl *data.NpcTemplate, x, y int) *NPC {
	n := &NPC{tpl: tpl, talk: make(map[Instance]int)}
	n.bind(n, id, KindNPC, tpl.Key, x, y)
	n.name = tpl.Name
	return n
}

// Talk returns the next line of dialogue for player, cycling through the
// template text. Empty when the NPC has nothing to say.
func (n *NPC) Talk(player Instance) string {
	if len(n.tpl.Text) == 0 {
		return ""
	}
	i := n.talk[player] % len(n.tpl.Text)
	n.talk[player] = i + 1
	return n.tpl.Text[i]
}

// Forget drops per-player dialogue progress.
func (n *NPC) Forget(player Instance) { delete(n.talk, player) }
