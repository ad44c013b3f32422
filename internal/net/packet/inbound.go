package packet

import "github.com/tilerealm/server/internal/world"

// Client payloads.

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type WhoRequest struct {
	Instances []world.Instance `json:"instances"`
}

type MovementRequest struct {
	Opcode      MovementOp        `json:"opcode"`
	X           int               `json:"x"`
	Y           int               `json:"y"`
	Instance    world.Instance    `json:"instance,omitempty"`
	Target      world.Instance    `json:"target,omitempty"`
	Orientation world.Orientation `json:"orientation,omitempty"`
}

type TargetRequest struct {
	Opcode   TargetOp       `json:"opcode"`
	Instance world.Instance `json:"instance,omitempty"`
	X        int            `json:"x,omitempty"`
	Y        int            `json:"y,omitempty"`
}

type ProjectileRequest struct {
	Opcode   ProjectileOp   `json:"opcode"`
	Instance world.Instance `json:"instance"`
	Target   world.Instance `json:"target"`
}

type ChatRequest struct {
	Text string `json:"text"`
}

type ChestRequest struct {
	Instance world.Instance `json:"instance"`
}
