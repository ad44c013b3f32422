package packet

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// SessionState is the connection's protocol phase.
type SessionState int

const (
	StateConnected      SessionState = iota
	StateAuthenticating              // credentials being checked off-tick
	StateLoaded                      // player built, awaiting Ready
	StateInWorld                     // playing
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateAuthenticating:
		return "Authenticating"
	case StateLoaded:
		return "Loaded"
	case StateInWorld:
		return "InWorld"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// HandlerFunc handles one decoded message. The session is passed opaquely to
// keep this package free of transport imports.
type HandlerFunc func(sess any, r *Reader)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps opcodes to handlers with state-based access control.
type Registry struct {
	handlers map[Opcode]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[Opcode]*handlerEntry),
		log:      log,
	}
}

// Register maps an opcode to a handler, restricted to the given states.
func (reg *Registry) Register(op Opcode, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[op] = &handlerEntry{fn: fn, allowedStates: allowed}
}

// Registered reports whether op has a handler.
func (reg *Registry) Registered(op Opcode) bool {
	_, ok := reg.handlers[op]
	return ok
}

// Dispatch validates the state and runs the handler. Unknown opcodes are
// dropped silently; a handler panic is recovered and returned as an error.
func (reg *Registry) Dispatch(sess any, state SessionState, r *Reader) error {
	op := r.Opcode()
	reg.log.Debug("packet received",
		zap.Stringer("op", op),
		zap.Int("size", r.Size()),
		zap.Stringer("state", state),
	)

	entry, ok := reg.handlers[op]
	if !ok {
		reg.log.Debug("unknown opcode", zap.Uint8("op", uint8(op)), zap.Stringer("state", state))
		return nil
	}
	if !entry.allowedStates[state] {
		reg.log.Warn("opcode not allowed in state",
			zap.Stringer("op", op),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("opcode %s not allowed in state %s", op, state)
	}
	return reg.safeCall(entry.fn, sess, r)
}

func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *Reader) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Stringer("op", r.Opcode()),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("handler panic for opcode %s: %v", r.Opcode(), rec)
		}
	}()
	fn(sess, r)
	return nil
}
