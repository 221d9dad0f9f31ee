package common

import "errors"

var (
	ErrModulePaused = errors.New("module paused")
	ErrReentrancy   = errors.New("reentrant call rejected")
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// ReentrancyGuard protects entry points that call into an external collaborator
// before their own state updates are finalised. Operations are serialized by
// the node, so a set flag can only mean the collaborator called back into the
// module mid-operation.
type ReentrancyGuard struct {
	busy bool
}

// Enter marks the guard as held. It fails when the guard is already held,
// which indicates a reentrant call.
func (g *ReentrancyGuard) Enter() error {
	if g == nil {
		return nil
	}
	if g.busy {
		return ErrReentrancy
	}
	g.busy = true
	return nil
}

// Exit releases the guard. Safe to defer immediately after a successful Enter.
func (g *ReentrancyGuard) Exit() {
	if g == nil {
		return
	}
	g.busy = false
}
