package service

import "sync/atomic"

// reentrancyGuard stops the engine's own form writes from re-entering the
// field change path through the form's change listeners.
type reentrancyGuard struct {
	held atomic.Bool
}

// enter takes the guard and reports whether it was free.
func (g *reentrancyGuard) enter() bool {
	return g.held.CompareAndSwap(false, true)
}

func (g *reentrancyGuard) leave() {
	g.held.Store(false)
}

func (g *reentrancyGuard) active() bool {
	return g.held.Load()
}

// run calls fn with the guard held and always releases it.
func (g *reentrancyGuard) run(fn func()) bool {
	if !g.enter() {
		return false
	}
	defer g.leave()
	fn()
	return true
}
