package engine

import (
	"sync"
	"sync/atomic"
)

// Guard protects the working buffers of one plugin instance. The audio thread
// only ever calls TryLock and renders silence when it fails; control thread
// operations call Lock, which blocks until the current sub-block is done.
type Guard struct {
	mu        sync.Mutex
	contended atomic.Uint64
}

// TryLock acquires the guard without blocking. Failed attempts are counted.
func (g *Guard) TryLock() bool {
	if g.mu.TryLock() {
		return true
	}
	g.contended.Add(1)
	return false
}

func (g *Guard) Lock()   { g.mu.Lock() }
func (g *Guard) Unlock() { g.mu.Unlock() }

// Contended returns how many TryLock calls have failed.
func (g *Guard) Contended() uint64 { return g.contended.Load() }
