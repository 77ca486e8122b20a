package runloop

import "sync"

// NonReentrantMutex guards against logical reentrancy: a handler that, directly or
// through a callback, tries to re-acquire a lock it already holds panics instead of
// deadlocking or silently corrupting state. Even though the dispatch loop is a single
// logical thread, a handler calling back into a public Radio operation that itself
// wants the same lock is a bug, and spec.md §9 calls for catching it loudly rather
// than modeling it as a recursive lock.
type NonReentrantMutex struct {
	mu     sync.Mutex
	held   bool
	heldMu sync.Mutex
}

// Lock acquires the mutex, panicking if it is already held.
func (m *NonReentrantMutex) Lock() {
	m.heldMu.Lock()
	if m.held {
		m.heldMu.Unlock()
		panic("runloop: reentrant lock acquisition")
	}
	m.heldMu.Unlock()

	m.mu.Lock()

	m.heldMu.Lock()
	m.held = true
	m.heldMu.Unlock()
}

// Unlock releases the mutex.
func (m *NonReentrantMutex) Unlock() {
	m.heldMu.Lock()
	m.held = false
	m.heldMu.Unlock()

	m.mu.Unlock()
}
