// internal/pkg/keymutex/keymutex.go
package keymutex

import "sync"

// KeyMutex provides per-key mutual exclusion using a fixed set of lock
// stripes. Two goroutines holding different keys proceed in parallel unless
// the keys hash to the same stripe.
type KeyMutex struct {
	stripes []sync.Mutex
}

// New creates a KeyMutex with the given number of stripes (minimum 1)
func New(stripes int) *KeyMutex {
	if stripes < 1 {
		stripes = 1
	}
	return &KeyMutex{
		stripes: make([]sync.Mutex, stripes),
	}
}

// Lock acquires the stripe owning key
func (m *KeyMutex) Lock(key uint) {
	m.stripes[int(key)%len(m.stripes)].Lock()
}

// Unlock releases the stripe owning key
func (m *KeyMutex) Unlock(key uint) {
	m.stripes[int(key)%len(m.stripes)].Unlock()
}
