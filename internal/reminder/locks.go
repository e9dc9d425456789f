package reminder

import (
	"sync"
	"time"

	"github.com/Amina2304/MedTrack/internal/models"
)

const defaultLockTTL = 30 * time.Second

// LockManager is the per-dose mutual exclusion registry. Every path that can
// resolve a dose (UI button, notification action, escalation check) must
// TryAcquire before the resolving write. Held locks auto-release after the
// TTL, bounding staleness from a crashed caller.
type LockManager struct {
	mu   sync.Mutex
	ttl  time.Duration
	held map[string]*time.Timer
}

// NewLockManager creates a lock manager. A non-positive ttl falls back to
// the default.
func NewLockManager(ttl time.Duration) *LockManager {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &LockManager{
		ttl:  ttl,
		held: make(map[string]*time.Timer),
	}
}

// TryAcquire marks the dose key held and returns true, or returns false when
// it is already held by a concurrent caller.
func (m *LockManager) TryAcquire(key models.DoseKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key.String()
	if _, exists := m.held[k]; exists {
		return false
	}
	m.held[k] = time.AfterFunc(m.ttl, func() {
		m.Release(key)
	})
	return true
}

// Release frees the dose key. Idempotent: releasing an unheld key is a
// no-op.
func (m *LockManager) Release(key models.DoseKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key.String()
	if timer, exists := m.held[k]; exists {
		timer.Stop()
		delete(m.held, k)
	}
}

// ReleaseAfter frees the dose key after a cooldown. Used after a successful
// resolving write so an in-flight duplicate trigger hits the lock instead of
// racing the write it just lost to.
func (m *LockManager) ReleaseAfter(key models.DoseKey, cooldown time.Duration) {
	if cooldown <= 0 {
		m.Release(key)
		return
	}
	time.AfterFunc(cooldown, func() {
		m.Release(key)
	})
}
