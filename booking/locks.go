package booking

import (
	"sync"

	"gorm.io/gorm"
)

// lockClassBooking namespaces the Postgres advisory lock so other advisory
// users in the same database cannot collide with booking serialization.
const lockClassBooking = 7201

// hostLocks serializes same-process booking attempts per host before they
// ever reach the database, shedding local contention off Postgres. The
// advisory lock below remains the real serialization point across processes.
type hostLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newHostLocks() *hostLocks {
	return &hostLocks{locks: make(map[uint]*sync.Mutex)}
}

func (h *hostLocks) get(hostID uint) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[hostID]
	if !ok {
		l = &sync.Mutex{}
		h.locks[hostID] = l
	}
	return l
}

// Lock acquires the in-process lock for a host and returns its unlock func.
func (h *hostLocks) Lock(hostID uint) func() {
	l := h.get(hostID)
	l.Lock()
	return l.Unlock
}

// acquireHostLock takes the transaction-scoped advisory lock for a host. It
// is released automatically at commit or rollback, so the overlap re-check
// and the insert below it form one atomic unit.
func acquireHostLock(tx *gorm.DB, hostID uint) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(?::int, ?::int)", lockClassBooking, int(hostID)).Error
}
