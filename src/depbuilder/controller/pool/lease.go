package pool

import (
	"sync/atomic"
	"time"

	"github.com/uber/depbuilder/src/depbuilder/gateway/langserver"
)

// Lease is an exclusive, single-owner right to use one pooled connection until it is released.
type Lease struct {
	id         uint64
	slot       int
	gen        uint64
	conn       *langserver.Conn
	acquiredAt time.Time
	released   atomic.Bool
}

// ID is unique among the leases of one pool.
func (l *Lease) ID() uint64 {
	return l.id
}

// Slot is the pool slot holding the leased handle.
func (l *Lease) Slot() int {
	return l.slot
}

// Conn is the leased connection. It must not be used after Release.
func (l *Lease) Conn() *langserver.Conn {
	return l.conn
}

// AcquiredAt is when the lease was granted.
func (l *Lease) AcquiredAt() time.Time {
	return l.acquiredAt
}

// Released reports whether Release has been called.
func (l *Lease) Released() bool {
	return l.released.Load()
}
