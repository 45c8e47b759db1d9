package pool

import (
	"time"

	"github.com/uber/depbuilder/src/depbuilder/entity"
	"github.com/uber/depbuilder/src/depbuilder/gateway/langserver"
)

// handle is one pool slot. Every field is guarded by the pool mutex.
type handle struct {
	slot  int
	state entity.HandleState
	conn  *langserver.Conn
	// gen changes every time the slot is reserved for a new process, so that late
	// terminations and releases of an older process cannot touch the new one.
	gen          uint64
	served       uint64
	lastActivity time.Time
	suspect      bool
	// spawned is set once the slot has held a process, so later spawns count as restarts.
	spawned bool
}

// available reports whether the slot can be reserved for a new process.
func (h *handle) available() bool {
	return h.conn == nil && (h.state == entity.HandleTerminated || h.state == entity.HandleUnhealthy)
}

func (h *handle) expired(now time.Time, idleTimeout time.Duration) bool {
	return idleTimeout > 0 && now.Sub(h.lastActivity) > idleTimeout
}

func (h *handle) info() entity.HandleInfo {
	info := entity.HandleInfo{
		Slot:           h.slot,
		State:          h.state,
		RequestsServed: h.served,
		LastActivity:   h.lastActivity,
		Suspect:        h.suspect,
	}
	if h.conn != nil {
		info.ID = h.conn.ID()
		info.PID = h.conn.PID()
	}
	return info
}
