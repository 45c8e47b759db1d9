package entity

import (
	"fmt"
	"time"
)

// HandleState is the lifecycle state of one pooled server process.
type HandleState int

const (
	// HandleStarting is a slot whose process is being spawned and initialized.
	HandleStarting HandleState = iota
	// HandleReady is idle and available for lease.
	HandleReady
	// HandleBusy is leased to exactly one caller.
	HandleBusy
	// HandleUnhealthy failed a call or a probe and awaits termination and replacement.
	HandleUnhealthy
	// HandleTerminated has no live process.
	HandleTerminated
)

var _handleStateNames = map[HandleState]string{
	HandleStarting:   "starting",
	HandleReady:      "ready",
	HandleBusy:       "busy",
	HandleUnhealthy:  "unhealthy",
	HandleTerminated: "terminated",
}

func (s HandleState) String() string {
	if name, ok := _handleStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("HandleState(%d)", int(s))
}

// MarshalText renders the state by name in JSON output.
func (s HandleState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HandleInfo is an immutable view of one pool slot.
type HandleInfo struct {
	Slot           int         `json:"slot"`
	ID             string      `json:"id,omitempty"`
	PID            int         `json:"pid,omitempty"`
	State          HandleState `json:"state"`
	RequestsServed uint64      `json:"requestsServed"`
	LastActivity   time.Time   `json:"lastActivity,omitempty"`
	Suspect        bool        `json:"suspect,omitempty"`
}
