package session

import (
	"time"

	"github.com/skylinewire/streamd/internal/transport"
)

// Slot holds the per-client state admitted through discovery. The manager's
// slot-array lock guards structural changes (admit, evict); stateMu on the
// parent Manager guards the control flags below (IsControlling, host
// assignment, mouse state lives one layer up in the control dispatcher).
type Slot struct {
	Active       bool
	Username     string
	ConnectionID int32
	UDPPort      uint16
	TCPPort      uint16

	UDP *transport.UDPContext
	TCP *transport.TCPContext

	LastPing time.Time

	IsControlling bool

	// NongracefulUntil is non-zero while a 10-minute grace period (started
	// by a liveness-reap eviction) is in effect, during which the process
	// will not self-exit even with zero connected clients.
	NongracefulUntil time.Time
}

func (s *Slot) reset() {
	*s = Slot{}
}
