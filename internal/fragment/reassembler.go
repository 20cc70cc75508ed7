package fragment

import (
	"sync"
	"time"

	"github.com/skylinewire/streamd/internal/logging"
	"github.com/skylinewire/streamd/internal/wire"
)

var log = logging.L("fragment")

// nackRefreshInterval caps how often a NACK is re-emitted for the same id,
// to avoid storms when a sender is simply slow.
const nackRefreshInterval = 50 * time.Millisecond

// NackFunc is invoked when the reassembler wants retransmission of a
// specific missing fragment.
type NackFunc func(id int32, index uint16)

type pending struct {
	numIndices uint16
	received   []bool
	buffer     [][]byte
	numSet     int
	firstSeen  time.Time
	lastNack   time.Time
}

// Reassembler reconstructs payloads from a stream of fragments for one
// (PacketType, sender) lane — callers run one Reassembler per video channel
// and one per audio channel.
type Reassembler struct {
	horizon time.Duration
	onNack  NackFunc

	mu       sync.Mutex
	states   map[int32]*pending
	maxSeen  int32
	haveSeen bool
}

// New creates a Reassembler. horizon bounds how long incomplete state for an
// id is retained — state older than it is dropped as a lost frame rather
// than held forever. onNack may be nil if the caller does not want NACKs
// (e.g. a TCP-carried lane, which is already reliable).
func New(horizon time.Duration, onNack NackFunc) *Reassembler {
	return &Reassembler{
		horizon: horizon,
		onNack:  onNack,
		states:  make(map[int32]*pending),
	}
}

// Feed processes one arrived fragment. It returns the reassembled payload
// and true once every index for its id has arrived. Duplicate fragments,
// including NACK replays, are idempotent no-ops.
func (r *Reassembler) Feed(p wire.Packet) (payload []byte, done bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.states[p.ID]
	if !ok {
		st = &pending{
			numIndices: p.NumIndices,
			received:   make([]bool, p.NumIndices),
			buffer:     make([][]byte, p.NumIndices),
			firstSeen:  time.Now(),
		}
		r.states[p.ID] = st
	}

	if int(p.Index) >= len(st.received) {
		log.Warn("fragment index out of range", "id", p.ID, "index", p.Index, "numIndices", st.numIndices)
		return nil, false
	}

	if !st.received[p.Index] {
		st.received[p.Index] = true
		st.buffer[p.Index] = p.Data
		st.numSet++
	}

	if !r.haveSeen || p.ID > r.maxSeen {
		r.maxSeen = p.ID
		r.haveSeen = true
	}
	r.nackLowerIncompleteLocked(p.ID)

	if st.numSet < int(st.numIndices) {
		return nil, false
	}

	out := make([]byte, 0, int(st.numIndices)*wire.MaxPayloadSize)
	for _, chunk := range st.buffer {
		out = append(out, chunk...)
	}
	delete(r.states, p.ID)
	return out, true
}

// nackLowerIncompleteLocked emits NACKs for ids lower than newID that remain
// incomplete, rate-limited per id by nackRefreshInterval. Caller holds r.mu.
func (r *Reassembler) nackLowerIncompleteLocked(newID int32) {
	if r.onNack == nil {
		return
	}
	now := time.Now()
	for id, st := range r.states {
		if id >= newID || st.numSet >= int(st.numIndices) {
			continue
		}
		if !st.lastNack.IsZero() && now.Sub(st.lastNack) < nackRefreshInterval {
			continue
		}
		st.lastNack = now
		for idx, got := range st.received {
			if !got {
				r.onNack(id, uint16(idx))
			}
		}
	}
}

// Sweep drops reassembly state older than the configured horizon. Callers
// run this from a periodic goroutine (e.g. a ticker firing once per frame
// interval at MIN_FPS).
func (r *Reassembler) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, st := range r.states {
		if now.Sub(st.firstSeen) > r.horizon {
			delete(r.states, id)
		}
	}
}

// Pending reports how many ids currently have incomplete reassembly state.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
