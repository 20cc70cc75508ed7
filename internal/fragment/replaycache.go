package fragment

import "sync"

// ReplayCache retains the most recently sent fragments so a NACK can be
// answered with a byte-identical replay instead of re-encoding. It holds at
// most maxIDs distinct ids, each with at most maxFragmentsPerID fragments;
// the oldest id is evicted once the cache is full.
type ReplayCache struct {
	maxIDs            int
	maxFragmentsPerID int

	mu    sync.Mutex
	order []int32 // insertion order of ids, oldest first
	byID  map[int32]map[uint16][]byte
}

// NewReplayCache builds a cache sized for one of the two standard lanes:
// video (25 ids × 500 fragments) or audio (100 ids × 3 fragments), or any
// other (maxIDs, maxFragmentsPerID) pair a caller wants to size it with.
func NewReplayCache(maxIDs, maxFragmentsPerID int) *ReplayCache {
	return &ReplayCache{
		maxIDs:            maxIDs,
		maxFragmentsPerID: maxFragmentsPerID,
		byID:              make(map[int32]map[uint16][]byte),
	}
}

// Store records a fragment's payload so it can be replayed on NACK.
func (c *ReplayCache) Store(id int32, index uint16, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fragments, ok := c.byID[id]
	if !ok {
		if len(c.order) >= c.maxIDs {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.byID, oldest)
		}
		fragments = make(map[uint16][]byte, c.maxFragmentsPerID)
		c.byID[id] = fragments
		c.order = append(c.order, id)
	}
	if len(fragments) >= c.maxFragmentsPerID {
		return
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	fragments[index] = stored
}

// Lookup returns the cached fragment for (id, index), if still retained. The
// returned replay must be byte-identical to what was originally sent.
func (c *ReplayCache) Lookup(id int32, index uint16) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fragments, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	data, ok := fragments[index]
	return data, ok
}
