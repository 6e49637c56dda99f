package dht

import (
	"sync"
	"time"
)

// OverheadTracker accumulates per-contact serialization/processing overhead
// for each node within one concurrent epoch (spec §3, §4.4). Get returns the
// node's current accumulated value and then increments it by the fixed
// per-step overhead gamma, so the first access for a node returns zero and
// subsequent accesses within the same epoch observe gamma, 2*gamma, ...
// (spec §9 resolves the "first access" ambiguity this way).
type OverheadTracker struct {
	mu     sync.Mutex
	gamma  time.Duration
	values map[uint64]time.Duration
}

// NewOverheadTracker creates a tracker that adds gamma on every Get call.
func NewOverheadTracker(gamma time.Duration) *OverheadTracker {
	return &OverheadTracker{
		gamma:  gamma,
		values: make(map[uint64]time.Duration),
	}
}

// Get returns nodeID's current accumulated overhead, then bumps it by gamma
// for the next call.
func (ot *OverheadTracker) Get(nodeID uint64) time.Duration {
	ot.mu.Lock()
	defer ot.mu.Unlock()

	current := ot.values[nodeID]
	ot.values[nodeID] = current + ot.gamma
	return current
}

// Reset clears the accumulated overhead for a single node.
func (ot *OverheadTracker) Reset(nodeID uint64) {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	delete(ot.values, nodeID)
}

// ResetAll clears accumulated overhead for every node, marking the boundary
// between two concurrent epochs (spec §4.4, §5).
func (ot *OverheadTracker) ResetAll() {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	ot.values = make(map[uint64]time.Duration)
}
