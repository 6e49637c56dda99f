package dht

import "sync"

// PeerDistance pairs a peer ID with its XOR distance to some reference
// hash. It is the shared result shape for KBucket.DistancesTo and
// RoutingTable.ClosestTo.
type PeerDistance struct {
	PeerID   uint64
	Distance Distance
}

// KBucket is a bounded set of peer IDs sharing one
// prefix-length relative to an owning node (spec §4.2).
//
// Insertion follows the simulator's "keep k closest" policy rather than
// textbook Kademlia's least-recently-seen eviction: the simulator has no
// liveness signal, so a full bucket only ever gives up its current farthest
// member, and only to a strictly closer candidate.
type KBucket struct {
	mu        sync.RWMutex
	ownerHash Hash
	capacity  int
	nodes     []uint64 // insertion order; an evicting peer takes the evicted slot
}

// NewKBucket creates a bucket of the given capacity for an owner identified
// by ownerHash.
func NewKBucket(ownerHash Hash, capacity int) *KBucket {
	return &KBucket{
		ownerHash: ownerHash,
		capacity:  capacity,
		nodes:     make([]uint64, 0, capacity),
	}
}

// Insert adds peerID to the bucket following the keep-k-closest rule (spec
// §4.2):
//
//  1. If the bucket has room, add the peer.
//  2. Otherwise compare the incoming peer's distance to the owner against
//     the current maximum distance present. If the incoming distance is not
//     smaller, the peer is dropped; otherwise it replaces the farthest
//     member.
//
// Returns true if peerID ended up a member of the bucket (inserted or
// already present), false if it was dropped.
func (kb *KBucket) Insert(peerID uint64) bool {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	for _, existing := range kb.nodes {
		if existing == peerID {
			return true
		}
	}

	if len(kb.nodes) < kb.capacity {
		kb.nodes = append(kb.nodes, peerID)
		return true
	}

	maxIdx, maxDist := 0, Distance(0)
	for i, existing := range kb.nodes {
		d := XOR(kb.ownerHash, NewHashFromID(existing))
		if i == 0 || maxDist.Less(d) {
			maxIdx, maxDist = i, d
		}
	}

	incoming := XOR(kb.ownerHash, NewHashFromID(peerID))
	if !incoming.Less(maxDist) {
		return false
	}

	kb.nodes[maxIdx] = peerID
	return true
}

// DistancesTo returns the (peer, distance) pairs of every member relative to
// key.
func (kb *KBucket) DistancesTo(key Hash) []PeerDistance {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make([]PeerDistance, len(kb.nodes))
	for i, peerID := range kb.nodes {
		out[i] = PeerDistance{PeerID: peerID, Distance: XOR(NewHashFromID(peerID), key)}
	}
	return out
}

// BucketNodes returns a snapshot of the bucket's current members in slot
// order: insertion order, except that a peer admitted by eviction sits in
// the position of the member it replaced.
func (kb *KBucket) BucketNodes() []uint64 {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	out := make([]uint64, len(kb.nodes))
	copy(out, kb.nodes)
	return out
}

// Len returns the current member count.
func (kb *KBucket) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.nodes)
}
