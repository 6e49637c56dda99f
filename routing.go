package dht

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// RoutingTable is a sequence of KBuckets indexed by shared-prefix length
// relative to the owning node (spec §4.3). Bucket i holds only peers whose
// hash shares exactly i upper bits with the owner's hash; intermediate
// buckets are created eagerly so no index hole exists below the highest
// prefix length seen so far.
type RoutingTable struct {
	mu        sync.RWMutex
	ownerID   uint64
	ownerHash Hash
	capacity  int
	buckets   []*KBucket

	// order records, for each peer ever admitted to a bucket, the sequence
	// in which it was first admitted — used to break distance ties in
	// ClosestTo deterministically (spec §4.3).
	order   map[uint64]int
	nextSeq int
}

// NewRoutingTable creates a routing table for the node identified by
// ownerID, with bucket capacity k.
func NewRoutingTable(ownerID uint64, k int) *RoutingTable {
	return &RoutingTable{
		ownerID:   ownerID,
		ownerHash: NewHashFromID(ownerID),
		capacity:  k,
		order:     make(map[uint64]int),
	}
}

// Offer notifies the routing table of a candidate peer. Self-offers are
// ignored. The peer is routed to the bucket matching its shared-prefix
// length with the owner, creating intermediate buckets as needed (spec
// §4.3). SharedUpperBits is a pure function of two hashes, so a peer can
// never qualify for two different bucket indices simultaneously — there is
// no tie to break at this layer (spec §9 open question).
func (rt *RoutingTable) Offer(peerID uint64) bool {
	if peerID == rt.ownerID {
		return false
	}

	s := SharedUpperBits(rt.ownerHash, NewHashFromID(peerID))

	rt.mu.Lock()
	for len(rt.buckets) <= s {
		rt.buckets = append(rt.buckets, NewKBucket(rt.ownerHash, rt.capacity))
	}
	bucket := rt.buckets[s]
	rt.mu.Unlock()

	added := bucket.Insert(peerID)

	if added {
		rt.mu.Lock()
		if _, seen := rt.order[peerID]; !seen {
			rt.order[peerID] = rt.nextSeq
			rt.nextSeq++
		}
		rt.mu.Unlock()
	}

	return added
}

// ClosestTo returns the `limit` peers of smallest distance to key, ordered
// ascending by distance. limit<=0 defaults to the table's bucket capacity k
// (spec §4.3). Ties are broken by insertion order into the routing table.
func (rt *RoutingTable) ClosestTo(key Hash, limit int) []PeerDistance {
	if limit <= 0 {
		limit = rt.capacity
	}

	rt.mu.RLock()
	buckets := make([]*KBucket, len(rt.buckets))
	copy(buckets, rt.buckets)
	order := make(map[uint64]int, len(rt.order))
	for k, v := range rt.order {
		order[k] = v
	}
	rt.mu.RUnlock()

	var all []PeerDistance
	for _, b := range buckets {
		all = append(all, b.DistancesTo(key)...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Distance != all[j].Distance {
			return all[i].Distance.Less(all[j].Distance)
		}
		return order[all[i].PeerID] < order[all[j].PeerID]
	})

	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// GetRoutingNodes returns the flat set of all peer IDs across all buckets.
func (rt *RoutingTable) GetRoutingNodes() []uint64 {
	rt.mu.RLock()
	buckets := make([]*KBucket, len(rt.buckets))
	copy(buckets, rt.buckets)
	rt.mu.RUnlock()

	var out []uint64
	for _, b := range buckets {
		out = append(out, b.BucketNodes()...)
	}
	return out
}

// Summary returns a stable textual tag "b0:n0 b1:n1 …" giving the per-bucket
// member counts (spec §4.3). The format is used for equality checks between
// routing tables built by different paths (spec §8 property 6).
func (rt *RoutingTable) Summary() string {
	rt.mu.RLock()
	buckets := make([]*KBucket, len(rt.buckets))
	copy(buckets, rt.buckets)
	rt.mu.RUnlock()

	var sb strings.Builder
	for i, b := range buckets {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "b%d:%d", i, b.Len())
	}
	return sb.String()
}
