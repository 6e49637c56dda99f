package dht

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Range is an inclusive millisecond range sampled uniformly when drawing a
// synthetic delay. The zero Range always samples zero (spec §4.4: "if a
// range option is unset, the corresponding delay is zero").
type Range struct {
	Min int
	Max int
}

func (r Range) sample() time.Duration {
	if r.Min == 0 && r.Max == 0 {
		return 0
	}
	span := r.Max - r.Min + 1
	if span <= 0 {
		return time.Duration(r.Min) * time.Millisecond
	}
	return time.Duration(r.Min+rand.IntN(span)) * time.Millisecond
}

// Config holds Network construction options, with sensible zero defaults
// for every rate and range (spec §4.4, §6) — mirroring the teacher's
// Options-struct convention (toxcore.Options).
type Config struct {
	NetworkID      uuid.UUID
	FastErrorRate  int // percent, 0..99
	SlowErrorRate  int // percent, 0..99
	ConnDelayRange Range
	FastDelayRange Range
	SlowDelayRange Range
	GammaOverhead  time.Duration
}

// Network is the simulated fabric nodes dispatch contacts through: node
// registry, synthetic delay/error injection, and overhead tracking (spec
// §4.4). It owns the NodeStore, the OverheadTracker, and both trace queues;
// each Node holds only a non-owning reference back to it.
type Network struct {
	cfg Config

	mu                sync.Mutex
	connectionCounter uint64
	connectionTrace   []ConnectionRecord
	errorTrace        []ConnectionRecord

	nodeStore *NodeStore
	overhead  *OverheadTracker
}

// NewNetwork creates a Network fabric from cfg. An unset NetworkID stays the
// nil UUID rather than being randomized, so traces are comparable across runs
// by default (spec §4.4, §6).
func NewNetwork(cfg Config) *Network {
	return &Network{
		cfg:       cfg,
		nodeStore: NewNodeStore(),
		overhead:  NewOverheadTracker(cfg.GammaOverhead),
	}
}

// NodeStore returns the network's node registry.
func (n *Network) NodeStore() *NodeStore {
	return n.nodeStore
}

// Overhead returns the network's overhead tracker.
func (n *Network) Overhead() *OverheadTracker {
	return n.overhead
}

// AddNewNode registers a node with this network.
func (n *Network) AddNewNode(node *Node) {
	n.nodeStore.Add(node)
}

// Connect runs the synthetic connection protocol between origin and target
// (spec §4.4):
//
//  1. Increment the process-monotonic connection counter.
//  2. Draw delay samples from the three configured ranges (zero if unset).
//  3. Roll a fast-error chance; if it hits, fail with the fast delay.
//  4. Roll a slow-error chance (independent of step 3); if it hits, fail
//     with the slow delay.
//  5. Look up target in the NodeStore; if absent, fail node_not_found with
//     the slow delay.
//  6. Otherwise build a successful Connection carrying the base delay and
//     the origin/remote overheads the caller already looked up.
//
// Every outcome is appended to the connection or error trace.
func (n *Network) Connect(origin, target uint64, originOverhead, remoteOverhead time.Duration) (*Connection, error) {
	n.mu.Lock()
	n.connectionCounter++
	seq := n.connectionCounter
	n.mu.Unlock()

	dOK := n.cfg.ConnDelayRange.sample()
	dFast := n.cfg.FastDelayRange.sample()
	dSlow := n.cfg.SlowDelayRange.sample()

	base := func(kind ConnectionErrorKind, delay time.Duration) ConnectionRecord {
		return ConnectionRecord{
			NetworkID:      n.cfg.NetworkID,
			Seq:            seq,
			Timestamp:      time.Now(),
			Origin:         origin,
			Target:         target,
			Error:          kind,
			BaseDelay:      delay,
			OriginOverhead: originOverhead,
			RemoteOverhead: remoteOverhead,
		}
	}

	if rand.IntN(100) < n.cfg.FastErrorRate {
		rec := base(ErrorFast, dFast)
		n.recordError(rec)
		return nil, &ConnectionError{Record: rec}
	}

	if rand.IntN(100) < n.cfg.SlowErrorRate {
		rec := base(ErrorSlow, dSlow)
		n.recordError(rec)
		return nil, &ConnectionError{Record: rec}
	}

	targetNode, err := n.nodeStore.Get(target)
	if err != nil {
		rec := base(ErrorNodeNotFound, dSlow)
		n.recordError(rec)
		return nil, &ConnectionError{Record: rec}
	}

	rec := base(ErrorNone, dOK)
	n.recordConnection(rec)
	return &Connection{Record: rec, Target: targetNode, respRange: n.cfg.ConnDelayRange}, nil
}

func (n *Network) recordConnection(rec ConnectionRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.connectionTrace = append(n.connectionTrace, rec)
}

func (n *Network) recordError(rec ConnectionRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errorTrace = append(n.errorTrace, rec)
	logrus.WithFields(logrus.Fields{
		"function":   "Connect",
		"network_id": rec.NetworkID,
		"origin":     rec.Origin,
		"target":     rec.Target,
		"error":      rec.Error.String(),
	}).Debug("simulated connection failure")
}

// idHash pairs a NodeID with its precomputed Hash, the shared unit of work
// for both routing-table construction paths below.
type idHash struct {
	ID   uint64
	Hash Hash
}

// BootstrapNode builds a RoutingTable for nodeID by offering every other
// registered peer to it one by one — the slow reference path (spec §4.4).
// It returns the resulting flattened peer list, whose set of peers
// InitWithRandomPeers's optimalRTForDHTClient path is required to reproduce
// (spec §8 property 6); the order within a bucket may differ between paths.
func (n *Network) BootstrapNode(nodeID uint64, k int) []uint64 {
	rt := NewRoutingTable(nodeID, k)
	for _, id := range n.nodeStore.IDs() {
		rt.Offer(id)
	}
	return rt.GetRoutingNodes()
}

// optimalRTForDHTClient computes node's routing table directly from the full
// (id, hash) population in O(n) per node: candidates are bucketed by
// shared-prefix length with node, and within each bucket only the k closest
// are inserted — equivalent to offering every peer exactly once, since a
// KBucket's keep-k-closest invariant converges to the same k-closest set
// regardless of presentation order.
func optimalRTForDHTClient(node *Node, all []idHash, k int) {
	buckets := make(map[int][]idHash)
	for _, p := range all {
		if p.ID == node.ID {
			continue
		}
		s := SharedUpperBits(node.hash, p.Hash)
		buckets[s] = append(buckets[s], p)
	}

	for _, group := range buckets {
		sort.Slice(group, func(i, j int) bool {
			di := XOR(node.hash, group[i].Hash)
			dj := XOR(node.hash, group[j].Hash)
			return di.Less(dj)
		})
		limit := k
		if len(group) < limit {
			limit = len(group)
		}
		for _, p := range group[:limit] {
			node.rt.Offer(p.ID)
		}
	}
}

// InitWithRandomPeers generates n nodes (IDs 0..n-1), registers them, and
// pre-computes every node's optimal routing table in parallel across workers
// worker goroutines (spec §4.4, §5). workers<=1 runs in-process. Each
// worker operates only on the shared, read-only (id, hash) slice; produced
// nodes are committed to the canonical NodeStore serially after every
// worker finishes, and each node's network back-reference is rebound to n
// at that point (workers never see the canonical *Network while building
// routing tables, so there is nothing stale to rebind away from — but the
// rebind step is kept explicit to mirror spec §4.4's ownership contract).
func (n *Network) InitWithRandomPeers(workers, count, k, alpha, beta, sigma int) error {
	if count <= 0 {
		return fmt.Errorf("init_with_random_peers: count must be positive, got %d", count)
	}

	all := make([]idHash, count)
	for i := 0; i < count; i++ {
		id := uint64(i)
		all[i] = idHash{ID: id, Hash: NewHashFromID(id)}
	}

	built := make([]*Node, count)
	buildOne := func(idx int) error {
		node, err := newNodeUnbound(all[idx].ID, k, alpha, beta, sigma)
		if err != nil {
			return err
		}
		optimalRTForDHTClient(node, all, k)
		built[idx] = node
		return nil
	}

	if workers <= 1 {
		for i := 0; i < count; i++ {
			if err := buildOne(i); err != nil {
				return err
			}
		}
	} else {
		chunk := (count + workers - 1) / workers
		var g errgroup.Group
		for w := 0; w < workers; w++ {
			start, end := w*chunk, min((w+1)*chunk, count)
			if start >= end {
				continue
			}
			g.Go(func() error {
				for i := start; i < end; i++ {
					if err := buildOne(i); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "InitWithRandomPeers",
		"count":    count,
		"workers":  workers,
	}).Info("bulk-initialized simulated network")

	for _, node := range built {
		node.rebindNetwork(n)
		n.nodeStore.Add(node)
	}
	return nil
}

// GetClosestNodesToHash is the global oracle: the beta globally-closest
// nodes to key across the entire NodeStore, used only for accuracy
// measurement (spec §4.4, §4.5).
func (n *Network) GetClosestNodesToHash(key Hash, beta int) []PeerDistance {
	ids := n.nodeStore.IDs()
	out := make([]PeerDistance, len(ids))
	for i, id := range ids {
		out[i] = PeerDistance{PeerID: id, Distance: XOR(NewHashFromID(id), key)}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance.Less(out[j].Distance) })
	if len(out) > beta {
		out = out[:beta]
	}
	return out
}

// NetworkSummary reports coarse connection statistics (spec §6).
type NetworkSummary struct {
	NetworkID  uuid.UUID
	TotalNodes int
	Attempts   int
	Successful int
	Failures   int
}

// Summary returns the network's coarse connection statistics.
func (n *Network) Summary() NetworkSummary {
	n.mu.Lock()
	defer n.mu.Unlock()
	return NetworkSummary{
		NetworkID:  n.cfg.NetworkID,
		TotalNodes: n.nodeStore.Len(),
		Attempts:   int(n.connectionCounter),
		Successful: len(n.connectionTrace),
		Failures:   len(n.errorTrace),
	}
}

// ConnectionMetricRow is one row of the column-oriented connection-metrics
// table (spec §6).
type ConnectionMetricRow struct {
	NetworkID      uuid.UUID
	ConnID         uint64
	Time           time.Time
	From           uint64
	To             uint64
	Error          ConnectionErrorKind
	BaseDelay      time.Duration
	OriginOverhead time.Duration
	RemoteOverhead time.Duration
	TotalOverhead  time.Duration
	TotalDelay     time.Duration
}

// ConnectionMetrics concatenates the connection and error traces into one
// table, in the order recorded (spec §6).
func (n *Network) ConnectionMetrics() []ConnectionMetricRow {
	n.mu.Lock()
	defer n.mu.Unlock()

	rows := make([]ConnectionMetricRow, 0, len(n.connectionTrace)+len(n.errorTrace))
	for _, recs := range [][]ConnectionRecord{n.connectionTrace, n.errorTrace} {
		for _, r := range recs {
			rows = append(rows, ConnectionMetricRow{
				NetworkID:      r.NetworkID,
				ConnID:         r.Seq,
				Time:           r.Timestamp,
				From:           r.Origin,
				To:             r.Target,
				Error:          r.Error,
				BaseDelay:      r.BaseDelay,
				OriginOverhead: r.OriginOverhead,
				RemoteOverhead: r.RemoteOverhead,
				TotalOverhead:  r.OriginOverhead + r.RemoteOverhead,
				TotalDelay:     r.TotalDelay(),
			})
		}
	}
	return rows
}

// ResetNetworkMetrics clears both traces and the overhead tracker, marking
// the boundary between two concurrent epochs (spec §4.4, §5).
func (n *Network) ResetNetworkMetrics() {
	n.mu.Lock()
	n.connectionTrace = nil
	n.errorTrace = nil
	n.mu.Unlock()
	n.overhead.ResetAll()
}
