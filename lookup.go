package dht

import (
	"errors"
	"sort"
	"time"
)

// LookupSummary reports the bookkeeping of one completed lookup (spec
// §4.5, §6).
type LookupSummary struct {
	StartTime          time.Time
	FinishTime         time.Time
	TargetKey          Hash
	ConnectionAttempts int
	ConnectionFinished int
	SuccessfulCons     int
	FailedCons         int
	TotalNodes         int // len(closest) before truncation to beta
	AggrDelay          time.Duration
	Value              string
	// Accuracy is the percentage of the returned set present in the
	// network's oracle-closest set, or -1 if accuracy was not requested.
	Accuracy int
}

// ProvideSummary reports the outcome of a provide operation (spec §4.5,
// §7): the nodes successfully asked to store the segment, the ones that
// failed, and the total delay (lookup aggrDelay plus provide delay).
type ProvideSummary struct {
	Lookup         LookupSummary
	SuccessNodeIDs []uint64
	FailedNodeIDs  []uint64
	ProvideDelay   time.Duration
	TotalDelay     time.Duration
}

// slotResult is one in-flight contact's outcome, the unit held in a
// lookupState's bounded slots window (spec §4.5).
type slotResult struct {
	delay time.Duration
	peers []PeerDistance
	value string
}

// lookupState is the explicit state machine spec §9's design note calls
// for: a record advanced one inner step at a time rather than a generator.
// runLookup below drives it to termination.
type lookupState struct {
	node       *Node
	key        Hash
	firstValue bool

	closest map[uint64]Distance
	toTry   map[uint64]Distance
	tried   map[uint64]bool

	slots      []slotResult
	slotDelays []time.Duration
	stale      int
	value      string

	connectionAttempts int
	connectionFinished int
	successfulCons     int
	failedCons         int
}

func newLookupState(node *Node, key Hash, firstValue bool) *lookupState {
	ls := &lookupState{
		node:       node,
		key:        key,
		firstValue: firstValue,
		closest:    make(map[uint64]Distance),
		toTry:      make(map[uint64]Distance),
		tried:      make(map[uint64]bool),
		slotDelays: make([]time.Duration, node.alpha),
	}
	for _, pd := range node.rt.ClosestTo(key, 0) {
		ls.closest[pd.PeerID] = pd.Distance
		ls.toTry[pd.PeerID] = pd.Distance
	}
	return ls
}

// terminated evaluates the outer loop's termination condition (spec §4.5).
func (ls *lookupState) terminated() bool {
	if ls.stale >= ls.node.sigma {
		return true
	}
	if len(ls.toTry) == 0 {
		return true
	}
	if ls.firstValue && ls.value != "" {
		return true
	}
	return false
}

// sortedToTry returns the candidates currently in to_try, ascending by
// distance — the order connection attempts are issued in (spec §5).
func (ls *lookupState) sortedToTry() []PeerDistance {
	out := make([]PeerDistance, 0, len(ls.toTry))
	for id, d := range ls.toTry {
		out = append(out, PeerDistance{PeerID: id, Distance: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance.Less(out[j].Distance)
		}
		return out[i].PeerID < out[j].PeerID
	})
	return out
}

// hasCloserNodes reports whether any peer in newPeers, not already present
// in closest, is strictly closer than the current farthest member of
// closest — equivalently, closer than *some* member of closest, since being
// closer than the farthest is necessary and sufficient for that (spec
// §4.5). An empty closest set has no distance to compare against, so it
// vacuously reports false.
func (ls *lookupState) hasCloserNodes(newPeers []PeerDistance) bool {
	var maxDist Distance
	found := false
	for _, d := range ls.closest {
		if !found || maxDist.Less(d) {
			maxDist = d
			found = true
		}
	}
	if !found {
		return false
	}
	for _, np := range newPeers {
		if _, already := ls.closest[np.PeerID]; already {
			continue
		}
		if np.Distance.Less(maxDist) {
			return true
		}
	}
	return false
}

// drain pops the smallest-delay slot, assigns its delay to the least-busy
// slotDelays entry, updates stale/value/counters, and appends any
// not-yet-tried new peers to merged for the caller to fold into to_try
// (spec §4.5 step f).
func (ls *lookupState) drain(merged *[]PeerDistance) {
	drained := ls.slots[0]
	ls.slots = ls.slots[1:]

	minIdx := 0
	for i := 1; i < len(ls.slotDelays); i++ {
		if ls.slotDelays[i] < ls.slotDelays[minIdx] {
			minIdx = i
		}
	}
	ls.slotDelays[minIdx] += drained.delay

	if drained.value != "" {
		ls.value = drained.value
	}
	ls.connectionFinished++
	if len(drained.peers) > 0 {
		ls.successfulCons++
	} else {
		ls.failedCons++
	}

	// Only a contact that returned peers moves the stale counter; a failed
	// contact leaves it unchanged.
	if len(drained.peers) > 0 {
		if ls.hasCloserNodes(drained.peers) {
			ls.stale = 0
		} else {
			ls.stale++
		}
	}

	for _, np := range drained.peers {
		ls.closest[np.PeerID] = np.Distance
		if !ls.tried[np.PeerID] {
			*merged = append(*merged, np)
		}
	}
}

// step runs one inner step: attempt every currently-known candidate in
// distance order until a window-full drain forces re-evaluation of the
// outer termination condition, or the candidates run out first (spec §4.5).
// Any contacts still sitting in slots when step returns are left for
// runLookup to flush once the outer loop decides not to call step again.
func (ls *lookupState) step() {
	snapshot := ls.sortedToTry()
	var merged []PeerDistance
	stopIdx := len(snapshot)

	for idx, pd := range snapshot {
		p := pd.PeerID
		if ls.tried[p] {
			continue
		}
		ls.tried[p] = true
		ls.connectionAttempts++

		originOverhead := ls.node.network.overhead.Get(ls.node.ID)
		remoteOverhead := ls.node.network.overhead.Get(p)

		var sr slotResult
		conn, err := ls.node.network.Connect(ls.node.ID, p, originOverhead, remoteOverhead)
		if err != nil {
			var cerr *ConnectionError
			errors.As(err, &cerr)
			sr = slotResult{delay: cerr.Record.TotalDelay()}
		} else {
			peers, value, present, delay := conn.GetClosestNodesTo(ls.key)
			v := ""
			if present {
				v = value
			}
			sr = slotResult{delay: delay, peers: peers, value: v}
		}

		ls.slots = append(ls.slots, sr)
		sort.SliceStable(ls.slots, func(i, j int) bool { return ls.slots[i].delay < ls.slots[j].delay })

		if len(ls.slots) >= ls.node.alpha {
			ls.drain(&merged)
			stopIdx = idx + 1
			break
		}
	}

	newToTry := make(map[uint64]Distance, len(snapshot)-stopIdx+len(merged))
	for _, pd := range snapshot[stopIdx:] {
		newToTry[pd.PeerID] = pd.Distance
	}
	for _, pd := range merged {
		newToTry[pd.PeerID] = pd.Distance
	}
	ls.toTry = newToTry
}

// runLookup drives a lookupState to termination and assembles the returned
// closest set, value, and summary (spec §4.5).
func runLookup(node *Node, key Hash, trackAccuracy, firstValue bool) ([]PeerDistance, string, LookupSummary, bool) {
	start := time.Now()
	ls := newLookupState(node, key, firstValue)

	for !ls.terminated() {
		ls.step()
	}

	// The step that triggered termination may have left up to alpha-1
	// contacts sitting in slots — a window-full drain only pops one, and a
	// step that exhausts to_try or hits sigma without ever filling the
	// window drains nothing at all. Flush them now: their peers, delay, and
	// success/failure bookkeeping must still count even though the outer
	// loop will not call step() again.
	var trailing []PeerDistance
	for len(ls.slots) > 0 {
		ls.drain(&trailing)
	}

	aggrDelay := ls.slotDelays[0]
	for _, d := range ls.slotDelays[1:] {
		if d > aggrDelay {
			aggrDelay = d
		}
	}

	all := make([]PeerDistance, 0, len(ls.closest))
	for id, d := range ls.closest {
		all = append(all, PeerDistance{PeerID: id, Distance: d})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Distance != all[j].Distance {
			return all[i].Distance.Less(all[j].Distance)
		}
		return all[i].PeerID < all[j].PeerID
	})
	totalNodes := len(all)

	truncated := all
	if len(truncated) > node.beta {
		truncated = truncated[:node.beta]
	}

	accuracy := -1
	if trackAccuracy {
		oracle := node.network.GetClosestNodesToHash(key, node.beta)
		oracleSet := make(map[uint64]bool, len(oracle))
		for _, pd := range oracle {
			oracleSet[pd.PeerID] = true
		}
		hits := 0
		for _, pd := range truncated {
			if oracleSet[pd.PeerID] {
				hits++
			}
		}
		if len(truncated) > 0 {
			accuracy = hits * 100 / len(truncated)
		} else {
			accuracy = 100
		}
	}

	summary := LookupSummary{
		StartTime:          start,
		FinishTime:         time.Now(),
		TargetKey:          key,
		ConnectionAttempts: ls.connectionAttempts,
		ConnectionFinished: ls.connectionFinished,
		SuccessfulCons:     ls.successfulCons,
		FailedCons:         ls.failedCons,
		TotalNodes:         totalNodes,
		AggrDelay:          aggrDelay,
		Value:              ls.value,
		Accuracy:           accuracy,
	}

	return truncated, ls.value, summary, ls.value != ""
}

// runProvide implements provide(segment) (spec §4.5): a first_value=false
// lookup for Hash(segment), followed by a store_segment contact to every
// node in the returned closest set. The provide delay is the maximum across
// contacts of (conn_delay + store_delay); the total delay adds that to the
// lookup's own aggrDelay.
func runProvide(node *Node, segment string) (ProvideSummary, bool) {
	key := NewHash(segment)
	closest, _, lookupSummary, _ := runLookup(node, key, false, false)

	var success, failed []uint64
	var provideDelay time.Duration

	for _, pd := range closest {
		originOverhead := node.network.overhead.Get(node.ID)
		remoteOverhead := node.network.overhead.Get(pd.PeerID)

		conn, err := node.network.Connect(node.ID, pd.PeerID, originOverhead, remoteOverhead)
		if err != nil {
			failed = append(failed, pd.PeerID)
			continue
		}
		connDelay := conn.Record.BaseDelay
		storeDelay := conn.StoreSegment(segment)
		total := connDelay + storeDelay
		if total > provideDelay {
			provideDelay = total
		}
		success = append(success, pd.PeerID)
	}

	summary := ProvideSummary{
		Lookup:         lookupSummary,
		SuccessNodeIDs: success,
		FailedNodeIDs:  failed,
		ProvideDelay:   provideDelay,
		TotalDelay:     lookupSummary.AggrDelay + provideDelay,
	}
	return summary, len(failed) == 0
}
