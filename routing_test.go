package dht

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingTableBucketMembershipMatchesSharedPrefix(t *testing.T) {
	const ownerID = uint64(0)
	rt := NewRoutingTable(ownerID, 4)
	ownerHash := NewHashFromID(ownerID)

	for i := uint64(1); i <= 300; i++ {
		rt.Offer(i)
	}

	for s, bucket := range rt.buckets {
		for _, peerID := range bucket.BucketNodes() {
			assert.Equal(t, s, SharedUpperBits(ownerHash, NewHashFromID(peerID)))
		}
		assert.LessOrEqual(t, bucket.Len(), rt.capacity)
	}
}

func TestRoutingTableIgnoresSelf(t *testing.T) {
	rt := NewRoutingTable(42, 4)
	assert.False(t, rt.Offer(42))
	assert.Empty(t, rt.GetRoutingNodes())
}

func TestRoutingTableClosestToIsSortedAndBounded(t *testing.T) {
	rt := NewRoutingTable(0, 5)
	for i := uint64(1); i <= 200; i++ {
		rt.Offer(i)
	}

	key := NewHashFromID(999)
	closest := rt.ClosestTo(key, 0)
	require.LessOrEqual(t, len(closest), 5)
	for i := 1; i < len(closest); i++ {
		assert.True(t, !closest[i].Distance.Less(closest[i-1].Distance))
	}
}

func TestRoutingTableEquivalencePaths(t *testing.T) {
	// Property 6: bootstrap_node's offer-everyone-one-by-one path and
	// optimal_rt_for_dht_cli's bucket-then-top-k path must agree.
	const count = 120
	const k = 3

	all := make([]idHash, count)
	for i := 0; i < count; i++ {
		id := uint64(i)
		all[i] = idHash{ID: id, Hash: NewHashFromID(id)}
	}

	ownerID := uint64(17)

	slow := NewRoutingTable(ownerID, k)
	for _, p := range all {
		slow.Offer(p.ID)
	}

	node, err := newNodeUnbound(ownerID, k, 1, k, 1)
	require.NoError(t, err)
	optimalRTForDHTClient(node, all, k)

	assert.Equal(t, slow.Summary(), node.rt.Summary())
	assert.ElementsMatch(t, slow.GetRoutingNodes(), node.rt.GetRoutingNodes())
}

func TestRoutingTableSummaryFormat(t *testing.T) {
	rt := NewRoutingTable(0, 2)
	rt.Offer(1)
	assert.Regexp(t, `^(b\d+:\d+ ?)+$`, rt.Summary())
}
