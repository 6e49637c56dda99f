package dht

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapMatchesDirectOffering(t *testing.T) {
	// S2: network of 20 nodes, k=2, error rate 0; bootstrap()'s summary
	// equals a routing table built by offering every other peer directly.
	const count = 20
	const k = 2
	net := NewNetwork(Config{})
	require.NoError(t, net.InitWithRandomPeers(1, count, k, 1, k, 1))

	for _, id := range net.NodeStore().IDs() {
		direct := NewRoutingTable(id, k)
		for _, other := range net.NodeStore().IDs() {
			direct.Offer(other)
		}

		fresh, err := NewNode(id, net, k, 1, k, 1)
		require.NoError(t, err)
		got := fresh.Bootstrap()

		assert.Equal(t, direct.Summary(), got)
	}
}

func TestLookupCorrectness(t *testing.T) {
	// S3: 500 nodes, k=10, error rate 0, alpha=1, beta=k; lookup returns
	// exactly k peers, all within the globally-10-closest set.
	const count = 500
	const k = 10
	net := NewNetwork(Config{})
	require.NoError(t, net.InitWithRandomPeers(4, count, k, 1, k, 4))

	origin, err := net.NodeStore().Get(0)
	require.NoError(t, err)

	key := NewHash("this is a simple segment of code")
	closest, _, summary, _ := origin.LookupForHash(key, true, false)

	require.Len(t, closest, k)
	assert.Equal(t, 100, summary.Accuracy)

	oracle := net.GetClosestNodesToHash(key, k)
	oracleSet := make(map[uint64]bool, len(oracle))
	for _, pd := range oracle {
		oracleSet[pd.PeerID] = true
	}
	for _, pd := range closest {
		assert.True(t, oracleSet[pd.PeerID], "peer %d not in oracle closest set", pd.PeerID)
	}
}

func TestProvideThenRetrieve(t *testing.T) {
	// S4: node A provides a segment; a distinct node B looks it up and
	// retrieves the identical payload.
	const count = 500
	const k = 10
	net := NewNetwork(Config{})
	require.NoError(t, net.InitWithRandomPeers(4, count, k, 1, k, 4))

	nodeA, err := net.NodeStore().Get(0)
	require.NoError(t, err)
	nodeB, err := net.NodeStore().Get(1)
	require.NoError(t, err)

	segment := "this is a simple segment of code"
	provideSummary, ok := nodeA.ProvideBlockSegment(segment)
	require.True(t, ok)
	require.NotEmpty(t, provideSummary.SuccessNodeIDs)

	key := NewHash(segment)
	_, value, _, found := nodeB.LookupForHash(key, false, true)
	require.True(t, found)
	assert.Equal(t, segment, value)
}

func TestAggregatedDelayWithConcurrency(t *testing.T) {
	// S6: 1000 nodes, k=5, alpha=3, beta=5, sigma=3, conn_delay=fast_delay
	// constant 50ms; aggrDelay == ceil(F/alpha)*100 (2x for connect+response).
	const count = 1000
	const k = 5
	const alpha = 3
	net := NewNetwork(Config{
		ConnDelayRange: Range{Min: 50, Max: 50},
		FastDelayRange: Range{Min: 50, Max: 50},
	})
	require.NoError(t, net.InitWithRandomPeers(4, count, k, alpha, 5, 3))

	origin, err := net.NodeStore().Get(0)
	require.NoError(t, err)

	_, _, summary, _ := origin.LookupForHash(NewHashFromID(123456), false, false)

	expected := time.Duration(math.Ceil(float64(summary.ConnectionFinished)/float64(alpha))) * 100 * time.Millisecond
	assert.Equal(t, expected, summary.AggrDelay)
}
