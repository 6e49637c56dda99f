package dht

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKBucketFillsUpToCapacity(t *testing.T) {
	owner := NewHashFromID(0)
	kb := NewKBucket(owner, 3)
	for i := uint64(1); i <= 3; i++ {
		require.True(t, kb.Insert(i))
	}
	assert.Equal(t, 3, kb.Len())
}

func TestKBucketDropsFartherWhenFull(t *testing.T) {
	owner := NewHashFromID(0)
	kb := NewKBucket(owner, 1)

	// Find two candidate IDs where one is strictly closer to owner than the
	// other, so the replacement rule has a deterministic expected outcome.
	var near, far uint64
	nearDist := Distance(0)
	farDist := Distance(0)
	found := false
	for i := uint64(1); i < 1000; i++ {
		d := XOR(owner, NewHashFromID(i))
		if !found {
			near, nearDist = i, d
			found = true
			continue
		}
		if d != nearDist {
			if nearDist.Less(d) {
				far, farDist = i, d
			} else {
				far, farDist = near, nearDist
				near, nearDist = i, d
			}
			break
		}
	}
	require.NotEqual(t, nearDist, farDist)

	require.True(t, kb.Insert(far))
	require.True(t, kb.Insert(near))
	assert.Equal(t, 1, kb.Len())
	assert.Equal(t, []uint64{near}, kb.BucketNodes())

	// A second offer of the farther peer is now rejected.
	assert.False(t, kb.Insert(far))
	assert.Equal(t, []uint64{near}, kb.BucketNodes())
}

func TestKBucketNoDuplicates(t *testing.T) {
	owner := NewHashFromID(0)
	kb := NewKBucket(owner, 2)
	require.True(t, kb.Insert(5))
	assert.True(t, kb.Insert(5))
	assert.Equal(t, 1, kb.Len())
}

func TestKBucketDistancesTo(t *testing.T) {
	owner := NewHashFromID(0)
	kb := NewKBucket(owner, 5)
	kb.Insert(1)
	kb.Insert(2)
	key := NewHashFromID(99)
	dists := kb.DistancesTo(key)
	assert.Len(t, dists, 2)
	for _, pd := range dists {
		assert.Equal(t, XOR(NewHashFromID(pd.PeerID), key), pd.Distance)
	}
}
