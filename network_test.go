package dht

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNetwork(t *testing.T, cfg Config) *Network {
	t.Helper()
	return NewNetwork(cfg)
}

func TestNetworkRegistrySummary(t *testing.T) {
	// S1: network of 200 nodes, k=20; connect(1, 201) is node_not_found;
	// after 20 successes and one failure, summary matches.
	const count = 200
	net := newTestNetwork(t, Config{})
	require.NoError(t, net.InitWithRandomPeers(1, count, 20, 3, 20, 5))

	assert.Equal(t, count, net.Summary().TotalNodes)

	_, err := net.Connect(1, 201, 0, 0)
	require.Error(t, err)
	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ErrorNodeNotFound, cerr.Record.Error)

	for i := 0; i < 20; i++ {
		_, err := net.Connect(1, uint64(i+2), 0, 0)
		require.NoError(t, err)
	}

	summary := net.Summary()
	assert.Equal(t, 21, summary.Attempts)
	assert.Equal(t, 20, summary.Successful)
	assert.Equal(t, 1, summary.Failures)
}

func TestNetworkConnectErrorRateWithinBand(t *testing.T) {
	// S5-style: 2 nodes, k=1, fast_error_rate=20, 500 attempts; failures in
	// [75, 125].
	net := newTestNetwork(t, Config{FastErrorRate: 20})
	require.NoError(t, net.InitWithRandomPeers(1, 2, 1, 1, 1, 1))

	failures := 0
	for i := 0; i < 500; i++ {
		if _, err := net.Connect(0, 1, 0, 0); err != nil {
			failures++
		}
	}
	assert.GreaterOrEqual(t, failures, 75)
	assert.LessOrEqual(t, failures, 125)
}

func TestNetworkResetMetrics(t *testing.T) {
	net := newTestNetwork(t, Config{})
	require.NoError(t, net.InitWithRandomPeers(1, 5, 2, 1, 2, 1))
	_, _ = net.Connect(0, 1, 0, 0)
	require.NotEmpty(t, net.ConnectionMetrics())

	net.ResetNetworkMetrics()
	assert.Empty(t, net.ConnectionMetrics())
	assert.Equal(t, time.Duration(0), net.overhead.Get(0))
}

func TestOverheadTrackerSequence(t *testing.T) {
	ot := NewOverheadTracker(10 * time.Millisecond)
	assert.Equal(t, time.Duration(0), ot.Get(1))
	assert.Equal(t, 10*time.Millisecond, ot.Get(1))
	assert.Equal(t, 20*time.Millisecond, ot.Get(1))
	ot.Reset(1)
	assert.Equal(t, time.Duration(0), ot.Get(1))
}
