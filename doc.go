// Package dht implements a discrete-event simulator of a Kademlia-style
// distributed hash table.
//
// It models the four subsystems that make up a DHT node's behaviour:
//
//   - identifier and distance algebra (Hash, Distance, SharedUpperBits)
//   - a capacity-bounded routing table of k-buckets (KBucket, RoutingTable)
//   - the iterative alpha-parallel lookup engine (Node.LookupForHash)
//   - a simulated network fabric injecting delay and connection errors
//     between nodes (Network)
//
// The package does not perform real network I/O: Network.Connect samples
// synthetic delays and error rates from a Config and dispatches directly to
// an in-memory NodeStore. This lets the lookup, provide, and retrieve
// operations be exercised at scale without sockets, while still producing
// realistic cost and accuracy measurements for a given network size and
// adversarial parameter set.
//
// Example:
//
//	net := dht.NewNetwork(dht.Config{FastErrorRate: 5, ConnDelayRange: dht.Range{Min: 10, Max: 50}})
//	net.InitWithRandomPeers(4, 500, 20, 3, 20, 5)
//	node, _ := net.NodeStore().Get(0)
//	_, _, summary, _ := node.LookupForHash(dht.NewHash("some content"), false, false)
//	_ = summary.AggrDelay
package dht
