package dht

// Node is one simulated DHT client: it owns a RoutingTable and a
// KeyValueStore, knows its own ID and Hash, holds a non-owning reference back
// to its Network, and carries the three lookup-control parameters α, β, σ
// (spec §3).
type Node struct {
	ID      uint64
	hash    Hash
	network *Network
	rt      *RoutingTable
	ks      *KeyValueStore

	k     int
	alpha int
	beta  int
	sigma int
}

// NewNode constructs a node bound to network, with bucket capacity k and
// lookup parameters alpha, beta, sigma (spec §6). Returns an error if any
// parameter is non-positive — a programmer error, not a simulated failure
// (spec §7).
func NewNode(id uint64, network *Network, k, alpha, beta, sigma int) (*Node, error) {
	if err := validateClientParams(k, alpha, beta, sigma); err != nil {
		return nil, err
	}
	return &Node{
		ID:      id,
		hash:    NewHashFromID(id),
		network: network,
		rt:      NewRoutingTable(id, k),
		ks:      NewKeyValueStore(),
		k:       k,
		alpha:   alpha,
		beta:    beta,
		sigma:   sigma,
	}, nil
}

// newNodeUnbound builds a node with no network reference, for use by
// InitWithRandomPeers's parallel workers, which must not share the canonical
// Network while building routing tables (spec §4.4, §9). rebindNetwork
// attaches the canonical Network once the worker has finished.
func newNodeUnbound(id uint64, k, alpha, beta, sigma int) (*Node, error) {
	if err := validateClientParams(k, alpha, beta, sigma); err != nil {
		return nil, err
	}
	return &Node{
		ID:    id,
		hash:  NewHashFromID(id),
		rt:    NewRoutingTable(id, k),
		ks:    NewKeyValueStore(),
		k:     k,
		alpha: alpha,
		beta:  beta,
		sigma: sigma,
	}, nil
}

// rebindNetwork attaches the canonical Network instance after bulk
// initialization has built this node's routing table in isolation.
func (n *Node) rebindNetwork(network *Network) {
	n.network = network
}

// Bootstrap populates the node's routing table via the network's slow
// reference path and returns the resulting bucket-count summary (spec §4.4,
// §6). It is required to match the summary an equivalent optimal-path
// routing table would produce (spec §8 property 6).
func (n *Node) Bootstrap() string {
	for _, peerID := range n.network.BootstrapNode(n.ID, n.k) {
		n.rt.Offer(peerID)
	}
	return n.rt.Summary()
}

// LookupForHash runs the iterative lookup engine for key (spec §4.5).
// firstValue=true short-circuits on the first non-empty value found, which
// is how a network-wide retrieve is expressed — there is no separate
// "retrieve" entrypoint beyond this parameterization. trackAccuracy asks the
// network's global oracle what fraction of the returned set is truly
// closest; when false, Summary.Accuracy is -1.
func (n *Node) LookupForHash(key Hash, trackAccuracy, firstValue bool) ([]PeerDistance, string, LookupSummary, bool) {
	return runLookup(n, key, trackAccuracy, firstValue)
}

// ProvideBlockSegment stores segment across the closest nodes to its hash
// (spec §4.5): it first looks up Hash(segment), then contacts every node in
// the returned closest set and asks each to store the segment locally.
func (n *Node) ProvideBlockSegment(segment string) (ProvideSummary, bool) {
	return runProvide(n, segment)
}

// StoreSegment stores segment under its own hash in this node's local
// key-value store. This is the server-side endpoint a Connection forwards
// to, and is also the direct local half of a provide operation (spec §4.4,
// §4.5).
func (n *Node) StoreSegment(segment string) {
	n.ks.Add(NewHash(segment), segment)
}

// RetrieveSegment reads key from this node's local key-value store. This is
// the server-side endpoint a Connection forwards to (spec §4.4).
func (n *Node) RetrieveSegment(key Hash) (string, bool) {
	return n.ks.Read(key)
}

// GetClosestNodesTo is the server-side endpoint invoked through a Connection
// (spec §4.5): it returns the local routing table's k closest peers to key,
// plus whatever value this node holds for key.
func (n *Node) GetClosestNodesTo(key Hash) ([]PeerDistance, string, bool) {
	closest := n.rt.ClosestTo(key, 0)
	value, present := n.ks.Read(key)
	return closest, value, present
}
