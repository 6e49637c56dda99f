package dht

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConnectionErrorKind enumerates the simulated failure classes a connection
// attempt can produce (spec §7).
type ConnectionErrorKind int

const (
	// ErrorNone marks a successful connection record.
	ErrorNone ConnectionErrorKind = iota
	// ErrorFast is a simulated early-failure contact.
	ErrorFast
	// ErrorSlow is a simulated timeout-like failure.
	ErrorSlow
	// ErrorNodeNotFound marks a target absent from the NodeStore.
	ErrorNodeNotFound
)

// String renders the error kind for logging and trace rows.
func (k ConnectionErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorFast:
		return "fast"
	case ErrorSlow:
		return "slow"
	case ErrorNodeNotFound:
		return "node_not_found"
	default:
		return "unknown"
	}
}

// ConnectionRecord is an immutable event describing one contact attempt
// between two nodes, successful or not (spec §3).
type ConnectionRecord struct {
	NetworkID      uuid.UUID
	Seq            uint64
	Timestamp      time.Time
	Origin         uint64
	Target         uint64
	Error          ConnectionErrorKind
	BaseDelay      time.Duration
	OriginOverhead time.Duration
	RemoteOverhead time.Duration
}

// TotalDelay is the derived total cost of this contact: base delay plus
// both endpoints' overhead (spec §3, §7).
func (r ConnectionRecord) TotalDelay() time.Duration {
	return r.BaseDelay + r.OriginOverhead + r.RemoteOverhead
}

// ConnectionError reports a failed contact attempt. The lookup engine treats
// it as data — a finished contact with an empty peer set — rather than
// propagating it out of the whole operation (spec §7).
type ConnectionError struct {
	Record ConnectionRecord
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("unable to connect node %d: %s (delay %s)", e.Record.Target, e.Record.Error, e.Record.TotalDelay())
}

// Connection is a thin, non-owning value carrier for one successful contact.
// It forwards the three RPC-like operations a lookup can perform against the
// target node and pairs each result with a delay (spec §4.4).
//
// respRange lets each RPC draw its own response-delay sample, independent of
// the base delay already fixed at connect time: property 9 (spec §8) expects
// a lookup's per-contact combined delay to equal 2d under a uniform base
// delay d and zero overhead, "the factor 2 reflecting connect-delay plus
// response-delay" — so every call below samples a fresh response delay from
// the same range connect() drew its base delay from, and adds it to the
// connection's already-fixed base and overhead.
type Connection struct {
	Record    ConnectionRecord
	Target    *Node
	respRange Range
}

// combinedDelay samples a fresh response delay and adds it to the
// connection's fixed base delay and overhead (spec §8 property 9).
func (c *Connection) combinedDelay() time.Duration {
	return c.Record.BaseDelay + c.respRange.sample() + c.Record.OriginOverhead + c.Record.RemoteOverhead
}

// GetClosestNodesTo forwards to the target's server-side endpoint of the
// same name (spec §4.5).
func (c *Connection) GetClosestNodesTo(key Hash) ([]PeerDistance, string, bool, time.Duration) {
	peers, value, present := c.Target.GetClosestNodesTo(key)
	return peers, value, present, c.combinedDelay()
}

// StoreSegment forwards a provide request to the target.
func (c *Connection) StoreSegment(segment string) time.Duration {
	c.Target.StoreSegment(segment)
	return c.combinedDelay()
}

// RetrieveSegment forwards a retrieve request to the target.
func (c *Connection) RetrieveSegment(key Hash) (string, bool, time.Duration) {
	value, ok := c.Target.RetrieveSegment(key)
	return value, ok, c.combinedDelay()
}
