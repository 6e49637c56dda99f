package dht

import (
	"fmt"
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// HashBits is the fixed bit-width B of the identifier space (spec §3: B=64).
const HashBits = 64

// Seed mixes into every hash computation so a run is reproducible unless the
// caller explicitly changes it. The Python reference implementation's hash
// function (the builtin `hash()`) is only stable within a single process; xxhash with an explicit
// seed resolves that gap for replay (spec §9).
var Seed uint64 = 0x5e4e74b1a9c2f013

// SetSeed overrides the package-level hash seed. Call it once, before any
// Hash is computed, to get a different but still reproducible run.
func SetSeed(seed uint64) {
	Seed = seed
}

// Hash is a deterministic projection of a NodeID or an arbitrary payload into
// the fixed-width identifier space.
type Hash struct {
	value uint64
}

// Value returns the raw unsigned integer backing this Hash.
func (h Hash) Value() uint64 { return h.value }

// NewHashFromID hashes a numeric node identifier. Per spec §4.1 the integer
// is first rendered as lowercase 0x-prefixed hex text, then that text is
// hashed — hex encoding gives the hash function more entropy to chew on than
// the raw binary representation of small integers would.
func NewHashFromID(id uint64) Hash {
	return NewHash(fmt.Sprintf("0x%x", id))
}

// NewHash hashes an arbitrary string payload (a content segment, a lookup
// key, ...) directly.
func NewHash(payload string) Hash {
	return Hash{value: hash64(payload)}
}

func hash64(s string) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%d:%s", Seed, s))
}

// Bits returns the big-endian bit sequence of this Hash, most-significant
// bit first, of length exactly HashBits.
func (h Hash) Bits() []byte {
	out := make([]byte, HashBits)
	for i := 0; i < HashBits; i++ {
		shift := HashBits - 1 - i
		out[i] = byte((h.value >> uint(shift)) & 1)
	}
	return out
}

// Equal reports whether two hashes carry the same value.
func (h Hash) Equal(other Hash) bool {
	return h.value == other.value
}

// String renders the hash as a 0x-prefixed hex string.
func (h Hash) String() string {
	return fmt.Sprintf("0x%016x", h.value)
}

// Distance is the XOR of two Hash values, interpreted as an unsigned B-bit
// integer (spec §3). XOR distance is symmetric and d(x,x)=0 by construction.
type Distance uint64

// XOR computes the distance between two hashes.
func XOR(a, b Hash) Distance {
	return Distance(a.value ^ b.value)
}

// Less reports whether d is strictly closer (smaller) than other.
func (d Distance) Less(other Distance) bool {
	return d < other
}

// SharedUpperBits returns the number of leading bits that are equal between
// two hashes, in [0, HashBits] (spec §3). It is the number of leading zero
// bits of their XOR distance when viewed as a HashBits-wide big-endian
// bitstring — bits.LeadingZeros64 computes this directly without needing to
// materialize the bit array from Hash.Bits.
func SharedUpperBits(a, b Hash) int {
	d := a.value ^ b.value
	if d == 0 {
		return HashBits
	}
	return bits.LeadingZeros64(d)
}
