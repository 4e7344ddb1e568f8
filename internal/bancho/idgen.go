package bancho

import (
	"crypto/rand"
	"encoding/binary"
)

// randomUint64 returns a cryptographically random tail for session id
// generation. Collisions would violate registry invariant I2, so this
// reaches for crypto/rand rather than math/rand/v2's weaker guarantees.
func randomUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing indicates a broken host entropy source;
		// degrade to a fixed value rather than panicking the caller —
		// the timestamp prefix alone still keeps ids distinct across
		// calls a millisecond apart.
		return 0
	}
	return binary.BigEndian.Uint64(b[:])
}
