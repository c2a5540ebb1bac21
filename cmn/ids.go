// Package cmn provides common low-level types and utilities shared across
// the associator: configuration, identifiers, and geodetic math.
package cmn

import (
	"math/rand"
	"sync"

	"github.com/teris-io/shortid"
)

// Alphabet for generating IDs: the same 64 characters as shortid's default
// alphabet, in a different order.
const idABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var (
	idMu sync.Mutex
	sid  *shortid.Shortid
)

// InitIDGenerator seeds the process-wide hypo ID generator; repeated calls
// reseed it. If it was never called, GenHypoID seeds it with 1.
func InitIDGenerator(seed uint64) {
	idMu.Lock()
	defer idMu.Unlock()
	sid = shortid.MustNew(4, idABC, seed)
}

// GenHypoID returns a new, opaque, human-loggable hypo identifier.
func GenHypoID() string {
	idMu.Lock()
	s := sid
	idMu.Unlock()
	if s == nil {
		InitIDGenerator(1)
		idMu.Lock()
		s = sid
		idMu.Unlock()
	}
	id := s.MustGenerate()
	if !isAlpha(id[0]) {
		id = string(rune('A'+rand.Intn(26))) + id
	}
	return id
}

// IsValidID reports whether id looks like an externally supplied pick or
// correlation identifier: non-empty and not absurdly long.
func IsValidID(id string) bool {
	return len(id) > 0 && len(id) <= 128
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
