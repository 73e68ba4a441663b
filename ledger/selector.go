package ledger

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Selector identifies a contract function by the first four bytes of the
// keccak-256 hash of its human-readable signature, e.g. "incrementCount()".
type Selector [4]byte

// NewSelector derives the selector for a function signature.
func NewSelector(signature string) Selector {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	var sel Selector
	copy(sel[:], h.Sum(nil)[:4])
	return sel
}

// Hex returns the 0x-prefixed hex form of the selector.
func (s Selector) Hex() string {
	return "0x" + hex.EncodeToString(s[:])
}

// String implements fmt.Stringer.
func (s Selector) String() string { return s.Hex() }
