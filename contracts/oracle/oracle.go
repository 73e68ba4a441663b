// Package oracle defines the price oracle collaborator the fee engine
// consults. The oracle is external to this system; the fee engine trusts
// its readings without bounds-checking.
package oracle

import (
	"math/big"
	"sync"
)

// Oracle supplies the current exchange rate as native H1 units per 1 USD,
// in 18-decimal fixed point. Consult must be idempotent and side-effect
// light; RefreshOracle asks the collaborator to refresh its own sources and
// reports whether it did.
type Oracle interface {
	Consult() *big.Int
	RefreshOracle() bool
}

// Fixed is an Oracle with an operator-settable rate. The node uses it when
// no external oracle endpoint is configured; tests use it to pin rates.
type Fixed struct {
	mu   sync.RWMutex
	rate *big.Int
}

// NewFixed creates a fixed oracle at the given H1-per-USD rate.
func NewFixed(rate *big.Int) *Fixed {
	return &Fixed{rate: new(big.Int).Set(rate)}
}

// Consult returns the configured rate.
func (f *Fixed) Consult() *big.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return new(big.Int).Set(f.rate)
}

// RefreshOracle is a no-op for a fixed oracle.
func (f *Fixed) RefreshOracle() bool { return true }

// SetRate repins the rate.
func (f *Fixed) SetRate(rate *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = new(big.Int).Set(rate)
}
