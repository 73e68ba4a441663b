package base

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrPaused rejects guarded entry points (and a second pause) while the
	// application is paused.
	ErrPaused = errors.New("base: application is paused")

	// ErrNotPaused rejects an unpause of an application that is not paused.
	ErrNotPaused = errors.New("base: application is not paused")

	// ErrReentrantCall rejects a fee-gated call entered from within another
	// fee-gated call on the same application.
	ErrReentrantCall = errors.New("base: reentrant fee-gated call")

	// ErrLengthMismatch rejects parallel signature/fee slices of unequal length.
	ErrLengthMismatch = errors.New("base: signatures and fees length mismatch")
)

// InsufficientFeeError reports a call funded below the adjusted fee. It
// names both the shortfall and the required fee.
type InsufficientFeeError struct {
	Provided *big.Int
	Required *big.Int
}

func (e InsufficientFeeError) Error() string {
	short := new(big.Int).Sub(e.Required, e.Provided)
	return fmt.Sprintf("base: insufficient funds: provided %s, required %s (short %s)",
		e.Provided, e.Required, short)
}
