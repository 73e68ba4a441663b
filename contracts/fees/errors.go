package fees

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrNilOracle rejects an engine configured without an oracle.
	ErrNilOracle = errors.New("fees: oracle not configured")

	// ErrMinAboveMax rejects developer fee bounds with min > max.
	ErrMinAboveMax = errors.New("fees: minimum developer fee above maximum")

	// ErrGraceExceedsEpoch rejects a grace period longer than the fee
	// update epoch.
	ErrGraceExceedsEpoch = errors.New("fees: grace period exceeds update epoch")

	// ErrShareOutOfRange rejects an association share outside [0, 1].
	ErrShareOutOfRange = errors.New("fees: association share out of range")

	// ErrEpochNotPositive rejects a zero or negative epoch length.
	ErrEpochNotPositive = errors.New("fees: epoch length must be positive")

	// ErrChannelLimit rejects channel additions beyond the cap.
	ErrChannelLimit = errors.New("fees: channel limit reached")

	// ErrZeroWeight rejects a channel with no weight.
	ErrZeroWeight = errors.New("fees: channel weight must be positive")

	// ErrNoChannels rejects a distribution with an empty channel list.
	ErrNoChannels = errors.New("fees: no distribution channels configured")
)

// DuplicateChannelError reports an address already present in the channel list.
type DuplicateChannelError struct {
	Recipient string
}

func (e DuplicateChannelError) Error() string {
	return fmt.Sprintf("fees: channel %s already exists", e.Recipient)
}

// ChannelIndexError reports an out-of-range channel index.
type ChannelIndexError struct {
	Index  int
	Length int
}

func (e ChannelIndexError) Error() string {
	return fmt.Sprintf("fees: channel index %d out of range (length %d)", e.Index, e.Length)
}

// NotDueError reports a rate-limited distribution attempted before its epoch
// elapsed.
type NotDueError struct {
	Now     int64
	DueTime int64
}

func (e NotDueError) Error() string {
	return fmt.Sprintf("fees: distribution not due until %d (now %d)", e.DueTime, e.Now)
}

// BoundsError reports a USD fee outside the configured developer fee bounds.
type BoundsError struct {
	Fee *big.Int
	Min *big.Int
	Max *big.Int
}

func (e BoundsError) Error() string {
	return fmt.Sprintf("fees: fee %s outside bounds [%s, %s]", e.Fee, e.Min, e.Max)
}
