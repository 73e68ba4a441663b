// Package chunk provides bounds checking and partitioning for iteration
// over growing collections under a fixed per-transaction compute budget.
package chunk

import (
	"errors"
	"fmt"
)

var (
	// ErrStartAfterEnd rejects a [start,end) window with start > end.
	ErrStartAfterEnd = errors.New("chunk: start after end")
)

// RangeError reports a [start,end) window that does not fit the collection
// or the iteration ceiling.
type RangeError struct {
	Start, End, Length, Max uint64
}

func (e RangeError) Error() string {
	return fmt.Sprintf("chunk: range [%d,%d) invalid for length %d, max %d",
		e.Start, e.End, e.Length, e.Max)
}

// Check validates a [start,end) window against a collection of the given
// length and an iteration ceiling. Rejects start > end, start >= length,
// end > length, and windows wider than max.
func Check(start, end, length, max uint64) error {
	if start > end {
		return ErrStartAfterEnd
	}
	if start >= length || end > length || end-start > max {
		return RangeError{Start: start, End: end, Length: length, Max: max}
	}
	return nil
}

// Range is a half-open [Start,End) index window.
type Range struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Partition splits [0,length) into consecutive windows no larger than max,
// so a caller can plan a sequence of ranged calls that each fit a single
// transaction's compute budget.
func Partition(length, max uint64) []Range {
	if length == 0 || max == 0 {
		return nil
	}
	out := make([]Range, 0, (length+max-1)/max)
	for start := uint64(0); start < length; start += max {
		end := start + max
		if end > length {
			end = length
		}
		out = append(out, Range{Start: start, End: end})
	}
	return out
}
