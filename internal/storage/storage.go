// Package storage persists the ledger's event log for off-node consumers.
// The node runs fine without it; when enabled it mirrors every committed
// event into Postgres so indexers can query history after a restart.
package storage

import (
	"context"
	"fmt"

	"github.com/HVN-Network/permission_layer/ledger"
)

// EventFilter narrows an event query. Zero values match everything.
type EventFilter struct {
	Contract *ledger.Address
	Name     string
	AfterSeq uint64
	Limit    int
}

// EventStore is the persistence surface the node writes committed events to
// and the HTTP API reads history from.
type EventStore interface {
	SaveEvents(ctx context.Context, events []ledger.Event) error
	Events(ctx context.Context, filter EventFilter) ([]ledger.Event, error)
	LatestSeq(ctx context.Context) (uint64, error)
	Close() error
}

const defaultQueryLimit = 500

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > defaultQueryLimit {
		return defaultQueryLimit
	}
	return limit
}

func matches(e ledger.Event, f EventFilter) bool {
	if e.Seq <= f.AfterSeq {
		return false
	}
	if f.Contract != nil && e.Contract != *f.Contract {
		return false
	}
	if f.Name != "" && e.Name != f.Name {
		return false
	}
	return true
}

var errStoreClosed = fmt.Errorf("storage: store is closed")
