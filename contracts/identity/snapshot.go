package identity

import (
	"github.com/HVN-Network/permission_layer/contracts/access"
	"github.com/HVN-Network/permission_layer/ledger"
)

// registryState is the memento for transaction rollback. The status book
// snapshots itself separately; only registry-owned storage lives here.
type registryState struct {
	controls      *access.Controls
	nextID        uint64
	owners        map[uint64]ledger.Address
	tokens        map[ledger.Address]uint64
	principals    map[ledger.Address]ledger.Address
	auxiliaries   map[ledger.Address][]ledger.Address
	maxAux        int
	schema        []Attribute
	attrs         map[ledger.Address]map[int]record
	suspendReason map[ledger.Address]string

	// statuses holds the external status-book values for every known
	// holder, so a reverted transaction also unwinds its cascade writes.
	statuses map[ledger.Address]int
}

// Snapshot implements ledger.Snapshotter.
func (r *Registry) Snapshot() any {
	owners := make(map[uint64]ledger.Address, len(r.owners))
	for k, v := range r.owners {
		owners[k] = v
	}
	tokens := make(map[ledger.Address]uint64, len(r.tokens))
	for k, v := range r.tokens {
		tokens[k] = v
	}
	principals := make(map[ledger.Address]ledger.Address, len(r.principals))
	for k, v := range r.principals {
		principals[k] = v
	}
	auxiliaries := make(map[ledger.Address][]ledger.Address, len(r.auxiliaries))
	for k, v := range r.auxiliaries {
		auxiliaries[k] = append([]ledger.Address(nil), v...)
	}
	attrs := make(map[ledger.Address]map[int]record, len(r.attrs))
	for holder, recs := range r.attrs {
		clone := make(map[int]record, len(recs))
		for id, rec := range recs {
			clone[id] = rec.clone()
		}
		attrs[holder] = clone
	}
	reasons := make(map[ledger.Address]string, len(r.suspendReason))
	for k, v := range r.suspendReason {
		reasons[k] = v
	}
	statuses := make(map[ledger.Address]int, len(r.principals))
	for holder := range r.principals {
		statuses[holder] = r.statuses.AccountStatus(holder)
	}

	return &registryState{
		controls:      r.controls.Clone(),
		nextID:        r.nextID,
		owners:        owners,
		tokens:        tokens,
		principals:    principals,
		auxiliaries:   auxiliaries,
		maxAux:        r.maxAux,
		schema:        append([]Attribute(nil), r.schema...),
		attrs:         attrs,
		suspendReason: reasons,
		statuses:      statuses,
	}
}

// Restore implements ledger.Snapshotter.
func (r *Registry) Restore(snapshot any) {
	s := snapshot.(*registryState)

	// Holders minted by the failed transaction are unknown to the
	// snapshot; their status resets to none.
	for holder := range r.principals {
		if _, ok := s.statuses[holder]; !ok {
			r.statuses.SetAccountStatus(holder, StatusNone)
		}
	}
	for holder, status := range s.statuses {
		r.statuses.SetAccountStatus(holder, status)
	}

	r.controls.ReplaceWith(s.controls)
	r.nextID = s.nextID
	r.owners = s.owners
	r.tokens = s.tokens
	r.principals = s.principals
	r.auxiliaries = s.auxiliaries
	r.maxAux = s.maxAux
	r.schema = s.schema
	r.attrs = s.attrs
	r.suspendReason = s.suspendReason
}
