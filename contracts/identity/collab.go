package identity

import (
	"sync"

	"github.com/HVN-Network/permission_layer/ledger"
)

// Account status codes as published by the account-status collaborator.
// Only StatusActive counts as not-suspended; every other code reads as
// suspended.
const (
	StatusNone      = 0
	StatusSuspended = 1
	StatusActive    = 2
)

// Statuses is the external account-status collaborator. The registry writes
// through it on issuance and suspension changes and reads through it for
// every suspension check.
type Statuses interface {
	AccountStatus(account ledger.Address) int
	SetAccountStatus(account ledger.Address, status int)
}

// Permissions is the external permissions collaborator, notified of
// issuance and status changes. Calls are fire-and-forget: the registry
// ignores failures, they are the collaborator's concern.
type Permissions interface {
	AssignAccountRole(account ledger.Address, org, role string) error
	UpdateAccountStatus(org string, account ledger.Address, action int) error
}

// StatusBook is the in-memory account-status collaborator used by the node
// and in tests.
type StatusBook struct {
	mu       sync.Mutex
	statuses map[ledger.Address]int
}

func NewStatusBook() *StatusBook {
	return &StatusBook{statuses: make(map[ledger.Address]int)}
}

func (b *StatusBook) AccountStatus(account ledger.Address) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statuses[account]
}

func (b *StatusBook) SetAccountStatus(account ledger.Address, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[account] = status
}

// Snapshot implements ledger.Snapshotter.
func (b *StatusBook) Snapshot() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[ledger.Address]int, len(b.statuses))
	for k, v := range b.statuses {
		out[k] = v
	}
	return out
}

// Restore implements ledger.Snapshotter.
func (b *StatusBook) Restore(snapshot any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = snapshot.(map[ledger.Address]int)
}

// NopPermissions discards all permissions notifications.
type NopPermissions struct{}

func (NopPermissions) AssignAccountRole(ledger.Address, string, string) error { return nil }

func (NopPermissions) UpdateAccountStatus(string, ledger.Address, int) error { return nil }
