// Package access implements role-based privilege separation as explicit
// capability sets: a per-contract table of (account, granted roles) checked
// at every privileged entry point, independent of any type hierarchy.
package access

import (
	"fmt"

	"github.com/HVN-Network/permission_layer/ledger"
)

// Role is a named capability.
type Role string

const (
	// RoleAdmin is the top-level administrative principal of a contract.
	RoleAdmin Role = "admin"

	// RoleGuardian may pause a guarded application in an emergency.
	RoleGuardian Role = "guardian"

	// RoleOperator performs day-to-day privileged maintenance
	// (fee parameters, exemptions, identity issuance).
	RoleOperator Role = "operator"

	// RoleDeveloper is an application developer's administrative principal,
	// allowed to configure per-function fees.
	RoleDeveloper Role = "developer"
)

// MissingRoleError identifies the role the failing account lacks.
type MissingRoleError struct {
	Role    Role
	Account ledger.Address
}

func (e MissingRoleError) Error() string {
	return fmt.Sprintf("access: account %s is missing role %q", e.Account, e.Role)
}

// Controls is a capability table for one contract. The zero value is not
// usable; construct with NewControls.
type Controls struct {
	grants map[Role]map[ledger.Address]struct{}
}

// NewControls creates an empty capability table.
func NewControls() *Controls {
	return &Controls{grants: make(map[Role]map[ledger.Address]struct{})}
}

// Grant gives account the role. Granting twice is a no-op.
func (c *Controls) Grant(role Role, account ledger.Address) {
	set, ok := c.grants[role]
	if !ok {
		set = make(map[ledger.Address]struct{})
		c.grants[role] = set
	}
	set[account] = struct{}{}
}

// Revoke removes the role from account. Revoking an absent grant is a no-op.
func (c *Controls) Revoke(role Role, account ledger.Address) {
	if set, ok := c.grants[role]; ok {
		delete(set, account)
	}
}

// Has reports whether account holds the role.
func (c *Controls) Has(role Role, account ledger.Address) bool {
	_, ok := c.grants[role][account]
	return ok
}

// Require rejects with a MissingRoleError when account lacks the role.
func (c *Controls) Require(role Role, account ledger.Address) error {
	if !c.Has(role, account) {
		return MissingRoleError{Role: role, Account: account}
	}
	return nil
}

// Clone deep-copies the table. Owning contracts include the clone in their
// rollback snapshots.
func (c *Controls) Clone() *Controls {
	out := NewControls()
	for role, set := range c.grants {
		dst := make(map[ledger.Address]struct{}, len(set))
		for a := range set {
			dst[a] = struct{}{}
		}
		out.grants[role] = dst
	}
	return out
}

// ReplaceWith swaps the table contents for those of other. Used when a
// snapshot is restored.
func (c *Controls) ReplaceWith(other *Controls) {
	c.grants = other.grants
}
