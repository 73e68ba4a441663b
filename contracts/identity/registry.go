// Package identity implements the credential registry: non-transferable
// identity tokens issued to verified holders, principal/auxiliary account
// linkage, typed expiring attributes over an append-only schema, and the
// suspension cascade.
package identity

import (
	"math/big"

	"github.com/HVN-Network/permission_layer/contracts/access"
	"github.com/HVN-Network/permission_layer/ledger"
)

// Config wires a new identity registry.
type Config struct {
	Admin    ledger.Address
	Operator ledger.Address

	Statuses    Statuses
	Permissions Permissions

	// Org names this network toward the permissions collaborator.
	Org string

	// MaxAuxiliaries caps per-principal auxiliary issuance. Lowering it
	// later never invalidates already-minted auxiliaries.
	MaxAuxiliaries int
}

// Issuance carries the mandatory attribute payload for a new principal.
// All four expiries must be strictly in the future, the country code must
// be non-empty, and the user type must be non-zero.
type Issuance struct {
	PrimaryID         bool
	CountryCode       string
	ProofOfLiveliness bool
	UserType          *big.Int
	Expiries          [4]int64
}

// Registry is the identity registry contract.
type Registry struct {
	addr     ledger.Address
	controls *access.Controls

	statuses    Statuses
	permissions Permissions
	org         string

	nextID uint64
	owners map[uint64]ledger.Address
	tokens map[ledger.Address]uint64

	principals  map[ledger.Address]ledger.Address
	auxiliaries map[ledger.Address][]ledger.Address
	maxAux      int

	schema []Attribute
	attrs  map[ledger.Address]map[int]record

	suspendReason map[ledger.Address]string
}

// New creates the registry at addr. Token ids start at 1 and are never
// reused; id 0 means "no credential".
func New(addr ledger.Address, cfg Config) (*Registry, error) {
	if err := ledger.RequireAddress(addr); err != nil {
		return nil, err
	}
	for _, a := range []ledger.Address{cfg.Admin, cfg.Operator} {
		if err := ledger.RequireAddress(a); err != nil {
			return nil, err
		}
	}

	controls := access.NewControls()
	controls.Grant(access.RoleAdmin, cfg.Admin)
	controls.Grant(access.RoleOperator, cfg.Operator)

	permissions := cfg.Permissions
	if permissions == nil {
		permissions = NopPermissions{}
	}

	return &Registry{
		addr:          addr,
		controls:      controls,
		statuses:      cfg.Statuses,
		permissions:   permissions,
		org:           cfg.Org,
		nextID:        1,
		owners:        make(map[uint64]ledger.Address),
		tokens:        make(map[ledger.Address]uint64),
		principals:    make(map[ledger.Address]ledger.Address),
		auxiliaries:   make(map[ledger.Address][]ledger.Address),
		maxAux:        cfg.MaxAuxiliaries,
		schema:        mandatorySchema(),
		attrs:         make(map[ledger.Address]map[int]record),
		suspendReason: make(map[ledger.Address]string),
	}, nil
}

// ContractAddress implements ledger.Contract.
func (r *Registry) ContractAddress() ledger.Address { return r.addr }

// Controls exposes the capability table for node wiring.
func (r *Registry) Controls() *access.Controls { return r.controls }

// ==============================================================================
// Issuance
// ==============================================================================

// IssueIdentity mints a principal credential for to, storing the four
// mandatory attributes. Operator only.
func (r *Registry) IssueIdentity(env *ledger.Env, to ledger.Address, issuance Issuance) (uint64, error) {
	if err := r.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return 0, err
	}
	if err := ledger.RequireAddress(to); err != nil {
		return 0, err
	}
	if r.tokens[to] != 0 {
		return 0, ErrAlreadyVerified
	}
	now := env.Now()
	for _, expiry := range issuance.Expiries {
		if expiry <= now {
			return 0, ExpiryError{Expiry: expiry, Now: now}
		}
	}
	if issuance.CountryCode == "" {
		return 0, ErrIncompleteIssuance
	}
	if issuance.UserType == nil || issuance.UserType.Sign() == 0 {
		return 0, ErrIncompleteIssuance
	}

	id := r.mint(to)
	r.principals[to] = to
	r.attrs[to] = map[int]record{
		AttrPrimaryID:         {Value: BoolValue(issuance.PrimaryID), Expiry: issuance.Expiries[0], UpdatedAt: now},
		AttrCountryCode:       {Value: StringValue(issuance.CountryCode), Expiry: issuance.Expiries[1], UpdatedAt: now},
		AttrProofOfLiveliness: {Value: BoolValue(issuance.ProofOfLiveliness), Expiry: issuance.Expiries[2], UpdatedAt: now},
		AttrUserType:          {Value: U256Value(issuance.UserType), Expiry: issuance.Expiries[3], UpdatedAt: now},
	}

	r.statuses.SetAccountStatus(to, StatusActive)
	_ = r.permissions.AssignAccountRole(to, r.org, "verified")

	env.Emit("IdentityIssued",
		ledger.AddrAttr("account", to),
		ledger.UintAttr("tokenID", id),
	)
	return id, nil
}

// IssueAuxiliary mints an auxiliary credential for to, linked to an
// existing, not-suspended principal. Operator only.
func (r *Registry) IssueAuxiliary(env *ledger.Env, principal, to ledger.Address) (uint64, error) {
	if err := r.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return 0, err
	}
	if err := ledger.RequireAddress(to); err != nil {
		return 0, err
	}
	if r.tokens[principal] == 0 {
		return 0, ErrNotVerified
	}
	if r.principals[principal] != principal {
		return 0, ErrNotPrincipal
	}
	if r.Suspended(principal) {
		return 0, ErrPrincipalSuspended
	}
	if r.tokens[to] != 0 {
		return 0, ErrAlreadyVerified
	}
	if len(r.auxiliaries[principal]) >= r.maxAux {
		return 0, AuxiliaryLimitError{Principal: principal, Limit: r.maxAux}
	}

	id := r.mint(to)
	r.principals[to] = principal
	r.auxiliaries[principal] = append(r.auxiliaries[principal], to)

	r.statuses.SetAccountStatus(to, StatusActive)
	_ = r.permissions.AssignAccountRole(to, r.org, "verified")

	env.Emit("AuxiliaryIssued",
		ledger.AddrAttr("principal", principal),
		ledger.AddrAttr("account", to),
		ledger.UintAttr("tokenID", id),
	)
	return id, nil
}

func (r *Registry) mint(to ledger.Address) uint64 {
	id := r.nextID
	r.nextID++
	r.owners[id] = to
	r.tokens[to] = id
	return id
}

// TransferCredential implements the token-level transfer hook. Only the
// mint path (zero source) passes; everything else is rejected permanently.
// Ids are never reused or burned.
func (r *Registry) TransferCredential(from, to ledger.Address, id uint64) error {
	if !from.IsZero() {
		return ErrNonTransferable
	}
	if owner, ok := r.owners[id]; !ok || owner != to {
		return ErrNonTransferable
	}
	return nil
}

// ==============================================================================
// Attributes
// ==============================================================================

// AddAttribute appends a new attribute to the schema and returns its id.
// The schema only ever grows; the generic typed getters can address the new
// id immediately. Operator only.
func (r *Registry) AddAttribute(env *ledger.Env, name string, kind Kind) (int, error) {
	if err := r.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return 0, err
	}
	if !kind.Valid() {
		return 0, ErrInvalidKind
	}
	id := len(r.schema)
	r.schema = append(r.schema, Attribute{Name: name, Kind: kind})

	env.Emit("AttributeAdded",
		ledger.UintAttr("id", uint64(id)),
		ledger.StrAttr("name", name),
		ledger.StrAttr("kind", string(kind)),
	)
	return id, nil
}

// AttributeCount returns the current schema size.
func (r *Registry) AttributeCount() int { return len(r.schema) }

// SchemaAttribute returns the schema entry for an id.
func (r *Registry) SchemaAttribute(id int) (Attribute, error) {
	if id < 0 || id >= len(r.schema) {
		return Attribute{}, AttributeIndexError{ID: id, Count: len(r.schema)}
	}
	return r.schema[id], nil
}

// SetStringAttribute writes a string attribute on a principal. Operator
// only; the expiry must be strictly in the future.
func (r *Registry) SetStringAttribute(env *ledger.Env, account ledger.Address, id int, value string, expiry int64) error {
	return r.setAttribute(env, account, id, StringValue(value), expiry)
}

// SetU256Attribute writes a u256 attribute on a principal.
func (r *Registry) SetU256Attribute(env *ledger.Env, account ledger.Address, id int, value *big.Int, expiry int64) error {
	return r.setAttribute(env, account, id, U256Value(value), expiry)
}

// SetBoolAttribute writes a bool attribute on a principal.
func (r *Registry) SetBoolAttribute(env *ledger.Env, account ledger.Address, id int, value bool, expiry int64) error {
	return r.setAttribute(env, account, id, BoolValue(value), expiry)
}

// SetBytesAttribute writes a bytes attribute on a principal.
func (r *Registry) SetBytesAttribute(env *ledger.Env, account ledger.Address, id int, value []byte, expiry int64) error {
	return r.setAttribute(env, account, id, BytesValue(value), expiry)
}

func (r *Registry) setAttribute(env *ledger.Env, account ledger.Address, id int, value Value, expiry int64) error {
	if err := r.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	if r.tokens[account] == 0 {
		return ErrNotVerified
	}
	// Auxiliary attributes are derivative: only the principal's storage
	// is ever written.
	if r.principals[account] != account {
		return ErrNotPrincipal
	}
	if id < 0 || id >= len(r.schema) {
		return AttributeIndexError{ID: id, Count: len(r.schema)}
	}
	if want := r.schema[id].Kind; want != value.Kind {
		return KindMismatchError{ID: id, Want: want, Got: value.Kind}
	}
	now := env.Now()
	if expiry <= now {
		return ExpiryError{Expiry: expiry, Now: now}
	}

	r.attrs[account][id] = record{Value: value.clone(), Expiry: expiry, UpdatedAt: now}

	env.Emit("AttributeSet",
		ledger.AddrAttr("account", account),
		ledger.UintAttr("id", uint64(id)),
		ledger.StrAttr("value", value.String()),
	)
	return nil
}

// StringAttribute reads a string attribute, resolving the account to its
// principal first.
func (r *Registry) StringAttribute(account ledger.Address, id int) (string, int64, error) {
	rec, err := r.attribute(account, id, KindString)
	if err != nil {
		return "", 0, err
	}
	return rec.Value.Str, rec.Expiry, nil
}

// U256Attribute reads a u256 attribute through the principal.
func (r *Registry) U256Attribute(account ledger.Address, id int) (*big.Int, int64, error) {
	rec, err := r.attribute(account, id, KindU256)
	if err != nil {
		return nil, 0, err
	}
	return new(big.Int).Set(rec.Value.U256), rec.Expiry, nil
}

// BoolAttribute reads a bool attribute through the principal.
func (r *Registry) BoolAttribute(account ledger.Address, id int) (bool, int64, error) {
	rec, err := r.attribute(account, id, KindBool)
	if err != nil {
		return false, 0, err
	}
	return rec.Value.Bool, rec.Expiry, nil
}

// BytesAttribute reads a bytes attribute through the principal.
func (r *Registry) BytesAttribute(account ledger.Address, id int) ([]byte, int64, error) {
	rec, err := r.attribute(account, id, KindBytes)
	if err != nil {
		return nil, 0, err
	}
	return append([]byte(nil), rec.Value.Bytes...), rec.Expiry, nil
}

func (r *Registry) attribute(account ledger.Address, id int, want Kind) (record, error) {
	if r.tokens[account] == 0 {
		return record{}, ErrNotVerified
	}
	if id < 0 || id >= len(r.schema) {
		return record{}, AttributeIndexError{ID: id, Count: len(r.schema)}
	}
	if got := r.schema[id].Kind; got != want {
		return record{}, KindMismatchError{ID: id, Want: got, Got: want}
	}
	principal := r.principals[account]
	return r.attrs[principal][id], nil
}

// ==============================================================================
// Suspension
// ==============================================================================

// SuspendAccount resolves the target to its principal and suspends the
// principal and every linked auxiliary, emitting one event per address.
// All-or-nothing within the transaction. Operator only.
func (r *Registry) SuspendAccount(env *ledger.Env, account ledger.Address, reason string) error {
	if err := r.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	principal, err := r.principal(account)
	if err != nil {
		return err
	}
	r.suspendReason[principal] = reason
	for _, addr := range r.household(principal) {
		r.statuses.SetAccountStatus(addr, StatusSuspended)
		_ = r.permissions.UpdateAccountStatus(r.org, addr, StatusSuspended)
		env.Emit("AccountSuspended",
			ledger.AddrAttr("account", addr),
			ledger.AddrAttr("principal", principal),
			ledger.StrAttr("reason", reason),
		)
	}
	return nil
}

// UnsuspendAccount reverses the cascade, restoring the active status for
// the principal and every auxiliary. Operator only.
func (r *Registry) UnsuspendAccount(env *ledger.Env, account ledger.Address) error {
	if err := r.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	principal, err := r.principal(account)
	if err != nil {
		return err
	}
	delete(r.suspendReason, principal)
	for _, addr := range r.household(principal) {
		r.statuses.SetAccountStatus(addr, StatusActive)
		_ = r.permissions.UpdateAccountStatus(r.org, addr, StatusActive)
		env.Emit("AccountUnsuspended",
			ledger.AddrAttr("account", addr),
			ledger.AddrAttr("principal", principal),
		)
	}
	return nil
}

// Suspended reports whether an address reads as suspended: any status code
// other than active counts.
func (r *Registry) Suspended(account ledger.Address) bool {
	return r.statuses.AccountStatus(account) != StatusActive
}

// SuspensionReason returns the recorded reason for a suspended household.
func (r *Registry) SuspensionReason(account ledger.Address) string {
	principal, err := r.principal(account)
	if err != nil {
		return ""
	}
	return r.suspendReason[principal]
}

// household is the principal plus its auxiliary list, cascade order.
func (r *Registry) household(principal ledger.Address) []ledger.Address {
	out := make([]ledger.Address, 0, 1+len(r.auxiliaries[principal]))
	out = append(out, principal)
	out = append(out, r.auxiliaries[principal]...)
	return out
}

// ==============================================================================
// Reads and administration
// ==============================================================================

// Verified reports whether the address holds a credential of either type.
func (r *Registry) Verified(account ledger.Address) bool { return r.tokens[account] != 0 }

// PrincipalOf resolves an account to its principal.
func (r *Registry) PrincipalOf(account ledger.Address) (ledger.Address, error) {
	return r.principal(account)
}

// AuxiliaryAccounts resolves the account to its principal and returns the
// principal's full auxiliary list.
func (r *Registry) AuxiliaryAccounts(account ledger.Address) ([]ledger.Address, error) {
	principal, err := r.principal(account)
	if err != nil {
		return nil, err
	}
	return append([]ledger.Address(nil), r.auxiliaries[principal]...), nil
}

// TokenOf returns the credential id held by account, zero if none.
func (r *Registry) TokenOf(account ledger.Address) uint64 { return r.tokens[account] }

// OwnerOf returns the holder of a credential id.
func (r *Registry) OwnerOf(id uint64) (ledger.Address, bool) {
	owner, ok := r.owners[id]
	return owner, ok
}

// Issued returns the number of credentials minted so far.
func (r *Registry) Issued() uint64 { return r.nextID - 1 }

// MaxAuxiliaries returns the current per-principal cap.
func (r *Registry) MaxAuxiliaries() int { return r.maxAux }

// SetMaxAuxiliaries adjusts the cap. Admin only; lowering it grandfathers
// already-minted excess auxiliaries.
func (r *Registry) SetMaxAuxiliaries(env *ledger.Env, max int) error {
	if err := r.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	r.maxAux = max
	env.Emit("AuxiliaryLimitSet", ledger.UintAttr("limit", uint64(max)))
	return nil
}

func (r *Registry) principal(account ledger.Address) (ledger.Address, error) {
	principal, ok := r.principals[account]
	if !ok {
		return ledger.ZeroAddress, ErrNotVerified
	}
	return principal, nil
}
