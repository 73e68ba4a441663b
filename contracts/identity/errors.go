package identity

import (
	"errors"
	"fmt"

	"github.com/HVN-Network/permission_layer/ledger"
)

var (
	// ErrAlreadyVerified rejects issuance to an address that already
	// holds a credential of either type.
	ErrAlreadyVerified = errors.New("identity: account already holds a credential")

	// ErrNotVerified rejects operations on addresses with no credential.
	ErrNotVerified = errors.New("identity: account holds no credential")

	// ErrNotPrincipal rejects attribute writes and auxiliary issuance
	// against auxiliary holders.
	ErrNotPrincipal = errors.New("identity: account is not a principal")

	// ErrPrincipalSuspended rejects auxiliary issuance under a suspended
	// principal.
	ErrPrincipalSuspended = errors.New("identity: principal is suspended")

	// ErrIncompleteIssuance rejects principal issuance whose country code
	// is empty or whose user type is unset.
	ErrIncompleteIssuance = errors.New("identity: issuance requires a non-empty country code and a non-zero user type")

	// ErrNonTransferable rejects any credential transfer whose source is
	// not the mint address.
	ErrNonTransferable = errors.New("identity: credentials are non-transferable")

	// ErrInvalidKind rejects schema additions with an unknown type tag.
	ErrInvalidKind = errors.New("identity: invalid attribute kind")
)

// ExpiryError rejects attribute expiries that are not strictly in the
// future at write time.
type ExpiryError struct {
	Expiry int64
	Now    int64
}

func (e ExpiryError) Error() string {
	return fmt.Sprintf("identity: expiry %d is not after current time %d", e.Expiry, e.Now)
}

// AttributeIndexError rejects attribute ids outside the current schema.
type AttributeIndexError struct {
	ID    int
	Count int
}

func (e AttributeIndexError) Error() string {
	return fmt.Sprintf("identity: attribute id %d out of range (schema has %d)", e.ID, e.Count)
}

// KindMismatchError rejects reads and writes whose value type disagrees
// with the schema's declared kind for that id.
type KindMismatchError struct {
	ID   int
	Want Kind
	Got  Kind
}

func (e KindMismatchError) Error() string {
	return fmt.Sprintf("identity: attribute %d holds %s, not %s", e.ID, e.Want, e.Got)
}

// AuxiliaryLimitError rejects auxiliary issuance once the principal's list
// has reached the configured cap.
type AuxiliaryLimitError struct {
	Principal ledger.Address
	Limit     int
}

func (e AuxiliaryLimitError) Error() string {
	return fmt.Sprintf("identity: principal %s reached the auxiliary limit of %d", e.Principal.Hex(), e.Limit)
}
