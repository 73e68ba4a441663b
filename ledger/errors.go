package ledger

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrZeroAddress rejects the null identity wherever an address is required.
	ErrZeroAddress = errors.New("ledger: zero address")

	// ErrTimeRegression rejects a clock update that moves backwards.
	ErrTimeRegression = errors.New("ledger: block time regression")

	// ErrNegativeValue rejects a negative native-token amount.
	ErrNegativeValue = errors.New("ledger: negative value")

	// ErrAddressInUse rejects deploying a contract at an occupied address.
	ErrAddressInUse = errors.New("ledger: address already in use")
)

// UnknownContractError reports a call or probe against an address with no
// contract behind it (never deployed, or destroyed).
type UnknownContractError struct {
	Target Address
}

func (e UnknownContractError) Error() string {
	return fmt.Sprintf("ledger: no contract at %s", e.Target)
}

// InsufficientBalanceError reports a native transfer exceeding the payer's balance.
type InsufficientBalanceError struct {
	Account Address
	Balance *big.Int
	Amount  *big.Int
}

func (e InsufficientBalanceError) Error() string {
	return fmt.Sprintf("ledger: account %s balance %s below transfer amount %s",
		e.Account, e.Balance, e.Amount)
}

// TransferRejectedError reports a recipient that refused a native transfer.
// Fund-transfer failures are always fatal to the triggering transaction.
type TransferRejectedError struct {
	From   Address
	To     Address
	Amount *big.Int
	Reason error
}

func (e TransferRejectedError) Error() string {
	return fmt.Sprintf("ledger: transfer of %s from %s to %s rejected: %v",
		e.Amount, e.From, e.To, e.Reason)
}

func (e TransferRejectedError) Unwrap() error { return e.Reason }
