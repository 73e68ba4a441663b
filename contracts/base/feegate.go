package base

import (
	"math/big"

	"github.com/HVN-Network/permission_layer/contracts/access"
	"github.com/HVN-Network/permission_layer/contracts/fees"
	"github.com/HVN-Network/permission_layer/ledger"
)

// Call describes one fee-gated entry point of an application.
type Call struct {
	// Signature is the human-readable function signature, e.g.
	// "incrementCount()". Its keccak selector keys the fee schedule and
	// the fee engine's per-function exemptions.
	Signature string

	// Payable marks entry points that consume the attached value beyond
	// the fee. For payable calls the handler receives the value net of
	// the fee; for non-payable calls any surplus is refunded.
	Payable bool

	// Refundable returns leftover application balance to the caller after
	// the handler runs. Ignored when the application stores native funds.
	Refundable bool
}

// Charge is the fee gate wrapping every paid entry point. It refreshes the
// oracle-priced fee if due, collects and splits the fee between the fee
// engine and the developer's collector, invokes the handler with the
// value net of the fee, and refunds residue to the caller.
//
// The gate is reentrancy-guarded: a handler that reaches another charged
// entry point of the same application reverts with ErrReentrantCall.
func (a *Application) Charge(env *ledger.Env, call Call, fn func(env *ledger.Env, adjusted *big.Int) error) error {
	if a.charging {
		return ErrReentrantCall
	}
	a.charging = true
	defer func() {
		a.charging = false
		a.adjusted = nil
	}()

	sel := ledger.NewSelector(call.Signature)

	// Opportunistic oracle refresh. A no-op until the update epoch lapses.
	if err := env.Call(a.fees.ContractAddress(), nil, func(sub *ledger.Env) error {
		return a.fees.UpdateFee(sub)
	}); err != nil {
		return err
	}

	fee, err := a.feeInH1(env, sel)
	if err != nil {
		return err
	}

	value := env.Value()
	if fee.Sign() > 0 {
		if value.Cmp(fee) < 0 {
			return InsufficientFeeError{Provided: value, Required: fee}
		}
		// Earlier steps of a composed call may already have spent the
		// attached value down; the balance check catches that.
		if balance := env.SelfBalance(); balance.Cmp(fee) < 0 {
			return InsufficientFeeError{Provided: balance, Required: fee}
		}
		if err := a.payFee(env, sel, fee); err != nil {
			return err
		}
	}

	adjusted := new(big.Int).Sub(value, fee)
	if !call.Payable {
		// Non-payable entry points keep nothing: anything beyond the fee
		// rides along only to be returned below.
		adjusted = new(big.Int)
	}
	a.adjusted = adjusted

	if err := fn(env, new(big.Int).Set(adjusted)); err != nil {
		return err
	}

	if call.Refundable && !a.storesH1 {
		if residue := env.SelfBalance(); residue.Sign() > 0 {
			if err := env.Transfer(env.Sender(), residue); err != nil {
				return err
			}
		}
	}
	return nil
}

// feeInH1 resolves the native fee owed for the entry point: zero for
// exempt callers and unscheduled functions, otherwise the scheduled USD
// amount clamped to the developer bounds and converted at the engine's
// grace-aware rate.
func (a *Application) feeInH1(env *ledger.Env, sel ledger.Selector) (*big.Int, error) {
	if a.fees.Exempt(a.addr, env.Sender(), env.Origin(), sel) {
		return new(big.Int), nil
	}
	usd, ok := a.schedule[sel]
	if !ok || usd.Sign() == 0 {
		// An unset fee is free; the minimum bound applies only to fees the
		// developer actually schedules.
		return new(big.Int), nil
	}
	usd = clampUSD(usd, a.fees.MinDevFeeUSD(), a.fees.MaxDevFeeUSD())

	var rate *big.Int
	// Rate is read in the application's name so grace pricing follows the
	// application, not the end caller.
	if err := env.Call(a.fees.ContractAddress(), nil, func(sub *ledger.Env) error {
		rate = a.fees.H1USD(sub)
		return nil
	}); err != nil {
		return nil, err
	}
	return new(big.Int).Quo(new(big.Int).Mul(usd, rate), fees.Scale), nil
}

// payFee splits the collected fee: the association share accrues in the
// fee engine for channel distribution, the remainder pays the developer's
// collector.
func (a *Application) payFee(env *ledger.Env, sel ledger.Selector, fee *big.Int) error {
	cut := new(big.Int).Quo(new(big.Int).Mul(fee, a.fees.AssociationShare()), fees.Scale)
	remainder := new(big.Int).Sub(fee, cut)

	if cut.Sign() > 0 {
		if err := env.Transfer(a.fees.ContractAddress(), cut); err != nil {
			return err
		}
	}
	if remainder.Sign() > 0 {
		if err := env.Transfer(a.feeCollector, remainder); err != nil {
			return err
		}
	}
	env.Emit("FeePaid",
		ledger.AddrAttr("payer", env.Sender()),
		ledger.StrAttr("function", a.signatures[sel]),
		ledger.U256Attr("fee", fee),
		ledger.U256Attr("associationCut", cut),
	)
	return nil
}

// SetFee schedules the USD fee for one entry point. The amount must sit
// strictly within the developer bounds published by the fee engine; a fee
// of zero only ever arises from never scheduling one.
func (a *Application) SetFee(env *ledger.Env, signature string, usd *big.Int) error {
	if err := a.controls.Require(access.RoleDeveloper, env.Sender()); err != nil {
		return err
	}
	min, max := a.fees.MinDevFeeUSD(), a.fees.MaxDevFeeUSD()
	if usd == nil || usd.Cmp(min) < 0 || usd.Cmp(max) > 0 {
		return fees.BoundsError{Fee: usd, Min: min, Max: max}
	}

	sel := ledger.NewSelector(signature)
	a.schedule[sel] = new(big.Int).Set(usd)
	a.signatures[sel] = signature

	env.Emit("FeeSet",
		ledger.StrAttr("function", signature),
		ledger.U256Attr("usd", usd),
	)
	return nil
}

// SetFees schedules several entry points at once. All-or-nothing: the
// first invalid pair reverts the whole batch.
func (a *Application) SetFees(env *ledger.Env, signatures []string, usd []*big.Int) error {
	if len(signatures) != len(usd) {
		return ErrLengthMismatch
	}
	for i, sig := range signatures {
		if err := a.SetFee(env, sig, usd[i]); err != nil {
			return err
		}
	}
	return nil
}

// FeeFor returns the scheduled USD fee for a signature, or nil when the
// entry point is free.
func (a *Application) FeeFor(signature string) *big.Int {
	usd, ok := a.schedule[ledger.NewSelector(signature)]
	if !ok {
		return nil
	}
	return new(big.Int).Set(usd)
}

// Signature resolves a selector back to its registered signature.
func (a *Application) Signature(sel ledger.Selector) (string, bool) {
	sig, ok := a.signatures[sel]
	return sig, ok
}

func clampUSD(usd, min, max *big.Int) *big.Int {
	switch {
	case usd.Cmp(min) < 0:
		return new(big.Int).Set(min)
	case usd.Cmp(max) > 0:
		return new(big.Int).Set(max)
	default:
		return new(big.Int).Set(usd)
	}
}
