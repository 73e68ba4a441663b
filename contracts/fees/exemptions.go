package fees

import (
	"github.com/HVN-Network/permission_layer/contracts/access"
	"github.com/HVN-Network/permission_layer/ledger"
)

// Four independent exemption rules zero the fee for a matching call. No
// invariant links them; each is settable on its own by an operator.

// SetEOAExemption globally exempts (or re-charges) a transaction origin.
func (f *Engine) SetEOAExemption(env *ledger.Env, account ledger.Address, exempt bool) error {
	if err := f.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	if err := ledger.RequireAddress(account); err != nil {
		return err
	}
	f.exemptEOA[account] = exempt
	env.Emit("EOAExemptionSet",
		ledger.AddrAttr("account", account),
		ledger.BoolAttr("exempt", exempt),
	)
	return nil
}

// SetContractExemption exempts every call into a contract.
func (f *Engine) SetContractExemption(env *ledger.Env, contract ledger.Address, exempt bool) error {
	if err := f.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	if err := ledger.RequireAddress(contract); err != nil {
		return err
	}
	f.exemptContract[contract] = exempt
	env.Emit("ContractExemptionSet",
		ledger.AddrAttr("contract", contract),
		ledger.BoolAttr("exempt", exempt),
	)
	return nil
}

// SetCallerExemption exempts a specific caller of a specific contract.
func (f *Engine) SetCallerExemption(env *ledger.Env, contract, caller ledger.Address, exempt bool) error {
	if err := f.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	if err := ledger.RequireAddress(contract); err != nil {
		return err
	}
	if err := ledger.RequireAddress(caller); err != nil {
		return err
	}
	f.exemptCaller[callerKey{Contract: contract, Caller: caller}] = exempt
	env.Emit("CallerExemptionSet",
		ledger.AddrAttr("contract", contract),
		ledger.AddrAttr("caller", caller),
		ledger.BoolAttr("exempt", exempt),
	)
	return nil
}

// SetFunctionExemption exempts a specific function of a specific contract.
func (f *Engine) SetFunctionExemption(env *ledger.Env, contract ledger.Address, fn ledger.Selector, exempt bool) error {
	if err := f.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	if err := ledger.RequireAddress(contract); err != nil {
		return err
	}
	f.exemptFunction[functionKey{Contract: contract, Function: fn}] = exempt
	env.Emit("FunctionExemptionSet",
		ledger.AddrAttr("contract", contract),
		ledger.StrAttr("function", fn.Hex()),
		ledger.BoolAttr("exempt", exempt),
	)
	return nil
}

// Exempt reports whether any of the four rules zero the fee for a call
// into contract by caller, in a transaction signed by origin, targeting fn.
func (f *Engine) Exempt(contract, caller, origin ledger.Address, fn ledger.Selector) bool {
	return f.exemptContract[contract] ||
		f.exemptCaller[callerKey{Contract: contract, Caller: caller}] ||
		f.exemptFunction[functionKey{Contract: contract, Function: fn}] ||
		f.exemptEOA[origin]
}
