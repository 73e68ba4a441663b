// Package counter is the minimal fee-gated application: one paid entry
// point incrementing a per-deployment counter.
package counter

import (
	"math/big"

	"github.com/HVN-Network/permission_layer/contracts/base"
	"github.com/HVN-Network/permission_layer/ledger"
)

// SigIncrementCount is the schedule key for the single paid entry point.
const SigIncrementCount = "incrementCount()"

// Counter is a fee-gated counting application.
type Counter struct {
	*base.Application
	count uint64
}

// New deploys a counter at addr. The counter never holds native funds, so
// the fee gate refunds residue after every call.
func New(addr ledger.Address, cfg base.Config) (*Counter, error) {
	cfg.StoresH1 = false
	app, err := base.New(addr, cfg)
	if err != nil {
		return nil, err
	}
	return &Counter{Application: app}, nil
}

// IncrementCount advances the counter by one. Fee-gated, not payable,
// refundable.
func (c *Counter) IncrementCount(env *ledger.Env) error {
	if err := c.RequireNotPaused(); err != nil {
		return err
	}
	call := base.Call{Signature: SigIncrementCount, Refundable: true}
	return c.Charge(env, call, func(env *ledger.Env, _ *big.Int) error {
		c.count++
		env.Emit("CountIncremented",
			ledger.AddrAttr("account", env.Sender()),
			ledger.UintAttr("count", c.count),
		)
		return nil
	})
}

// Count returns the current counter value.
func (c *Counter) Count() uint64 { return c.count }

type counterState struct {
	base  any
	count uint64
}

// Snapshot implements ledger.Snapshotter.
func (c *Counter) Snapshot() any {
	return &counterState{base: c.Application.Snapshot(), count: c.count}
}

// Restore implements ledger.Snapshotter.
func (c *Counter) Restore(snapshot any) {
	s := snapshot.(*counterState)
	c.Application.Restore(s.base)
	c.count = s.count
}
