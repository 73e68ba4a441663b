// Package base provides the scaffold every deployed application composes:
// role-based privilege separation, the per-application pause flag driven by
// the guardian registry, and the reentrancy-safe fee collection gate.
//
// Composition is explicit: an application struct holds an *Application and
// delegates to it. The "when-not-paused" guard is a structural requirement
// on every concrete application's state-mutating entry points; the base
// supplies RequireNotPaused but does not apply it automatically.
package base

import (
	"math/big"

	"github.com/HVN-Network/permission_layer/contracts/access"
	"github.com/HVN-Network/permission_layer/contracts/fees"
	"github.com/HVN-Network/permission_layer/contracts/guardian"
	"github.com/HVN-Network/permission_layer/ledger"
)

// Config wires a new application into the network core.
type Config struct {
	// Association is the network's top-level administrative principal.
	Association ledger.Address

	// Developer is the application developer's administrative principal.
	Developer ledger.Address

	// FeeCollector receives the developer's cut of every function fee.
	FeeCollector ledger.Address

	Registry *guardian.Registry
	Fees     *fees.Engine

	// StoresH1 marks an application that intentionally holds a native
	// balance (e.g. an auction escrow). It disables the automatic
	// post-call refund so the application cannot refund its own treasury
	// to the last caller.
	StoresH1 bool
}

// Application is the guarded-lifecycle component embedded by every
// deployed application.
type Application struct {
	addr     ledger.Address
	controls *access.Controls
	registry *guardian.Registry
	fees     *fees.Engine

	association  ledger.Address
	developer    ledger.Address
	feeCollector ledger.Address

	storesH1 bool
	paused   bool
	charging bool
	adjusted *big.Int

	schedule   map[ledger.Selector]*big.Int
	signatures map[ledger.Selector]string
}

var _ guardian.Pausable = (*Application)(nil)

// New creates the application scaffold at addr. The association receives
// the full role bundle; the registry contract additionally holds the
// guardian role so the registry-mediated batch path can pause directly.
// Applications never grant guardian elsewhere.
func New(addr ledger.Address, cfg Config) (*Application, error) {
	if err := ledger.RequireAddress(addr); err != nil {
		return nil, err
	}
	for _, a := range []ledger.Address{cfg.Association, cfg.Developer, cfg.FeeCollector} {
		if err := ledger.RequireAddress(a); err != nil {
			return nil, err
		}
	}

	controls := access.NewControls()
	controls.Grant(access.RoleAdmin, cfg.Association)
	controls.Grant(access.RoleGuardian, cfg.Association)
	controls.Grant(access.RoleOperator, cfg.Association)
	controls.Grant(access.RoleGuardian, cfg.Registry.ContractAddress())
	controls.Grant(access.RoleDeveloper, cfg.Developer)

	return &Application{
		addr:         addr,
		controls:     controls,
		registry:     cfg.Registry,
		fees:         cfg.Fees,
		association:  cfg.Association,
		developer:    cfg.Developer,
		feeCollector: cfg.FeeCollector,
		storesH1:     cfg.StoresH1,
		schedule:     make(map[ledger.Selector]*big.Int),
		signatures:   make(map[ledger.Selector]string),
	}, nil
}

// ContractAddress implements ledger.Contract.
func (a *Application) ContractAddress() ledger.Address { return a.addr }

// Controls exposes the capability table for concrete applications adding
// their own privileged entry points.
func (a *Application) Controls() *access.Controls { return a.controls }

// Register enrolls the application with the pause registry. Must be called
// once after initialization, before the application is usable in a guarded
// capacity.
func (a *Application) Register(env *ledger.Env) error {
	if err := a.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	return env.Call(a.registry.ContractAddress(), nil, func(sub *ledger.Env) error {
		return a.registry.Register(sub, a.addr)
	})
}

// GuardianPause halts the application. Guardian-role gated; pausing an
// already-paused application reverts, which is exactly the no-op rejection
// the registry's safe mode surfaces.
func (a *Application) GuardianPause(env *ledger.Env) error {
	if err := a.controls.Require(access.RoleGuardian, env.Sender()); err != nil {
		return err
	}
	if a.paused {
		return ErrPaused
	}
	a.paused = true
	env.Emit("Paused", ledger.AddrAttr("by", env.Sender()))
	return nil
}

// GuardianUnpause resumes the application.
func (a *Application) GuardianUnpause(env *ledger.Env) error {
	if err := a.controls.Require(access.RoleGuardian, env.Sender()); err != nil {
		return err
	}
	if !a.paused {
		return ErrNotPaused
	}
	a.paused = false
	env.Emit("Unpaused", ledger.AddrAttr("by", env.Sender()))
	return nil
}

// Paused reports the pause flag.
func (a *Application) Paused() bool { return a.paused }

// RequireNotPaused is the guard every state-mutating entry point wraps.
func (a *Application) RequireNotPaused() error {
	if a.paused {
		return ErrPaused
	}
	return nil
}

// SetAssociation rotates the top-level administrative principal: the full
// role bundle is granted to the new principal and revoked from the old one
// atomically within the call.
func (a *Application) SetAssociation(env *ledger.Env, next ledger.Address) error {
	if err := a.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	if err := ledger.RequireAddress(next); err != nil {
		return err
	}

	prev := a.association
	a.controls.Grant(access.RoleAdmin, next)
	a.controls.Grant(access.RoleGuardian, next)
	a.controls.Grant(access.RoleOperator, next)
	a.controls.Revoke(access.RoleAdmin, prev)
	a.controls.Revoke(access.RoleGuardian, prev)
	a.controls.Revoke(access.RoleOperator, prev)
	a.association = next

	env.Emit("AssociationChanged",
		ledger.AddrAttr("previous", prev),
		ledger.AddrAttr("next", next),
	)
	return nil
}

// SetController rotates the developer's administrative principal.
func (a *Application) SetController(env *ledger.Env, next ledger.Address) error {
	if err := a.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	if err := ledger.RequireAddress(next); err != nil {
		return err
	}

	prev := a.developer
	a.controls.Grant(access.RoleDeveloper, next)
	a.controls.Revoke(access.RoleDeveloper, prev)
	a.developer = next

	env.Emit("ControllerChanged",
		ledger.AddrAttr("previous", prev),
		ledger.AddrAttr("next", next),
	)
	return nil
}

// SetFeeCollector updates the developer fee payout address.
func (a *Application) SetFeeCollector(env *ledger.Env, next ledger.Address) error {
	if err := a.controls.Require(access.RoleDeveloper, env.Sender()); err != nil {
		return err
	}
	if err := ledger.RequireAddress(next); err != nil {
		return err
	}
	prev := a.feeCollector
	a.feeCollector = next
	env.Emit("FeeCollectorChanged",
		ledger.AddrAttr("previous", prev),
		ledger.AddrAttr("next", next),
	)
	return nil
}

// SetStoresH1 flips the escrow safety switch. Admin only.
func (a *Application) SetStoresH1(env *ledger.Env, stores bool) error {
	if err := a.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	a.storesH1 = stores
	env.Emit("StoresH1Set", ledger.BoolAttr("storesH1", stores))
	return nil
}

// StoresH1 reports the escrow safety switch.
func (a *Application) StoresH1() bool { return a.storesH1 }

// Association returns the current top-level admin principal.
func (a *Application) Association() ledger.Address { return a.association }

// Developer returns the current developer principal.
func (a *Application) Developer() ledger.Address { return a.developer }

// FeeCollector returns the developer payout address.
func (a *Application) FeeCollector() ledger.Address { return a.feeCollector }

// --- rollback ----------------------------------------------------------------

type applicationState struct {
	controls     *access.Controls
	association  ledger.Address
	developer    ledger.Address
	feeCollector ledger.Address
	storesH1     bool
	paused       bool
	charging     bool
	adjusted     *big.Int
	schedule     map[ledger.Selector]*big.Int
	signatures   map[ledger.Selector]string
}

// Snapshot implements ledger.Snapshotter.
func (a *Application) Snapshot() any {
	schedule := make(map[ledger.Selector]*big.Int, len(a.schedule))
	for k, v := range a.schedule {
		schedule[k] = new(big.Int).Set(v)
	}
	signatures := make(map[ledger.Selector]string, len(a.signatures))
	for k, v := range a.signatures {
		signatures[k] = v
	}
	var adjusted *big.Int
	if a.adjusted != nil {
		adjusted = new(big.Int).Set(a.adjusted)
	}
	return &applicationState{
		controls:     a.controls.Clone(),
		association:  a.association,
		developer:    a.developer,
		feeCollector: a.feeCollector,
		storesH1:     a.storesH1,
		paused:       a.paused,
		charging:     a.charging,
		adjusted:     adjusted,
		schedule:     schedule,
		signatures:   signatures,
	}
}

// Restore implements ledger.Snapshotter.
func (a *Application) Restore(snapshot any) {
	s := snapshot.(*applicationState)
	a.controls.ReplaceWith(s.controls)
	a.association = s.association
	a.developer = s.developer
	a.feeCollector = s.feeCollector
	a.storesH1 = s.storesH1
	a.paused = s.paused
	a.charging = s.charging
	a.adjusted = s.adjusted
	a.schedule = s.schedule
	a.signatures = s.signatures
}
