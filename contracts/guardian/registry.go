// Package guardian implements the emergency-pause registry: it tracks the
// open-ended set of registered applications and lets the guardian set pause
// or unpause them individually, in explicit batches, or by index range,
// with both safe (all-or-nothing) and best-effort semantics.
package guardian

import (
	"errors"
	"fmt"

	"github.com/HVN-Network/permission_layer/contracts/access"
	"github.com/HVN-Network/permission_layer/ledger"
	"github.com/HVN-Network/permission_layer/pkg/chunk"
)

// MaxIterations bounds every batch and ranged operation. The execution
// environment meters compute per transaction; an unbounded loop over the
// growing registry would eventually exceed the budget and leave the fleet
// un-iterable. 500 sits conservatively below that budget.
const MaxIterations = 500

var (
	// ErrAlreadyRegistered rejects a second registration of the same address.
	ErrAlreadyRegistered = errors.New("guardian: application already registered")

	// ErrBatchTooLarge rejects an explicit batch beyond MaxIterations.
	ErrBatchTooLarge = errors.New("guardian: batch exceeds iteration ceiling")
)

// NotPausableError reports a registration target that does not advertise
// the pause capability.
type NotPausableError struct {
	Target ledger.Address
}

func (e NotPausableError) Error() string {
	return fmt.Sprintf("guardian: contract %s does not support pause capability", e.Target)
}

// Pausable is the capability a contract must advertise to enter the
// registry. Support is probed at registration time, not assumed from any
// type hierarchy.
type Pausable interface {
	GuardianPause(env *ledger.Env) error
	GuardianUnpause(env *ledger.Env) error
}

// Registry is the guardian controller contract.
type Registry struct {
	addr     ledger.Address
	controls *access.Controls

	list       []ledger.Address
	registered map[ledger.Address]bool
}

// New creates the registry. The admin principal holds both the guardian
// and admin roles; additional guardians are granted by the admin.
func New(addr, admin ledger.Address) (*Registry, error) {
	if err := ledger.RequireAddress(addr); err != nil {
		return nil, err
	}
	if err := ledger.RequireAddress(admin); err != nil {
		return nil, err
	}
	controls := access.NewControls()
	controls.Grant(access.RoleAdmin, admin)
	controls.Grant(access.RoleGuardian, admin)
	return &Registry{
		addr:       addr,
		controls:   controls,
		registered: make(map[ledger.Address]bool),
	}, nil
}

// ContractAddress implements ledger.Contract.
func (r *Registry) ContractAddress() ledger.Address { return r.addr }

// GrantGuardian adds a guardian principal.
func (r *Registry) GrantGuardian(env *ledger.Env, account ledger.Address) error {
	if err := r.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	if err := ledger.RequireAddress(account); err != nil {
		return err
	}
	r.controls.Grant(access.RoleGuardian, account)
	env.Emit("GuardianGranted", ledger.AddrAttr("account", account))
	return nil
}

// Register adds an application to the registry. This is the only way in:
// there is no administrative force-register, and no unregister at all. The
// target must exist and must advertise the Pausable capability.
func (r *Registry) Register(env *ledger.Env, app ledger.Address) error {
	if err := ledger.RequireAddress(app); err != nil {
		return err
	}
	if r.registered[app] {
		return ErrAlreadyRegistered
	}
	if _, err := r.pausable(env, app); err != nil {
		return err
	}

	r.registered[app] = true
	r.list = append(r.list, app)
	env.Emit("ApplicationRegistered",
		ledger.AddrAttr("application", app),
		ledger.UintAttr("index", uint64(len(r.list)-1)),
	)
	return nil
}

// Pause pauses one application. Guardian-role gated. With safe=true a null
// target or a failing downstream call fails the whole transaction; with
// safe=false the downstream call is attempted best-effort and its failure
// is recorded as an event instead.
func (r *Registry) Pause(env *ledger.Env, app ledger.Address, safe bool) error {
	if err := r.controls.Require(access.RoleGuardian, env.Sender()); err != nil {
		return err
	}
	return r.dispatch(env, app, safe, true)
}

// Unpause unpauses one application. Only the top-level admin may resume.
func (r *Registry) Unpause(env *ledger.Env, app ledger.Address, safe bool) error {
	if err := r.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	return r.dispatch(env, app, safe, false)
}

// PauseMultiple applies Pause to an explicit list of targets, at most
// MaxIterations per call. Partial success is possible only with safe=false.
func (r *Registry) PauseMultiple(env *ledger.Env, apps []ledger.Address, safe bool) error {
	if err := r.controls.Require(access.RoleGuardian, env.Sender()); err != nil {
		return err
	}
	if len(apps) > MaxIterations {
		return ErrBatchTooLarge
	}
	for _, app := range apps {
		if err := r.dispatch(env, app, safe, true); err != nil {
			return err
		}
	}
	return nil
}

// UnpauseMultiple applies Unpause to an explicit list of targets.
func (r *Registry) UnpauseMultiple(env *ledger.Env, apps []ledger.Address, safe bool) error {
	if err := r.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	if len(apps) > MaxIterations {
		return ErrBatchTooLarge
	}
	for _, app := range apps {
		if err := r.dispatch(env, app, safe, false); err != nil {
			return err
		}
	}
	return nil
}

// PauseRange pauses the registered applications at indexes [start,end).
func (r *Registry) PauseRange(env *ledger.Env, start, end uint64, safe bool) error {
	if err := r.controls.Require(access.RoleGuardian, env.Sender()); err != nil {
		return err
	}
	if err := chunk.Check(start, end, uint64(len(r.list)), MaxIterations); err != nil {
		return err
	}
	for _, app := range r.list[start:end] {
		if err := r.dispatch(env, app, safe, true); err != nil {
			return err
		}
	}
	return nil
}

// UnpauseRange unpauses the registered applications at indexes [start,end).
func (r *Registry) UnpauseRange(env *ledger.Env, start, end uint64, safe bool) error {
	if err := r.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	if err := chunk.Check(start, end, uint64(len(r.list)), MaxIterations); err != nil {
		return err
	}
	for _, app := range r.list[start:end] {
		if err := r.dispatch(env, app, safe, false); err != nil {
			return err
		}
	}
	return nil
}

// dispatch applies one pause or unpause transition to one target.
func (r *Registry) dispatch(env *ledger.Env, app ledger.Address, safe, pause bool) error {
	if safe {
		if err := ledger.RequireAddress(app); err != nil {
			return err
		}
		p, err := r.pausable(env, app)
		if err != nil {
			return err
		}
		if err := env.Call(app, nil, func(sub *ledger.Env) error {
			if pause {
				return p.GuardianPause(sub)
			}
			return p.GuardianUnpause(sub)
		}); err != nil {
			return err
		}
		r.emitResult(env, app, pause, nil)
		return nil
	}

	out := env.Try(app, nil, func(sub *ledger.Env) error {
		p, err := r.pausable(sub, app)
		if err != nil {
			return err
		}
		if pause {
			return p.GuardianPause(sub)
		}
		return p.GuardianUnpause(sub)
	})
	r.emitResult(env, app, pause, out.Err)
	return nil
}

func (r *Registry) emitResult(env *ledger.Env, app ledger.Address, pause bool, failure error) {
	name := "ApplicationPaused"
	if !pause {
		name = "ApplicationUnpaused"
	}
	if failure != nil {
		if pause {
			name = "ApplicationPauseFailed"
		} else {
			name = "ApplicationUnpauseFailed"
		}
		env.Emit(name,
			ledger.AddrAttr("application", app),
			ledger.StrAttr("reason", failure.Error()),
		)
		return
	}
	env.Emit(name, ledger.AddrAttr("application", app))
}

func (r *Registry) pausable(env *ledger.Env, app ledger.Address) (Pausable, error) {
	c, ok := env.ContractAt(app)
	if !ok {
		return nil, ledger.UnknownContractError{Target: app}
	}
	p, ok := c.(Pausable)
	if !ok {
		return nil, NotPausableError{Target: app}
	}
	return p, nil
}

// --- read surface ------------------------------------------------------------

// Length returns the number of registered applications.
func (r *Registry) Length() uint64 { return uint64(len(r.list)) }

// IsRegistered reports registry membership.
func (r *Registry) IsRegistered(app ledger.Address) bool { return r.registered[app] }

// RegisteredAddresses returns a copy of the full registry list.
func (r *Registry) RegisteredAddresses() []ledger.Address {
	out := make([]ledger.Address, len(r.list))
	copy(out, r.list)
	return out
}

// RegisteredAddressByRange returns the registry slice at [start,end), with
// the same bounds and ceiling validation as the ranged mutations.
func (r *Registry) RegisteredAddressByRange(start, end uint64) ([]ledger.Address, error) {
	if err := chunk.Check(start, end, uint64(len(r.list)), MaxIterations); err != nil {
		return nil, err
	}
	out := make([]ledger.Address, end-start)
	copy(out, r.list[start:end])
	return out, nil
}

// Ranges partitions the current registry length into windows no larger
// than MaxIterations so an off-chain caller can plan a sequence of ranged
// calls that each fit the per-transaction compute budget.
func (r *Registry) Ranges() []chunk.Range {
	return chunk.Partition(uint64(len(r.list)), MaxIterations)
}

// --- rollback ----------------------------------------------------------------

type registryState struct {
	controls   *access.Controls
	list       []ledger.Address
	registered map[ledger.Address]bool
}

// Snapshot implements ledger.Snapshotter.
func (r *Registry) Snapshot() any {
	reg := make(map[ledger.Address]bool, len(r.registered))
	for k, v := range r.registered {
		reg[k] = v
	}
	list := make([]ledger.Address, len(r.list))
	copy(list, r.list)
	return &registryState{controls: r.controls.Clone(), list: list, registered: reg}
}

// Restore implements ledger.Snapshotter.
func (r *Registry) Restore(snapshot any) {
	s := snapshot.(*registryState)
	r.controls.ReplaceWith(s.controls)
	r.list = s.list
	r.registered = s.registered
}
