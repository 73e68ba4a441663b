// Package ledger supplies the deterministic execution environment the
// contract layer runs on: native-token (H1) balances, a monotonic block
// clock, an append-only event log, and atomic all-or-nothing transaction
// execution with synchronous nested sub-calls.
//
// Every operation is a single-threaded state transition. There is no
// intra-transaction parallelism; re-entrancy through nested sub-calls is
// the only concurrency hazard, and it is the contracts' concern. The state
// lock here only serializes transaction submission against API reads.
package ledger

import (
	"math/big"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Contract is a runtime object registered at an address. The concrete type
// behind a Contract is probed with type assertions; a capability is what a
// contract can do, not what it inherits from.
type Contract interface {
	ContractAddress() Address
}

// Snapshotter is implemented by contracts whose state participates in
// transaction rollback. A contract that mutates state during a call and is
// not a Snapshotter will not be reverted on failure, so every stateful
// contract in this repository implements it.
type Snapshotter interface {
	Snapshot() any
	Restore(snapshot any)
}

// NativeReceiver lets a contract veto incoming native transfers. A rejected
// transfer is fatal to the whole triggering transaction.
type NativeReceiver interface {
	AcceptNative(from Address, amount *big.Int) error
}

// State is the world state: balances, clock, event log, and the set of
// deployed contracts. All mutation goes through Submit.
type State struct {
	mu sync.RWMutex

	now       int64
	balances  map[Address]*big.Int
	events    []Event
	eventSeq  uint64
	contracts map[Address]Contract

	log zerolog.Logger
}

// NewState creates a world state starting at the given unix time.
func NewState(genesisTime int64, log zerolog.Logger) *State {
	return &State{
		now:       genesisTime,
		balances:  make(map[Address]*big.Int),
		contracts: make(map[Address]Contract),
		log:       log,
	}
}

// Register deploys a contract object at its address.
func (st *State) Register(c Contract) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	addr := c.ContractAddress()
	if err := RequireAddress(addr); err != nil {
		return err
	}
	if _, exists := st.contracts[addr]; exists {
		return ErrAddressInUse
	}
	st.contracts[addr] = c
	return nil
}

// Destroy removes the contract object at addr, leaving later calls against
// the address to fail. This is the analogue of a destroyed or unreachable
// application and exists for guardian best-effort semantics and tests.
func (st *State) Destroy(addr Address) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.contracts, addr)
}

// ContractAt returns the contract registered at addr, if any.
func (st *State) ContractAt(addr Address) (Contract, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	c, ok := st.contracts[addr]
	return c, ok
}

// Now returns the current block time (unix seconds).
func (st *State) Now() int64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.now
}

// SetNow advances the block clock. Block timestamps are monotonic;
// regressions are rejected.
func (st *State) SetNow(t int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if t < st.now {
		return ErrTimeRegression
	}
	st.now = t
	return nil
}

// Advance moves the block clock forward by d seconds.
func (st *State) Advance(d int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if d < 0 {
		return ErrTimeRegression
	}
	st.now += d
	return nil
}

// BalanceOf returns a copy of the native balance of addr.
func (st *State) BalanceOf(addr Address) *big.Int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.balanceOf(addr)
}

// Credit mints amount to addr. Used for genesis allocation only.
func (st *State) Credit(addr Address, amount *big.Int) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := RequireAddress(addr); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeValue
	}
	st.balances[addr] = new(big.Int).Add(st.balanceOf(addr), amount)
	return nil
}

// Events returns a copy of the full event log.
func (st *State) Events() []Event {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]Event, len(st.events))
	copy(out, st.events)
	return out
}

// EventsSince returns events with sequence number strictly greater than
// seq, so a caller resuming from the last sequence it saw never receives
// that event again. Zero returns the whole log.
func (st *State) EventsSince(seq uint64) []Event {
	st.mu.RLock()
	defer st.mu.RUnlock()
	var out []Event
	for _, ev := range st.events {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

// View runs fn under the read lock. API handlers use it to read contract
// state consistently with respect to transaction submission.
func (st *State) View(fn func() error) error {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return fn()
}

// --- internal, callers hold st.mu -------------------------------------------

func (st *State) balanceOf(addr Address) *big.Int {
	if b, ok := st.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// move transfers amount from one account to another, consulting the
// recipient's AcceptNative veto when it has one.
func (st *State) move(from, to Address, amount *big.Int) error {
	if amount == nil {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeValue
	}
	if amount.Sign() == 0 {
		return nil
	}
	bal := st.balanceOf(from)
	if bal.Cmp(amount) < 0 {
		return InsufficientBalanceError{Account: from, Balance: bal, Amount: new(big.Int).Set(amount)}
	}
	if c, ok := st.contracts[to]; ok {
		if r, ok := c.(NativeReceiver); ok {
			if err := r.AcceptNative(from, amount); err != nil {
				return TransferRejectedError{From: from, To: to, Amount: new(big.Int).Set(amount), Reason: err}
			}
		}
	}
	st.balances[from] = bal.Sub(bal, amount)
	st.balances[to] = new(big.Int).Add(st.balanceOf(to), amount)
	return nil
}

func (st *State) emit(contract Address, name string, txID uuid.UUID, attrs []Attr) {
	st.eventSeq++
	st.events = append(st.events, Event{
		ID:       uuid.New(),
		TxID:     txID,
		Seq:      st.eventSeq,
		Contract: contract,
		Name:     name,
		Attrs:    attrs,
		Time:     st.now,
	})
}

// memento captures everything a failed call must roll back.
type memento struct {
	balances  map[Address]*big.Int
	eventLen  int
	eventSeq  uint64
	contracts map[Address]any
}

func (st *State) snapshot() *memento {
	m := &memento{
		balances:  make(map[Address]*big.Int, len(st.balances)),
		eventLen:  len(st.events),
		eventSeq:  st.eventSeq,
		contracts: make(map[Address]any),
	}
	for a, b := range st.balances {
		m.balances[a] = new(big.Int).Set(b)
	}
	for a, c := range st.contracts {
		if s, ok := c.(Snapshotter); ok {
			m.contracts[a] = s.Snapshot()
		}
	}
	return m
}

func (st *State) restore(m *memento) {
	st.balances = m.balances
	st.events = st.events[:m.eventLen]
	st.eventSeq = m.eventSeq
	for a, snap := range m.contracts {
		if c, ok := st.contracts[a]; ok {
			if s, ok := c.(Snapshotter); ok {
				s.Restore(snap)
			}
		}
	}
}
