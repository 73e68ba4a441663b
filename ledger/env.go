package ledger

import (
	"math/big"

	"github.com/google/uuid"
)

// Tx describes an inbound transaction: who signed it, which contract it
// targets, and how much native value rides along.
type Tx struct {
	From  Address
	To    Address
	Value *big.Int
}

// Receipt reports a committed transaction and the events it produced.
type Receipt struct {
	TxID   uuid.UUID `json:"tx_id"`
	Events []Event   `json:"events,omitempty"`
}

// Outcome is the result of a catchable sub-call. Best-effort batch
// operations inspect it instead of letting the failure unwind.
type Outcome struct {
	Err error
}

// OK reports whether the sub-call committed.
func (o Outcome) OK() bool { return o.Err == nil }

// Env is the per-call view of the world handed to every contract operation:
// the call frame (origin, sender, self, value) plus accessors onto the
// shared state. Contracts receive an Env rather than touching the State so
// their operations stay testable in isolation.
type Env struct {
	state  *State
	txID   uuid.UUID
	origin Address
	sender Address
	self   Address
	value  *big.Int
}

// Submit executes fn as one atomic transaction. The declared value moves
// from tx.From to tx.To before fn runs; on any error every state change,
// balance movement, and event is rolled back and the error is returned.
func (st *State) Submit(tx Tx, fn func(env *Env) error) (*Receipt, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := RequireAddress(tx.From); err != nil {
		return nil, err
	}

	m := st.snapshot()
	env := &Env{
		state:  st,
		txID:   uuid.New(),
		origin: tx.From,
		sender: tx.From,
		self:   tx.To,
		value:  copyAmount(tx.Value),
	}

	if err := st.move(tx.From, tx.To, env.value); err != nil {
		st.restore(m)
		return nil, err
	}
	if fn != nil {
		if err := fn(env); err != nil {
			st.restore(m)
			st.log.Debug().Str("tx", env.txID.String()).Err(err).Msg("transaction reverted")
			return nil, err
		}
	}

	rcpt := &Receipt{TxID: env.txID}
	rcpt.Events = append(rcpt.Events, st.events[m.eventLen:]...)
	st.log.Debug().Str("tx", env.txID.String()).Int("events", len(rcpt.Events)).Msg("transaction committed")
	return rcpt, nil
}

// TxID returns the identifier of the enclosing transaction.
func (e *Env) TxID() uuid.UUID { return e.txID }

// Origin is the transaction signer (the outermost caller).
func (e *Env) Origin() Address { return e.origin }

// Sender is the immediate caller of the current frame.
func (e *Env) Sender() Address { return e.sender }

// Self is the contract executing the current frame.
func (e *Env) Self() Address { return e.self }

// Value is the native value supplied with the current call.
func (e *Env) Value() *big.Int { return copyAmount(e.value) }

// Now is the block timestamp (unix seconds) the transaction executes at.
func (e *Env) Now() int64 { return e.state.now }

// Balance returns the native balance of addr.
func (e *Env) Balance(addr Address) *big.Int { return e.state.balanceOf(addr) }

// SelfBalance returns the native balance of the executing contract.
func (e *Env) SelfBalance() *big.Int { return e.state.balanceOf(e.self) }

// ContractAt resolves the contract object deployed at addr.
func (e *Env) ContractAt(addr Address) (Contract, bool) {
	c, ok := e.state.contracts[addr]
	return c, ok
}

// Emit appends an event from the executing contract to the log.
func (e *Env) Emit(name string, attrs ...Attr) {
	e.state.emit(e.self, name, e.txID, attrs)
}

// Transfer sends amount of native value from the executing contract to addr.
func (e *Env) Transfer(to Address, amount *big.Int) error {
	if err := RequireAddress(to); err != nil {
		return err
	}
	return e.state.move(e.self, to, amount)
}

// Call runs fn as a synchronous sub-call into the contract at to, moving
// value from the executing contract first. Failure propagates: the whole
// transaction reverts unless an enclosing Try catches it.
func (e *Env) Call(to Address, value *big.Int, fn func(env *Env) error) error {
	sub := &Env{
		state:  e.state,
		txID:   e.txID,
		origin: e.origin,
		sender: e.self,
		self:   to,
		value:  copyAmount(value),
	}
	if err := e.state.move(e.self, to, sub.value); err != nil {
		return err
	}
	return fn(sub)
}

// Try runs fn as a catchable sub-call: on failure every change made inside
// it is rolled back and the failure is returned as a value instead of
// unwinding. This is the best-effort path guardian batch operations use so
// one unresponsive application cannot block the rest of a batch.
func (e *Env) Try(to Address, value *big.Int, fn func(env *Env) error) Outcome {
	m := e.state.snapshot()
	if err := e.Call(to, value, fn); err != nil {
		e.state.restore(m)
		return Outcome{Err: err}
	}
	return Outcome{}
}

func copyAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
