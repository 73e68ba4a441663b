// Package node assembles the in-process chain: it boots the world state
// and core contracts from the genesis document, funnels every transaction
// through one entry point, and fans committed events out to the event
// store, the metrics collector and live subscribers.
package node

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/HVN-Network/permission_layer/contracts/fees"
	"github.com/HVN-Network/permission_layer/contracts/guardian"
	"github.com/HVN-Network/permission_layer/contracts/identity"
	"github.com/HVN-Network/permission_layer/contracts/oracle"
	"github.com/HVN-Network/permission_layer/internal/config"
	"github.com/HVN-Network/permission_layer/internal/metrics"
	"github.com/HVN-Network/permission_layer/internal/storage"
	"github.com/HVN-Network/permission_layer/ledger"
)

const mirrorTimeout = 5 * time.Second

// Node owns the world state and the deployed core contracts.
type Node struct {
	state  *ledger.State
	oracle *oracle.Fixed

	fees     *fees.Engine
	guardian *guardian.Registry
	identity *identity.Registry
	statuses *identity.StatusBook

	association ledger.Address
	operator    ledger.Address

	store     storage.EventStore
	collector *metrics.Collector
	logger    zerolog.Logger

	mu       sync.Mutex
	mirrored uint64
	subs     map[int]chan ledger.Event
	nextSub  int
}

// New boots a node from the genesis document. The store and collector
// receive every event committed from genesis onward.
func New(g *config.Genesis, store storage.EventStore, collector *metrics.Collector, logger zerolog.Logger) (*Node, error) {
	n := &Node{
		association: g.Association,
		operator:    g.Operator,
		store:       store,
		collector:   collector,
		logger:      logger.With().Str("component", "node").Logger(),
		subs:        make(map[int]chan ledger.Event),
	}

	n.state = ledger.NewState(g.Time, n.logger)
	for _, acct := range g.Accounts {
		if err := n.state.Credit(acct.Address, acct.Balance); err != nil {
			return nil, fmt.Errorf("genesis credit %s: %w", acct.Address, err)
		}
	}

	n.oracle = oracle.NewFixed(g.FeeEngine.OracleRate)
	engine, err := fees.New(g.FeeEngine.Address, fees.Config{
		Admin:             g.Association,
		Operator:          g.Operator,
		Oracle:            n.oracle,
		FeeUSD:            g.FeeEngine.FeeUSD,
		MinDevFeeUSD:      g.FeeEngine.MinDevFeeUSD,
		MaxDevFeeUSD:      g.FeeEngine.MaxDevFeeUSD,
		AssociationShare:  g.FeeEngine.AssociationShare,
		UpdateEpoch:       g.FeeEngine.UpdateEpoch,
		GracePeriod:       g.FeeEngine.GracePeriod,
		DistributionEpoch: g.FeeEngine.DistributionEpoch,
	})
	if err != nil {
		return nil, fmt.Errorf("deploy fee engine: %w", err)
	}
	n.fees = engine
	if err := n.state.Register(engine); err != nil {
		return nil, err
	}

	registry, err := guardian.New(g.PauseRegistry.Address, g.Association)
	if err != nil {
		return nil, fmt.Errorf("deploy pause registry: %w", err)
	}
	n.guardian = registry
	if err := n.state.Register(registry); err != nil {
		return nil, err
	}

	n.statuses = identity.NewStatusBook()
	idr, err := identity.New(g.IdentityRegistry.Address, identity.Config{
		Admin:          g.Association,
		Operator:       g.Operator,
		Statuses:       n.statuses,
		Permissions:    identity.NopPermissions{},
		Org:            g.IdentityRegistry.Org,
		MaxAuxiliaries: g.IdentityRegistry.MaxAuxiliaries,
	})
	if err != nil {
		return nil, fmt.Errorf("deploy identity registry: %w", err)
	}
	n.identity = idr
	if err := n.state.Register(idr); err != nil {
		return nil, err
	}

	for _, ch := range g.FeeEngine.Channels {
		_, err := n.Submit(ledger.Tx{From: g.Operator, To: g.FeeEngine.Address}, func(env *ledger.Env) error {
			return engine.AddChannel(env, ch.Recipient, ch.Weight)
		})
		if err != nil {
			return nil, fmt.Errorf("genesis channel %s: %w", ch.Recipient, err)
		}
	}

	n.logger.Info().
		Int64("genesis_time", g.Time).
		Int("accounts", len(g.Accounts)).
		Int("channels", len(g.FeeEngine.Channels)).
		Msg("node booted")
	return n, nil
}

// State exposes the world state for read paths and contract deployment.
func (n *Node) State() *ledger.State { return n.state }

// Fees exposes the deployed fee engine.
func (n *Node) Fees() *fees.Engine { return n.fees }

// Guardian exposes the deployed pause registry.
func (n *Node) Guardian() *guardian.Registry { return n.guardian }

// Identity exposes the deployed identity registry.
func (n *Node) Identity() *identity.Registry { return n.identity }

// Oracle exposes the price oracle backing the fee engine.
func (n *Node) Oracle() *oracle.Fixed { return n.oracle }

// Association returns the protocol admin account.
func (n *Node) Association() ledger.Address { return n.association }

// Operator returns the operations account.
func (n *Node) Operator() ledger.Address { return n.operator }

// Submit executes one transaction and, on commit, mirrors its events to
// the store, the metrics collector and live subscribers.
func (n *Node) Submit(tx ledger.Tx, fn func(env *ledger.Env) error) (*ledger.Receipt, error) {
	start := time.Now()
	receipt, err := n.state.Submit(tx, fn)
	n.collector.RecordTx(time.Since(start), err)
	if err != nil {
		n.logger.Debug().Err(err).
			Stringer("from", tx.From).
			Stringer("to", tx.To).
			Msg("transaction reverted")
		return nil, err
	}
	n.publish(receipt.Events)
	return receipt, nil
}

func (n *Node) publish(events []ledger.Event) {
	if len(events) == 0 {
		return
	}
	for _, e := range events {
		n.collector.RecordEvent(e.Name, e.Seq)
		switch e.Name {
		case "FeePaid":
			if v, ok := e.Attr("fee"); ok {
				n.collector.RecordFeeCollected(parseAmount(v))
			}
		case "FeesDistributed":
			if v, ok := e.Attr("balance"); ok {
				n.collector.RecordFeeDistributed(parseAmount(v))
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()
	if err := n.store.SaveEvents(ctx, events); err != nil {
		// The in-memory log stays authoritative; a store outage only
		// affects queries over old history.
		n.logger.Error().Err(err).Msg("event store write failed")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.mirrored = events[len(events)-1].Seq
	for _, sub := range n.subs {
		for _, e := range events {
			select {
			case sub <- e:
			default:
				// Slow consumers drop events rather than stall commits.
			}
		}
	}
}

// Subscribe registers a live event feed. The returned cancel func must be
// called when the consumer goes away.
func (n *Node) Subscribe(buffer int) (<-chan ledger.Event, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextSub
	n.nextSub++
	ch := make(chan ledger.Event, buffer)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func parseAmount(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
