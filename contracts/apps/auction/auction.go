// Package auction is the escrow-holding example application: an English
// auction for a single prize token, paid for in native funds. It holds
// bidder escrow, so the fee gate's automatic refund is disabled and the
// outbound refunds here carry their own reentrancy guard.
package auction

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/HVN-Network/permission_layer/contracts/access"
	"github.com/HVN-Network/permission_layer/contracts/base"
	"github.com/HVN-Network/permission_layer/ledger"
)

// Schedule keys for the paid entry points.
const (
	SigBid        = "bid()"
	SigEndAuction = "endAuction()"
)

var (
	ErrNotStarted     = errors.New("auction: not started")
	ErrAlreadyStarted = errors.New("auction: already started")
	ErrEnded          = errors.New("auction: already ended")
	ErrStillRunning   = errors.New("auction: end time not reached")
	ErrReentrantCall  = errors.New("auction: reentrant call")
)

// BidTooLowError names the rejected bid against the amount to beat.
type BidTooLowError struct {
	Bid     *big.Int
	Highest *big.Int
}

func (e BidTooLowError) Error() string {
	return fmt.Sprintf("auction: bid %s does not exceed highest bid %s", e.Bid, e.Highest)
}

// Prize is the auctioned token. Ownership moves to the winner at
// settlement; until then the auction contract custodies it.
type Prize struct {
	ID    uint64
	Owner ledger.Address
}

// Config extends the base application wiring with auction parameters.
type Config struct {
	Base base.Config

	Beneficiary ledger.Address
	PrizeID     uint64

	// StartingBid is the minimum acceptable first bid, in native units.
	StartingBid *big.Int

	// Duration is the bidding window in seconds, measured from Start.
	Duration int64
}

// Auction is the NFT auction application.
type Auction struct {
	*base.Application

	beneficiary ledger.Address
	prize       Prize

	startingBid *big.Int
	duration    int64

	started bool
	ended   bool
	endTime int64

	highestBid    *big.Int
	highestBidder ledger.Address

	locked bool
}

// New deploys an auction at addr. The contract custodies bidder escrow, so
// StoresH1 is forced on regardless of the supplied base config.
func New(addr ledger.Address, cfg Config) (*Auction, error) {
	cfg.Base.StoresH1 = true
	app, err := base.New(addr, cfg.Base)
	if err != nil {
		return nil, err
	}
	if err := ledger.RequireAddress(cfg.Beneficiary); err != nil {
		return nil, err
	}
	if cfg.StartingBid == nil || cfg.StartingBid.Sign() < 0 {
		return nil, errors.New("auction: starting bid must be non-negative")
	}
	if cfg.Duration <= 0 {
		return nil, errors.New("auction: duration must be positive")
	}
	return &Auction{
		Application: app,
		beneficiary: cfg.Beneficiary,
		prize:       Prize{ID: cfg.PrizeID, Owner: addr},
		startingBid: new(big.Int).Set(cfg.StartingBid),
		duration:    cfg.Duration,
		highestBid:  new(big.Int),
	}, nil
}

// Start opens the bidding window. Developer only, once.
func (a *Auction) Start(env *ledger.Env) error {
	if err := a.RequireNotPaused(); err != nil {
		return err
	}
	if err := a.Controls().Require(access.RoleDeveloper, env.Sender()); err != nil {
		return err
	}
	if a.started {
		return ErrAlreadyStarted
	}
	a.started = true
	a.endTime = env.Now() + a.duration
	env.Emit("AuctionStarted",
		ledger.UintAttr("prizeID", a.prize.ID),
		ledger.U256Attr("startingBid", a.startingBid),
		ledger.UintAttr("endTime", uint64(a.endTime)),
	)
	return nil
}

// Bid places a bid with the attached value net of the function fee. The
// previous highest bidder is refunded before the new bid is recorded; a
// failed refund aborts the whole call.
func (a *Auction) Bid(env *ledger.Env) error {
	if err := a.RequireNotPaused(); err != nil {
		return err
	}
	if a.locked {
		return ErrReentrantCall
	}
	a.locked = true
	defer func() { a.locked = false }()

	call := base.Call{Signature: SigBid, Payable: true}
	return a.Charge(env, call, func(env *ledger.Env, adjusted *big.Int) error {
		if !a.started {
			return ErrNotStarted
		}
		if a.ended || env.Now() >= a.endTime {
			return ErrEnded
		}
		if !a.beats(adjusted) {
			return BidTooLowError{Bid: adjusted, Highest: a.amountToBeat()}
		}

		// Refund the outgoing leader first. The recipient is untrusted
		// code; the lock above stops it from bidding back in.
		if !a.highestBidder.IsZero() {
			if err := env.Transfer(a.highestBidder, a.highestBid); err != nil {
				return err
			}
		}

		a.highestBidder = env.Sender()
		a.highestBid = new(big.Int).Set(adjusted)
		env.Emit("BidPlaced",
			ledger.AddrAttr("bidder", env.Sender()),
			ledger.U256Attr("amount", adjusted),
		)
		return nil
	})
}

// EndAuction settles after the bidding window closes: proceeds go to the
// beneficiary and the prize to the winner. With no bids the prize stays
// with the contract's beneficiary.
func (a *Auction) EndAuction(env *ledger.Env) error {
	if err := a.RequireNotPaused(); err != nil {
		return err
	}
	if a.locked {
		return ErrReentrantCall
	}
	a.locked = true
	defer func() { a.locked = false }()

	call := base.Call{Signature: SigEndAuction}
	return a.Charge(env, call, func(env *ledger.Env, _ *big.Int) error {
		if !a.started {
			return ErrNotStarted
		}
		if a.ended {
			return ErrEnded
		}
		if env.Now() < a.endTime {
			return ErrStillRunning
		}
		a.ended = true

		winner := a.highestBidder
		if winner.IsZero() {
			a.prize.Owner = a.beneficiary
		} else {
			a.prize.Owner = winner
			if err := env.Transfer(a.beneficiary, a.highestBid); err != nil {
				return err
			}
		}
		env.Emit("AuctionEnded",
			ledger.AddrAttr("winner", winner),
			ledger.U256Attr("amount", a.highestBid),
			ledger.UintAttr("prizeID", a.prize.ID),
		)
		return nil
	})
}

// beats reports whether amount is an acceptable new bid.
func (a *Auction) beats(amount *big.Int) bool {
	if a.highestBidder.IsZero() {
		return amount.Cmp(a.startingBid) >= 0
	}
	return amount.Cmp(a.highestBid) > 0
}

// amountToBeat is the threshold reported in rejections.
func (a *Auction) amountToBeat() *big.Int {
	if a.highestBidder.IsZero() {
		return new(big.Int).Set(a.startingBid)
	}
	return new(big.Int).Set(a.highestBid)
}

// HighestBid returns the current leading bid.
func (a *Auction) HighestBid() *big.Int { return new(big.Int).Set(a.highestBid) }

// HighestBidder returns the current leader, zero if none.
func (a *Auction) HighestBidder() ledger.Address { return a.highestBidder }

// PrizeOwner returns the prize's current owner.
func (a *Auction) PrizeOwner() ledger.Address { return a.prize.Owner }

// Started reports whether bidding has opened.
func (a *Auction) Started() bool { return a.started }

// Ended reports whether the auction has settled.
func (a *Auction) Ended() bool { return a.ended }

// EndTime returns the close of the bidding window, zero before Start.
func (a *Auction) EndTime() int64 { return a.endTime }

type auctionState struct {
	base          any
	prizeOwner    ledger.Address
	started       bool
	ended         bool
	endTime       int64
	highestBid    *big.Int
	highestBidder ledger.Address
	locked        bool
}

// Snapshot implements ledger.Snapshotter.
func (a *Auction) Snapshot() any {
	return &auctionState{
		base:          a.Application.Snapshot(),
		prizeOwner:    a.prize.Owner,
		started:       a.started,
		ended:         a.ended,
		endTime:       a.endTime,
		highestBid:    new(big.Int).Set(a.highestBid),
		highestBidder: a.highestBidder,
		locked:        a.locked,
	}
}

// Restore implements ledger.Snapshotter.
func (a *Auction) Restore(snapshot any) {
	s := snapshot.(*auctionState)
	a.Application.Restore(s.base)
	a.prize.Owner = s.prizeOwner
	a.started = s.started
	a.ended = s.ended
	a.endTime = s.endTime
	a.highestBid = s.highestBid
	a.highestBidder = s.highestBidder
	a.locked = s.locked
}
