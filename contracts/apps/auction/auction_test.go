package auction

import (
	"errors"
	"math/big"
	"testing"

	"github.com/rs/zerolog"

	"github.com/HVN-Network/permission_layer/contracts/base"
	"github.com/HVN-Network/permission_layer/contracts/fees"
	"github.com/HVN-Network/permission_layer/contracts/guardian"
	"github.com/HVN-Network/permission_layer/contracts/oracle"
	"github.com/HVN-Network/permission_layer/ledger"
)

func testAddr(b byte) ledger.Address {
	var a ledger.Address
	a[19] = b
	return a
}

var (
	association  = testAddr(0x01)
	developer    = testAddr(0x02)
	feeCollector = testAddr(0x03)
	beneficiary  = testAddr(0x04)
	bidderA      = testAddr(0x05)
	bidderB      = testAddr(0x06)
	bidderC      = testAddr(0x07)
	registryAddr = testAddr(0x10)
	feesAddr     = testAddr(0x11)
	auctionAddr  = testAddr(0x20)
)

func h1(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18)) }

// newFixture deploys a started auction with free entry points so bids map
// one-to-one to escrow amounts.
func newFixture(t *testing.T) (*ledger.State, *Auction) {
	t.Helper()
	st := ledger.NewState(1_000_000, zerolog.Nop())

	eng, err := fees.New(feesAddr, fees.Config{
		Admin:             association,
		Oracle:            oracle.NewFixed(fees.Scale),
		FeeUSD:            new(big.Int),
		MinDevFeeUSD:      new(big.Int),
		MaxDevFeeUSD:      h1(5),
		AssociationShare:  new(big.Int).Quo(fees.Scale, big.NewInt(5)),
		UpdateEpoch:       3600,
		DistributionEpoch: 86400,
	})
	if err != nil {
		t.Fatalf("fees.New: %v", err)
	}
	reg, err := guardian.New(registryAddr, association)
	if err != nil {
		t.Fatalf("guardian.New: %v", err)
	}

	auc, err := New(auctionAddr, Config{
		Base: base.Config{
			Association:  association,
			Developer:    developer,
			FeeCollector: feeCollector,
			Registry:     reg,
			Fees:         eng,
		},
		Beneficiary: beneficiary,
		PrizeID:     7,
		StartingBid: h1(10),
		Duration:    3600,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, c := range []ledger.Contract{eng, reg, auc} {
		if err := st.Register(c); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	if _, err := st.Submit(ledger.Tx{From: association, To: auctionAddr}, auc.Register); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := st.Submit(ledger.Tx{From: developer, To: auctionAddr}, auc.Start); err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, b := range []ledger.Address{bidderA, bidderB, bidderC} {
		if err := st.Credit(b, h1(100)); err != nil {
			t.Fatal(err)
		}
	}
	return st, auc
}

func bid(st *ledger.State, auc *Auction, from ledger.Address, amount *big.Int) error {
	_, err := st.Submit(ledger.Tx{From: from, To: auctionAddr, Value: amount}, auc.Bid)
	return err
}

func TestOutbidRefundsPreviousLeader(t *testing.T) {
	st, auc := newFixture(t)

	if err := bid(st, auc, bidderA, h1(15)); err != nil {
		t.Fatalf("bid A: %v", err)
	}
	if got := st.BalanceOf(auctionAddr); got.Cmp(h1(15)) != 0 {
		t.Errorf("escrow = %s, want 15e18", got)
	}

	if err := bid(st, auc, bidderB, h1(16)); err != nil {
		t.Fatalf("bid B: %v", err)
	}
	if got := st.BalanceOf(bidderA); got.Cmp(h1(100)) != 0 {
		t.Errorf("bidder A balance = %s, want fully refunded", got)
	}
	if auc.HighestBidder() != bidderB {
		t.Error("leader not updated")
	}
	if got := auc.HighestBid(); got.Cmp(h1(16)) != 0 {
		t.Errorf("highest bid = %s, want 16e18", got)
	}

	// A matching (non-exceeding) bid from anyone is too low.
	err := bid(st, auc, bidderC, h1(16))
	var tooLow BidTooLowError
	if !errors.As(err, &tooLow) {
		t.Fatalf("err = %v, want BidTooLowError", err)
	}
	if tooLow.Highest.Cmp(h1(16)) != 0 {
		t.Errorf("reported highest = %s, want 16e18", tooLow.Highest)
	}
	if got := st.BalanceOf(bidderC); got.Cmp(h1(100)) != 0 {
		t.Errorf("rejected bidder balance = %s, want untouched", got)
	}
}

func TestFirstBidMustMeetStartingBid(t *testing.T) {
	st, auc := newFixture(t)

	err := bid(st, auc, bidderA, h1(9))
	var tooLow BidTooLowError
	if !errors.As(err, &tooLow) {
		t.Fatalf("err = %v, want BidTooLowError", err)
	}
	if tooLow.Highest.Cmp(h1(10)) != 0 {
		t.Errorf("reported threshold = %s, want the starting bid", tooLow.Highest)
	}

	if err := bid(st, auc, bidderA, h1(10)); err != nil {
		t.Fatalf("bid at starting amount: %v", err)
	}
}

func TestLifecycleGates(t *testing.T) {
	st, auc := newFixture(t)

	if _, err := st.Submit(ledger.Tx{From: developer, To: auctionAddr}, auc.Start); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second start: err = %v, want ErrAlreadyStarted", err)
	}

	// Settlement before the window closes is premature.
	_, err := st.Submit(ledger.Tx{From: developer, To: auctionAddr}, auc.EndAuction)
	if !errors.Is(err, ErrStillRunning) {
		t.Errorf("early end: err = %v, want ErrStillRunning", err)
	}

	if err := st.Advance(3601); err != nil {
		t.Fatal(err)
	}
	if err := bid(st, auc, bidderA, h1(15)); !errors.Is(err, ErrEnded) {
		t.Errorf("bid after close: err = %v, want ErrEnded", err)
	}
}

func TestSettlement(t *testing.T) {
	st, auc := newFixture(t)

	if err := bid(st, auc, bidderA, h1(15)); err != nil {
		t.Fatal(err)
	}
	if err := st.Advance(3601); err != nil {
		t.Fatal(err)
	}

	if _, err := st.Submit(ledger.Tx{From: bidderA, To: auctionAddr}, auc.EndAuction); err != nil {
		t.Fatalf("end: %v", err)
	}
	if !auc.Ended() {
		t.Fatal("auction not marked ended")
	}
	if got := st.BalanceOf(beneficiary); got.Cmp(h1(15)) != 0 {
		t.Errorf("beneficiary proceeds = %s, want 15e18", got)
	}
	if auc.PrizeOwner() != bidderA {
		t.Errorf("prize owner = %s, want winner", auc.PrizeOwner())
	}

	if _, err := st.Submit(ledger.Tx{From: bidderA, To: auctionAddr}, auc.EndAuction); !errors.Is(err, ErrEnded) {
		t.Errorf("double end: err = %v, want ErrEnded", err)
	}
}

func TestSettlementWithoutBids(t *testing.T) {
	st, auc := newFixture(t)
	if err := st.Advance(3601); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Submit(ledger.Tx{From: developer, To: auctionAddr}, auc.EndAuction); err != nil {
		t.Fatalf("end: %v", err)
	}
	if auc.PrizeOwner() != beneficiary {
		t.Errorf("prize owner = %s, want beneficiary", auc.PrizeOwner())
	}
	if got := st.BalanceOf(beneficiary); got.Sign() != 0 {
		t.Errorf("beneficiary received %s with no bids", got)
	}
}

func TestEscrowNeverAutoRefunded(t *testing.T) {
	st, auc := newFixture(t)

	// StoresH1 is forced on: after a successful bid the escrow remains
	// with the contract instead of being swept back to the caller.
	if !auc.StoresH1() {
		t.Fatal("auction must store native funds")
	}
	if err := bid(st, auc, bidderA, h1(12)); err != nil {
		t.Fatal(err)
	}
	if got := st.BalanceOf(auctionAddr); got.Cmp(h1(12)) != 0 {
		t.Errorf("escrow = %s, want 12e18", got)
	}
}
