package fees

import (
	"errors"
	"math/big"
	"testing"

	"github.com/rs/zerolog"

	"github.com/HVN-Network/permission_layer/contracts/access"
	"github.com/HVN-Network/permission_layer/contracts/oracle"
	"github.com/HVN-Network/permission_layer/ledger"
)

func testAddr(b byte) ledger.Address {
	var a ledger.Address
	a[19] = b
	return a
}

var (
	admin      = testAddr(0x01)
	operator   = testAddr(0x02)
	engineAddr = testAddr(0x10)
	appAddr    = testAddr(0x20)
	user       = testAddr(0x30)
	chanOne    = testAddr(0x41)
	chanTwo    = testAddr(0x42)
)

// usd returns n dollars in 18-decimal fixed point.
func usd(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Scale)
}

// rate150 is 1.5 native units per USD.
func rate150() *big.Int {
	return new(big.Int).Mul(big.NewInt(15), new(big.Int).Quo(Scale, big.NewInt(10)))
}

func testConfig(orcl oracle.Oracle) Config {
	return Config{
		Admin:             admin,
		Operator:          operator,
		Oracle:            orcl,
		FeeUSD:            usd(1),
		MinDevFeeUSD:      usd(0),
		MaxDevFeeUSD:      usd(5),
		AssociationShare:  new(big.Int).Quo(Scale, big.NewInt(5)), // 20%
		UpdateEpoch:       3600,
		GracePeriod:       600,
		DistributionEpoch: 86400,
	}
}

func newFixture(t *testing.T) (*ledger.State, *Engine, *oracle.Fixed) {
	t.Helper()
	st := ledger.NewState(1_000_000, zerolog.Nop())
	orcl := oracle.NewFixed(rate150())
	eng, err := New(engineAddr, testConfig(orcl))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := st.Register(eng); err != nil {
		t.Fatalf("register: %v", err)
	}
	return st, eng, orcl
}

// exec runs fn inside a transaction from sender targeting the engine.
func exec(t *testing.T, st *ledger.State, sender ledger.Address, fn func(env *ledger.Env) error) error {
	t.Helper()
	_, err := st.Submit(ledger.Tx{From: sender, To: engineAddr}, fn)
	return err
}

func TestNewValidation(t *testing.T) {
	orcl := oracle.NewFixed(rate150())
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr error
	}{
		{"nil oracle", func(cfg *Config) { cfg.Oracle = nil }, ErrNilOracle},
		{"min above max", func(cfg *Config) { cfg.MinDevFeeUSD = usd(6) }, ErrMinAboveMax},
		{"zero update epoch", func(cfg *Config) { cfg.UpdateEpoch = 0 }, ErrEpochNotPositive},
		{"zero distribution epoch", func(cfg *Config) { cfg.DistributionEpoch = 0 }, ErrEpochNotPositive},
		{"grace exceeds epoch", func(cfg *Config) { cfg.GracePeriod = 7200 }, ErrGraceExceedsEpoch},
		{"share above scale", func(cfg *Config) { cfg.AssociationShare = new(big.Int).Add(Scale, big.NewInt(1)) }, ErrShareOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(orcl)
			tt.mutate(&cfg)
			if _, err := New(engineAddr, cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("New = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInitialFee(t *testing.T) {
	st, eng, _ := newFixture(t)

	// $1 at 1.5 H1/USD is 1.5e18 for a non-exempt, non-grace caller.
	err := exec(t, st, user, func(env *ledger.Env) error {
		want := new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17))
		if got := eng.Fee(env); got.Cmp(want) != 0 {
			t.Errorf("Fee = %s, want %s", got, want)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestUpdateFeeCadence(t *testing.T) {
	st, eng, orcl := newFixture(t)

	// The first call always refreshes and arms the epoch timer.
	if err := exec(t, st, user, eng.UpdateFee); err != nil {
		t.Fatal(err)
	}
	armed := eng.NextUpdate()
	if armed != st.Now()+3600 {
		t.Fatalf("nextUpdate = %d, want now+3600", armed)
	}

	// A rate change before the epoch lapses is invisible.
	orcl.SetRate(usd(2))
	if err := exec(t, st, user, eng.UpdateFee); err != nil {
		t.Fatal(err)
	}
	if got := eng.CurrentRate(); got.Cmp(rate150()) != 0 {
		t.Errorf("rate refreshed early: %s", got)
	}

	if err := st.Advance(3600); err != nil {
		t.Fatal(err)
	}
	if err := exec(t, st, user, eng.UpdateFee); err != nil {
		t.Fatal(err)
	}
	if got := eng.CurrentRate(); got.Cmp(usd(2)) != 0 {
		t.Errorf("rate = %s, want 2e18 after epoch", got)
	}
	if got := eng.CurrentFee(); got.Cmp(usd(2)) != 0 {
		t.Errorf("fee = %s, want 2e18 after epoch", got)
	}
}

func TestGraceHysteresis(t *testing.T) {
	st, eng, orcl := newFixture(t)

	if err := exec(t, st, operator, func(env *ledger.Env) error {
		return eng.SetGraceContract(env, appAddr, true)
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.Advance(3600); err != nil {
		t.Fatal(err)
	}
	orcl.SetRate(usd(2))
	if err := exec(t, st, user, eng.UpdateFee); err != nil {
		t.Fatal(err)
	}

	err := exec(t, st, user, func(env *ledger.Env) error {
		// Direct (non-grace) caller sees the new values immediately.
		if got := eng.Fee(env); got.Cmp(usd(2)) != 0 {
			t.Errorf("non-grace fee = %s, want 2e18", got)
		}

		// A frame whose sender is the grace contract gets the lesser.
		return env.Call(appAddr, nil, func(frame *ledger.Env) error {
			return frame.Call(engineAddr, nil, func(sub *ledger.Env) error {
				want := new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17))
				if got := eng.Fee(sub); got.Cmp(want) != 0 {
					t.Errorf("grace fee = %s, want 1.5e18", got)
				}
				if got := eng.H1USD(sub); got.Cmp(want) != 0 {
					t.Errorf("grace rate = %s, want 1.5e18", got)
				}
				return nil
			})
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	// Window closed: grace contract pays current price like everyone else.
	if err := st.Advance(601); err != nil {
		t.Fatal(err)
	}
	err = exec(t, st, user, func(env *ledger.Env) error {
		return env.Call(appAddr, nil, func(frame *ledger.Env) error {
			return frame.Call(engineAddr, nil, func(sub *ledger.Env) error {
				if got := eng.Fee(sub); got.Cmp(usd(2)) != 0 {
					t.Errorf("post-grace fee = %s, want 2e18", got)
				}
				return nil
			})
		})
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestExemptions(t *testing.T) {
	st, eng, _ := newFixture(t)
	fn := ledger.NewSelector("doThing()")

	set := func(t *testing.T, fn func(env *ledger.Env) error) {
		t.Helper()
		if err := exec(t, st, operator, fn); err != nil {
			t.Fatal(err)
		}
	}

	feeFor := func(t *testing.T, origin ledger.Address) *big.Int {
		t.Helper()
		var got *big.Int
		if err := exec(t, st, origin, func(env *ledger.Env) error {
			got = eng.FeeForContract(env, appAddr, user, fn)
			return nil
		}); err != nil {
			t.Fatal(err)
		}
		return got
	}

	if eng.Exempt(appAddr, user, user, fn) {
		t.Fatal("exempt before any rule set")
	}
	if got := feeFor(t, operator); got.Cmp(eng.CurrentFee()) != 0 {
		t.Errorf("fee with no exemptions = %s, want %s", got, eng.CurrentFee())
	}

	set(t, func(env *ledger.Env) error { return eng.SetContractExemption(env, appAddr, true) })
	if !eng.Exempt(appAddr, user, user, fn) {
		t.Error("contract exemption not applied")
	}
	if got := feeFor(t, operator); got.Sign() != 0 {
		t.Errorf("fee under contract exemption = %s, want 0", got)
	}
	set(t, func(env *ledger.Env) error { return eng.SetContractExemption(env, appAddr, false) })

	set(t, func(env *ledger.Env) error { return eng.SetCallerExemption(env, appAddr, user, true) })
	if !eng.Exempt(appAddr, user, user, fn) {
		t.Error("caller exemption not applied")
	}
	if eng.Exempt(appAddr, operator, operator, fn) {
		t.Error("caller exemption leaked to other callers")
	}
	if got := feeFor(t, operator); got.Sign() != 0 {
		t.Errorf("fee under caller exemption = %s, want 0", got)
	}
	set(t, func(env *ledger.Env) error { return eng.SetCallerExemption(env, appAddr, user, false) })

	set(t, func(env *ledger.Env) error { return eng.SetFunctionExemption(env, appAddr, fn, true) })
	if !eng.Exempt(appAddr, user, user, fn) {
		t.Error("function exemption not applied")
	}
	if eng.Exempt(appAddr, user, user, ledger.NewSelector("other()")) {
		t.Error("function exemption leaked to other selectors")
	}
	if got := feeFor(t, operator); got.Sign() != 0 {
		t.Errorf("fee under function exemption = %s, want 0", got)
	}
	set(t, func(env *ledger.Env) error { return eng.SetFunctionExemption(env, appAddr, fn, false) })

	// EOA exemption zeroes the base fee for the transaction origin.
	set(t, func(env *ledger.Env) error { return eng.SetEOAExemption(env, user, true) })
	err := exec(t, st, user, func(env *ledger.Env) error {
		if got := eng.Fee(env); got.Sign() != 0 {
			t.Errorf("exempt origin fee = %s, want 0", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := feeFor(t, user); got.Sign() != 0 {
		t.Errorf("fee for exempt origin = %s, want 0", got)
	}
}

func TestExemptionSettersAreOperatorGated(t *testing.T) {
	st, eng, _ := newFixture(t)
	err := exec(t, st, user, func(env *ledger.Env) error {
		return eng.SetContractExemption(env, appAddr, true)
	})
	var missing access.MissingRoleError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingRoleError", err)
	}
}

func TestChannelManagement(t *testing.T) {
	st, eng, _ := newFixture(t)

	add := func(recipient ledger.Address, weight int64) error {
		return exec(t, st, operator, func(env *ledger.Env) error {
			return eng.AddChannel(env, recipient, big.NewInt(weight))
		})
	}

	if err := add(chanOne, 1); err != nil {
		t.Fatal(err)
	}
	if err := add(chanTwo, 3); err != nil {
		t.Fatal(err)
	}
	if got := eng.TotalShares(); got.Cmp(big.NewInt(4)) != 0 {
		t.Errorf("totalShares = %s, want 4", got)
	}

	var dup DuplicateChannelError
	if err := add(chanOne, 2); !errors.As(err, &dup) {
		t.Errorf("duplicate add: err = %v, want DuplicateChannelError", err)
	}
	if err := add(testAddr(0x43), 0); !errors.Is(err, ErrZeroWeight) {
		t.Errorf("zero weight: err = %v, want ErrZeroWeight", err)
	}

	err := exec(t, st, operator, func(env *ledger.Env) error {
		return eng.RemoveChannel(env, 0)
	})
	if err != nil {
		t.Fatal(err)
	}
	chans := eng.Channels()
	if len(chans) != 1 || chans[0].Recipient != chanTwo {
		t.Errorf("channels after removal = %+v, want only chanTwo", chans)
	}
	if got := eng.TotalShares(); got.Cmp(big.NewInt(3)) != 0 {
		t.Errorf("totalShares after removal = %s, want 3", got)
	}

	var idx ChannelIndexError
	err = exec(t, st, operator, func(env *ledger.Env) error {
		return eng.RemoveChannel(env, 5)
	})
	if !errors.As(err, &idx) {
		t.Errorf("out-of-range removal: err = %v, want ChannelIndexError", err)
	}
}

func TestChannelLimit(t *testing.T) {
	st, eng, _ := newFixture(t)
	for i := 0; i < MaxChannels; i++ {
		recipient := testAddr(byte(0x50 + i))
		err := exec(t, st, operator, func(env *ledger.Env) error {
			return eng.AddChannel(env, recipient, big.NewInt(1))
		})
		if err != nil {
			t.Fatalf("channel %d: %v", i, err)
		}
	}
	err := exec(t, st, operator, func(env *ledger.Env) error {
		return eng.AddChannel(env, testAddr(0x70), big.NewInt(1))
	})
	if !errors.Is(err, ErrChannelLimit) {
		t.Errorf("err = %v, want ErrChannelLimit", err)
	}
}

func TestDistribution(t *testing.T) {
	st, eng, _ := newFixture(t)
	for _, ch := range []struct {
		recipient ledger.Address
		weight    int64
	}{{chanOne, 1}, {chanTwo, 3}} {
		err := exec(t, st, operator, func(env *ledger.Env) error {
			return eng.AddChannel(env, ch.recipient, big.NewInt(ch.weight))
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err := st.Credit(engineAddr, usd(100)); err != nil {
		t.Fatal(err)
	}

	if err := exec(t, st, user, eng.DistributeFees); err != nil {
		t.Fatal(err)
	}
	if got := st.BalanceOf(chanOne); got.Cmp(usd(25)) != 0 {
		t.Errorf("chanOne = %s, want 25e18", got)
	}
	if got := st.BalanceOf(chanTwo); got.Cmp(usd(75)) != 0 {
		t.Errorf("chanTwo = %s, want 75e18", got)
	}
	if got := st.BalanceOf(engineAddr); got.Sign() != 0 {
		t.Errorf("engine residue = %s, want 0", got)
	}

	// Within the epoch the public path is rate limited, the forced path
	// is not.
	var notDue NotDueError
	if err := exec(t, st, user, eng.DistributeFees); !errors.As(err, &notDue) {
		t.Errorf("second distribute: err = %v, want NotDueError", err)
	}
	if err := exec(t, st, operator, eng.ForceDistributeFees); err != nil {
		t.Errorf("force distribute: %v", err)
	}
	if err := exec(t, st, user, eng.ForceDistributeFees); err == nil {
		t.Error("force distribute by non-operator succeeded")
	}
}

func TestDistributeWithoutChannels(t *testing.T) {
	st, eng, _ := newFixture(t)
	if err := exec(t, st, user, eng.DistributeFees); !errors.Is(err, ErrNoChannels) {
		t.Errorf("err = %v, want ErrNoChannels", err)
	}
}

func TestAdminSettersAreGated(t *testing.T) {
	st, eng, _ := newFixture(t)
	tests := []struct {
		name string
		call func(env *ledger.Env) error
	}{
		{"SetFeeUSD", func(env *ledger.Env) error { return eng.SetFeeUSD(env, usd(2)) }},
		{"SetDeveloperFeeBounds", func(env *ledger.Env) error { return eng.SetDeveloperFeeBounds(env, usd(1), usd(2)) }},
		{"SetAssociationShare", func(env *ledger.Env) error { return eng.SetAssociationShare(env, Scale) }},
		{"SetGracePeriod", func(env *ledger.Env) error { return eng.SetGracePeriod(env, 60) }},
		{"SetUpdateEpoch", func(env *ledger.Env) error { return eng.SetUpdateEpoch(env, 60) }},
		{"SetDistributionEpoch", func(env *ledger.Env) error { return eng.SetDistributionEpoch(env, 60) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var missing access.MissingRoleError
			if err := exec(t, st, user, tt.call); !errors.As(err, &missing) {
				t.Errorf("err = %v, want MissingRoleError", err)
			}
			if err := exec(t, st, admin, tt.call); err != nil {
				t.Errorf("as admin: %v", err)
			}
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	st, eng, _ := newFixture(t)

	// A failing transaction must leave no trace of its mutations.
	boom := errors.New("boom")
	err := exec(t, st, admin, func(env *ledger.Env) error {
		if err := eng.SetFeeUSD(env, usd(9)); err != nil {
			return err
		}
		if err := eng.AddChannel(env, chanOne, big.NewInt(7)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if got := eng.FeeUSD(); got.Cmp(usd(1)) != 0 {
		t.Errorf("feeUSD = %s, want rolled back to 1e18", got)
	}
	if got := len(eng.Channels()); got != 0 {
		t.Errorf("channels = %d, want 0 after rollback", got)
	}
}
