// Package fees implements the network fee engine: it tracks the
// USD-denominated base fee, refreshes the oracle rate on a self-driving
// cadence with grace-period hysteresis, manages exemption rules, and
// distributes accumulated revenue across weighted channels.
package fees

import (
	"math/big"

	"github.com/HVN-Network/permission_layer/contracts/access"
	"github.com/HVN-Network/permission_layer/contracts/oracle"
	"github.com/HVN-Network/permission_layer/ledger"
)

// Scale is the 18-decimal fixed-point unit used for USD amounts, ratios,
// and H1-per-USD rates.
var Scale = big.NewInt(1_000_000_000_000_000_000)

// MaxChannels caps the distribution channel list.
const MaxChannels = 10

// Config carries the initial engine parameters.
type Config struct {
	Admin    ledger.Address
	Operator ledger.Address
	Oracle   oracle.Oracle

	// FeeUSD is the application-facing base fee in 18-decimal USD.
	FeeUSD *big.Int

	// MinDevFeeUSD and MaxDevFeeUSD bound per-function developer fees.
	MinDevFeeUSD *big.Int
	MaxDevFeeUSD *big.Int

	// AssociationShare is the protocol treasury's fraction of every
	// developer fee, 18-decimal fixed point in [0, Scale].
	AssociationShare *big.Int

	// Epoch lengths in seconds.
	UpdateEpoch       int64
	GracePeriod       int64
	DistributionEpoch int64
}

// Engine is the fee contract. All mutation happens inside ledger
// transactions; Engine implements ledger.Snapshotter so failed transactions
// roll its state back.
type Engine struct {
	addr     ledger.Address
	controls *access.Controls
	orcl     oracle.Oracle

	feeUSD    *big.Int
	fee       *big.Int // current fee, H1 units
	priorFee  *big.Int // pre-update snapshot
	rate      *big.Int // current H1 per USD
	priorRate *big.Int

	minDevFeeUSD     *big.Int
	maxDevFeeUSD     *big.Int
	associationShare *big.Int

	updateEpoch       int64
	gracePeriod       int64
	distributionEpoch int64
	nextUpdate        int64
	graceEnd          int64
	lastDistribution  int64

	graceContracts map[ledger.Address]bool
	exemptEOA      map[ledger.Address]bool
	exemptContract map[ledger.Address]bool
	exemptCaller   map[callerKey]bool
	exemptFunction map[functionKey]bool

	channels    []Channel
	totalShares *big.Int
}

type callerKey struct {
	Contract ledger.Address
	Caller   ledger.Address
}

type functionKey struct {
	Contract ledger.Address
	Function ledger.Selector
}

// Channel is one revenue distribution target. Order in the channel list is
// not semantically meaningful.
type Channel struct {
	Recipient ledger.Address `json:"recipient"`
	Weight    *big.Int       `json:"weight"`
}

// New creates the fee engine at addr. The oracle is consulted once so the
// fee is live from genesis; the first fee-gated call performs the first
// scheduled refresh.
func New(addr ledger.Address, cfg Config) (*Engine, error) {
	if err := ledger.RequireAddress(addr); err != nil {
		return nil, err
	}
	if err := ledger.RequireAddress(cfg.Admin); err != nil {
		return nil, err
	}
	if cfg.Oracle == nil {
		return nil, ErrNilOracle
	}
	min, max := amount(cfg.MinDevFeeUSD), amount(cfg.MaxDevFeeUSD)
	if min.Cmp(max) > 0 {
		return nil, ErrMinAboveMax
	}
	if cfg.UpdateEpoch <= 0 || cfg.DistributionEpoch <= 0 {
		return nil, ErrEpochNotPositive
	}
	if cfg.GracePeriod < 0 || cfg.GracePeriod > cfg.UpdateEpoch {
		return nil, ErrGraceExceedsEpoch
	}
	share := amount(cfg.AssociationShare)
	if share.Cmp(Scale) > 0 {
		return nil, ErrShareOutOfRange
	}

	controls := access.NewControls()
	controls.Grant(access.RoleAdmin, cfg.Admin)
	if !cfg.Operator.IsZero() {
		controls.Grant(access.RoleOperator, cfg.Operator)
	}
	controls.Grant(access.RoleOperator, cfg.Admin)

	rate := amount(cfg.Oracle.Consult())
	feeUSD := amount(cfg.FeeUSD)
	fee := mulDivScale(feeUSD, rate)

	return &Engine{
		addr:              addr,
		controls:          controls,
		orcl:              cfg.Oracle,
		feeUSD:            feeUSD,
		fee:               fee,
		priorFee:          new(big.Int).Set(fee),
		rate:              rate,
		priorRate:         new(big.Int).Set(rate),
		minDevFeeUSD:      min,
		maxDevFeeUSD:      max,
		associationShare:  share,
		updateEpoch:       cfg.UpdateEpoch,
		gracePeriod:       cfg.GracePeriod,
		distributionEpoch: cfg.DistributionEpoch,
		graceContracts:    make(map[ledger.Address]bool),
		exemptEOA:         make(map[ledger.Address]bool),
		exemptContract:    make(map[ledger.Address]bool),
		exemptCaller:      make(map[callerKey]bool),
		exemptFunction:    make(map[functionKey]bool),
		totalShares:       new(big.Int),
	}, nil
}

// ContractAddress implements ledger.Contract.
func (f *Engine) ContractAddress() ledger.Address { return f.addr }

// UpdateFee refreshes the fee from the oracle. Callable by anyone; a no-op
// until the stored next-update time is reached, which makes the refresh
// cadence self-driving: every fee-gated application call invokes it, so no
// off-chain scheduler is required.
func (f *Engine) UpdateFee(env *ledger.Env) error {
	if env.Now() < f.nextUpdate {
		return nil
	}

	f.orcl.RefreshOracle()
	rate := amount(f.orcl.Consult())

	f.priorFee = f.fee
	f.priorRate = f.rate
	f.rate = rate
	f.fee = mulDivScale(f.feeUSD, rate)
	f.nextUpdate = env.Now() + f.updateEpoch
	f.graceEnd = env.Now() + f.gracePeriod

	env.Emit("FeeUpdated",
		ledger.U256Attr("fee", f.fee),
		ledger.U256Attr("priorFee", f.priorFee),
		ledger.U256Attr("rate", f.rate),
		ledger.UintAttr("nextUpdate", uint64(f.nextUpdate)),
	)
	return nil
}

// Fee returns the application-facing base fee in H1 units. An EOA-exempt
// transaction origin pays nothing; a registered grace contract calling
// within an open grace window uses the lesser of the prior and current fee,
// so callers are never punished for a value that changed mid-flight.
func (f *Engine) Fee(env *ledger.Env) *big.Int {
	if f.exemptEOA[env.Origin()] {
		return new(big.Int)
	}
	if f.inGrace(env) {
		return lesser(f.priorFee, f.fee)
	}
	return new(big.Int).Set(f.fee)
}

// H1USD returns the H1-per-USD rate, with the same grace-window
// lesser-of rule as Fee.
func (f *Engine) H1USD(env *ledger.Env) *big.Int {
	if f.inGrace(env) {
		return lesser(f.priorRate, f.rate)
	}
	return new(big.Int).Set(f.rate)
}

// FeeForContract returns the base fee owed for a specific call: zero when
// any of the four independent exemption rules match, the regular fee
// otherwise.
func (f *Engine) FeeForContract(env *ledger.Env, contract, caller ledger.Address, fn ledger.Selector) *big.Int {
	if f.Exempt(contract, caller, env.Origin(), fn) {
		return new(big.Int)
	}
	return f.Fee(env)
}

func (f *Engine) inGrace(env *ledger.Env) bool {
	return f.graceContracts[env.Sender()] && env.Now() < f.graceEnd
}

// --- administrative setters --------------------------------------------------

// SetFeeUSD updates the USD-denominated base fee. The H1 fee changes at the
// next scheduled refresh.
func (f *Engine) SetFeeUSD(env *ledger.Env, usd *big.Int) error {
	if err := f.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	f.feeUSD = amount(usd)
	env.Emit("FeeUSDSet", ledger.U256Attr("feeUSD", f.feeUSD))
	return nil
}

// SetDeveloperFeeBounds updates the [min,max] bound on per-function
// developer fees. The invariant min <= max always holds; previously set
// fees that fall out of bounds are clamped at read time by applications,
// not rejected here.
func (f *Engine) SetDeveloperFeeBounds(env *ledger.Env, min, max *big.Int) error {
	if err := f.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	lo, hi := amount(min), amount(max)
	if lo.Cmp(hi) > 0 {
		return ErrMinAboveMax
	}
	f.minDevFeeUSD, f.maxDevFeeUSD = lo, hi
	env.Emit("DeveloperFeeBoundsSet",
		ledger.U256Attr("min", lo),
		ledger.U256Attr("max", hi),
	)
	return nil
}

// SetAssociationShare updates the protocol treasury's fraction of developer
// fees.
func (f *Engine) SetAssociationShare(env *ledger.Env, share *big.Int) error {
	if err := f.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	s := amount(share)
	if s.Cmp(Scale) > 0 {
		return ErrShareOutOfRange
	}
	f.associationShare = s
	env.Emit("AssociationShareSet", ledger.U256Attr("share", s))
	return nil
}

// SetGracePeriod updates the grace window length. It can never exceed the
// update epoch.
func (f *Engine) SetGracePeriod(env *ledger.Env, seconds int64) error {
	if err := f.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	if seconds < 0 || seconds > f.updateEpoch {
		return ErrGraceExceedsEpoch
	}
	f.gracePeriod = seconds
	env.Emit("GracePeriodSet", ledger.UintAttr("seconds", uint64(seconds)))
	return nil
}

// SetUpdateEpoch updates the fee refresh cadence.
func (f *Engine) SetUpdateEpoch(env *ledger.Env, seconds int64) error {
	if err := f.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	if seconds <= 0 {
		return ErrEpochNotPositive
	}
	if f.gracePeriod > seconds {
		return ErrGraceExceedsEpoch
	}
	f.updateEpoch = seconds
	env.Emit("UpdateEpochSet", ledger.UintAttr("seconds", uint64(seconds)))
	return nil
}

// SetDistributionEpoch updates the minimum interval between rate-limited
// distributions.
func (f *Engine) SetDistributionEpoch(env *ledger.Env, seconds int64) error {
	if err := f.controls.Require(access.RoleAdmin, env.Sender()); err != nil {
		return err
	}
	if seconds <= 0 {
		return ErrEpochNotPositive
	}
	f.distributionEpoch = seconds
	env.Emit("DistributionEpochSet", ledger.UintAttr("seconds", uint64(seconds)))
	return nil
}

// SetGraceContract marks or unmarks an application as entitled to the
// grace-window lesser-of rule.
func (f *Engine) SetGraceContract(env *ledger.Env, contract ledger.Address, grace bool) error {
	if err := f.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	if err := ledger.RequireAddress(contract); err != nil {
		return err
	}
	f.graceContracts[contract] = grace
	env.Emit("GraceContractSet",
		ledger.AddrAttr("contract", contract),
		ledger.BoolAttr("grace", grace),
	)
	return nil
}

// --- read accessors ----------------------------------------------------------

// FeeUSD returns the USD-denominated base fee.
func (f *Engine) FeeUSD() *big.Int { return new(big.Int).Set(f.feeUSD) }

// CurrentFee returns the current H1 fee without exemption or grace context.
func (f *Engine) CurrentFee() *big.Int { return new(big.Int).Set(f.fee) }

// CurrentRate returns the current H1-per-USD rate without grace context.
func (f *Engine) CurrentRate() *big.Int { return new(big.Int).Set(f.rate) }

// MinDevFeeUSD returns the lower developer fee bound.
func (f *Engine) MinDevFeeUSD() *big.Int { return new(big.Int).Set(f.minDevFeeUSD) }

// MaxDevFeeUSD returns the upper developer fee bound.
func (f *Engine) MaxDevFeeUSD() *big.Int { return new(big.Int).Set(f.maxDevFeeUSD) }

// AssociationShare returns the treasury fraction of developer fees.
func (f *Engine) AssociationShare() *big.Int { return new(big.Int).Set(f.associationShare) }

// NextUpdate returns the next scheduled refresh time.
func (f *Engine) NextUpdate() int64 { return f.nextUpdate }

// GraceEnd returns the end of the open grace window.
func (f *Engine) GraceEnd() int64 { return f.graceEnd }

// IsGraceContract reports whether contract is registered for grace reads.
func (f *Engine) IsGraceContract(contract ledger.Address) bool {
	return f.graceContracts[contract]
}

// --- helpers -----------------------------------------------------------------

// mulDivScale computes a*b/Scale with truncating division.
func mulDivScale(a, b *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, Scale)
}

func lesser(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func amount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
