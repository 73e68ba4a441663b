package fees

import (
	"math/big"

	"github.com/HVN-Network/permission_layer/contracts/access"
	"github.com/HVN-Network/permission_layer/ledger"
)

// engineState is the rollback snapshot of everything an engine call can mutate.
type engineState struct {
	controls *access.Controls

	feeUSD, fee, priorFee, rate, priorRate       *big.Int
	minDevFeeUSD, maxDevFeeUSD, associationShare *big.Int

	updateEpoch, gracePeriod, distributionEpoch int64
	nextUpdate, graceEnd, lastDistribution      int64

	graceContracts map[ledger.Address]bool
	exemptEOA      map[ledger.Address]bool
	exemptContract map[ledger.Address]bool
	exemptCaller   map[callerKey]bool
	exemptFunction map[functionKey]bool

	channels    []Channel
	totalShares *big.Int
}

// Snapshot implements ledger.Snapshotter.
func (f *Engine) Snapshot() any {
	s := &engineState{
		controls:          f.controls.Clone(),
		feeUSD:            new(big.Int).Set(f.feeUSD),
		fee:               new(big.Int).Set(f.fee),
		priorFee:          new(big.Int).Set(f.priorFee),
		rate:              new(big.Int).Set(f.rate),
		priorRate:         new(big.Int).Set(f.priorRate),
		minDevFeeUSD:      new(big.Int).Set(f.minDevFeeUSD),
		maxDevFeeUSD:      new(big.Int).Set(f.maxDevFeeUSD),
		associationShare:  new(big.Int).Set(f.associationShare),
		updateEpoch:       f.updateEpoch,
		gracePeriod:       f.gracePeriod,
		distributionEpoch: f.distributionEpoch,
		nextUpdate:        f.nextUpdate,
		graceEnd:          f.graceEnd,
		lastDistribution:  f.lastDistribution,
		graceContracts:    cloneKeyMap(f.graceContracts),
		exemptEOA:         cloneKeyMap(f.exemptEOA),
		exemptContract:    cloneKeyMap(f.exemptContract),
		exemptCaller:      cloneKeyMap(f.exemptCaller),
		exemptFunction:    cloneKeyMap(f.exemptFunction),
		channels:          f.Channels(),
		totalShares:       new(big.Int).Set(f.totalShares),
	}
	return s
}

// Restore implements ledger.Snapshotter.
func (f *Engine) Restore(snapshot any) {
	s := snapshot.(*engineState)
	f.controls.ReplaceWith(s.controls)
	f.feeUSD = s.feeUSD
	f.fee = s.fee
	f.priorFee = s.priorFee
	f.rate = s.rate
	f.priorRate = s.priorRate
	f.minDevFeeUSD = s.minDevFeeUSD
	f.maxDevFeeUSD = s.maxDevFeeUSD
	f.associationShare = s.associationShare
	f.updateEpoch = s.updateEpoch
	f.gracePeriod = s.gracePeriod
	f.distributionEpoch = s.distributionEpoch
	f.nextUpdate = s.nextUpdate
	f.graceEnd = s.graceEnd
	f.lastDistribution = s.lastDistribution
	f.graceContracts = s.graceContracts
	f.exemptEOA = s.exemptEOA
	f.exemptContract = s.exemptContract
	f.exemptCaller = s.exemptCaller
	f.exemptFunction = s.exemptFunction
	f.channels = s.channels
	f.totalShares = s.totalShares
}

func cloneKeyMap[K comparable](src map[K]bool) map[K]bool {
	dst := make(map[K]bool, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
