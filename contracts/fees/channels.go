package fees

import (
	"math/big"

	"github.com/HVN-Network/permission_layer/contracts/access"
	"github.com/HVN-Network/permission_layer/ledger"
)

// AddChannel appends a distribution channel. The list is capped at
// MaxChannels, weights are strictly positive, and recipients are unique.
func (f *Engine) AddChannel(env *ledger.Env, recipient ledger.Address, weight *big.Int) error {
	if err := f.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	if err := ledger.RequireAddress(recipient); err != nil {
		return err
	}
	if len(f.channels) >= MaxChannels {
		return ErrChannelLimit
	}
	if weight == nil || weight.Sign() <= 0 {
		return ErrZeroWeight
	}
	if f.channelIndex(recipient) >= 0 {
		return DuplicateChannelError{Recipient: recipient.Hex()}
	}

	f.channels = append(f.channels, Channel{
		Recipient: recipient,
		Weight:    new(big.Int).Set(weight),
	})
	f.totalShares = new(big.Int).Add(f.totalShares, weight)

	env.Emit("ChannelAdded",
		ledger.AddrAttr("recipient", recipient),
		ledger.U256Attr("weight", weight),
		ledger.U256Attr("totalShares", f.totalShares),
	)
	return nil
}

// AdjustChannel replaces the recipient and weight of the channel at index.
func (f *Engine) AdjustChannel(env *ledger.Env, index int, recipient ledger.Address, weight *big.Int) error {
	if err := f.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	if index < 0 || index >= len(f.channels) {
		return ChannelIndexError{Index: index, Length: len(f.channels)}
	}
	if err := ledger.RequireAddress(recipient); err != nil {
		return err
	}
	if weight == nil || weight.Sign() <= 0 {
		return ErrZeroWeight
	}
	if i := f.channelIndex(recipient); i >= 0 && i != index {
		return DuplicateChannelError{Recipient: recipient.Hex()}
	}

	old := f.channels[index]
	f.channels[index] = Channel{Recipient: recipient, Weight: new(big.Int).Set(weight)}
	f.recomputeShares()

	env.Emit("ChannelAdjusted",
		ledger.AddrAttr("recipient", recipient),
		ledger.AddrAttr("previousRecipient", old.Recipient),
		ledger.U256Attr("weight", weight),
		ledger.U256Attr("totalShares", f.totalShares),
	)
	return nil
}

// AdjustChannelWeight updates only the weight of the channel at index.
func (f *Engine) AdjustChannelWeight(env *ledger.Env, index int, weight *big.Int) error {
	if err := f.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	if index < 0 || index >= len(f.channels) {
		return ChannelIndexError{Index: index, Length: len(f.channels)}
	}
	if weight == nil || weight.Sign() <= 0 {
		return ErrZeroWeight
	}

	f.channels[index].Weight = new(big.Int).Set(weight)
	f.recomputeShares()

	env.Emit("ChannelWeightAdjusted",
		ledger.AddrAttr("recipient", f.channels[index].Recipient),
		ledger.U256Attr("weight", weight),
		ledger.U256Attr("totalShares", f.totalShares),
	)
	return nil
}

// RemoveChannel removes the channel at index. Removal swaps with the last
// entry rather than preserving order; channel order carries no meaning.
func (f *Engine) RemoveChannel(env *ledger.Env, index int) error {
	if err := f.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	if index < 0 || index >= len(f.channels) {
		return ChannelIndexError{Index: index, Length: len(f.channels)}
	}

	removed := f.channels[index]
	last := len(f.channels) - 1
	f.channels[index] = f.channels[last]
	f.channels = f.channels[:last]
	f.recomputeShares()

	env.Emit("ChannelRemoved",
		ledger.AddrAttr("recipient", removed.Recipient),
		ledger.U256Attr("totalShares", f.totalShares),
	)
	return nil
}

// Channels returns a copy of the channel list.
func (f *Engine) Channels() []Channel {
	out := make([]Channel, len(f.channels))
	for i, ch := range f.channels {
		out[i] = Channel{Recipient: ch.Recipient, Weight: new(big.Int).Set(ch.Weight)}
	}
	return out
}

// TotalShares returns the sum of all channel weights.
func (f *Engine) TotalShares() *big.Int { return new(big.Int).Set(f.totalShares) }

// DistributeFees pays out the engine's entire H1 balance across the
// channels proportionally to weight. Rate-limited to once per distribution
// epoch. Any failing channel transfer fails the whole transaction: a
// partial distribution is never a valid end state.
func (f *Engine) DistributeFees(env *ledger.Env) error {
	due := f.lastDistribution + f.distributionEpoch
	if env.Now() < due {
		return NotDueError{Now: env.Now(), DueTime: due}
	}
	return f.distribute(env)
}

// ForceDistributeFees distributes immediately, bypassing the epoch timer.
func (f *Engine) ForceDistributeFees(env *ledger.Env) error {
	if err := f.controls.Require(access.RoleOperator, env.Sender()); err != nil {
		return err
	}
	return f.distribute(env)
}

func (f *Engine) distribute(env *ledger.Env) error {
	if len(f.channels) == 0 {
		return ErrNoChannels
	}

	balance := env.SelfBalance()
	for _, ch := range f.channels {
		cut := new(big.Int).Mul(balance, ch.Weight)
		cut.Quo(cut, f.totalShares)
		if err := env.Transfer(ch.Recipient, cut); err != nil {
			return err
		}
	}

	f.lastDistribution = env.Now()
	env.Emit("FeesDistributed",
		ledger.U256Attr("balance", balance),
		ledger.UintAttr("channels", uint64(len(f.channels))),
	)
	return nil
}

// LastDistribution returns the time of the previous payout.
func (f *Engine) LastDistribution() int64 { return f.lastDistribution }

func (f *Engine) channelIndex(recipient ledger.Address) int {
	for i, ch := range f.channels {
		if ch.Recipient == recipient {
			return i
		}
	}
	return -1
}

func (f *Engine) recomputeShares() {
	total := new(big.Int)
	for _, ch := range f.channels {
		total.Add(total, ch.Weight)
	}
	f.totalShares = total
}
