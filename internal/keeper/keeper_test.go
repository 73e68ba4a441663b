package keeper

import (
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HVN-Network/permission_layer/internal/config"
	"github.com/HVN-Network/permission_layer/internal/metrics"
	"github.com/HVN-Network/permission_layer/internal/node"
	"github.com/HVN-Network/permission_layer/internal/storage"
	"github.com/HVN-Network/permission_layer/ledger"
)

func testNode(t *testing.T) *node.Node {
	t.Helper()
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	g := &config.Genesis{
		Time:        1_700_000_000,
		Association: ledger.MustParseAddress("0x0000000000000000000000000000000000000001"),
		Operator:    ledger.MustParseAddress("0x0000000000000000000000000000000000000002"),
		FeeEngine: config.FeeEngineGenesis{
			Address:           ledger.MustParseAddress("0x0000000000000000000000000000000000000010"),
			OracleRate:        new(big.Int).Set(scale),
			FeeUSD:            new(big.Int).Set(scale),
			MinDevFeeUSD:      big.NewInt(0),
			MaxDevFeeUSD:      new(big.Int).Mul(big.NewInt(5), scale),
			AssociationShare:  new(big.Int).Div(scale, big.NewInt(5)),
			UpdateEpoch:       3600,
			GracePeriod:       600,
			DistributionEpoch: 86400,
			Channels: []config.GenesisChannel{
				{Recipient: ledger.MustParseAddress("0x0000000000000000000000000000000000000041"), Weight: big.NewInt(1)},
			},
		},
		PauseRegistry: config.PauseRegistryGenesis{
			Address: ledger.MustParseAddress("0x0000000000000000000000000000000000000011"),
		},
		IdentityRegistry: config.IdentityRegistryGenesis{
			Address:        ledger.MustParseAddress("0x0000000000000000000000000000000000000012"),
			Org:            "hvn",
			MaxAuxiliaries: 4,
		},
	}
	n, err := node.New(g, storage.NewMemoryStore(), metrics.NewCollector("test"), zerolog.Nop())
	require.NoError(t, err)
	return n
}

func newKeeper(t *testing.T, n *node.Node) *Keeper {
	t.Helper()
	k, err := New(config.KeeperConfig{
		UpdateFeeSpec:  "@every 5m",
		DistributeSpec: "@daily",
	}, n, metrics.NewCollector("keeper"), zerolog.Nop())
	require.NoError(t, err)
	return k
}

func TestNewRejectsBadSpec(t *testing.T) {
	n := testNode(t)
	_, err := New(config.KeeperConfig{
		UpdateFeeSpec:  "not a cron spec",
		DistributeSpec: "@daily",
	}, n, metrics.NewCollector("keeper"), zerolog.Nop())
	assert.Error(t, err)
}

func TestUpdateFeeDuty(t *testing.T) {
	n := testNode(t)
	k := newKeeper(t, n)

	// Rate change becomes the live fee after the refresh fires.
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	doubled := new(big.Int).Mul(big.NewInt(2), scale)
	n.Oracle().SetRate(doubled)
	require.NoError(t, n.State().Advance(3601))

	k.updateFee()
	assert.Zero(t, n.Fees().CurrentFee().Cmp(doubled))
}

func TestDistributeDutyRespectsEpoch(t *testing.T) {
	n := testNode(t)
	k := newKeeper(t, n)

	// Due at boot, then rate-limited until the next epoch.
	k.distribute()
	first := n.Fees().LastDistribution()
	assert.Equal(t, n.State().Now(), first)

	require.NoError(t, n.State().Advance(3600))
	k.distribute()
	assert.Equal(t, first, n.Fees().LastDistribution(), "second run inside the epoch is a no-op")

	require.NoError(t, n.State().Advance(86400))
	k.distribute()
	assert.Equal(t, n.State().Now(), n.Fees().LastDistribution())
}
