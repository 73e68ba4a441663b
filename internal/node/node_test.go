package node

import (
	"context"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HVN-Network/permission_layer/internal/config"
	"github.com/HVN-Network/permission_layer/internal/metrics"
	"github.com/HVN-Network/permission_layer/internal/storage"
	"github.com/HVN-Network/permission_layer/ledger"
)

var (
	association = ledger.MustParseAddress("0x0000000000000000000000000000000000000001")
	operator    = ledger.MustParseAddress("0x0000000000000000000000000000000000000002")
	user        = ledger.MustParseAddress("0x00000000000000000000000000000000000000a1")
	channelOne  = ledger.MustParseAddress("0x0000000000000000000000000000000000000041")
	engineAddr  = ledger.MustParseAddress("0x0000000000000000000000000000000000000010")
)

func testGenesis() *config.Genesis {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return &config.Genesis{
		Time:        1_700_000_000,
		Association: association,
		Operator:    operator,
		Accounts: []config.GenesisAccount{
			{Address: user, Balance: new(big.Int).Mul(big.NewInt(100), scale)},
		},
		FeeEngine: config.FeeEngineGenesis{
			Address:           engineAddr,
			OracleRate:        new(big.Int).Set(scale),
			FeeUSD:            new(big.Int).Set(scale),
			MinDevFeeUSD:      big.NewInt(0),
			MaxDevFeeUSD:      new(big.Int).Mul(big.NewInt(5), scale),
			AssociationShare:  new(big.Int).Div(scale, big.NewInt(5)),
			UpdateEpoch:       3600,
			GracePeriod:       600,
			DistributionEpoch: 86400,
			Channels: []config.GenesisChannel{
				{Recipient: channelOne, Weight: big.NewInt(1)},
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
}

func bootNode(t *testing.T) (*Node, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	n, err := New(testGenesis(), store, metrics.NewCollector("test"), zerolog.Nop())
	require.NoError(t, err)
	return n, store
}

func TestBootFromGenesis(t *testing.T) {
	n, store := bootNode(t)

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	assert.Zero(t, n.State().BalanceOf(user).Cmp(new(big.Int).Mul(big.NewInt(100), scale)))
	assert.Zero(t, n.Fees().CurrentFee().Cmp(scale), "fee live from genesis at 1 USD and rate 1")
	require.Len(t, n.Fees().Channels(), 1)

	// Genesis channel setup is already mirrored to the store.
	events, err := store.Events(context.Background(), storage.EventFilter{Name: "ChannelAdded"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSubmitMirrorsEvents(t *testing.T) {
	n, store := bootNode(t)

	_, err := n.Submit(ledger.Tx{From: operator, To: engineAddr}, func(env *ledger.Env) error {
		return n.Fees().SetGraceContract(env, user, true)
	})
	require.NoError(t, err)

	events, err := store.Events(context.Background(), storage.EventFilter{Name: "GraceContractSet"})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSubmitRevertWritesNothing(t *testing.T) {
	n, store := bootNode(t)
	before, err := store.LatestSeq(context.Background())
	require.NoError(t, err)

	// Stranger lacks the operator role.
	_, err = n.Submit(ledger.Tx{From: user, To: engineAddr}, func(env *ledger.Env) error {
		return n.Fees().SetGraceContract(env, user, true)
	})
	require.Error(t, err)

	after, err := store.LatestSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSubscribeReceivesCommittedEvents(t *testing.T) {
	n, _ := bootNode(t)
	feed, cancel := n.Subscribe(16)
	defer cancel()

	_, err := n.Submit(ledger.Tx{From: operator, To: engineAddr}, func(env *ledger.Env) error {
		return n.Fees().SetGraceContract(env, user, true)
	})
	require.NoError(t, err)

	e := <-feed
	assert.Equal(t, "GraceContractSet", e.Name)

	cancel()
	// Cancelling twice must not panic.
	cancel()
}
