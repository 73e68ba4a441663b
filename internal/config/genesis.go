package config

import (
	"fmt"
	"math/big"
	"os"

	"github.com/tidwall/gjson"

	"github.com/HVN-Network/permission_layer/ledger"
)

// Genesis describes the chain's boot state: the initial balances, the core
// contract addresses, and the fee engine's opening parameters.
type Genesis struct {
	Time int64

	Association ledger.Address
	Operator    ledger.Address

	Accounts []GenesisAccount

	FeeEngine        FeeEngineGenesis
	PauseRegistry    PauseRegistryGenesis
	IdentityRegistry IdentityRegistryGenesis
}

// GenesisAccount is one initial balance allocation.
type GenesisAccount struct {
	Address ledger.Address
	Balance *big.Int
}

// FeeEngineGenesis is the fee engine's deployment record.
type FeeEngineGenesis struct {
	Address          ledger.Address
	OracleRate       *big.Int
	FeeUSD           *big.Int
	MinDevFeeUSD     *big.Int
	MaxDevFeeUSD     *big.Int
	AssociationShare *big.Int

	UpdateEpoch       int64
	GracePeriod       int64
	DistributionEpoch int64

	Channels []GenesisChannel
}

// GenesisChannel is one initial distribution channel.
type GenesisChannel struct {
	Recipient ledger.Address
	Weight    *big.Int
}

// PauseRegistryGenesis is the guardian registry's deployment record.
type PauseRegistryGenesis struct {
	Address ledger.Address
}

// IdentityRegistryGenesis is the identity registry's deployment record.
type IdentityRegistryGenesis struct {
	Address        ledger.Address
	Org            string
	MaxAuxiliaries int
}

// LoadGenesis reads and parses the genesis document at path.
func LoadGenesis(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis %s: %w", path, err)
	}
	return ParseGenesis(raw)
}

// ParseGenesis decodes a genesis document.
func ParseGenesis(raw []byte) (*Genesis, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("genesis: invalid JSON")
	}
	doc := gjson.ParseBytes(raw)

	g := &Genesis{Time: doc.Get("genesis_time").Int()}

	var err error
	if g.Association, err = genesisAddr(doc, "association"); err != nil {
		return nil, err
	}
	if g.Operator, err = genesisAddr(doc, "operator"); err != nil {
		return nil, err
	}

	for _, acct := range doc.Get("accounts").Array() {
		addr, err := parseAddr(acct.Get("address"))
		if err != nil {
			return nil, fmt.Errorf("genesis account: %w", err)
		}
		balance, err := parseAmount(acct.Get("balance"))
		if err != nil {
			return nil, fmt.Errorf("genesis account %s: %w", addr, err)
		}
		g.Accounts = append(g.Accounts, GenesisAccount{Address: addr, Balance: balance})
	}

	fe := doc.Get("fee_engine")
	if !fe.Exists() {
		return nil, fmt.Errorf("genesis: fee_engine section is required")
	}
	if g.FeeEngine.Address, err = parseAddr(fe.Get("address")); err != nil {
		return nil, fmt.Errorf("genesis fee_engine: %w", err)
	}
	for field, dst := range map[string]**big.Int{
		"oracle_rate":       &g.FeeEngine.OracleRate,
		"fee_usd":           &g.FeeEngine.FeeUSD,
		"min_dev_fee_usd":   &g.FeeEngine.MinDevFeeUSD,
		"max_dev_fee_usd":   &g.FeeEngine.MaxDevFeeUSD,
		"association_share": &g.FeeEngine.AssociationShare,
	} {
		if *dst, err = parseAmount(fe.Get(field)); err != nil {
			return nil, fmt.Errorf("genesis fee_engine.%s: %w", field, err)
		}
	}
	g.FeeEngine.UpdateEpoch = fe.Get("update_epoch").Int()
	g.FeeEngine.GracePeriod = fe.Get("grace_period").Int()
	g.FeeEngine.DistributionEpoch = fe.Get("distribution_epoch").Int()

	for _, ch := range fe.Get("channels").Array() {
		recipient, err := parseAddr(ch.Get("recipient"))
		if err != nil {
			return nil, fmt.Errorf("genesis channel: %w", err)
		}
		weight, err := parseAmount(ch.Get("weight"))
		if err != nil {
			return nil, fmt.Errorf("genesis channel %s: %w", recipient, err)
		}
		g.FeeEngine.Channels = append(g.FeeEngine.Channels, GenesisChannel{
			Recipient: recipient,
			Weight:    weight,
		})
	}

	if g.PauseRegistry.Address, err = genesisAddr(doc, "pause_registry.address"); err != nil {
		return nil, err
	}

	idr := doc.Get("identity_registry")
	if g.IdentityRegistry.Address, err = parseAddr(idr.Get("address")); err != nil {
		return nil, fmt.Errorf("genesis identity_registry: %w", err)
	}
	g.IdentityRegistry.Org = idr.Get("org").String()
	g.IdentityRegistry.MaxAuxiliaries = int(idr.Get("max_auxiliaries").Int())

	return g, nil
}

func genesisAddr(doc gjson.Result, path string) (ledger.Address, error) {
	addr, err := parseAddr(doc.Get(path))
	if err != nil {
		return ledger.ZeroAddress, fmt.Errorf("genesis %s: %w", path, err)
	}
	return addr, nil
}

func parseAddr(r gjson.Result) (ledger.Address, error) {
	if !r.Exists() {
		return ledger.ZeroAddress, fmt.Errorf("missing address")
	}
	return ledger.ParseAddress(r.String())
}

// parseAmount accepts either a JSON number or a decimal string, the latter
// for values beyond float precision.
func parseAmount(r gjson.Result) (*big.Int, error) {
	if !r.Exists() {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(r.String(), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", r.String())
	}
	return v, nil
}
