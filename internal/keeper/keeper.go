// Package keeper runs the node's scheduled duties: the periodic fee
// refresh and the revenue distribution. Both are ordinary transactions
// submitted from the operator account on a cron schedule.
package keeper

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/HVN-Network/permission_layer/internal/config"
	"github.com/HVN-Network/permission_layer/internal/metrics"
	"github.com/HVN-Network/permission_layer/internal/node"
	"github.com/HVN-Network/permission_layer/ledger"
)

// Keeper owns the cron scheduler.
type Keeper struct {
	node      *node.Node
	cron      *cron.Cron
	collector *metrics.Collector
	logger    zerolog.Logger
}

// New wires the keeper's duties onto a scheduler using the cron specs
// from configuration.
func New(cfg config.KeeperConfig, n *node.Node, collector *metrics.Collector, logger zerolog.Logger) (*Keeper, error) {
	k := &Keeper{
		node:      n,
		cron:      cron.New(),
		collector: collector,
		logger:    logger.With().Str("component", "keeper").Logger(),
	}

	if _, err := k.cron.AddFunc(cfg.UpdateFeeSpec, k.updateFee); err != nil {
		return nil, fmt.Errorf("schedule fee update %q: %w", cfg.UpdateFeeSpec, err)
	}
	if _, err := k.cron.AddFunc(cfg.DistributeSpec, k.distribute); err != nil {
		return nil, fmt.Errorf("schedule distribution %q: %w", cfg.DistributeSpec, err)
	}
	return k, nil
}

// Start begins running duties on schedule.
func (k *Keeper) Start() {
	k.cron.Start()
	k.logger.Info().Msg("keeper started")
}

// Stop halts the scheduler and waits for running duties to finish.
func (k *Keeper) Stop(ctx context.Context) {
	select {
	case <-k.cron.Stop().Done():
	case <-ctx.Done():
		k.logger.Warn().Msg("keeper stop timed out")
	}
}

func (k *Keeper) updateFee() {
	engine := k.node.Fees()
	_, err := k.node.Submit(ledger.Tx{From: k.node.Operator(), To: engine.ContractAddress()}, func(env *ledger.Env) error {
		return engine.UpdateFee(env)
	})
	k.collector.RecordKeeperRun("update_fee", err)
	if err != nil {
		k.logger.Error().Err(err).Msg("fee update failed")
		return
	}
	k.logger.Debug().
		Str("fee", engine.CurrentFee().String()).
		Int64("next_update", engine.NextUpdate()).
		Msg("fee refreshed")
}

func (k *Keeper) distribute() {
	engine := k.node.Fees()
	_, err := k.node.Submit(ledger.Tx{From: k.node.Operator(), To: engine.ContractAddress()}, func(env *ledger.Env) error {
		return engine.DistributeFees(env)
	})
	k.collector.RecordKeeperRun("distribute", err)
	if err != nil {
		// NotDue is routine between epochs; anything else is worth a look.
		k.logger.Debug().Err(err).Msg("distribution skipped")
		return
	}
	k.logger.Info().Msg("fees distributed")
}
