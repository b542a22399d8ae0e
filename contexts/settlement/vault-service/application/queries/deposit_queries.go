package queries

import (
	"context"

	"merkledrop/contexts/settlement/vault-service/domain/entities"
	"merkledrop/contexts/settlement/vault-service/ports"
	"merkledrop/internal/shared/chain"
)

// DepositQueries exposes the vault's read surface: active-root iteration for
// the watcher plus per-deposit lookups.
type DepositQueries struct {
	Repository ports.Repository
}

func (uc DepositQueries) TotalActiveRoots(ctx context.Context) (int, error) {
	return uc.Repository.ActiveRootCount(ctx)
}

func (uc DepositQueries) RootAt(ctx context.Context, index int) (chain.Digest, error) {
	return uc.Repository.RootAt(ctx, index)
}

func (uc DepositQueries) GetDeposit(ctx context.Context, root chain.Digest) (entities.Deposit, error) {
	return uc.Repository.GetDeposit(ctx, root)
}

func (uc DepositQueries) HasWithdrawn(
	ctx context.Context,
	root chain.Digest,
	recipient chain.Address,
	releaseTime uint64,
) (bool, error) {
	return uc.Repository.HasWithdrawn(ctx, root, recipient, releaseTime)
}

// ConfigQueries reads the vault configuration. CurrentFeeRateBps doubles as
// the builder's fee rate source.
type ConfigQueries struct {
	Config ports.ConfigStore
}

func (uc ConfigQueries) CurrentFeeRateBps(ctx context.Context) (uint64, error) {
	cfg, err := uc.Config.FeeConfig(ctx)
	if err != nil {
		return 0, err
	}
	return cfg.RateBps, nil
}

func (uc ConfigQueries) FeeConfig(ctx context.Context) (entities.FeeConfig, error) {
	return uc.Config.FeeConfig(ctx)
}

func (uc ConfigQueries) Paused(ctx context.Context) (bool, error) {
	return uc.Config.Paused(ctx)
}
