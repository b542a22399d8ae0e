package queries

import (
	"context"
	"log/slog"

	application "merkledrop/contexts/settlement/vault-service/application"
	domainerrors "merkledrop/contexts/settlement/vault-service/domain/errors"
	"merkledrop/contexts/settlement/vault-service/ports"
	"merkledrop/internal/shared/chain"
	"merkledrop/internal/shared/merkle"
)

type EligibilityQuery struct {
	Root        chain.Digest
	Recipient   chain.Address
	Amount      uint64
	ReleaseTime uint64
	Proof       []chain.Digest
}

type CheckEligibilityUseCase struct {
	Repository ports.Repository
	Clock      ports.Clock
	Logger     *slog.Logger
}

// Execute runs the five eligibility checks in order: active deposit, proof
// membership, claimed flag, release time (inclusive boundary), balance.
// Read-only; callers that mutate must not trust a prior result and re-run
// these checks themselves.
func (uc CheckEligibilityUseCase) Execute(ctx context.Context, query EligibilityQuery) error {
	logger := application.ResolveLogger(uc.Logger)

	deposit, err := uc.Repository.GetDeposit(ctx, query.Root)
	if err != nil {
		return err
	}

	leaf := merkle.LeafHash(query.Recipient, query.Amount, query.ReleaseTime)
	if !merkle.VerifyProof(leaf, query.Proof, query.Root) {
		logger.Warn("eligibility proof rejected",
			"event", "vault_eligibility_proof_rejected",
			"module", "settlement/vault-service",
			"layer", "application",
			"root", query.Root.Hex(),
			"recipient", query.Recipient.Hex(),
			"release_time", query.ReleaseTime,
		)
		return domainerrors.ErrProofInvalid
	}

	claimed, err := uc.Repository.HasWithdrawn(ctx, query.Root, query.Recipient, query.ReleaseTime)
	if err != nil {
		return err
	}
	if claimed {
		return domainerrors.ErrAlreadyClaimed
	}

	now := uint64(uc.Clock.Now().UTC().Unix())
	if now < query.ReleaseTime {
		return domainerrors.ErrNotYetReleasable
	}

	if deposit.RemainingAmount < query.Amount {
		return domainerrors.ErrInsufficientBalance
	}
	return nil
}
