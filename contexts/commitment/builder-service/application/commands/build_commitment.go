package commands

import (
	"context"
	"errors"
	"log/slog"
	"math/bits"

	application "merkledrop/contexts/commitment/builder-service/application"
	"merkledrop/contexts/commitment/builder-service/domain/entities"
	domainerrors "merkledrop/contexts/commitment/builder-service/domain/errors"
	"merkledrop/contexts/commitment/builder-service/ports"
	"merkledrop/internal/shared/chain"
	"merkledrop/internal/shared/merkle"
)

const feeDenominatorBps = 10000

// feeOn truncates value*rateBps/10000 with the product held in 128 bits so
// full-range uint64 amounts never wrap. The quotient fits uint64 because
// rateBps never exceeds the denominator.
func feeOn(value uint64, rateBps uint64) uint64 {
	hi, lo := bits.Mul64(value, rateBps)
	fee, _ := bits.Div64(hi, lo, feeDenominatorBps)
	return fee
}

type BuildCommitmentCommand struct {
	Depositor  chain.Address
	Recipients []entities.Recipient
}

type UseCase struct {
	Artifacts ports.ArtifactRepository
	FeeRates  ports.FeeRateSource
	Clock     ports.Clock
	Logger    *slog.Logger
}

// BuildCommitment validates the recipient list, deducts the vault fee from
// every leaf, builds the sorted-pair merkle tree, and persists the artifact
// keyed by its root.
func (uc UseCase) BuildCommitment(
	ctx context.Context,
	cmd BuildCommitmentCommand,
) (entities.Artifact, error) {
	logger := application.ResolveLogger(uc.Logger)
	if len(cmd.Recipients) == 0 {
		logger.Warn("commitment build rejected",
			"event", "commitment_build_empty_list",
			"module", "commitment/builder-service",
			"layer", "application",
			"depositor", cmd.Depositor.Hex(),
		)
		return entities.Artifact{}, domainerrors.ErrEmptyRecipientList
	}
	for i, recipient := range cmd.Recipients {
		if recipient.Account.IsZero() || recipient.Amount == 0 || recipient.ReleaseTime == 0 {
			logger.Warn("commitment build rejected",
				"event", "commitment_build_invalid_recipient",
				"module", "commitment/builder-service",
				"layer", "application",
				"depositor", cmd.Depositor.Hex(),
				"index", i,
			)
			return entities.Artifact{}, domainerrors.ErrInvalidRecipient
		}
	}

	feeRateBps, err := uc.FeeRates.CurrentFeeRateBps(ctx)
	if err != nil {
		logger.Error("commitment build fee rate lookup failed",
			"event", "commitment_build_fee_rate_failed",
			"module", "commitment/builder-service",
			"layer", "application",
			"depositor", cmd.Depositor.Hex(),
			"error", err.Error(),
		)
		return entities.Artifact{}, err
	}

	// Leaves carry net amounts so vault accounting matches what is payable;
	// the depositor still registers the gross total.
	leaves := make([]chain.Digest, len(cmd.Recipients))
	proofs := make([]entities.RecipientProof, len(cmd.Recipients))
	var totalGross uint64
	for i, recipient := range cmd.Recipients {
		net := recipient.Amount - feeOn(recipient.Amount, feeRateBps)
		leaves[i] = merkle.LeafHash(recipient.Account, net, recipient.ReleaseTime)
		proofs[i] = entities.RecipientProof{
			Account:     recipient.Account,
			Amount:      net,
			ReleaseTime: recipient.ReleaseTime,
		}
		sum, carry := bits.Add64(totalGross, recipient.Amount, 0)
		if carry != 0 {
			logger.Warn("commitment build rejected",
				"event", "commitment_build_total_overflow",
				"module", "commitment/builder-service",
				"layer", "application",
				"depositor", cmd.Depositor.Hex(),
				"index", i,
			)
			return entities.Artifact{}, domainerrors.ErrInvalidRecipient
		}
		totalGross = sum
	}

	root, siblingPaths, err := merkle.BuildTree(leaves)
	if err != nil {
		return entities.Artifact{}, err
	}
	for i := range proofs {
		proofs[i].Proof = siblingPaths[i]
	}

	artifact := entities.Artifact{
		Root:             root,
		Proofs:           proofs,
		TotalGrossAmount: totalGross,
		FeeRateBps:       feeRateBps,
		CreatedAt:        uc.Clock.Now().UTC(),
	}
	if err := uc.Artifacts.CreateArtifact(ctx, artifact); err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateCommitment) {
			logger.Warn("commitment build duplicate root",
				"event", "commitment_build_duplicate_root",
				"module", "commitment/builder-service",
				"layer", "application",
				"depositor", cmd.Depositor.Hex(),
				"root", root.Hex(),
			)
			return entities.Artifact{}, err
		}
		logger.Error("commitment artifact persist failed",
			"event", "commitment_build_persist_failed",
			"module", "commitment/builder-service",
			"layer", "application",
			"depositor", cmd.Depositor.Hex(),
			"root", root.Hex(),
			"error", err.Error(),
		)
		return entities.Artifact{}, err
	}

	logger.Info("commitment built",
		"event", "commitment_built",
		"module", "commitment/builder-service",
		"layer", "application",
		"depositor", cmd.Depositor.Hex(),
		"root", root.Hex(),
		"leaf_count", len(leaves),
		"total_gross_amount", totalGross,
		"fee_rate_bps", feeRateBps,
	)
	return artifact, nil
}
