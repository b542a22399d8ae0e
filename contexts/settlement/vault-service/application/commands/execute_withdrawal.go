package commands

import (
	"context"

	application "merkledrop/contexts/settlement/vault-service/application"
	"merkledrop/contexts/settlement/vault-service/application/queries"
	"merkledrop/contexts/settlement/vault-service/domain/entities"
	domainerrors "merkledrop/contexts/settlement/vault-service/domain/errors"
	"merkledrop/internal/shared/chain"
)

type ExecuteWithdrawalCommand struct {
	Root        chain.Digest
	Recipient   chain.Address
	Amount      uint64
	ReleaseTime uint64
	Proof       []chain.Digest
	Caller      chain.Address
}

type withdrawalPayload struct {
	Root        string `json:"root"`
	Recipient   string `json:"recipient"`
	Amount      uint64 `json:"amount"`
	ReleaseTime uint64 `json:"release_time"`
	Remaining   uint64 `json:"remaining_amount"`
}

// ExecuteWithdrawal settles one leaf. It re-runs every eligibility check
// itself rather than trusting a prior external check, flips the claimed flag
// and decrements the balance atomically before attempting the value
// transfer, and compensates both writes if the transfer fails.
func (uc UseCase) ExecuteWithdrawal(ctx context.Context, cmd ExecuteWithdrawalCommand) error {
	logger := application.ResolveLogger(uc.Logger)

	if err := uc.requireRole(ctx, cmd.Caller, entities.RoleAdmin); err != nil {
		return err
	}
	paused, err := uc.Config.Paused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return domainerrors.ErrVaultPaused
	}

	if err := uc.Eligibility.Execute(ctx, queries.EligibilityQuery{
		Root:        cmd.Root,
		Recipient:   cmd.Recipient,
		Amount:      cmd.Amount,
		ReleaseTime: cmd.ReleaseTime,
		Proof:       cmd.Proof,
	}); err != nil {
		return err
	}

	// The repository re-checks claimed flag and balance under its own
	// atomicity boundary, closing the time-of-check/time-of-use gap.
	prior, err := uc.Repository.ApplyWithdrawal(ctx, cmd.Root, cmd.Recipient, cmd.ReleaseTime, cmd.Amount)
	if err != nil {
		return err
	}

	if err := uc.Treasury.Transfer(ctx, cmd.Recipient, cmd.Amount); err != nil {
		if revertErr := uc.Repository.RevertWithdrawal(ctx, prior, cmd.Recipient, cmd.ReleaseTime); revertErr != nil {
			logger.Error("withdrawal compensation failed",
				"event", "vault_withdrawal_revert_failed",
				"module", "settlement/vault-service",
				"layer", "application",
				"root", cmd.Root.Hex(),
				"recipient", cmd.Recipient.Hex(),
				"release_time", cmd.ReleaseTime,
				"error", revertErr.Error(),
			)
		}
		logger.Error("withdrawal transfer failed",
			"event", "vault_withdrawal_transfer_failed",
			"module", "settlement/vault-service",
			"layer", "application",
			"root", cmd.Root.Hex(),
			"recipient", cmd.Recipient.Hex(),
			"amount", cmd.Amount,
			"error", err.Error(),
		)
		return domainerrors.ErrTransferFailed
	}

	uc.appendEvent(ctx, eventTypeWithdrawalExecuted, cmd.Root, withdrawalPayload{
		Root:        cmd.Root.Hex(),
		Recipient:   cmd.Recipient.Hex(),
		Amount:      cmd.Amount,
		ReleaseTime: cmd.ReleaseTime,
		Remaining:   prior.RemainingAmount - cmd.Amount,
	})
	logger.Info("withdrawal executed",
		"event", "vault_withdrawal_executed",
		"module", "settlement/vault-service",
		"layer", "application",
		"root", cmd.Root.Hex(),
		"recipient", cmd.Recipient.Hex(),
		"amount", cmd.Amount,
		"release_time", cmd.ReleaseTime,
		"remaining_amount", prior.RemainingAmount-cmd.Amount,
		"caller", cmd.Caller.Hex(),
	)
	return nil
}
