package commands

import (
	"context"

	application "merkledrop/contexts/settlement/vault-service/application"
	"merkledrop/contexts/settlement/vault-service/domain/entities"
	domainerrors "merkledrop/contexts/settlement/vault-service/domain/errors"
	"merkledrop/internal/shared/chain"
)

type CreateDepositCommand struct {
	Root      chain.Digest
	Depositor chain.Address
	Value     uint64

	// DeclaredTotal, when non-zero, is the sum of net leaf amounts the
	// root's artifact promises. The net deposit must cover it so later
	// legitimate claims cannot starve on processing order.
	DeclaredTotal uint64
}

type createDepositPayload struct {
	Root      string `json:"root"`
	Depositor string `json:"depositor"`
	Gross     uint64 `json:"gross_amount"`
	Fee       uint64 `json:"fee_amount"`
	Net       uint64 `json:"net_amount"`
}

// CreateDeposit registers value under a commitment root. The fee transfer
// and the deposit insertion are one atomic unit: a failed transfer leaves no
// deposit registered.
func (uc UseCase) CreateDeposit(ctx context.Context, cmd CreateDepositCommand) (entities.Deposit, error) {
	logger := application.ResolveLogger(uc.Logger)

	paused, err := uc.Config.Paused(ctx)
	if err != nil {
		return entities.Deposit{}, err
	}
	if paused {
		return entities.Deposit{}, domainerrors.ErrVaultPaused
	}
	if cmd.Value == 0 || cmd.Root.IsZero() || cmd.Depositor.IsZero() {
		return entities.Deposit{}, domainerrors.ErrInvalidInput
	}

	feeConfig, err := uc.Config.FeeConfig(ctx)
	if err != nil {
		return entities.Deposit{}, err
	}
	fee := entities.FeeFor(cmd.Value, feeConfig.RateBps)
	net := cmd.Value - fee
	if cmd.DeclaredTotal > 0 && net < cmd.DeclaredTotal {
		logger.Warn("deposit declared total exceeds net value",
			"event", "vault_deposit_declared_total_rejected",
			"module", "settlement/vault-service",
			"layer", "application",
			"root", cmd.Root.Hex(),
			"net_amount", net,
			"declared_total", cmd.DeclaredTotal,
		)
		return entities.Deposit{}, domainerrors.ErrInvalidInput
	}

	deposit := entities.Deposit{
		Root:            cmd.Root,
		Depositor:       cmd.Depositor,
		RemainingAmount: net,
	}
	if err := uc.Repository.CreateDeposit(ctx, deposit); err != nil {
		return entities.Deposit{}, err
	}

	if fee > 0 {
		if err := uc.Treasury.Transfer(ctx, feeConfig.Recipient, fee); err != nil {
			// Unwind the insertion so no deposit is left registered.
			if removeErr := uc.Repository.RemoveDeposit(ctx, cmd.Root); removeErr != nil {
				logger.Error("deposit rollback failed after fee transfer",
					"event", "vault_deposit_rollback_failed",
					"module", "settlement/vault-service",
					"layer", "application",
					"root", cmd.Root.Hex(),
					"error", removeErr.Error(),
				)
			}
			logger.Error("deposit fee transfer failed",
				"event", "vault_deposit_fee_transfer_failed",
				"module", "settlement/vault-service",
				"layer", "application",
				"root", cmd.Root.Hex(),
				"fee_recipient", feeConfig.Recipient.Hex(),
				"fee_amount", fee,
				"error", err.Error(),
			)
			return entities.Deposit{}, domainerrors.ErrTransferFailed
		}
	}

	uc.appendEvent(ctx, eventTypeDepositCreated, cmd.Root, createDepositPayload{
		Root:      cmd.Root.Hex(),
		Depositor: cmd.Depositor.Hex(),
		Gross:     cmd.Value,
		Fee:       fee,
		Net:       net,
	})
	logger.Info("deposit created",
		"event", "vault_deposit_created",
		"module", "settlement/vault-service",
		"layer", "application",
		"root", cmd.Root.Hex(),
		"depositor", cmd.Depositor.Hex(),
		"gross_amount", cmd.Value,
		"fee_amount", fee,
		"net_amount", net,
	)
	return deposit, nil
}
