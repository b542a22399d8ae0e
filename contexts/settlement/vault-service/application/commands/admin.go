package commands

import (
	"context"

	application "merkledrop/contexts/settlement/vault-service/application"
	"merkledrop/contexts/settlement/vault-service/domain/entities"
	domainerrors "merkledrop/contexts/settlement/vault-service/domain/errors"
	"merkledrop/internal/shared/chain"
)

// Owner-gated recovery and configuration operations. Recovery stays callable
// while the vault is paused: pause halts normal flows only.

type emergencyPayload struct {
	Root      string `json:"root"`
	Depositor string `json:"depositor"`
	Amount    uint64 `json:"amount"`
}

// EmergencyWithdraw pays the deposit's full remaining balance back to its
// original depositor and removes the deposit, bypassing proof and claim
// checks.
func (uc UseCase) EmergencyWithdraw(ctx context.Context, root chain.Digest, caller chain.Address) error {
	logger := application.ResolveLogger(uc.Logger)

	if err := uc.requireRole(ctx, caller, entities.RoleOwner); err != nil {
		return err
	}
	deposit, err := uc.Repository.GetDeposit(ctx, root)
	if err != nil {
		return err
	}
	if err := uc.Repository.RemoveDeposit(ctx, root); err != nil {
		return err
	}
	if err := uc.Treasury.Transfer(ctx, deposit.Depositor, deposit.RemainingAmount); err != nil {
		// Restore the deposit so the balance is not stranded.
		if restoreErr := uc.Repository.CreateDeposit(ctx, deposit); restoreErr != nil {
			logger.Error("emergency withdraw restore failed",
				"event", "vault_emergency_restore_failed",
				"module", "settlement/vault-service",
				"layer", "application",
				"root", root.Hex(),
				"error", restoreErr.Error(),
			)
		}
		return domainerrors.ErrTransferFailed
	}

	uc.appendEvent(ctx, eventTypeDepositEmergencyOut, root, emergencyPayload{
		Root:      root.Hex(),
		Depositor: deposit.Depositor.Hex(),
		Amount:    deposit.RemainingAmount,
	})
	logger.Info("emergency withdrawal completed",
		"event", "vault_emergency_withdrawn",
		"module", "settlement/vault-service",
		"layer", "application",
		"root", root.Hex(),
		"depositor", deposit.Depositor.Hex(),
		"amount", deposit.RemainingAmount,
		"caller", caller.Hex(),
	)
	return nil
}

// DeleteDeposit removes bookkeeping for a stuck or invalid root without any
// payment.
func (uc UseCase) DeleteDeposit(ctx context.Context, root chain.Digest, caller chain.Address) error {
	if err := uc.requireRole(ctx, caller, entities.RoleOwner); err != nil {
		return err
	}
	if err := uc.Repository.RemoveDeposit(ctx, root); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("deposit deleted",
		"event", "vault_deposit_deleted",
		"module", "settlement/vault-service",
		"layer", "application",
		"root", root.Hex(),
		"caller", caller.Hex(),
	)
	return nil
}

func (uc UseCase) SetFeeRate(ctx context.Context, rateBps uint64, caller chain.Address) error {
	if err := uc.requireRole(ctx, caller, entities.RoleOwner); err != nil {
		return err
	}
	if rateBps == 0 || rateBps > entities.MaxFeeBps {
		return domainerrors.ErrInvalidFeeRate
	}
	previous, err := uc.Config.FeeConfig(ctx)
	if err != nil {
		return err
	}
	if err := uc.Config.SetFeeRate(ctx, rateBps); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("fee rate updated",
		"event", "vault_fee_rate_updated",
		"module", "settlement/vault-service",
		"layer", "application",
		"old_rate_bps", previous.RateBps,
		"new_rate_bps", rateBps,
		"caller", caller.Hex(),
	)
	return nil
}

func (uc UseCase) SetFeeRecipient(ctx context.Context, recipient chain.Address, caller chain.Address) error {
	if err := uc.requireRole(ctx, caller, entities.RoleOwner); err != nil {
		return err
	}
	if recipient.IsZero() {
		return domainerrors.ErrInvalidInput
	}
	previous, err := uc.Config.FeeConfig(ctx)
	if err != nil {
		return err
	}
	if err := uc.Config.SetFeeRecipient(ctx, recipient); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("fee recipient updated",
		"event", "vault_fee_recipient_updated",
		"module", "settlement/vault-service",
		"layer", "application",
		"old_recipient", previous.Recipient.Hex(),
		"new_recipient", recipient.Hex(),
		"caller", caller.Hex(),
	)
	return nil
}

func (uc UseCase) SetPaused(ctx context.Context, paused bool, caller chain.Address) error {
	if err := uc.requireRole(ctx, caller, entities.RoleOwner); err != nil {
		return err
	}
	previous, err := uc.Config.Paused(ctx)
	if err != nil {
		return err
	}
	if err := uc.Config.SetPaused(ctx, paused); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("pause flag updated",
		"event", "vault_pause_updated",
		"module", "settlement/vault-service",
		"layer", "application",
		"old_paused", previous,
		"new_paused", paused,
		"caller", caller.Hex(),
	)
	return nil
}

// GrantRole assigns a vault role to a principal. Owner only.
func (uc UseCase) GrantRole(ctx context.Context, principal chain.Address, role entities.Role, caller chain.Address) error {
	if err := uc.requireRole(ctx, caller, entities.RoleOwner); err != nil {
		return err
	}
	if principal.IsZero() || (role != entities.RoleOwner && role != entities.RoleAdmin) {
		return domainerrors.ErrInvalidInput
	}
	if err := uc.Roles.GrantRole(ctx, entities.RoleGrant{
		Principal: principal,
		Role:      role,
		GrantedBy: caller,
		GrantedAt: uc.now(),
	}); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("role granted",
		"event", "vault_role_granted",
		"module", "settlement/vault-service",
		"layer", "application",
		"principal", principal.Hex(),
		"role", string(role),
		"caller", caller.Hex(),
	)
	return nil
}

// RevokeRole removes a vault role from a principal. Owner only.
func (uc UseCase) RevokeRole(ctx context.Context, principal chain.Address, role entities.Role, caller chain.Address) error {
	if err := uc.requireRole(ctx, caller, entities.RoleOwner); err != nil {
		return err
	}
	if err := uc.Roles.RevokeRole(ctx, principal, role); err != nil {
		return err
	}
	application.ResolveLogger(uc.Logger).Info("role revoked",
		"event", "vault_role_revoked",
		"module", "settlement/vault-service",
		"layer", "application",
		"principal", principal.Hex(),
		"role", string(role),
		"caller", caller.Hex(),
	)
	return nil
}
