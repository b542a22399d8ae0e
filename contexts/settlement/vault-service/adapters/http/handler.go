package httpadapter

import (
	"context"
	"log/slog"

	"merkledrop/contexts/settlement/vault-service/application/commands"
	"merkledrop/contexts/settlement/vault-service/application/queries"
	"merkledrop/contexts/settlement/vault-service/domain/entities"
	domainerrors "merkledrop/contexts/settlement/vault-service/domain/errors"
	httptransport "merkledrop/contexts/settlement/vault-service/transport/http"
	"merkledrop/internal/shared/chain"
)

// Handler maps HTTP DTOs to vault commands/queries. DTO parsing failures
// surface as ErrInvalidInput so the platform layer maps them to 400s.
type Handler struct {
	Commands    commands.UseCase
	Deposits    queries.DepositQueries
	Config      queries.ConfigQueries
	Eligibility queries.CheckEligibilityUseCase
	Logger      *slog.Logger
}

func (h Handler) CreateDepositHandler(
	ctx context.Context,
	request httptransport.CreateDepositRequest,
) (httptransport.DepositResponse, error) {
	root, err := chain.ParseDigest(request.Root)
	if err != nil {
		return httptransport.DepositResponse{}, domainerrors.ErrInvalidInput
	}
	depositor, err := chain.ParseAddress(request.Depositor)
	if err != nil {
		return httptransport.DepositResponse{}, domainerrors.ErrInvalidInput
	}
	deposit, err := h.Commands.CreateDeposit(ctx, commands.CreateDepositCommand{
		Root:          root,
		Depositor:     depositor,
		Value:         request.Value,
		DeclaredTotal: request.DeclaredTotal,
	})
	if err != nil {
		return httptransport.DepositResponse{}, err
	}
	return depositToResponse(deposit), nil
}

func (h Handler) GetDepositHandler(
	ctx context.Context,
	rootRaw string,
) (httptransport.DepositResponse, error) {
	root, err := chain.ParseDigest(rootRaw)
	if err != nil {
		return httptransport.DepositResponse{}, domainerrors.ErrInvalidInput
	}
	deposit, err := h.Deposits.GetDeposit(ctx, root)
	if err != nil {
		return httptransport.DepositResponse{}, err
	}
	return depositToResponse(deposit), nil
}

func (h Handler) GetConfigHandler(ctx context.Context) (httptransport.ConfigResponse, error) {
	feeConfig, err := h.Config.FeeConfig(ctx)
	if err != nil {
		return httptransport.ConfigResponse{}, err
	}
	paused, err := h.Config.Paused(ctx)
	if err != nil {
		return httptransport.ConfigResponse{}, err
	}
	return httptransport.ConfigResponse{
		FeeRateBps:   feeConfig.RateBps,
		FeeRecipient: feeConfig.Recipient.Hex(),
		Paused:       paused,
	}, nil
}

func (h Handler) HasWithdrawnHandler(
	ctx context.Context,
	rootRaw string,
	recipientRaw string,
	releaseTime uint64,
) (httptransport.HasWithdrawnResponse, error) {
	root, err := chain.ParseDigest(rootRaw)
	if err != nil {
		return httptransport.HasWithdrawnResponse{}, domainerrors.ErrInvalidInput
	}
	recipient, err := chain.ParseAddress(recipientRaw)
	if err != nil {
		return httptransport.HasWithdrawnResponse{}, domainerrors.ErrInvalidInput
	}
	withdrawn, err := h.Deposits.HasWithdrawn(ctx, root, recipient, releaseTime)
	if err != nil {
		return httptransport.HasWithdrawnResponse{}, err
	}
	return httptransport.HasWithdrawnResponse{
		Root:        root.Hex(),
		Recipient:   recipient.Hex(),
		ReleaseTime: releaseTime,
		Withdrawn:   withdrawn,
	}, nil
}

// CheckEligibilityHandler distinguishes "not eligible yet" outcomes from
// transport errors: the five domain rejections come back as a response with
// Eligible=false plus the error for status mapping.
func (h Handler) CheckEligibilityHandler(
	ctx context.Context,
	request httptransport.EligibilityRequest,
) (httptransport.EligibilityResponse, error) {
	query, err := parseEligibility(request.Root, request.Recipient, request.Amount, request.ReleaseTime, request.Proof)
	if err != nil {
		return httptransport.EligibilityResponse{}, err
	}
	if err := h.Eligibility.Execute(ctx, query); err != nil {
		return httptransport.EligibilityResponse{Eligible: false}, err
	}
	return httptransport.EligibilityResponse{Eligible: true}, nil
}

func (h Handler) ExecuteWithdrawalHandler(
	ctx context.Context,
	callerRaw string,
	request httptransport.ExecuteWithdrawalRequest,
) error {
	caller, err := chain.ParseAddress(callerRaw)
	if err != nil {
		return domainerrors.ErrUnauthorized
	}
	query, err := parseEligibility(request.Root, request.Recipient, request.Amount, request.ReleaseTime, request.Proof)
	if err != nil {
		return err
	}
	return h.Commands.ExecuteWithdrawal(ctx, commands.ExecuteWithdrawalCommand{
		Root:        query.Root,
		Recipient:   query.Recipient,
		Amount:      query.Amount,
		ReleaseTime: query.ReleaseTime,
		Proof:       query.Proof,
		Caller:      caller,
	})
}

func (h Handler) EmergencyWithdrawHandler(ctx context.Context, callerRaw string, rootRaw string) error {
	caller, err := chain.ParseAddress(callerRaw)
	if err != nil {
		return domainerrors.ErrUnauthorized
	}
	root, err := chain.ParseDigest(rootRaw)
	if err != nil {
		return domainerrors.ErrInvalidInput
	}
	return h.Commands.EmergencyWithdraw(ctx, root, caller)
}

func (h Handler) DeleteDepositHandler(ctx context.Context, callerRaw string, rootRaw string) error {
	caller, err := chain.ParseAddress(callerRaw)
	if err != nil {
		return domainerrors.ErrUnauthorized
	}
	root, err := chain.ParseDigest(rootRaw)
	if err != nil {
		return domainerrors.ErrInvalidInput
	}
	return h.Commands.DeleteDeposit(ctx, root, caller)
}

func (h Handler) SetFeeRateHandler(
	ctx context.Context,
	callerRaw string,
	request httptransport.SetFeeRateRequest,
) error {
	caller, err := chain.ParseAddress(callerRaw)
	if err != nil {
		return domainerrors.ErrUnauthorized
	}
	return h.Commands.SetFeeRate(ctx, request.RateBps, caller)
}

func (h Handler) SetFeeRecipientHandler(
	ctx context.Context,
	callerRaw string,
	request httptransport.SetFeeRecipientRequest,
) error {
	caller, err := chain.ParseAddress(callerRaw)
	if err != nil {
		return domainerrors.ErrUnauthorized
	}
	recipient, err := chain.ParseAddress(request.Recipient)
	if err != nil {
		return domainerrors.ErrInvalidInput
	}
	return h.Commands.SetFeeRecipient(ctx, recipient, caller)
}

func (h Handler) SetPausedHandler(
	ctx context.Context,
	callerRaw string,
	request httptransport.SetPausedRequest,
) error {
	caller, err := chain.ParseAddress(callerRaw)
	if err != nil {
		return domainerrors.ErrUnauthorized
	}
	return h.Commands.SetPaused(ctx, request.Paused, caller)
}

func (h Handler) GrantRoleHandler(
	ctx context.Context,
	callerRaw string,
	request httptransport.RoleRequest,
) error {
	caller, principal, role, err := parseRoleRequest(callerRaw, request)
	if err != nil {
		return err
	}
	return h.Commands.GrantRole(ctx, principal, role, caller)
}

func (h Handler) RevokeRoleHandler(
	ctx context.Context,
	callerRaw string,
	request httptransport.RoleRequest,
) error {
	caller, principal, role, err := parseRoleRequest(callerRaw, request)
	if err != nil {
		return err
	}
	return h.Commands.RevokeRole(ctx, principal, role, caller)
}

func parseRoleRequest(
	callerRaw string,
	request httptransport.RoleRequest,
) (chain.Address, chain.Address, entities.Role, error) {
	caller, err := chain.ParseAddress(callerRaw)
	if err != nil {
		return chain.Address{}, chain.Address{}, "", domainerrors.ErrUnauthorized
	}
	principal, err := chain.ParseAddress(request.Principal)
	if err != nil {
		return chain.Address{}, chain.Address{}, "", domainerrors.ErrInvalidInput
	}
	role := entities.Role(request.Role)
	if role != entities.RoleOwner && role != entities.RoleAdmin {
		return chain.Address{}, chain.Address{}, "", domainerrors.ErrInvalidInput
	}
	return caller, principal, role, nil
}

func parseEligibility(
	rootRaw string,
	recipientRaw string,
	amount uint64,
	releaseTime uint64,
	proofRaw []string,
) (queries.EligibilityQuery, error) {
	root, err := chain.ParseDigest(rootRaw)
	if err != nil {
		return queries.EligibilityQuery{}, domainerrors.ErrInvalidInput
	}
	recipient, err := chain.ParseAddress(recipientRaw)
	if err != nil {
		return queries.EligibilityQuery{}, domainerrors.ErrInvalidInput
	}
	proof := make([]chain.Digest, 0, len(proofRaw))
	for _, sibling := range proofRaw {
		digest, err := chain.ParseDigest(sibling)
		if err != nil {
			return queries.EligibilityQuery{}, domainerrors.ErrInvalidInput
		}
		proof = append(proof, digest)
	}
	return queries.EligibilityQuery{
		Root:        root,
		Recipient:   recipient,
		Amount:      amount,
		ReleaseTime: releaseTime,
		Proof:       proof,
	}, nil
}

func depositToResponse(deposit entities.Deposit) httptransport.DepositResponse {
	return httptransport.DepositResponse{
		Root:            deposit.Root.Hex(),
		Depositor:       deposit.Depositor.Hex(),
		RemainingAmount: deposit.RemainingAmount,
	}
}
