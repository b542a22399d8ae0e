package httpadapter

import (
	"context"
	"log/slog"
	"time"

	application "merkledrop/contexts/commitment/builder-service/application"
	"merkledrop/contexts/commitment/builder-service/application/commands"
	"merkledrop/contexts/commitment/builder-service/application/queries"
	"merkledrop/contexts/commitment/builder-service/domain/entities"
	domainerrors "merkledrop/contexts/commitment/builder-service/domain/errors"
	httptransport "merkledrop/contexts/commitment/builder-service/transport/http"
	"merkledrop/internal/shared/chain"
)

// Handler maps HTTP DTOs to application commands/queries.
type Handler struct {
	Commands commands.UseCase
	Queries  queries.UseCase
	Logger   *slog.Logger
}

// BuildCommitmentHandler validates the wire request and runs the build.
func (h Handler) BuildCommitmentHandler(
	ctx context.Context,
	request httptransport.BuildCommitmentRequest,
) (httptransport.BuildCommitmentResponse, error) {
	logger := application.ResolveLogger(h.Logger)

	depositor, err := chain.ParseAddress(request.UserAddress)
	if err != nil {
		return httptransport.BuildCommitmentResponse{}, domainerrors.ErrInvalidRecipient
	}
	recipients := make([]entities.Recipient, 0, len(request.Wallets))
	for _, wallet := range request.Wallets {
		account, err := chain.ParseAddress(wallet.Address)
		if err != nil {
			return httptransport.BuildCommitmentResponse{}, domainerrors.ErrInvalidRecipient
		}
		recipients = append(recipients, entities.Recipient{
			Account:     account,
			Amount:      wallet.Amount,
			ReleaseTime: wallet.Date,
		})
	}

	artifact, err := h.Commands.BuildCommitment(ctx, commands.BuildCommitmentCommand{
		Depositor:  depositor,
		Recipients: recipients,
	})
	if err != nil {
		logger.Warn("http commitment build failed",
			"event", "commitment_http_build_failed",
			"module", "commitment/builder-service",
			"layer", "transport",
			"depositor", request.UserAddress,
			"wallet_count", len(request.Wallets),
			"error", err.Error(),
		)
		return httptransport.BuildCommitmentResponse{}, err
	}
	return httptransport.BuildCommitmentResponse{
		DepositID:     artifact.Root.Hex(),
		DepositAmount: artifact.TotalGrossAmount,
	}, nil
}

// GetArtifactHandler returns the stored artifact for a root.
func (h Handler) GetArtifactHandler(
	ctx context.Context,
	rootRaw string,
) (httptransport.ArtifactResponse, error) {
	root, err := chain.ParseDigest(rootRaw)
	if err != nil {
		return httptransport.ArtifactResponse{}, domainerrors.ErrArtifactNotFound
	}
	artifact, err := h.Queries.GetArtifact(ctx, root)
	if err != nil {
		return httptransport.ArtifactResponse{}, err
	}

	proofs := make([]httptransport.RecipientProofDTO, 0, len(artifact.Proofs))
	for _, proof := range artifact.Proofs {
		siblings := make([]string, 0, len(proof.Proof))
		for _, sibling := range proof.Proof {
			siblings = append(siblings, sibling.Hex())
		}
		proofs = append(proofs, httptransport.RecipientProofDTO{
			Account:     proof.Account.Hex(),
			Amount:      proof.Amount,
			ReleaseTime: proof.ReleaseTime,
			Proof:       siblings,
		})
	}
	return httptransport.ArtifactResponse{
		Root:             artifact.Root.Hex(),
		Proofs:           proofs,
		TotalGrossAmount: artifact.TotalGrossAmount,
		FeeRateBps:       artifact.FeeRateBps,
		CreatedAt:        artifact.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}
