package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "merkledrop/contexts/settlement/vault-service/application"
	"merkledrop/contexts/settlement/vault-service/application/queries"
	"merkledrop/contexts/settlement/vault-service/domain/entities"
	domainerrors "merkledrop/contexts/settlement/vault-service/domain/errors"
	"merkledrop/contexts/settlement/vault-service/ports"
	"merkledrop/internal/shared/chain"
)

const (
	eventTypeDepositCreated      = "vault.deposit.created"
	eventTypeWithdrawalExecuted  = "vault.withdrawal.executed"
	eventTypeDepositEmergencyOut = "vault.deposit.emergency_withdrawn"
	sourceServiceName            = "merkledrop-vault"
	eventSchemaVersion           = 1
)

type UseCase struct {
	Repository  ports.Repository
	Roles       ports.RoleStore
	Config      ports.ConfigStore
	Treasury    ports.Treasury
	Eligibility queries.CheckEligibilityUseCase
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

func (uc UseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}

// requireRole is the authorization gate run before any other validation on
// every role-gated mutator.
func (uc UseCase) requireRole(ctx context.Context, caller chain.Address, role entities.Role) error {
	held, err := uc.Roles.HasRole(ctx, caller, role)
	if err != nil {
		return err
	}
	if !held {
		application.ResolveLogger(uc.Logger).Warn("vault caller rejected",
			"event", "vault_caller_rejected",
			"module", "settlement/vault-service",
			"layer", "application",
			"caller", caller.Hex(),
			"required_role", string(role),
		)
		return domainerrors.ErrUnauthorized
	}
	return nil
}

func (uc UseCase) appendEvent(ctx context.Context, eventType string, root chain.Digest, payload any) {
	if uc.Outbox == nil {
		return
	}
	logger := application.ResolveLogger(uc.Logger)
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("vault event encode failed",
			"event", "vault_event_encode_failed",
			"module", "settlement/vault-service",
			"layer", "application",
			"event_type", eventType,
			"error", err.Error(),
		)
		return
	}
	eventID := ""
	if uc.IDGen != nil {
		if id, idErr := uc.IDGen.NewID(ctx); idErr == nil {
			eventID = id
		}
	}
	envelope := ports.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		OccurredAt:    uc.now(),
		SourceService: sourceServiceName,
		SchemaVersion: eventSchemaVersion,
		PartitionKey:  root.Hex(),
		Data:          data,
	}
	// Event emission never blocks settlement: a failed append is logged and
	// the funds-side outcome stands.
	if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
		logger.Error("vault event append failed",
			"event", "vault_event_append_failed",
			"module", "settlement/vault-service",
			"layer", "application",
			"event_type", eventType,
			"root", root.Hex(),
			"error", err.Error(),
		)
	}
}
