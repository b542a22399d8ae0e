package ports

import (
	"context"
	"time"

	"merkledrop/contexts/settlement/vault-service/domain/entities"
	contractsv1 "merkledrop/contracts/gen/events/v1"
	"merkledrop/internal/shared/chain"
)

// Repository owns deposit and claimed-flag state. Implementations must
// serialize mutation at least per root: ApplyWithdrawal's claimed
// check-and-set plus balance decrement is one atomic unit, and two racing
// calls for the same triple can never both observe "not claimed".
type Repository interface {
	CreateDeposit(ctx context.Context, deposit entities.Deposit) error
	GetDeposit(ctx context.Context, root chain.Digest) (entities.Deposit, error)
	ActiveRootCount(ctx context.Context) (int, error)
	RootAt(ctx context.Context, index int) (chain.Digest, error)
	HasWithdrawn(ctx context.Context, root chain.Digest, recipient chain.Address, releaseTime uint64) (bool, error)

	// ApplyWithdrawal flips the claimed flag and decrements the balance,
	// removing the deposit when it reaches zero. It returns the deposit as
	// it stood before the decrement so a failed transfer can be compensated.
	ApplyWithdrawal(ctx context.Context, root chain.Digest, recipient chain.Address, releaseTime uint64, amount uint64) (entities.Deposit, error)

	// RevertWithdrawal restores the pre-withdrawal deposit and clears the
	// claimed flag. Compensating write for a failed value transfer.
	RevertWithdrawal(ctx context.Context, prior entities.Deposit, recipient chain.Address, releaseTime uint64) error

	RemoveDeposit(ctx context.Context, root chain.Digest) error
}

// RoleStore is the explicit principal-to-roles capability lookup.
type RoleStore interface {
	HasRole(ctx context.Context, principal chain.Address, role entities.Role) (bool, error)
	GrantRole(ctx context.Context, grant entities.RoleGrant) error
	RevokeRole(ctx context.Context, principal chain.Address, role entities.Role) error
}

// ConfigStore holds the fee configuration and the global pause flag.
type ConfigStore interface {
	FeeConfig(ctx context.Context) (entities.FeeConfig, error)
	SetFeeRate(ctx context.Context, rateBps uint64) error
	SetFeeRecipient(ctx context.Context, recipient chain.Address) error
	Paused(ctx context.Context) (bool, error)
	SetPaused(ctx context.Context, paused bool) error
}

// Treasury moves value out of the vault's custody. Transfers are external
// side effects: callers commit internal bookkeeping first and compensate
// when a transfer fails.
type Treasury interface {
	Transfer(ctx context.Context, to chain.Address, amount uint64) error
}

// ReleaseEntry is the watcher's read-model of one artifact leaf.
type ReleaseEntry struct {
	Recipient   chain.Address
	Amount      uint64
	ReleaseTime uint64
	Proof       []chain.Digest
}

// ArtifactSource loads the persisted release entries for a root. Backed by
// the commitment builder's artifact store.
type ArtifactSource interface {
	ReleaseEntries(ctx context.Context, root chain.Digest) ([]ReleaseEntry, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
