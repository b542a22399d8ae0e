package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"merkledrop/contexts/settlement/vault-service/domain/entities"
	domainerrors "merkledrop/contexts/settlement/vault-service/domain/errors"
	"merkledrop/contexts/settlement/vault-service/ports"
	"merkledrop/internal/shared/chain"
)

type outboxRecord struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
	PublishedAt  *time.Time
}

// Store is the in-memory vault state machine. One mutex serializes every
// mutation so the claimed check-and-set plus balance decrement in
// ApplyWithdrawal is a single atomic unit.
type Store struct {
	mu sync.Mutex

	deposits  map[chain.Digest]entities.Deposit
	rootOrder []chain.Digest
	withdrawn map[string]bool
	roles     map[string]entities.RoleGrant
	feeConfig entities.FeeConfig
	paused    bool
	outbox    map[string]outboxRecord

	// NowFunc lets tests pin the clock. Defaults to wall-clock UTC.
	NowFunc func() time.Time
}

// NewStore seeds the default grantor as Owner and applies the initial fee
// configuration.
func NewStore(owner chain.Address, feeConfig entities.FeeConfig) *Store {
	store := &Store{
		deposits:  make(map[chain.Digest]entities.Deposit),
		withdrawn: make(map[string]bool),
		roles:     make(map[string]entities.RoleGrant),
		feeConfig: feeConfig,
		outbox:    make(map[string]outboxRecord),
	}
	if !owner.IsZero() {
		store.roles[roleKey(owner, entities.RoleOwner)] = entities.RoleGrant{
			Principal: owner,
			Role:      entities.RoleOwner,
			GrantedBy: owner,
			GrantedAt: store.Now(),
		}
	}
	return store
}

func (s *Store) CreateDeposit(_ context.Context, deposit entities.Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deposits[deposit.Root]; exists {
		return domainerrors.ErrDuplicateDeposit
	}
	s.deposits[deposit.Root] = deposit
	s.rootOrder = append(s.rootOrder, deposit.Root)
	return nil
}

func (s *Store) GetDeposit(_ context.Context, root chain.Digest) (entities.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deposit, exists := s.deposits[root]
	if !exists {
		return entities.Deposit{}, domainerrors.ErrDepositNotFound
	}
	return deposit, nil
}

func (s *Store) ActiveRootCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rootOrder), nil
}

func (s *Store) RootAt(_ context.Context, index int) (chain.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.rootOrder) {
		return chain.Digest{}, domainerrors.ErrDepositNotFound
	}
	return s.rootOrder[index], nil
}

func (s *Store) HasWithdrawn(
	_ context.Context,
	root chain.Digest,
	recipient chain.Address,
	releaseTime uint64,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withdrawn[entities.WithdrawalKey(root, recipient, releaseTime)], nil
}

func (s *Store) ApplyWithdrawal(
	_ context.Context,
	root chain.Digest,
	recipient chain.Address,
	releaseTime uint64,
	amount uint64,
) (entities.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deposit, exists := s.deposits[root]
	if !exists {
		return entities.Deposit{}, domainerrors.ErrDepositNotFound
	}
	key := entities.WithdrawalKey(root, recipient, releaseTime)
	if s.withdrawn[key] {
		return entities.Deposit{}, domainerrors.ErrAlreadyClaimed
	}
	if deposit.RemainingAmount < amount {
		return entities.Deposit{}, domainerrors.ErrInsufficientBalance
	}

	s.withdrawn[key] = true
	remaining := deposit.RemainingAmount - amount
	if remaining == 0 {
		delete(s.deposits, root)
		s.dropRoot(root)
	} else {
		updated := deposit
		updated.RemainingAmount = remaining
		s.deposits[root] = updated
	}
	return deposit, nil
}

func (s *Store) RevertWithdrawal(
	_ context.Context,
	prior entities.Deposit,
	recipient chain.Address,
	releaseTime uint64,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entities.WithdrawalKey(prior.Root, recipient, releaseTime)
	delete(s.withdrawn, key)
	if _, exists := s.deposits[prior.Root]; !exists {
		s.rootOrder = append(s.rootOrder, prior.Root)
	}
	s.deposits[prior.Root] = prior
	return nil
}

func (s *Store) RemoveDeposit(_ context.Context, root chain.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deposits[root]; !exists {
		return domainerrors.ErrDepositNotFound
	}
	delete(s.deposits, root)
	s.dropRoot(root)
	return nil
}

func (s *Store) dropRoot(root chain.Digest) {
	for i, candidate := range s.rootOrder {
		if candidate == root {
			s.rootOrder = append(s.rootOrder[:i], s.rootOrder[i+1:]...)
			return
		}
	}
}

func (s *Store) HasRole(_ context.Context, principal chain.Address, role entities.Role) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, held := s.roles[roleKey(principal, role)]
	return held, nil
}

func (s *Store) GrantRole(_ context.Context, grant entities.RoleGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roles[roleKey(grant.Principal, grant.Role)] = grant
	return nil
}

func (s *Store) RevokeRole(_ context.Context, principal chain.Address, role entities.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.roles, roleKey(principal, role))
	return nil
}

func (s *Store) FeeConfig(_ context.Context) (entities.FeeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeConfig, nil
}

func (s *Store) SetFeeRate(_ context.Context, rateBps uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeConfig.RateBps = rateBps
	return nil
}

func (s *Store) SetFeeRecipient(_ context.Context, recipient chain.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeConfig.Recipient = recipient
	return nil
}

func (s *Store) Paused(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused, nil
}

func (s *Store) SetPaused(_ context.Context, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := envelope.EventID
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return nil
	}
	s.outbox[outboxID] = outboxRecord{
		OutboxID:     outboxID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.PublishedAt == nil {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[outboxID]
	if !ok {
		return domainerrors.ErrInvalidInput
	}
	timestamp := publishedAt.UTC()
	row.PublishedAt = &timestamp
	s.outbox[outboxID] = row
	return nil
}

func (s *Store) Now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func roleKey(principal chain.Address, role entities.Role) string {
	return principal.Hex() + "|" + string(role)
}

var _ ports.Repository = (*Store)(nil)
var _ ports.RoleStore = (*Store)(nil)
var _ ports.ConfigStore = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
