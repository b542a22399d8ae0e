package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"merkledrop/contexts/settlement/vault-service/domain/entities"
	domainerrors "merkledrop/contexts/settlement/vault-service/domain/errors"
	"merkledrop/contexts/settlement/vault-service/ports"
	"merkledrop/internal/shared/chain"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
	vaultConfigRowID      = 1
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateDeposit(ctx context.Context, deposit entities.Deposit) error {
	row := depositModel{
		Root:            deposit.Root.Hex(),
		Depositor:       deposit.Depositor.Hex(),
		RemainingAmount: deposit.RemainingAmount,
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateDeposit
		}
		return r.logError("vault_repo_create_deposit_failed", err,
			"root", deposit.Root.Hex(),
		)
	}
	return nil
}

func (r *Repository) GetDeposit(ctx context.Context, root chain.Digest) (entities.Deposit, error) {
	var row depositModel
	err := r.db.WithContext(ctx).
		Where("root = ?", root.Hex()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Deposit{}, domainerrors.ErrDepositNotFound
		}
		return entities.Deposit{}, r.logError("vault_repo_get_deposit_failed", err,
			"root", root.Hex(),
		)
	}
	return depositFromModel(row)
}

func (r *Repository) ActiveRootCount(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&depositModel{}).
		Count(&count).
		Error; err != nil {
		return 0, r.logError("vault_repo_root_count_failed", err)
	}
	return int(count), nil
}

func (r *Repository) RootAt(ctx context.Context, index int) (chain.Digest, error) {
	if index < 0 {
		return chain.Digest{}, domainerrors.ErrDepositNotFound
	}
	var row depositModel
	err := r.db.WithContext(ctx).
		Order("created_at asc, root asc").
		Offset(index).
		Limit(1).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chain.Digest{}, domainerrors.ErrDepositNotFound
		}
		return chain.Digest{}, r.logError("vault_repo_root_at_failed", err,
			"index", index,
		)
	}
	return chain.ParseDigest(row.Root)
}

func (r *Repository) HasWithdrawn(
	ctx context.Context,
	root chain.Digest,
	recipient chain.Address,
	releaseTime uint64,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&withdrawalModel{}).
		Where("withdrawal_key = ?", entities.WithdrawalKey(root, recipient, releaseTime)).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("vault_repo_has_withdrawn_failed", err,
			"root", root.Hex(),
			"recipient", recipient.Hex(),
		)
	}
	return count > 0, nil
}

func (r *Repository) ApplyWithdrawal(
	ctx context.Context,
	root chain.Digest,
	recipient chain.Address,
	releaseTime uint64,
	amount uint64,
) (entities.Deposit, error) {
	var prior entities.Deposit
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row depositModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("root = ?", root.Hex()).
			First(&row).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrDepositNotFound
			}
			return err
		}
		prior, err = depositFromModel(row)
		if err != nil {
			return err
		}
		if prior.RemainingAmount < amount {
			return domainerrors.ErrInsufficientBalance
		}

		claim := withdrawalModel{
			WithdrawalKey: entities.WithdrawalKey(root, recipient, releaseTime),
			Root:          root.Hex(),
			Recipient:     recipient.Hex(),
			ReleaseTime:   releaseTime,
			ClaimedAt:     time.Now().UTC(),
		}
		if err := tx.Create(&claim).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrAlreadyClaimed
			}
			return err
		}

		remaining := prior.RemainingAmount - amount
		if remaining == 0 {
			return tx.Where("root = ?", root.Hex()).Delete(&depositModel{}).Error
		}
		return tx.Model(&depositModel{}).
			Where("root = ?", root.Hex()).
			Update("remaining_amount", remaining).
			Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrDepositNotFound) ||
			errors.Is(err, domainerrors.ErrAlreadyClaimed) ||
			errors.Is(err, domainerrors.ErrInsufficientBalance) {
			return entities.Deposit{}, err
		}
		return entities.Deposit{}, r.logError("vault_repo_apply_withdrawal_failed", err,
			"root", root.Hex(),
			"recipient", recipient.Hex(),
		)
	}
	return prior, nil
}

func (r *Repository) RevertWithdrawal(
	ctx context.Context,
	prior entities.Deposit,
	recipient chain.Address,
	releaseTime uint64,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key := entities.WithdrawalKey(prior.Root, recipient, releaseTime)
		if err := tx.Where("withdrawal_key = ?", key).Delete(&withdrawalModel{}).Error; err != nil {
			return err
		}
		row := depositModel{
			Root:            prior.Root.Hex(),
			Depositor:       prior.Depositor.Hex(),
			RemainingAmount: prior.RemainingAmount,
			CreatedAt:       time.Now().UTC(),
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "root"}},
			DoUpdates: clause.AssignmentColumns([]string{"remaining_amount"}),
		}).Create(&row).Error
	})
	if err != nil {
		return r.logError("vault_repo_revert_withdrawal_failed", err,
			"root", prior.Root.Hex(),
			"recipient", recipient.Hex(),
		)
	}
	return nil
}

func (r *Repository) RemoveDeposit(ctx context.Context, root chain.Digest) error {
	result := r.db.WithContext(ctx).
		Where("root = ?", root.Hex()).
		Delete(&depositModel{})
	if result.Error != nil {
		return r.logError("vault_repo_remove_deposit_failed", result.Error,
			"root", root.Hex(),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrDepositNotFound
	}
	return nil
}

func (r *Repository) HasRole(ctx context.Context, principal chain.Address, role entities.Role) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&roleModel{}).
		Where("principal = ?", principal.Hex()).
		Where("role = ?", string(role)).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("vault_repo_has_role_failed", err,
			"principal", principal.Hex(),
			"role", string(role),
		)
	}
	return count > 0, nil
}

func (r *Repository) GrantRole(ctx context.Context, grant entities.RoleGrant) error {
	row := roleModel{
		Principal: grant.Principal.Hex(),
		Role:      string(grant.Role),
		GrantedBy: grant.GrantedBy.Hex(),
		GrantedAt: grant.GrantedAt.UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).
		Error
	if err != nil {
		return r.logError("vault_repo_grant_role_failed", err,
			"principal", grant.Principal.Hex(),
			"role", string(grant.Role),
		)
	}
	return nil
}

func (r *Repository) RevokeRole(ctx context.Context, principal chain.Address, role entities.Role) error {
	err := r.db.WithContext(ctx).
		Where("principal = ?", principal.Hex()).
		Where("role = ?", string(role)).
		Delete(&roleModel{}).
		Error
	if err != nil {
		return r.logError("vault_repo_revoke_role_failed", err,
			"principal", principal.Hex(),
			"role", string(role),
		)
	}
	return nil
}

func (r *Repository) FeeConfig(ctx context.Context) (entities.FeeConfig, error) {
	row, err := r.configRow(ctx)
	if err != nil {
		return entities.FeeConfig{}, err
	}
	recipient, err := chain.ParseAddress(row.FeeRecipient)
	if err != nil {
		return entities.FeeConfig{}, fmt.Errorf("%w: malformed fee recipient", domainerrors.ErrStorageIO)
	}
	return entities.FeeConfig{
		RateBps:   row.FeeRateBps,
		Recipient: recipient,
	}, nil
}

func (r *Repository) SetFeeRate(ctx context.Context, rateBps uint64) error {
	return r.updateConfig(ctx, map[string]any{"fee_rate_bps": rateBps})
}

func (r *Repository) SetFeeRecipient(ctx context.Context, recipient chain.Address) error {
	return r.updateConfig(ctx, map[string]any{"fee_recipient": recipient.Hex()})
}

func (r *Repository) Paused(ctx context.Context) (bool, error) {
	row, err := r.configRow(ctx)
	if err != nil {
		return false, err
	}
	return row.Paused, nil
}

func (r *Repository) SetPaused(ctx context.Context, paused bool) error {
	return r.updateConfig(ctx, map[string]any{"paused": paused})
}

// SeedConfig installs the initial configuration row when none exists.
func (r *Repository) SeedConfig(ctx context.Context, feeConfig entities.FeeConfig) error {
	row := vaultConfigModel{
		ID:           vaultConfigRowID,
		FeeRateBps:   feeConfig.RateBps,
		FeeRecipient: feeConfig.Recipient.Hex(),
		UpdatedAt:    time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).
		Error
	if err != nil {
		return r.logError("vault_repo_seed_config_failed", err)
	}
	return nil
}

func (r *Repository) configRow(ctx context.Context) (vaultConfigModel, error) {
	var row vaultConfigModel
	err := r.db.WithContext(ctx).
		Where("id = ?", vaultConfigRowID).
		First(&row).
		Error
	if err != nil {
		return vaultConfigModel{}, r.logError("vault_repo_config_read_failed", err)
	}
	return row, nil
}

func (r *Repository) updateConfig(ctx context.Context, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	err := r.db.WithContext(ctx).
		Model(&vaultConfigModel{}).
		Where("id = ?", vaultConfigRowID).
		Updates(updates).
		Error
	if err != nil {
		return r.logError("vault_repo_config_update_failed", err)
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := marshalEnvelope(envelope)
	if err != nil {
		return err
	}
	row := vaultOutboxModel{
		OutboxID:     envelope.EventID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).
		Error
	if err != nil {
		return r.logError("vault_repo_append_outbox_failed", err,
			"event_type", envelope.EventType,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []vaultOutboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at asc").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("vault_repo_list_outbox_failed", err)
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

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	timestamp := publishedAt.UTC()
	err := r.db.WithContext(ctx).
		Model(&vaultOutboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &timestamp,
		}).
		Error
	if err != nil {
		return r.logError("vault_repo_mark_outbox_failed", err,
			"outbox_id", outboxID,
		)
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "settlement/vault-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("vault repository operation failed", fields...)
	return err
}

func depositFromModel(row depositModel) (entities.Deposit, error) {
	root, err := chain.ParseDigest(row.Root)
	if err != nil {
		return entities.Deposit{}, fmt.Errorf("%w: malformed root", domainerrors.ErrStorageIO)
	}
	depositor, err := chain.ParseAddress(row.Depositor)
	if err != nil {
		return entities.Deposit{}, fmt.Errorf("%w: malformed depositor", domainerrors.ErrStorageIO)
	}
	return entities.Deposit{
		Root:            root,
		Depositor:       depositor,
		RemainingAmount: row.RemainingAmount,
	}, nil
}

type depositModel struct {
	Root            string    `gorm:"column:root;primaryKey"`
	Depositor       string    `gorm:"column:depositor"`
	RemainingAmount uint64    `gorm:"column:remaining_amount"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (depositModel) TableName() string {
	return "vault_deposits"
}

type withdrawalModel struct {
	WithdrawalKey string    `gorm:"column:withdrawal_key;primaryKey"`
	Root          string    `gorm:"column:root"`
	Recipient     string    `gorm:"column:recipient"`
	ReleaseTime   uint64    `gorm:"column:release_time"`
	ClaimedAt     time.Time `gorm:"column:claimed_at"`
}

func (withdrawalModel) TableName() string {
	return "vault_withdrawals"
}

type roleModel struct {
	Principal string    `gorm:"column:principal;primaryKey"`
	Role      string    `gorm:"column:role;primaryKey"`
	GrantedBy string    `gorm:"column:granted_by"`
	GrantedAt time.Time `gorm:"column:granted_at"`
}

func (roleModel) TableName() string {
	return "vault_roles"
}

type vaultConfigModel struct {
	ID           int       `gorm:"column:id;primaryKey"`
	FeeRateBps   uint64    `gorm:"column:fee_rate_bps"`
	FeeRecipient string    `gorm:"column:fee_recipient"`
	Paused       bool      `gorm:"column:paused"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (vaultConfigModel) TableName() string {
	return "vault_config"
}

type vaultOutboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (vaultOutboxModel) TableName() string {
	return "vault_outbox"
}

func marshalEnvelope(envelope ports.EventEnvelope) ([]byte, error) {
	return json.Marshal(envelope)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.Repository = (*Repository)(nil)
var _ ports.RoleStore = (*Repository)(nil)
var _ ports.ConfigStore = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
