package postgresadapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"merkledrop/contexts/settlement/vault-service/ports"
	"merkledrop/internal/shared/chain"
)

// Treasury journals value movements. Each transfer appends one immutable
// credit row; downstream settlement reads the journal.
type Treasury struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewTreasury(db *gorm.DB, logger *slog.Logger) *Treasury {
	return &Treasury{db: db, logger: logger}
}

var _ ports.Treasury = (*Treasury)(nil)

func (t *Treasury) Transfer(ctx context.Context, to chain.Address, amount uint64) error {
	row := treasuryTransferModel{
		ID:        uuid.NewString(),
		Recipient: to.Hex(),
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if t.logger != nil {
			t.logger.Error("treasury transfer failed",
				"event", "treasury_transfer_failed",
				"module", "contexts/settlement/vault-service",
				"layer", "adapters/postgres",
				"recipient", to.Hex(),
				"amount", amount,
				"error", err.Error(),
			)
		}
		return fmt.Errorf("insert treasury transfer: %w", err)
	}
	return nil
}

type treasuryTransferModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Recipient string    `gorm:"column:recipient"`
	Amount    uint64    `gorm:"column:amount"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (treasuryTransferModel) TableName() string {
	return "vault_treasury_transfers"
}
