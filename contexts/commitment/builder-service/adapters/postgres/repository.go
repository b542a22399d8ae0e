package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"merkledrop/contexts/commitment/builder-service/domain/entities"
	domainerrors "merkledrop/contexts/commitment/builder-service/domain/errors"
	"merkledrop/contexts/commitment/builder-service/ports"
	"merkledrop/internal/shared/chain"
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

func (r *Repository) CreateArtifact(ctx context.Context, artifact entities.Artifact) error {
	proofs, err := json.Marshal(artifact.Proofs)
	if err != nil {
		return r.logError("builder_repo_encode_proofs_failed", err,
			"root", artifact.Root.Hex(),
		)
	}
	row := artifactModel{
		Root:             artifact.Root.Hex(),
		Proofs:           proofs,
		TotalGrossAmount: artifact.TotalGrossAmount,
		FeeRateBps:       artifact.FeeRateBps,
		CreatedAt:        artifact.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("builder_repo_create_artifact_unique_conflict",
				"root", artifact.Root.Hex(),
			)
			return domainerrors.ErrDuplicateCommitment
		}
		return r.logError("builder_repo_create_artifact_failed", err,
			"root", artifact.Root.Hex(),
		)
	}
	return nil
}

func (r *Repository) GetArtifact(ctx context.Context, root chain.Digest) (entities.Artifact, error) {
	var row artifactModel
	err := r.db.WithContext(ctx).
		Where("root = ?", root.Hex()).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Artifact{}, domainerrors.ErrArtifactNotFound
		}
		return entities.Artifact{}, r.logError("builder_repo_get_artifact_failed", err,
			"root", root.Hex(),
		)
	}

	var proofs []entities.RecipientProof
	if err := json.Unmarshal(row.Proofs, &proofs); err != nil {
		return entities.Artifact{}, r.logError("builder_repo_decode_proofs_failed", err,
			"root", root.Hex(),
		)
	}
	return entities.Artifact{
		Root:             root,
		Proofs:           proofs,
		TotalGrossAmount: row.TotalGrossAmount,
		FeeRateBps:       row.FeeRateBps,
		CreatedAt:        row.CreatedAt.UTC(),
	}, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "commitment/builder-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("builder repository operation failed", fields...)
	return err
}

func (r *Repository) logWarn(event string, attrs ...any) {
	fields := make([]any, 0, len(attrs)+5)
	fields = append(fields,
		"event", event,
		"module", "commitment/builder-service",
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	r.logger.Warn("builder repository warning", fields...)
}

type artifactModel struct {
	Root             string    `gorm:"column:root;primaryKey"`
	Proofs           []byte    `gorm:"column:proofs;type:jsonb"`
	TotalGrossAmount uint64    `gorm:"column:total_gross_amount"`
	FeeRateBps       uint64    `gorm:"column:fee_rate_bps"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (artifactModel) TableName() string {
	return "commitment_artifacts"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ArtifactRepository = (*Repository)(nil)
