package ports

import (
	"context"
	"time"

	"merkledrop/contexts/commitment/builder-service/domain/entities"
	"merkledrop/internal/shared/chain"
)

// ArtifactRepository persists one artifact per root. CreateArtifact is
// write-once: an existing root must be rejected, never overwritten.
type ArtifactRepository interface {
	CreateArtifact(ctx context.Context, artifact entities.Artifact) error
	GetArtifact(ctx context.Context, root chain.Digest) (entities.Artifact, error)
}

// FeeRateSource reads the vault's live fee rate so leaves carry net amounts.
type FeeRateSource interface {
	CurrentFeeRateBps(ctx context.Context) (uint64, error)
}

type Clock interface {
	Now() time.Time
}
