package queries

import (
	"context"

	"merkledrop/contexts/commitment/builder-service/domain/entities"
	"merkledrop/contexts/commitment/builder-service/ports"
	"merkledrop/internal/shared/chain"
)

type UseCase struct {
	Artifacts ports.ArtifactRepository
}

// GetArtifact loads the persisted artifact for a root.
func (uc UseCase) GetArtifact(ctx context.Context, root chain.Digest) (entities.Artifact, error) {
	return uc.Artifacts.GetArtifact(ctx, root)
}
