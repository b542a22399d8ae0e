package memory

import (
	"context"
	"sync"
	"time"

	"merkledrop/contexts/commitment/builder-service/domain/entities"
	domainerrors "merkledrop/contexts/commitment/builder-service/domain/errors"
	"merkledrop/contexts/commitment/builder-service/ports"
	"merkledrop/internal/shared/chain"
)

type Store struct {
	mu        sync.RWMutex
	artifacts map[chain.Digest]entities.Artifact

	// NowFunc lets tests pin the clock. Defaults to wall-clock UTC.
	NowFunc func() time.Time
}

func NewStore() *Store {
	return &Store{
		artifacts: make(map[chain.Digest]entities.Artifact),
	}
}

func (s *Store) CreateArtifact(_ context.Context, artifact entities.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.artifacts[artifact.Root]; exists {
		return domainerrors.ErrDuplicateCommitment
	}
	s.artifacts[artifact.Root] = artifact
	return nil
}

func (s *Store) GetArtifact(_ context.Context, root chain.Digest) (entities.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, exists := s.artifacts[root]
	if !exists {
		return entities.Artifact{}, domainerrors.ErrArtifactNotFound
	}
	return artifact, nil
}

func (s *Store) Now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

var _ ports.ArtifactRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
