package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/featureplane/feature-engine/pkg/apperrors"
	"github.com/featureplane/feature-engine/pkg/cache"
	"github.com/featureplane/feature-engine/pkg/jsonutil"
	"github.com/featureplane/feature-engine/pkg/repositories"
)

// VectorService assembles per-entity feature vectors.
type VectorService interface {
	// Resolve returns the feature-name to value mapping for an entity.
	// featureNames narrows the vector when non-empty; version pins every
	// feature to one version label, otherwise each feature resolves its own
	// latest active version independently. apperrors.ErrNotFound reports an
	// entity with no resolvable value for any requested feature.
	Resolve(ctx context.Context, entityID string, featureNames []string, version string) (map[string]any, error)
}

type vectorService struct {
	featureRepo repositories.FeatureRepository
	versionRepo repositories.FeatureVersionRepository
	valueRepo   repositories.FeatureValueRepository
	cache       cache.VectorCache
	logger      *zap.Logger
}

// NewVectorService creates a new vector service.
func NewVectorService(
	featureRepo repositories.FeatureRepository,
	versionRepo repositories.FeatureVersionRepository,
	valueRepo repositories.FeatureValueRepository,
	vectorCache cache.VectorCache,
	logger *zap.Logger,
) VectorService {
	return &vectorService{
		featureRepo: featureRepo,
		versionRepo: versionRepo,
		valueRepo:   valueRepo,
		cache:       vectorCache,
		logger:      logger.Named("vectors"),
	}
}

var _ VectorService = (*vectorService)(nil)

func (s *vectorService) Resolve(ctx context.Context, entityID string, featureNames []string, version string) (map[string]any, error) {
	// Fast path: a cached vector is served as-is, with no freshness
	// re-check. Staleness is bounded by the cache TTL.
	if vector, ok := s.cache.Get(ctx, entityID, featureNames, version); ok {
		return vector, nil
	}

	var (
		vector map[string]any
		err    error
	)
	if version != "" {
		vector, err = s.resolveExplicit(ctx, entityID, featureNames, version)
	} else {
		vector, err = s.resolveLatest(ctx, entityID, featureNames)
	}
	if err != nil {
		return nil, err
	}

	if len(vector) == 0 {
		return nil, fmt.Errorf("no feature vector for entity %q: %w", entityID, apperrors.ErrNotFound)
	}

	s.cache.Set(ctx, entityID, vector, featureNames, version)

	s.logger.Debug("Resolved feature vector",
		zap.String("entity_id", entityID),
		zap.Int("features", len(vector)))
	return vector, nil
}

// resolveExplicit fetches values joined to versions carrying the requested
// label in one query.
func (s *vectorService) resolveExplicit(ctx context.Context, entityID string, featureNames []string, version string) (map[string]any, error) {
	values, err := s.valueRepo.ListForEntityByVersionLabel(ctx, entityID, version, featureNames)
	if err != nil {
		return nil, err
	}

	vector := make(map[string]any, len(values))
	for _, v := range values {
		vector[v.FeatureName] = jsonutil.DecodeValue(v.Value)
	}
	return vector, nil
}

// resolveLatest resolves each candidate feature independently: "latest" is
// per feature, not global, so two features in one vector may come from
// different version labels. Features without an active version or without a
// stored value for this entity are silently omitted.
func (s *vectorService) resolveLatest(ctx context.Context, entityID string, featureNames []string) (map[string]any, error) {
	features, err := s.featureRepo.ListByNames(ctx, featureNames)
	if err != nil {
		return nil, err
	}

	vector := make(map[string]any, len(features))
	for _, feature := range features {
		latest, err := s.versionRepo.LatestActive(ctx, feature.ID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return nil, err
		}

		value, err := s.valueRepo.ValueFor(ctx, latest.ID, entityID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return nil, err
		}

		vector[feature.Name] = jsonutil.DecodeValue(value)
	}
	return vector, nil
}
