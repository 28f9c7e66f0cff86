package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/featureplane/feature-engine/pkg/apperrors"
	"github.com/featureplane/feature-engine/pkg/cache"
	"github.com/featureplane/feature-engine/pkg/models"
)

func newTestVectorService(store *fakeStore, vc cache.VectorCache) VectorService {
	return NewVectorService(
		&fakeFeatureRepo{store: store},
		&fakeVersionRepo{store: store},
		&fakeValueRepo{store: store},
		vc,
		zap.NewNop(),
	)
}

// seedFeature stores a feature with one version per (label, status) and the
// given per-entity values, returning the feature.
func seedFeature(t *testing.T, store *fakeStore, name string) *models.Feature {
	t.Helper()
	repo := &fakeFeatureRepo{store: store}
	feature := &models.Feature{Name: name, FeatureType: models.FeatureTypeNumeric}
	require.NoError(t, repo.Create(context.Background(), feature))
	return feature
}

func seedVersion(t *testing.T, store *fakeStore, feature *models.Feature, label, status string, values map[string]string) *models.FeatureVersion {
	t.Helper()
	repo := &fakeVersionRepo{store: store}
	version := &models.FeatureVersion{FeatureID: feature.ID, Version: label, Status: models.VersionStatusActive}
	var rows []*models.FeatureValue
	for entity, value := range values {
		rows = append(rows, &models.FeatureValue{EntityID: entity, Value: value})
	}
	require.NoError(t, repo.CreateWithValues(context.Background(), version, rows))
	version.Status = status
	return version
}

func TestResolveLatestPerFeature(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	spend := seedFeature(t, store, "total_spend")
	seedVersion(t, store, spend, "v1", models.VersionStatusActive, map[string]string{"alice": "10"})
	seedVersion(t, store, spend, "v2", models.VersionStatusActive, map[string]string{"alice": "25"})

	sessions := seedFeature(t, store, "session_count")
	seedVersion(t, store, sessions, "v1", models.VersionStatusActive, map[string]string{"alice": "3"})

	svc := newTestVectorService(store, cache.NewMemoryCache(10, time.Minute))

	// Latest is per feature: total_spend resolves v2 while session_count
	// stays on its own v1.
	vector, err := svc.Resolve(ctx, "alice", nil, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"total_spend": 25.0, "session_count": 3.0}, vector)
}

func TestResolveLatestSkipsInactiveVersions(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	spend := seedFeature(t, store, "total_spend")
	seedVersion(t, store, spend, "v1", models.VersionStatusActive, map[string]string{"alice": "10"})
	seedVersion(t, store, spend, "v2", models.VersionStatusDeprecated, map[string]string{"alice": "99"})

	svc := newTestVectorService(store, cache.NewMemoryCache(10, time.Minute))

	vector, err := svc.Resolve(ctx, "alice", nil, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"total_spend": 10.0}, vector)
}

func TestResolveExplicitVersion(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	spend := seedFeature(t, store, "total_spend")
	seedVersion(t, store, spend, "v1", models.VersionStatusActive, map[string]string{"alice": "10"})
	seedVersion(t, store, spend, "v2", models.VersionStatusActive, map[string]string{"alice": "25"})

	svc := newTestVectorService(store, cache.NewMemoryCache(10, time.Minute))

	vector, err := svc.Resolve(ctx, "alice", nil, "v1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"total_spend": 10.0}, vector)

	t.Run("unknown version label", func(t *testing.T) {
		_, err := svc.Resolve(ctx, "alice", nil, "v9")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestResolveSilentOmission(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	spend := seedFeature(t, store, "total_spend")
	seedVersion(t, store, spend, "v1", models.VersionStatusActive, map[string]string{"alice": "10"})

	// No version at all for this feature.
	seedFeature(t, store, "session_count")

	svc := newTestVectorService(store, cache.NewMemoryCache(10, time.Minute))

	vector, err := svc.Resolve(ctx, "alice", []string{"total_spend", "session_count"}, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"total_spend": 10.0}, vector, "unresolvable features are omitted, not errored")
}

func TestResolveNoResolvableValues(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	spend := seedFeature(t, store, "total_spend")
	seedVersion(t, store, spend, "v1", models.VersionStatusActive, map[string]string{"alice": "10"})

	svc := newTestVectorService(store, cache.NewMemoryCache(10, time.Minute))

	_, err := svc.Resolve(ctx, "nobody", nil, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestResolveDecodesStoredValues(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	numeric := seedFeature(t, store, "score")
	seedVersion(t, store, numeric, "v1", models.VersionStatusActive, map[string]string{"alice": "42"})

	text := seedFeature(t, store, "segment")
	seedVersion(t, store, text, "v1", models.VersionStatusActive, map[string]string{"alice": "premium"})

	composite := seedFeature(t, store, "attrs")
	seedVersion(t, store, composite, "v1", models.VersionStatusActive, map[string]string{"alice": `{"tier":1}`})

	svc := newTestVectorService(store, cache.NewMemoryCache(10, time.Minute))

	vector, err := svc.Resolve(ctx, "alice", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 42.0, vector["score"])
	assert.Equal(t, "premium", vector["segment"])
	assert.Equal(t, map[string]any{"tier": 1.0}, vector["attrs"])
}

func TestResolveServesCachedVectorWithoutFreshnessCheck(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	spend := seedFeature(t, store, "total_spend")
	seedVersion(t, store, spend, "v1", models.VersionStatusActive, map[string]string{"alice": "10"})

	svc := newTestVectorService(store, cache.NewMemoryCache(10, time.Minute))

	first, err := svc.Resolve(ctx, "alice", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 10.0, first["total_spend"])

	// A newer version lands; the cached vector keeps serving until TTL.
	seedVersion(t, store, spend, "v2", models.VersionStatusActive, map[string]string{"alice": "25"})

	second, err := svc.Resolve(ctx, "alice", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 10.0, second["total_spend"])

	// A differently-shaped request is a different cache entry and sees the
	// new version immediately.
	narrowed, err := svc.Resolve(ctx, "alice", []string{"total_spend"}, "")
	require.NoError(t, err)
	assert.Equal(t, 25.0, narrowed["total_spend"])
}

func TestResolveCacheKeyIgnoresNameOrder(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()

	spend := seedFeature(t, store, "total_spend")
	seedVersion(t, store, spend, "v1", models.VersionStatusActive, map[string]string{"alice": "10"})
	sessions := seedFeature(t, store, "session_count")
	seedVersion(t, store, sessions, "v1", models.VersionStatusActive, map[string]string{"alice": "3"})

	svc := newTestVectorService(store, cache.NewMemoryCache(10, time.Minute))

	_, err := svc.Resolve(ctx, "alice", []string{"total_spend", "session_count"}, "")
	require.NoError(t, err)

	// Mutate the store; a reordered request must still hit the cache.
	seedVersion(t, store, spend, "v2", models.VersionStatusActive, map[string]string{"alice": "99"})

	vector, err := svc.Resolve(ctx, "alice", []string{"session_count", "total_spend"}, "")
	require.NoError(t, err)
	assert.Equal(t, 10.0, vector["total_spend"])
}
