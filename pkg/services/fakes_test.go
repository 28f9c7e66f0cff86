package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/featureplane/feature-engine/pkg/apperrors"
	"github.com/featureplane/feature-engine/pkg/models"
	"github.com/featureplane/feature-engine/pkg/repositories"
)

// fakeStore is an in-memory stand-in for all four repositories, with the
// same error semantics the SQL implementations delegate to constraints.
type fakeStore struct {
	rawTables map[uuid.UUID]*models.RawTable
	features  map[uuid.UUID]*models.Feature
	versions  map[uuid.UUID]*models.FeatureVersion
	values    map[uuid.UUID]map[string]string // versionID -> entityID -> stored text

	// failValues simulates value persistence failing after the version
	// insert inside the transaction.
	failValues bool

	clock time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rawTables: make(map[uuid.UUID]*models.RawTable),
		features:  make(map[uuid.UUID]*models.Feature),
		versions:  make(map[uuid.UUID]*models.FeatureVersion),
		values:    make(map[uuid.UUID]map[string]string),
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

// ---- RawTableRepository ----

func (f *fakeStore) Create(ctx context.Context, table *models.RawTable) error {
	for _, existing := range f.rawTables {
		if existing.Name == table.Name {
			return fmt.Errorf("raw table %q: %w", table.Name, apperrors.ErrDuplicate)
		}
	}
	table.ID = uuid.New()
	table.CreatedAt = f.tick()
	f.rawTables[table.ID] = table
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.RawTable, error) {
	table, ok := f.rawTables[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return table, nil
}

func (f *fakeStore) GetByName(ctx context.Context, name string) (*models.RawTable, error) {
	for _, table := range f.rawTables {
		if table.Name == name {
			return table, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeStore) List(ctx context.Context, skip, limit int) ([]*models.RawTable, error) {
	var tables []*models.RawTable
	for _, table := range f.rawTables {
		tables = append(tables, table)
	}
	return tables, nil
}

// fakeFeatureRepo wraps fakeStore to satisfy FeatureRepository without
// method-name collisions on Create/GetByID.
type fakeFeatureRepo struct {
	store *fakeStore
}

func (f *fakeFeatureRepo) Create(ctx context.Context, feature *models.Feature) error {
	feature.ID = uuid.New()
	feature.CreatedAt = f.store.tick()
	f.store.features[feature.ID] = feature
	return nil
}

func (f *fakeFeatureRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Feature, error) {
	feature, ok := f.store.features[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return feature, nil
}

func (f *fakeFeatureRepo) List(ctx context.Context, skip, limit int) ([]*models.Feature, error) {
	return f.ListByNames(ctx, nil)
}

func (f *fakeFeatureRepo) ListByNames(ctx context.Context, names []string) ([]*models.Feature, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	var features []*models.Feature
	for _, feature := range f.store.features {
		if len(names) == 0 || wanted[feature.Name] {
			features = append(features, feature)
		}
	}
	// Stable order by creation time, matching the SQL ORDER BY
	for i := 0; i < len(features); i++ {
		for j := i + 1; j < len(features); j++ {
			if features[j].CreatedAt.Before(features[i].CreatedAt) {
				features[i], features[j] = features[j], features[i]
			}
		}
	}
	return features, nil
}

func (f *fakeFeatureRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.store.features[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.store.features, id)
	return nil
}

// fakeVersionRepo satisfies FeatureVersionRepository.
type fakeVersionRepo struct {
	store *fakeStore
}

func (f *fakeVersionRepo) CreateWithValues(ctx context.Context, version *models.FeatureVersion, values []*models.FeatureValue) error {
	for _, existing := range f.store.versions {
		if existing.FeatureID == version.FeatureID && existing.Version == version.Version {
			return fmt.Errorf("version %q for feature %s: %w", version.Version, version.FeatureID, apperrors.ErrDuplicate)
		}
	}
	if f.store.failValues {
		// Transactional: the version row does not survive a value failure.
		return fmt.Errorf("%w: copy failed", apperrors.ErrStorage)
	}

	version.ID = uuid.New()
	version.ComputedAt = f.store.tick()
	f.store.versions[version.ID] = version

	stored := make(map[string]string, len(values))
	for _, value := range values {
		value.FeatureVersionID = version.ID
		value.ComputedAt = version.ComputedAt
		stored[value.EntityID] = value.Value
	}
	f.store.values[version.ID] = stored
	return nil
}

func (f *fakeVersionRepo) ListByFeature(ctx context.Context, featureID uuid.UUID) ([]*models.FeatureVersion, error) {
	var versions []*models.FeatureVersion
	for _, version := range f.store.versions {
		if version.FeatureID == featureID {
			versions = append(versions, version)
		}
	}
	return versions, nil
}

func (f *fakeVersionRepo) LatestActive(ctx context.Context, featureID uuid.UUID) (*models.FeatureVersion, error) {
	var latest *models.FeatureVersion
	for _, version := range f.store.versions {
		if version.FeatureID != featureID || version.Status != models.VersionStatusActive {
			continue
		}
		if latest == nil || version.ComputedAt.After(latest.ComputedAt) {
			latest = version
		}
	}
	if latest == nil {
		return nil, apperrors.ErrNotFound
	}
	return latest, nil
}

func (f *fakeVersionRepo) UpdateStatus(ctx context.Context, versionID uuid.UUID, status string) error {
	version, ok := f.store.versions[versionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	version.Status = status
	return nil
}

func (f *fakeVersionRepo) Delete(ctx context.Context, versionID uuid.UUID) error {
	if _, ok := f.store.versions[versionID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.store.versions, versionID)
	delete(f.store.values, versionID)
	return nil
}

// fakeValueRepo satisfies FeatureValueRepository.
type fakeValueRepo struct {
	store *fakeStore
}

func (f *fakeValueRepo) ValueFor(ctx context.Context, versionID uuid.UUID, entityID string) (string, error) {
	value, ok := f.store.values[versionID][entityID]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return value, nil
}

func (f *fakeValueRepo) ListForEntityByVersionLabel(ctx context.Context, entityID, versionLabel string, featureNames []string) ([]repositories.EntityFeatureValue, error) {
	wanted := make(map[string]bool, len(featureNames))
	for _, name := range featureNames {
		wanted[name] = true
	}

	var out []repositories.EntityFeatureValue
	for versionID, version := range f.store.versions {
		if version.Version != versionLabel {
			continue
		}
		feature, ok := f.store.features[version.FeatureID]
		if !ok {
			continue
		}
		if len(featureNames) > 0 && !wanted[feature.Name] {
			continue
		}
		if value, ok := f.store.values[versionID][entityID]; ok {
			out = append(out, repositories.EntityFeatureValue{FeatureName: feature.Name, Value: value})
		}
	}
	return out, nil
}

var (
	_ repositories.RawTableRepository       = (*fakeStore)(nil)
	_ repositories.FeatureRepository        = (*fakeFeatureRepo)(nil)
	_ repositories.FeatureVersionRepository = (*fakeVersionRepo)(nil)
	_ repositories.FeatureValueRepository   = (*fakeValueRepo)(nil)
)
