package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/featureplane/feature-engine/pkg/apperrors"
	"github.com/featureplane/feature-engine/pkg/database"
)

// EntityFeatureValue is one feature's stored value for an entity, joined to
// the owning feature's name for vector assembly.
type EntityFeatureValue struct {
	FeatureName string
	Value       string
}

// FeatureValueRepository provides read access to stored feature values.
// Writes happen only through FeatureVersionRepository.CreateWithValues.
type FeatureValueRepository interface {
	// ValueFor returns the stored value text for one entity under one
	// version, or apperrors.ErrNotFound.
	ValueFor(ctx context.Context, versionID uuid.UUID, entityID string) (string, error)
	// ListForEntityByVersionLabel fetches all values for an entity across
	// versions carrying the given label, joined to features; featureNames
	// narrows the result when non-empty.
	ListForEntityByVersionLabel(ctx context.Context, entityID, versionLabel string, featureNames []string) ([]EntityFeatureValue, error)
}

type featureValueRepository struct {
	db *database.DB
}

// NewFeatureValueRepository creates a new FeatureValueRepository.
func NewFeatureValueRepository(db *database.DB) FeatureValueRepository {
	return &featureValueRepository{db: db}
}

var _ FeatureValueRepository = (*featureValueRepository)(nil)

func (r *featureValueRepository) ValueFor(ctx context.Context, versionID uuid.UUID, entityID string) (string, error) {
	query := `
		SELECT value
		FROM feature_values
		WHERE feature_version_id = $1 AND entity_id = $2`

	var value string
	err := r.db.QueryRow(ctx, query, versionID, entityID).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("failed to fetch feature value: %w", err)
	}
	return value, nil
}

func (r *featureValueRepository) ListForEntityByVersionLabel(ctx context.Context, entityID, versionLabel string, featureNames []string) ([]EntityFeatureValue, error) {
	query := `
		SELECT f.name, fv.value
		FROM feature_values fv
		JOIN feature_versions ver ON fv.feature_version_id = ver.id
		JOIN features f ON ver.feature_id = f.id
		WHERE fv.entity_id = $1
		  AND ver.version = $2
		  AND (cardinality($3::text[]) = 0 OR f.name = ANY($3))
		ORDER BY f.created_at`

	if featureNames == nil {
		featureNames = []string{}
	}
	rows, err := r.db.Query(ctx, query, entityID, versionLabel, featureNames)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feature values: %w", err)
	}
	defer rows.Close()

	var values []EntityFeatureValue
	for rows.Next() {
		var v EntityFeatureValue
		if err := rows.Scan(&v.FeatureName, &v.Value); err != nil {
			return nil, fmt.Errorf("failed to scan feature value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
