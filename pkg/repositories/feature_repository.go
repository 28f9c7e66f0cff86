package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/featureplane/feature-engine/pkg/apperrors"
	"github.com/featureplane/feature-engine/pkg/database"
	"github.com/featureplane/feature-engine/pkg/models"
)

// FeatureRepository provides data access for feature definitions.
type FeatureRepository interface {
	Create(ctx context.Context, feature *models.Feature) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Feature, error)
	List(ctx context.Context, skip, limit int) ([]*models.Feature, error)
	// ListByNames returns the features whose names are in the given set;
	// an empty set returns all features.
	ListByNames(ctx context.Context, names []string) ([]*models.Feature, error)
	// Delete removes a feature; its versions and values cascade.
	Delete(ctx context.Context, id uuid.UUID) error
}

type featureRepository struct {
	db *database.DB
}

// NewFeatureRepository creates a new FeatureRepository.
func NewFeatureRepository(db *database.DB) FeatureRepository {
	return &featureRepository{db: db}
}

var _ FeatureRepository = (*featureRepository)(nil)

func (r *featureRepository) Create(ctx context.Context, feature *models.Feature) error {
	query := `
		INSERT INTO features (name, description, raw_table_id, computation_logic, feature_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		feature.Name,
		nullString(feature.Description),
		feature.RawTableID,
		feature.ComputationLogic,
		feature.FeatureType,
	).Scan(&feature.ID, &feature.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feature: %w", err)
	}

	return nil
}

func (r *featureRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Feature, error) {
	query := `
		SELECT id, name, description, raw_table_id, computation_logic, feature_type, created_at
		FROM features
		WHERE id = $1`

	return scanFeature(r.db.QueryRow(ctx, query, id))
}

func (r *featureRepository) List(ctx context.Context, skip, limit int) ([]*models.Feature, error) {
	query := `
		SELECT id, name, description, raw_table_id, computation_logic, feature_type, created_at
		FROM features
		ORDER BY created_at
		OFFSET $1 LIMIT $2`

	rows, err := r.db.Query(ctx, query, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list features: %w", err)
	}
	defer rows.Close()

	return collectFeatures(rows)
}

func (r *featureRepository) ListByNames(ctx context.Context, names []string) ([]*models.Feature, error) {
	query := `
		SELECT id, name, description, raw_table_id, computation_logic, feature_type, created_at
		FROM features
		WHERE cardinality($1::text[]) = 0 OR name = ANY($1)
		ORDER BY created_at`

	if names == nil {
		names = []string{}
	}
	rows, err := r.db.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("failed to list features by name: %w", err)
	}
	defer rows.Close()

	return collectFeatures(rows)
}

func (r *featureRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM features WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feature: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanFeature(row pgx.Row) (*models.Feature, error) {
	var (
		feature     models.Feature
		description *string
	)

	err := row.Scan(
		&feature.ID,
		&feature.Name,
		&description,
		&feature.RawTableID,
		&feature.ComputationLogic,
		&feature.FeatureType,
		&feature.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan feature: %w", err)
	}

	if description != nil {
		feature.Description = *description
	}
	return &feature, nil
}

func collectFeatures(rows pgx.Rows) ([]*models.Feature, error) {
	var features []*models.Feature
	for rows.Next() {
		feature, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		features = append(features, feature)
	}
	return features, rows.Err()
}
