package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/featureplane/feature-engine/pkg/apperrors"
	"github.com/featureplane/feature-engine/pkg/database"
	"github.com/featureplane/feature-engine/pkg/models"
)

// FeatureVersionRepository provides data access for feature versions.
// Versions are append-only: a (feature_id, version) pair is written at most
// once and never recomputed in place.
type FeatureVersionRepository interface {
	// CreateWithValues inserts the version row and all of its value rows in
	// one transaction, so a version never exists without its values. A label
	// collision reports apperrors.ErrDuplicate; under concurrent identical
	// submissions the database unique constraint guarantees exactly one
	// winner. Any failure persisting values reports apperrors.ErrStorage
	// and leaves no version row behind.
	CreateWithValues(ctx context.Context, version *models.FeatureVersion, values []*models.FeatureValue) error
	ListByFeature(ctx context.Context, featureID uuid.UUID) ([]*models.FeatureVersion, error)
	// LatestActive returns the most recently computed version of the feature
	// with status "active", or apperrors.ErrNotFound if none exists.
	LatestActive(ctx context.Context, featureID uuid.UUID) (*models.FeatureVersion, error)
	UpdateStatus(ctx context.Context, versionID uuid.UUID, status string) error
	// Delete removes a version; its values cascade.
	Delete(ctx context.Context, versionID uuid.UUID) error
}

type featureVersionRepository struct {
	db *database.DB
}

// NewFeatureVersionRepository creates a new FeatureVersionRepository.
func NewFeatureVersionRepository(db *database.DB) FeatureVersionRepository {
	return &featureVersionRepository{db: db}
}

var _ FeatureVersionRepository = (*featureVersionRepository)(nil)

func (r *featureVersionRepository) CreateWithValues(ctx context.Context, version *models.FeatureVersion, values []*models.FeatureValue) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	metadataJSON, err := json.Marshal(jsonbValueMap(version.Metadata))
	if err != nil {
		return fmt.Errorf("failed to encode version metadata: %w", err)
	}

	query := `
		INSERT INTO feature_versions (feature_id, version, status, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, computed_at`

	err = tx.QueryRow(ctx, query,
		version.FeatureID,
		version.Version,
		version.Status,
		metadataJSON,
	).Scan(&version.ID, &version.ComputedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("version %q for feature %s: %w", version.Version, version.FeatureID, apperrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to create feature version: %w", err)
	}

	rows := make([][]any, len(values))
	for i, value := range values {
		value.FeatureVersionID = version.ID
		value.ComputedAt = version.ComputedAt
		if value.ID == uuid.Nil {
			value.ID = uuid.New()
		}
		rows[i] = []any{value.ID, value.FeatureVersionID, value.EntityID, value.Value, value.ComputedAt}
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"feature_values"},
		[]string{"id", "feature_version_id", "entity_id", "value", "computed_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit failed: %v", apperrors.ErrStorage, err)
	}
	return nil
}

func (r *featureVersionRepository) ListByFeature(ctx context.Context, featureID uuid.UUID) ([]*models.FeatureVersion, error) {
	query := `
		SELECT id, feature_id, version, status, computed_at, metadata
		FROM feature_versions
		WHERE feature_id = $1
		ORDER BY computed_at`

	rows, err := r.db.Query(ctx, query, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feature versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.FeatureVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

func (r *featureVersionRepository) LatestActive(ctx context.Context, featureID uuid.UUID) (*models.FeatureVersion, error) {
	query := `
		SELECT id, feature_id, version, status, computed_at, metadata
		FROM feature_versions
		WHERE feature_id = $1 AND status = $2
		ORDER BY computed_at DESC, id
		LIMIT 1`

	return scanVersion(r.db.QueryRow(ctx, query, featureID, models.VersionStatusActive))
}

func (r *featureVersionRepository) UpdateStatus(ctx context.Context, versionID uuid.UUID, status string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE feature_versions SET status = $2 WHERE id = $1`,
		versionID, status)
	if err != nil {
		return fmt.Errorf("failed to update version status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *featureVersionRepository) Delete(ctx context.Context, versionID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM feature_versions WHERE id = $1`, versionID)
	if err != nil {
		return fmt.Errorf("failed to delete feature version: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanVersion(row pgx.Row) (*models.FeatureVersion, error) {
	var (
		version      models.FeatureVersion
		metadataJSON []byte
	)

	err := row.Scan(
		&version.ID,
		&version.FeatureID,
		&version.Version,
		&version.Status,
		&version.ComputedAt,
		&metadataJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan feature version: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &version.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode version metadata: %w", err)
		}
	}
	return &version, nil
}
