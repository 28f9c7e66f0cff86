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

// RawTableRepository provides data access for registered raw tables.
type RawTableRepository interface {
	Create(ctx context.Context, table *models.RawTable) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RawTable, error)
	GetByName(ctx context.Context, name string) (*models.RawTable, error)
	List(ctx context.Context, skip, limit int) ([]*models.RawTable, error)
}

type rawTableRepository struct {
	db *database.DB
}

// NewRawTableRepository creates a new RawTableRepository.
func NewRawTableRepository(db *database.DB) RawTableRepository {
	return &rawTableRepository{db: db}
}

var _ RawTableRepository = (*rawTableRepository)(nil)

func (r *rawTableRepository) Create(ctx context.Context, table *models.RawTable) error {
	schemaJSON, err := json.Marshal(table.Schema)
	if err != nil {
		return fmt.Errorf("failed to encode schema definition: %w", err)
	}

	query := `
		INSERT INTO raw_tables (name, description, schema_definition)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err = r.db.QueryRow(ctx, query,
		table.Name,
		nullString(table.Description),
		schemaJSON,
	).Scan(&table.ID, &table.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("raw table %q: %w", table.Name, apperrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to create raw table: %w", err)
	}

	return nil
}

func (r *rawTableRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RawTable, error) {
	query := `
		SELECT id, name, description, schema_definition, created_at, updated_at
		FROM raw_tables
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *rawTableRepository) GetByName(ctx context.Context, name string) (*models.RawTable, error) {
	query := `
		SELECT id, name, description, schema_definition, created_at, updated_at
		FROM raw_tables
		WHERE name = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, name))
}

func (r *rawTableRepository) List(ctx context.Context, skip, limit int) ([]*models.RawTable, error) {
	query := `
		SELECT id, name, description, schema_definition, created_at, updated_at
		FROM raw_tables
		ORDER BY created_at
		OFFSET $1 LIMIT $2`

	rows, err := r.db.Query(ctx, query, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw tables: %w", err)
	}
	defer rows.Close()

	var tables []*models.RawTable
	for rows.Next() {
		table, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

func (r *rawTableRepository) scanOne(row pgx.Row) (*models.RawTable, error) {
	var (
		table       models.RawTable
		description *string
		schemaJSON  []byte
	)

	err := row.Scan(&table.ID, &table.Name, &description, &schemaJSON, &table.CreatedAt, &table.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan raw table: %w", err)
	}

	if description != nil {
		table.Description = *description
	}
	if err := json.Unmarshal(schemaJSON, &table.Schema); err != nil {
		return nil, fmt.Errorf("failed to decode schema definition: %w", err)
	}

	return &table, nil
}
