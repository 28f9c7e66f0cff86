package models

import (
	"time"

	"github.com/google/uuid"
)

// Column type values for raw schema declarations
const (
	ColumnTypeNumeric = "numeric" // All present values must be numeric-coercible
	ColumnTypeString  = "string"  // Strings or composite (object-like) values
)

// RawSchema is the declared column contract a raw data batch must satisfy
// before any feature computation runs over it.
type RawSchema struct {
	RequiredColumns []string          `json:"required_columns"`
	ColumnTypes     map[string]string `json:"column_types,omitempty"`
}

// RawTable represents a registered raw table definition.
// Stored in raw_tables table.
type RawTable struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Schema      RawSchema  `json:"schema_definition"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
