package models

import (
	"time"

	"github.com/google/uuid"
)

// Feature type values
const (
	FeatureTypeNumeric     = "numeric"
	FeatureTypeCategorical = "categorical"
	FeatureTypeText        = "text"
)

// Feature represents a named, reusable transformation definition over one
// raw table schema. The computation logic is user-authored transformation
// text evaluated by the sandbox; it is stored as data, never trusted.
type Feature struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	RawTableID       uuid.UUID `json:"raw_table_id"`
	ComputationLogic string    `json:"computation_logic"`
	FeatureType      string    `json:"feature_type"`
	CreatedAt        time.Time `json:"created_at"`
}
