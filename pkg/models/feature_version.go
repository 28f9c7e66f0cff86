package models

import (
	"time"

	"github.com/google/uuid"
)

// Status values for feature versions
const (
	VersionStatusActive     = "active"
	VersionStatusDeprecated = "deprecated"
	VersionStatusArchived   = "archived"
)

// FeatureVersion represents one immutable computed run of a feature's logic.
// The (feature_id, version) pair is unique; versions are append-only and
// never recomputed in place. Only Status may change after creation.
type FeatureVersion struct {
	ID         uuid.UUID      `json:"id"`
	FeatureID  uuid.UUID      `json:"feature_id"`
	Version    string         `json:"version"`
	Status     string         `json:"status"`
	ComputedAt time.Time      `json:"computed_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
