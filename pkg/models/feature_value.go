package models

import (
	"time"

	"github.com/google/uuid"
)

// FeatureValue is one entity's computed result under one feature version.
// Value holds the serialized form: composite values as JSON text, scalars
// as their plain text representation.
type FeatureValue struct {
	ID               uuid.UUID `json:"id"`
	FeatureVersionID uuid.UUID `json:"feature_version_id"`
	EntityID         string    `json:"entity_id"`
	Value            string    `json:"value"`
	ComputedAt       time.Time `json:"computed_at"`
}
