// Package cache provides the bounded, time-expiring memo of assembled
// feature vectors. The cache is a disposable optimization layer: it is never
// invalidated when new versions are computed, so readers may observe a stale
// vector for up to the configured TTL, and a miss always falls back to the
// authoritative store.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// VectorCache memoizes assembled feature vectors keyed by the exact request
// shape (entity, requested feature set, requested version).
type VectorCache interface {
	// Get returns the cached vector for the request shape, or a miss.
	Get(ctx context.Context, entityID string, featureNames []string, version string) (map[string]any, bool)
	// Set stores the vector under the request shape.
	Set(ctx context.Context, entityID string, vector map[string]any, featureNames []string, version string)
}

// Key derives the deterministic cache key for a request shape. Feature names
// are sorted before hashing so requests differing only in list order hit the
// same entry; empty feature list means "all features" and empty version
// means "latest", both omitted from the digest input.
func Key(entityID string, featureNames []string, version string) string {
	parts := []string{entityID}
	if len(featureNames) > 0 {
		sorted := make([]string, len(featureNames))
		copy(sorted, featureNames)
		sort.Strings(sorted)
		parts = append(parts, strings.Join(sorted, ","))
	}
	if version != "" {
		parts = append(parts, version)
	}

	digest := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(digest[:])
}
