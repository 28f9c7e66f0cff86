package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/featureplane/feature-engine/pkg/models"
	"github.com/featureplane/feature-engine/pkg/services"
)

// CreateFeatureRequest for POST /api/v1/features
type CreateFeatureRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	RawTableID       string `json:"raw_table_id"`
	ComputationLogic string `json:"computation_logic"`
	FeatureType      string `json:"feature_type"`
}

// FeatureListResponse for GET /api/v1/features
type FeatureListResponse struct {
	Features []*models.Feature `json:"features"`
	Total    int               `json:"total"`
}

// ComputeVersionRequest for POST /api/v1/features/{id}/versions
type ComputeVersionRequest struct {
	Version        string           `json:"version"`
	Records        []map[string]any `json:"records"`
	EntityIDColumn string           `json:"entity_id_column,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
}

// VersionListResponse for GET /api/v1/features/{id}/versions
type VersionListResponse struct {
	Versions []*models.FeatureVersion `json:"versions"`
	Total    int                      `json:"total"`
}

// FeatureHandler handles feature definition and version computation requests.
type FeatureHandler struct {
	featureService services.FeatureService
	logger         *zap.Logger
}

// NewFeatureHandler creates a new feature handler.
func NewFeatureHandler(featureService services.FeatureService, logger *zap.Logger) *FeatureHandler {
	return &FeatureHandler{
		featureService: featureService,
		logger:         logger,
	}
}

// RegisterRoutes registers the feature handler's routes on the given mux.
func (h *FeatureHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/features", h.Create)
	mux.HandleFunc("GET /api/v1/features", h.List)
	mux.HandleFunc("GET /api/v1/features/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/features/{id}/versions", h.ComputeVersion)
	mux.HandleFunc("GET /api/v1/features/{id}/versions", h.ListVersions)
}

// Create handles POST /api/v1/features
func (h *FeatureHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFeatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.Name == "" || req.ComputationLogic == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "name and computation_logic are required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	rawTableID, err := uuid.Parse(req.RawTableID)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid raw table ID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	feature, err := h.featureService.DefineFeature(r.Context(), req.Name, req.Description, rawTableID, req.ComputationLogic, req.FeatureType)
	if err != nil {
		h.logger.Error("Failed to define feature",
			zap.String("name", req.Name),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "define_feature_failed")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, feature); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/v1/features
func (h *FeatureHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := parsePagination(r)

	features, err := h.featureService.ListFeatures(r.Context(), skip, limit)
	if err != nil {
		h.logger.Error("Failed to list features", zap.Error(err))
		writeServiceError(w, h.logger, err, "list_features_failed")
		return
	}

	response := FeatureListResponse{
		Features: features,
		Total:    len(features),
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/v1/features/{id}
func (h *FeatureHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseFeatureID(w, r)
	if !ok {
		return
	}

	feature, err := h.featureService.GetFeature(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch feature",
			zap.String("feature_id", id.String()),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "get_feature_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, feature); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ComputeVersion handles POST /api/v1/features/{id}/versions
func (h *FeatureHandler) ComputeVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseFeatureID(w, r)
	if !ok {
		return
	}

	var req ComputeVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.Version == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "version is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	version, err := h.featureService.ComputeVersion(r.Context(), id, services.ComputeRequest{
		Version:        req.Version,
		Records:        req.Records,
		EntityIDColumn: req.EntityIDColumn,
		Metadata:       req.Metadata,
	})
	if err != nil {
		h.logger.Error("Failed to compute feature version",
			zap.String("feature_id", id.String()),
			zap.String("version", req.Version),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "compute_version_failed")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, version); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListVersions handles GET /api/v1/features/{id}/versions
func (h *FeatureHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseFeatureID(w, r)
	if !ok {
		return
	}

	versions, err := h.featureService.ListVersions(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to list feature versions",
			zap.String("feature_id", id.String()),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "list_versions_failed")
		return
	}

	response := VersionListResponse{
		Versions: versions,
		Total:    len(versions),
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *FeatureHandler) parseFeatureID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid feature ID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
