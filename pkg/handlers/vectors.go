package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/featureplane/feature-engine/pkg/services"
)

// ResolveVectorRequest for POST /api/v1/feature-vectors
type ResolveVectorRequest struct {
	EntityID     string   `json:"entity_id"`
	FeatureNames []string `json:"feature_names,omitempty"`
	Version      string   `json:"version,omitempty"`
}

// VectorResponse for POST /api/v1/feature-vectors
type VectorResponse struct {
	EntityID string         `json:"entity_id"`
	Features map[string]any `json:"features"`
}

// VectorHandler handles feature vector resolution requests.
type VectorHandler struct {
	vectorService services.VectorService
	logger        *zap.Logger
}

// NewVectorHandler creates a new vector handler.
func NewVectorHandler(vectorService services.VectorService, logger *zap.Logger) *VectorHandler {
	return &VectorHandler{
		vectorService: vectorService,
		logger:        logger,
	}
}

// RegisterRoutes registers the vector handler's routes on the given mux.
func (h *VectorHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/feature-vectors", h.Resolve)
}

// Resolve handles POST /api/v1/feature-vectors
func (h *VectorHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveVectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.EntityID == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "entity_id is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	vector, err := h.vectorService.Resolve(r.Context(), req.EntityID, req.FeatureNames, req.Version)
	if err != nil {
		h.logger.Error("Failed to resolve feature vector",
			zap.String("entity_id", req.EntityID),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "resolve_vector_failed")
		return
	}

	response := VectorResponse{
		EntityID: req.EntityID,
		Features: vector,
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
