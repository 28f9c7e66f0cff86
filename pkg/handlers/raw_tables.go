package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/featureplane/feature-engine/pkg/models"
	"github.com/featureplane/feature-engine/pkg/services"
)

// CreateRawTableRequest for POST /api/v1/raw-tables
type CreateRawTableRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Schema      models.RawSchema `json:"schema_definition"`
}

// RawTableListResponse for GET /api/v1/raw-tables
type RawTableListResponse struct {
	RawTables []*models.RawTable `json:"raw_tables"`
	Total     int                `json:"total"`
}

// RawTableHandler handles raw table registration and lookup requests.
type RawTableHandler struct {
	featureService services.FeatureService
	logger         *zap.Logger
}

// NewRawTableHandler creates a new raw table handler.
func NewRawTableHandler(featureService services.FeatureService, logger *zap.Logger) *RawTableHandler {
	return &RawTableHandler{
		featureService: featureService,
		logger:         logger,
	}
}

// RegisterRoutes registers the raw table handler's routes on the given mux.
func (h *RawTableHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/raw-tables", h.Create)
	mux.HandleFunc("GET /api/v1/raw-tables", h.List)
	mux.HandleFunc("GET /api/v1/raw-tables/{id}", h.Get)
}

// Create handles POST /api/v1/raw-tables
func (h *RawTableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRawTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.Name == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "name is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	table, err := h.featureService.RegisterRawTable(r.Context(), req.Name, req.Description, req.Schema)
	if err != nil {
		h.logger.Error("Failed to register raw table",
			zap.String("name", req.Name),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "register_raw_table_failed")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, table); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/v1/raw-tables
func (h *RawTableHandler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := parsePagination(r)

	tables, err := h.featureService.ListRawTables(r.Context(), skip, limit)
	if err != nil {
		h.logger.Error("Failed to list raw tables", zap.Error(err))
		writeServiceError(w, h.logger, err, "list_raw_tables_failed")
		return
	}

	response := RawTableListResponse{
		RawTables: tables,
		Total:     len(tables),
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/v1/raw-tables/{id}
func (h *RawTableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid raw table ID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	table, err := h.featureService.GetRawTable(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to fetch raw table",
			zap.String("raw_table_id", id.String()),
			zap.Error(err))
		writeServiceError(w, h.logger, err, "get_raw_table_failed")
		return
	}

	if err := WriteJSON(w, http.StatusOK, table); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
