package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wonny/incc/backend/internal/matrix"
	"github.com/wonny/incc/backend/internal/registry"
	"github.com/wonny/incc/backend/pkg/logger"
)

// RegistrySource loads the project registries
type RegistrySource interface {
	Load(ctx context.Context) (registry.Snapshot, error)
}

// MatrixRequest selects projects for a comparison. When Items is set the
// registry is not consulted.
type MatrixRequest struct {
	Projects      []string                      `json:"projects"`
	SimulatedArea string                        `json:"simulated_area"`
	Items         []matrix.WorkItem             `json:"items,omitempty"`
	Meta          map[string]matrix.ProjectMeta `json:"meta,omitempty"`
}

// MatrixResponse is the built matrix plus its text table
type MatrixResponse struct {
	Matrix          matrix.Matrix `json:"matrix"`
	Table           [][]string    `json:"table"`
	UnknownProjects []string      `json:"unknown_projects,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`
	SeriesAvailable bool          `json:"series_available"`
}

// MatrixHandler builds comparison matrices
type MatrixHandler struct {
	store    SeriesStore
	registry RegistrySource // nil when no database is configured
	builder  *matrix.Builder
	logger   *logger.Logger
}

// NewMatrixHandler creates a new matrix handler
func NewMatrixHandler(store SeriesStore, reg RegistrySource, builder *matrix.Builder, log *logger.Logger) *MatrixHandler {
	return &MatrixHandler{
		store:    store,
		registry: reg,
		builder:  builder,
		logger:   log.Component("matrix_handler"),
	}
}

// Build returns the comparison matrix for the selected projects
// POST /api/matrix
func (h *MatrixHandler) Build(w http.ResponseWriter, r *http.Request) {
	var req MatrixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	simulated, err := parseSimulatedArea(req.SimulatedArea)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'simulated_area'")
		return
	}

	buildReq := matrix.Request{SimulatedArea: simulated}
	resp := MatrixResponse{}

	if len(req.Items) > 0 {
		buildReq.Items = req.Items
		buildReq.Meta = req.Meta
		buildReq.Projects = req.Projects
	} else {
		if h.registry == nil {
			respondError(w, http.StatusBadRequest, "No registry configured; send 'items'")
			return
		}
		snapshot, err := h.registry.Load(r.Context())
		if err != nil {
			h.logger.WithError(err).Error("Failed to load registry")
			respondError(w, http.StatusInternalServerError, "Failed to load project registry")
			return
		}

		assembly := registry.Assemble(snapshot)
		buildReq.Items = assembly.Items
		buildReq.Meta = assembly.Meta
		buildReq.Projects, resp.UnknownProjects = assembly.Select(req.Projects)
		resp.Warnings = assembly.Warnings
	}

	buildReq.Series, resp.SeriesAvailable = loadOrEmpty(r, h.store, h.logger)
	resp.Matrix = h.builder.Build(buildReq)
	resp.Table = resp.Matrix.Table()

	respondJSON(w, http.StatusOK, resp)
}
