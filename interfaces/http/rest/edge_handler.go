package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"rhyolite-backend/internal/service/graph"
	"rhyolite-backend/pkg/api"
	"rhyolite-backend/pkg/observability"
	"rhyolite-backend/pkg/utils"
)

// EdgeHandler handles edge creation, deletion, and adjacency queries.
type EdgeHandler struct {
	graph   *graph.Service
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewEdgeHandler creates a new edge handler. metrics may be nil.
func NewEdgeHandler(graphSvc *graph.Service, logger *zap.Logger, metrics *observability.Collector) *EdgeHandler {
	return &EdgeHandler{graph: graphSvc, logger: logger, metrics: metrics}
}

// CreateEdgeRequest is the request body for creating an edge.
type CreateEdgeRequest struct {
	FromID   string `json:"from_id" validate:"required"`
	ToID     string `json:"to_id" validate:"required"`
	Relation string `json:"relation" validate:"required"`
}

// Create handles POST /edge.
func (h *EdgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	edge, err := h.graph.CreateEdge(r.Context(), req.FromID, req.ToID, req.Relation)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if h.metrics != nil {
		h.metrics.EdgesCreated.Inc()
	}
	api.Success(w, http.StatusCreated, edge)
}

// Delete handles DELETE /edge/{from}/{to}/{relation}.
func (h *EdgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.graph.DeleteEdge(r.Context(),
		chi.URLParam(r, "from"), chi.URLParam(r, "to"), chi.URLParam(r, "relation"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}

// Outgoing handles GET /outgoing-edges/{id}.
func (h *EdgeHandler) Outgoing(w http.ResponseWriter, r *http.Request) {
	edges, err := h.graph.OutgoingEdges(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, edges)
}

// Incoming handles GET /incoming-edges/{id}.
func (h *EdgeHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	edges, err := h.graph.IncomingEdges(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, edges)
}

// Between handles GET /edges/{from}/{to}.
func (h *EdgeHandler) Between(w http.ResponseWriter, r *http.Request) {
	edges, err := h.graph.EdgesBetween(r.Context(),
		chi.URLParam(r, "from"), chi.URLParam(r, "to"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, edges)
}
