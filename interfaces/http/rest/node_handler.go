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

// NodeHandler handles node CRUD and search.
type NodeHandler struct {
	graph   *graph.Service
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewNodeHandler creates a new node handler. metrics may be nil.
func NewNodeHandler(graphSvc *graph.Service, logger *zap.Logger, metrics *observability.Collector) *NodeHandler {
	return &NodeHandler{graph: graphSvc, logger: logger, metrics: metrics}
}

// CreateNodeRequest is the request body for creating a node.
type CreateNodeRequest struct {
	Kind    string                 `json:"kind" validate:"required"`
	Payload map[string]interface{} `json:"payload"`
}

// UpdateNodeRequest is the request body for replacing a node's payload.
type UpdateNodeRequest struct {
	Payload map[string]interface{} `json:"payload"`
}

// SearchRequest is the request body for searching nodes. Keys in Query use
// dot notation to address nested payload fields; string values containing
// `*` match as case-insensitive globs.
type SearchRequest struct {
	Kinds []string               `json:"kinds"`
	Query map[string]interface{} `json:"query"`
	Limit int                    `json:"limit" validate:"omitempty,min=1"`
}

// Create handles POST /node.
func (h *NodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	node, err := h.graph.CreateNode(r.Context(), req.Kind, req.Payload)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if h.metrics != nil {
		h.metrics.NodesCreated.Inc()
	}
	api.Success(w, http.StatusCreated, node)
}

// Get handles GET /node/{id}.
func (h *NodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	node, err := h.graph.GetNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, node)
}

// Update handles PUT /node/{id}. The payload is replaced wholesale after
// re-validation; there is no partial merge.
func (h *NodeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	node, err := h.graph.UpdateNode(r.Context(), chi.URLParam(r, "id"), req.Payload)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, node)
}

// Delete handles DELETE /node/{id}.
func (h *NodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.graph.DeleteNode(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	if h.metrics != nil {
		h.metrics.NodesDeleted.Inc()
	}
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}

// Search handles POST /nodes/search.
func (h *NodeHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	nodes, err := h.graph.Search(r.Context(), req.Kinds, req.Query, req.Limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, nodes)
}
