package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"rhyolite-backend/internal/domain"
	"rhyolite-backend/internal/repository"
	"rhyolite-backend/internal/service/registry"
	"rhyolite-backend/pkg/api"
	"rhyolite-backend/pkg/utils"
)

// KindHandler handles kind and edge-kind declarations.
type KindHandler struct {
	registry *registry.Service
	logger   *zap.Logger
}

// NewKindHandler creates a new kind handler.
func NewKindHandler(registrySvc *registry.Service, logger *zap.Logger) *KindHandler {
	return &KindHandler{registry: registrySvc, logger: logger}
}

// CreateKindRequest is the request body for declaring a kind. A nil schema
// is treated as the empty schema, which accepts any payload.
type CreateKindRequest struct {
	Name   string                 `json:"name" validate:"required"`
	Schema map[string]interface{} `json:"schema"`
}

// CreateEdgeKindRequest is the request body for declaring a relation rule.
type CreateEdgeKindRequest struct {
	FromKind string `json:"from_kind" validate:"required"`
	ToKind   string `json:"to_kind" validate:"required"`
	Relation string `json:"relation" validate:"required"`
}

// Create handles POST /kind.
func (h *KindHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateKindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	kind, err := h.registry.DeclareKind(r.Context(), req.Name, req.Schema)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusCreated, kind)
}

// Get handles GET /kind/{name}.
func (h *KindHandler) Get(w http.ResponseWriter, r *http.Request) {
	kind, err := h.registry.GetKind(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, kind)
}

// List handles GET /kinds.
func (h *KindHandler) List(w http.ResponseWriter, r *http.Request) {
	kinds, err := h.registry.ListKinds(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, kinds)
}

// Delete handles DELETE /kind/{name}.
func (h *KindHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeleteKind(r.Context(), chi.URLParam(r, "name")); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}

// CreateEdgeKind handles POST /edges-kind.
func (h *KindHandler) CreateEdgeKind(w http.ResponseWriter, r *http.Request) {
	var req CreateEdgeKindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ek, err := h.registry.DeclareEdgeKind(r.Context(), domain.EdgeKind{
		FromKind: req.FromKind,
		ToKind:   req.ToKind,
		Relation: req.Relation,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusCreated, ek)
}

// GetEdgeKind handles GET /edges-kinds/{from}/{to}/{relation}.
func (h *KindHandler) GetEdgeKind(w http.ResponseWriter, r *http.Request) {
	ek, err := h.registry.GetEdgeKind(r.Context(),
		chi.URLParam(r, "from"), chi.URLParam(r, "to"), chi.URLParam(r, "relation"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, ek)
}

// ListEdgeKinds handles GET /edges-kinds, /edges-kinds/{from}, and
// /edges-kinds/{from}/{to}; absent path segments leave the filter open.
func (h *KindHandler) ListEdgeKinds(w http.ResponseWriter, r *http.Request) {
	filter := repository.EdgeKindFilter{
		FromKind: chi.URLParam(r, "from"),
		ToKind:   chi.URLParam(r, "to"),
	}

	rules, err := h.registry.ListEdgeKinds(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, rules)
}

// DeleteEdgeKind handles DELETE /edges-kind/{from}/{to}/{relation}.
func (h *KindHandler) DeleteEdgeKind(w http.ResponseWriter, r *http.Request) {
	err := h.registry.DeleteEdgeKind(r.Context(),
		chi.URLParam(r, "from"), chi.URLParam(r, "to"), chi.URLParam(r, "relation"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}
