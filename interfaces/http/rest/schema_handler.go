package rest

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"rhyolite-backend/internal/domain"
	"rhyolite-backend/internal/service/registry"
	"rhyolite-backend/pkg/api"
)

// SchemaHandler handles the bulk schema dump, merge, and reset operations.
type SchemaHandler struct {
	registry *registry.Service
	logger   *zap.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(registrySvc *registry.Service, logger *zap.Logger) *SchemaHandler {
	return &SchemaHandler{registry: registrySvc, logger: logger}
}

// Dump handles GET /schema.
func (h *SchemaHandler) Dump(w http.ResponseWriter, r *http.Request) {
	dump, err := h.registry.DumpSchema(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, dump)
}

// Push handles POST /schema: an additive, idempotent merge where existing
// declarations win over incoming ones.
func (h *SchemaHandler) Push(w http.ResponseWriter, r *http.Request) {
	var dump domain.SchemaDump
	if err := json.NewDecoder(r.Body).Decode(&dump); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.registry.PushSchema(r.Context(), dump); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}

// Reset handles POST /reset, wiping the whole store. Intended for test
// environments.
func (h *SchemaHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Reset(r.Context()); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}
