package rest

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"rhyolite-backend/internal/service/graph"
	"rhyolite-backend/pkg/api"
)

// maxUploadMemory bounds the in-memory part of multipart parsing; larger
// files spill to disk.
const maxUploadMemory = 32 << 20

// AttachmentHandler handles attachment upload, download, and deletion.
type AttachmentHandler struct {
	graph  *graph.Service
	logger *zap.Logger
}

// NewAttachmentHandler creates a new attachment handler.
func NewAttachmentHandler(graphSvc *graph.Service, logger *zap.Logger) *AttachmentHandler {
	return &AttachmentHandler{graph: graphSvc, logger: logger}
}

// Create handles POST /attachment. Multipart form fields: node_id, file,
// and an optional name which defaults to the uploaded filename.
func (h *AttachmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	nodeID := r.FormValue("node_id")
	if nodeID == "" {
		api.Error(w, http.StatusBadRequest, "node_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = filepath.Base(header.Filename)
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	att, err := h.graph.CreateAttachment(r.Context(), nodeID, name, mimeType, file)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusCreated, att)
}

// Download handles GET /attachment/{id}, streaming the stored content with
// its recorded mime type.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	att, content, err := h.graph.OpenAttachment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", att.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		h.logger.Warn("streaming attachment interrupted",
			zap.String("attachment_id", att.ID), zap.Error(err))
	}
}

// List handles GET /attachments/{nodeID}.
func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	atts, err := h.graph.ListAttachments(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, atts)
}

// Delete handles DELETE /attachment/{id}.
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.graph.DeleteAttachment(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]bool{"ok": true})
}
