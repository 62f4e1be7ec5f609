package handlers

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/ewastehub/apiserver/internal/storage"
	"github.com/go-chi/chi/v5"
)

// UploadsHandler serves stored images read-only from the configured
// storage backend.
type UploadsHandler struct {
	storage *storage.Storage
}

// NewUploadsHandler constructs a handler over the given storage.
func NewUploadsHandler(st *storage.Storage) *UploadsHandler {
	return &UploadsHandler{storage: st}
}

// UploadsRouter registers the image serving route.
func UploadsRouter(r chi.Router, st *storage.Storage) {
	handler := NewUploadsHandler(st)

	r.Get("/{objectKey}", handler.GetObject)
}

// GetObject streams a stored image by key.
func (h *UploadsHandler) GetObject(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "objectKey")
	if key == "" || strings.Contains(key, "..") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	reader, err := h.storage.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	defer reader.Close()

	if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}
