package handlers

import (
	"errors"
	"net/http"

	"photoflow/internal/library"
	"photoflow/internal/logging"
)

// ListAlbums returns a page of albums, newest first.
func (h *Handlers) ListAlbums(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)

	albums, err := h.store.ListAlbums(r.Context(), page, pageSize)
	if err != nil {
		logging.Error("ListAlbums: %v", err)
		writeJSONError(w, "failed to list albums", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, albums)
}

// GetAlbum returns a single album by ID.
func (h *Handlers) GetAlbum(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid album id", http.StatusBadRequest)
		return
	}

	album, err := h.store.GetAlbum(r.Context(), id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeJSONError(w, "album not found", http.StatusNotFound)
			return
		}
		logging.Error("GetAlbum(%d): %v", id, err)
		writeJSONError(w, "failed to get album", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, album)
}

// ListAlbumPhotos returns a page of photos in an album, ordered by
// capture time.
func (h *Handlers) ListAlbumPhotos(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid album id", http.StatusBadRequest)
		return
	}

	page, pageSize := pageParams(r)

	photos, err := h.store.ListPhotos(r.Context(), id, page, pageSize)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeJSONError(w, "album not found", http.StatusNotFound)
			return
		}
		logging.Error("ListAlbumPhotos(%d): %v", id, err)
		writeJSONError(w, "failed to list photos", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, photos)
}

// GetStats returns library statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.store.Stats()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, stats)
}

// TriggerReindex starts a background re-index unless one is running.
func (h *Handlers) TriggerReindex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.indexer.IsIndexing() {
		writeJSON(w, map[string]string{
			"status":  "already_running",
			"message": "Indexing is already in progress",
		})
		return
	}

	h.indexer.TriggerIndex()

	writeJSON(w, map[string]string{
		"status":  "started",
		"message": "Re-indexing started",
	})
}
