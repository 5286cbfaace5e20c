package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"photoflow/internal/library"
	"photoflow/internal/logging"
)

// GetPhoto returns photo metadata by ID.
func (h *Handlers) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid photo id", http.StatusBadRequest)
		return
	}

	photo, err := h.store.GetPhoto(r.Context(), id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return
		}
		logging.Error("GetPhoto(%d): %v", id, err)
		writeJSONError(w, "failed to get photo", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, photo)
}

// GetPhotoFile serves the original image file for a photo.
func (h *Handlers) GetPhotoFile(w http.ResponseWriter, r *http.Request) {
	photo, ok := h.lookupPhoto(w, r)
	if !ok {
		return
	}

	// Security check: the stored path must live under the photos dir.
	if !h.insidePhotosDir(photo.Path) {
		logging.Error("GetPhotoFile(%d): path outside photos dir: %s", photo.ID, photo.Path)
		writeJSONError(w, "invalid path", http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(photo.Path); os.IsNotExist(err) {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", photo.MimeType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, photo.Path)
}

// GetThumbnail serves a cached thumbnail for a photo, generating it on
// first access.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	photo, ok := h.lookupPhoto(w, r)
	if !ok {
		return
	}

	if !h.thumbnailer.IsEnabled() {
		writeJSONError(w, "thumbnails disabled", http.StatusServiceUnavailable)
		return
	}

	if !h.insidePhotosDir(photo.Path) {
		logging.Error("GetThumbnail(%d): path outside photos dir: %s", photo.ID, photo.Path)
		writeJSONError(w, "invalid path", http.StatusBadRequest)
		return
	}

	thumb, err := h.thumbnailer.Thumbnail(photo.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSONError(w, "file not found", http.StatusNotFound)
			return
		}
		logging.Error("GetThumbnail(%d): %v", photo.ID, err)
		writeJSONError(w, "failed to generate thumbnail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(thumb)
}

// lookupPhoto resolves the {id} route variable to a photo, writing the
// error response itself when it cannot.
func (h *Handlers) lookupPhoto(w http.ResponseWriter, r *http.Request) (*library.Photo, bool) {
	id, ok := pathID(r)
	if !ok {
		writeJSONError(w, "invalid photo id", http.StatusBadRequest)
		return nil, false
	}

	photo, err := h.store.GetPhoto(r.Context(), id)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeJSONError(w, "photo not found", http.StatusNotFound)
			return nil, false
		}
		logging.Error("lookupPhoto(%d): %v", id, err)
		writeJSONError(w, "failed to get photo", http.StatusInternalServerError)
		return nil, false
	}
	return photo, true
}

func (h *Handlers) insidePhotosDir(path string) bool {
	absPhotos, err := filepath.Abs(h.photosDir)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absPhotos, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
