package handlers

import (
	"net/http"

	"photoflow/internal/indexer"
	"photoflow/internal/library"
	"photoflow/internal/media"
	"photoflow/internal/startup"

	"github.com/gorilla/mux"
)

type Handlers struct {
	store       *library.Store
	indexer     *indexer.Indexer
	thumbnailer *media.Thumbnailer
	photosDir   string
}

func New(store *library.Store, idx *indexer.Indexer, config *startup.Config) *Handlers {
	return &Handlers{
		store:       store,
		indexer:     idx,
		thumbnailer: media.NewThumbnailer(config.ThumbnailDir, config.ThumbnailsEnabled),
		photosDir:   config.PhotosDir,
	}
}

// Router builds the full application router.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/albums", h.ListAlbums).Methods("GET")
	api.HandleFunc("/albums/{id:[0-9]+}", h.GetAlbum).Methods("GET")
	api.HandleFunc("/albums/{id:[0-9]+}/photos", h.ListAlbumPhotos).Methods("GET")
	api.HandleFunc("/photos/{id:[0-9]+}", h.GetPhoto).Methods("GET")
	api.HandleFunc("/photos/{id:[0-9]+}/file", h.GetPhotoFile).Methods("GET")
	api.HandleFunc("/photos/{id:[0-9]+}/thumbnail", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/reindex", h.TriggerReindex).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "not found", http.StatusNotFound)
	})

	return r
}
