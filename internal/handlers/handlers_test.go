package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"photoflow/internal/indexer"
	"photoflow/internal/library"
	"photoflow/internal/paging"
	"photoflow/internal/startup"
)

// writePhoto writes a small PNG and backdates its mtime so it lands in
// a predictable album.
func writePhoto(t *testing.T, dir, name string, taken time.Time) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 8), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	if err := os.Chtimes(path, taken, taken); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}
	return path
}

// newTestServer builds a full handler stack over a temp photo library
// and runs one synchronous index so the service is ready.
func newTestServer(t *testing.T) (*httptest.Server, *Handlers, string) {
	t.Helper()

	photosDir := t.TempDir()
	cacheDir := t.TempDir()

	taken := time.Date(2026, 4, 12, 10, 0, 0, 0, time.UTC)
	writePhoto(t, photosDir, "IMG_0001.png", taken)
	writePhoto(t, photosDir, "IMG_0002.png", taken.Add(time.Minute))
	writePhoto(t, photosDir, "IMG_0003.png", taken.Add(24*time.Hour))

	store, err := library.Open(t.Context(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	idx := indexer.New(store, photosDir, 0, nil)
	if err := idx.Index(); err != nil {
		t.Fatalf("initial index failed: %v", err)
	}

	cfg := &startup.Config{
		PhotosDir:         photosDir,
		ThumbnailDir:      filepath.Join(cacheDir, "thumbnails"),
		ThumbnailsEnabled: true,
	}

	h := New(store, idx, cfg)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	return srv, h, photosDir
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("failed to decode response from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestListAlbums(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var page paging.Page[library.Album]
	if code := getJSON(t, srv.URL+"/api/albums", &page); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	if len(page.Items) != 2 {
		t.Fatalf("got %d albums, want 2", len(page.Items))
	}
	// Newest album first.
	if page.Items[0].Date != "2026-04-13" || page.Items[1].Date != "2026-04-12" {
		t.Errorf("album order wrong: %s, %s", page.Items[0].Date, page.Items[1].Date)
	}
	if page.Items[1].PhotoCount != 2 {
		t.Errorf("PhotoCount = %d, want 2", page.Items[1].PhotoCount)
	}
}

func TestListAlbumPhotos(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var albums paging.Page[library.Album]
	getJSON(t, srv.URL+"/api/albums", &albums)

	var photos paging.Page[library.Photo]
	url := srv.URL + "/api/albums/" + itoa(albums.Items[1].ID) + "/photos"
	if code := getJSON(t, url, &photos); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	if len(photos.Items) != 2 {
		t.Fatalf("got %d photos, want 2", len(photos.Items))
	}
	for _, p := range photos.Items {
		if p.ThumbnailURL == "" || p.FullURL == "" {
			t.Errorf("photo %d missing derived URLs", p.ID)
		}
		if p.Width != 40 || p.Height != 30 {
			t.Errorf("photo %d dimensions = %dx%d, want 40x30", p.ID, p.Width, p.Height)
		}
	}
}

func TestAlbumNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	if code := getJSON(t, srv.URL+"/api/albums/9999", nil); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
	if code := getJSON(t, srv.URL+"/api/albums/9999/photos", nil); code != http.StatusNotFound {
		t.Errorf("photos status = %d, want 404", code)
	}
}

func TestNonNumericIDRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	if code := getJSON(t, srv.URL+"/api/albums/abc", nil); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 from route mismatch", code)
	}
}

func TestGetPhotoFile(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var albums paging.Page[library.Album]
	getJSON(t, srv.URL+"/api/albums", &albums)
	var photos paging.Page[library.Photo]
	getJSON(t, srv.URL+"/api/albums/"+itoa(albums.Items[0].ID)+"/photos", &photos)

	resp, err := http.Get(srv.URL + photos.Items[0].FullURL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
}

func TestGetThumbnail(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var albums paging.Page[library.Album]
	getJSON(t, srv.URL+"/api/albums", &albums)
	var photos paging.Page[library.Photo]
	getJSON(t, srv.URL+"/api/albums/"+itoa(albums.Items[0].ID)+"/photos", &photos)

	resp, err := http.Get(srv.URL + photos.Items[0].ThumbnailURL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); cc == "" {
		t.Error("thumbnail response missing Cache-Control")
	}
}

func TestThumbnailsDisabled(t *testing.T) {
	_, h, _ := newTestServer(t)

	cfg := &startup.Config{
		PhotosDir:         h.photosDir,
		ThumbnailDir:      t.TempDir(),
		ThumbnailsEnabled: false,
	}
	disabled := New(h.store, h.indexer, cfg)
	srv2 := httptest.NewServer(disabled.Router())
	defer srv2.Close()

	var albums paging.Page[library.Album]
	getJSON(t, srv2.URL+"/api/albums", &albums)
	var photos paging.Page[library.Photo]
	getJSON(t, srv2.URL+"/api/albums/"+itoa(albums.Items[0].ID)+"/photos", &photos)

	if code := getJSON(t, srv2.URL+photos.Items[0].ThumbnailURL, nil); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var health HealthResponse
	if code := getJSON(t, srv.URL+"/health", &health); code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", code)
	}
	if health.Status != statusHealthy {
		t.Errorf("status = %q, want %q", health.Status, statusHealthy)
	}
	if health.TotalPhotos != 3 || health.TotalAlbums != 2 {
		t.Errorf("stats = %d photos / %d albums, want 3 / 2", health.TotalPhotos, health.TotalAlbums)
	}

	if code := getJSON(t, srv.URL+"/readyz", nil); code != http.StatusOK {
		t.Errorf("readyz status = %d, want 200", code)
	}
	if code := getJSON(t, srv.URL+"/livez", nil); code != http.StatusOK {
		t.Errorf("livez status = %d, want 200", code)
	}
}

func TestReadinessBeforeInitialIndex(t *testing.T) {
	store, err := library.Open(t.Context(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	photosDir := t.TempDir()
	idx := indexer.New(store, photosDir, 0, nil)

	cfg := &startup.Config{PhotosDir: photosDir, ThumbnailDir: t.TempDir()}
	h := New(store, idx, cfg)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	if code := getJSON(t, srv.URL+"/readyz", nil); code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503 before first index", code)
	}
	if code := getJSON(t, srv.URL+"/health", nil); code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want 503 before first index", code)
	}
}

func TestTriggerReindex(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/reindex", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "started" && body["status"] != "already_running" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestVersion(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var info startup.BuildInfo
	if code := getJSON(t, srv.URL+"/version", &info); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if info.Version == "" || info.GoVersion == "" {
		t.Errorf("incomplete build info: %+v", info)
	}
}

func TestStats(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var stats library.IndexStats
	if code := getJSON(t, srv.URL+"/api/stats", &stats); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if stats.TotalPhotos != 3 || stats.TotalAlbums != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
