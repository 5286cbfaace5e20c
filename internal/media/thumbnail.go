package media

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"photoflow/internal/logging"
	"photoflow/internal/metrics"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	thumbnailSize    = 200
	thumbnailQuality = 80
)

// Thumbnailer generates and caches photo thumbnails on disk.
type Thumbnailer struct {
	cacheDir string
	enabled  bool
	mu       sync.Mutex
}

// NewThumbnailer creates a Thumbnailer writing to cacheDir.
func NewThumbnailer(cacheDir string, enabled bool) *Thumbnailer {
	if enabled {
		logging.Debug("Thumbnailer: enabled, cache dir: %s", cacheDir)
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			logging.Warn("Thumbnailer: failed to create cache dir: %v", err)
		}
	} else {
		logging.Debug("Thumbnailer: disabled")
	}
	return &Thumbnailer{
		cacheDir: cacheDir,
		enabled:  enabled,
	}
}

func (t *Thumbnailer) IsEnabled() bool {
	return t.enabled
}

// Thumbnail returns JPEG thumbnail bytes for the photo file at path,
// generating and caching them on first request.
func (t *Thumbnailer) Thumbnail(path string) ([]byte, error) {
	if !t.enabled {
		return nil, fmt.Errorf("thumbnails disabled")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not accessible: %w", err)
	}

	// Key on path and mtime so a replaced file invalidates its
	// cached thumbnail.
	hash := md5.Sum([]byte(fmt.Sprintf("%s|%d", path, info.ModTime().Unix())))
	cachePath := filepath.Join(t.cacheDir, fmt.Sprintf("%x.jpg", hash))

	if data, err := os.ReadFile(cachePath); err == nil {
		logging.Debug("Thumbnail cache hit: %s", path)
		metrics.ThumbnailCacheHits.Inc()
		return data, nil
	}
	metrics.ThumbnailCacheMisses.Inc()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another request may have generated it while we waited.
	if data, err := os.ReadFile(cachePath); err == nil {
		return data, nil
	}

	start := time.Now()
	data, err := t.generate(path)
	metrics.ThumbnailGenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ThumbnailGenerationsTotal.WithLabelValues("success").Inc()

	if err := os.WriteFile(cachePath, data, 0644); err != nil {
		logging.Warn("Failed to cache thumbnail %s: %v", cachePath, err)
	} else {
		logging.Debug("Thumbnail cached: %s", cachePath)
	}

	return data, nil
}

func (t *Thumbnailer) generate(path string) ([]byte, error) {
	logging.Debug("Thumbnail generating: %s", path)

	var img image.Image
	var err error

	// vips shrinks during decode, so prefer it when initialized.
	if IsVipsAvailable() {
		img, err = loadImageWithVips(path, thumbnailSize, thumbnailSize)
		if err != nil {
			logging.Debug("vips load failed for %s: %v, falling back", path, err)
			img = nil
		}
	}

	if img == nil {
		img, err = decodeImageFile(path)
		if err != nil {
			return nil, fmt.Errorf("thumbnail generation failed: %w", err)
		}
	}

	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeImageFile(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	logging.Debug("imaging.Open failed for %s: %v, trying standard decode", path, err)

	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, openErr
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	logging.Debug("Decoded image format: %s for %s", format, path)
	return img, nil
}
