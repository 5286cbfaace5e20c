package preload

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"net/http"

	"context"

	// Register the decoders the gallery serves so DecodeConfig can
	// capture natural dimensions.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ImageInfo describes a successfully loaded image resource.
type ImageInfo struct {
	Width  int
	Height int
}

// ImageLoader fetches one image resource. Implementations should treat
// the context as advisory: the cache calls Load with a background
// context because in-flight loads are not cancellable by design.
type ImageLoader interface {
	Load(ctx context.Context, url string) (*ImageInfo, error)
}

// HTTPLoader loads images over HTTP and captures their natural
// dimensions from the encoded header.
type HTTPLoader struct {
	client *http.Client
}

// NewHTTPLoader creates an HTTPLoader. A nil client uses
// http.DefaultClient.
func NewHTTPLoader(client *http.Client) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPLoader{client: client}
}

// Load implements ImageLoader.
func (l *HTTPLoader) Load(ctx context.Context, url string) (*ImageInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("preload request for %s: %w", url, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("preload fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("preload fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("preload read %s: %w", url, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("preload decode %s: %w", url, err)
	}

	return &ImageInfo{Width: cfg.Width, Height: cfg.Height}, nil
}
