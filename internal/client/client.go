package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"photoflow/internal/library"
	"photoflow/internal/paging"
)

// Client talks to a photoflow server's JSON API. It performs no
// retrying of its own: wrap calls in a retry executor, or feed the
// fetcher adapters to a loader, which does.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the server at baseURL. A nil httpClient
// uses http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// StatusError reports a non-2xx API response. 5xx and 429 responses
// are temporary: the server exists but could not answer right now.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

// Temporary reports whether retrying the same request could succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// ListAlbums fetches one page of albums.
func (c *Client) ListAlbums(ctx context.Context, page, pageSize int) (*paging.Page[library.Album], error) {
	var out paging.Page[library.Album]
	if err := c.getJSON(ctx, "/api/albums", pageQuery(page, pageSize), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAlbum fetches one album by ID.
func (c *Client) GetAlbum(ctx context.Context, id int64) (*library.Album, error) {
	var out library.Album
	path := "/api/albums/" + strconv.FormatInt(id, 10)
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPhotos fetches one page of an album's photos.
func (c *Client) ListPhotos(ctx context.Context, albumID int64, page, pageSize int) (*paging.Page[library.Photo], error) {
	var out paging.Page[library.Photo]
	path := "/api/albums/" + strconv.FormatInt(albumID, 10) + "/photos"
	if err := c.getJSON(ctx, path, pageQuery(page, pageSize), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPhoto fetches one photo's metadata by ID. A missing ID yields an
// error satisfying errors.Is(err, library.ErrNotFound).
func (c *Client) GetPhoto(ctx context.Context, id int64) (*library.Photo, error) {
	var out library.Photo
	path := "/api/photos/" + strconv.FormatInt(id, 10)
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches the server's index statistics.
func (c *Client) Stats(ctx context.Context) (*library.IndexStats, error) {
	var out library.IndexStats
	if err := c.getJSON(ctx, "/api/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// getJSON performs one GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("fetch %s: %w", path, library.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// errorMessage extracts the message from a JSON error payload, if any.
func errorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}

func pageQuery(page, pageSize int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}
	return q
}

// AlbumFetcher adapts the client's album listing to the loader's
// page-fetch interface.
type AlbumFetcher struct {
	Client *Client
}

// FetchPage implements loader.PageFetcher.
func (f AlbumFetcher) FetchPage(ctx context.Context, page, pageSize int) (*paging.Page[library.Album], error) {
	return f.Client.ListAlbums(ctx, page, pageSize)
}

// PhotoFetcher adapts one album's photo listing to the loader's
// page-fetch interface.
type PhotoFetcher struct {
	Client  *Client
	AlbumID int64
}

// FetchPage implements loader.PageFetcher.
func (f PhotoFetcher) FetchPage(ctx context.Context, page, pageSize int) (*paging.Page[library.Photo], error) {
	return f.Client.ListPhotos(ctx, f.AlbumID, page, pageSize)
}
