package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"photoflow/internal/library"
	"photoflow/internal/loader"
	"photoflow/internal/paging"
	"photoflow/internal/retry"
)

func albumPage(page, pageSize, total int) paging.Page[library.Album] {
	p := paging.New(page, pageSize, total)
	items := make([]library.Album, 0, pageSize)
	start := (page - 1) * pageSize
	for i := start; i < start+pageSize && i < total; i++ {
		items = append(items, library.Album{
			ID:    int64(i + 1),
			Date:  fmt.Sprintf("2026-03-%02d", i+1),
			Title: fmt.Sprintf("Album %d", i+1),
		})
	}
	return paging.Page[library.Album]{Items: items, Pagination: p}
}

func TestListAlbums(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/albums" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("pageSize"); got != "10" {
			t.Errorf("pageSize query = %q, want 10", got)
		}
		json.NewEncoder(w).Encode(albumPage(2, 10, 25))
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	result, err := c.ListAlbums(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("list albums failed: %v", err)
	}
	if len(result.Items) != 10 {
		t.Errorf("items = %d, want 10", len(result.Items))
	}
	if !result.Pagination.HasNextPage || !result.Pagination.HasPreviousPage {
		t.Errorf("pagination = %+v, want next and previous", result.Pagination)
	}
}

func TestNotFoundIsStructural(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "photo 42: not found"})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetPhoto(context.Background(), 42)
	if !errors.Is(err, library.ErrNotFound) {
		t.Fatalf("err = %v, want library.ErrNotFound", err)
	}
	if retry.DefaultRetryable(err) {
		t.Error("a missing resource must not be retried")
	}
}

func TestServerErrorIsTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "reindex in progress"})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.ListAlbums(context.Background(), 1, 10)
	if err == nil {
		t.Fatal("expected an error for a 503 response")
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %T, want *StatusError", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable || se.Message != "reindex in progress" {
		t.Errorf("status error = %+v, want code and decoded message", se)
	}
	if !retry.DefaultRetryable(err) {
		t.Error("a 503 should be retryable")
	}
}

func TestTransportErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := New(srv.URL, nil)
	_, err := c.ListAlbums(context.Background(), 1, 10)
	if err == nil {
		t.Fatal("expected an error against a closed server")
	}

	var ue *url.Error
	if !errors.As(err, &ue) {
		t.Errorf("err = %v, want the transport error preserved in the chain", err)
	}
}

func TestAlbumFetcherDrivesLoader(t *testing.T) {
	var failures atomic.Int32
	failures.Store(1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		// One transient failure on page 2 exercises the loader's retry
		// path end to end.
		if page == "2" && failures.Add(-1) >= 0 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		n := 1
		if page == "2" {
			n = 2
		}
		json.NewEncoder(w).Encode(albumPage(n, 10, 15))
	}))
	defer srv.Close()

	l := loader.New[library.Album](AlbumFetcher{Client: New(srv.URL, nil)}, loader.Config{
		PageSize: 10,
		Retry: retry.Config{
			MaxRetries:    2,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2,
		},
	})

	if err := l.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if err := l.LoadMore(context.Background()); err != nil {
		t.Fatalf("load more failed: %v", err)
	}

	items := l.Items()
	if len(items) != 15 {
		t.Fatalf("accumulated %d albums, want 15", len(items))
	}
	if items[0].ID != 1 || items[14].ID != 15 {
		t.Errorf("albums out of order: first=%d last=%d", items[0].ID, items[14].ID)
	}
	if st := l.Status(); st.HasNextPage {
		t.Errorf("status = %+v, want no next page after the final page", st)
	}
}
