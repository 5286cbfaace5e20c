package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"photoflow/internal/client"
	"photoflow/internal/library"
	"photoflow/internal/loader"
	"photoflow/internal/preload"
	"photoflow/internal/viewport"
)

const (
	defaultServer  = "http://localhost:8080"
	commandTimeout = 2 * time.Minute
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	server := os.Getenv("PHOTOFLOW_SERVER")
	if server == "" {
		server = defaultServer
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	c := client.New(server, nil)

	var ok bool
	switch os.Args[1] {
	case "albums":
		ok = listAlbums(ctx, c)
	case "photos":
		ok = withAlbumID(func(id int64) bool { return listPhotos(ctx, c, id) })
	case "warm":
		ok = withAlbumID(func(id int64) bool { return warmAlbum(ctx, c, server, id) })
	case "stats":
		ok = showStats(ctx, c)
	default:
		printUsage()
		os.Exit(1)
	}

	if !ok {
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Photoflow Gallery Client")
	fmt.Println("")
	fmt.Println("Usage: galleryctl <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  albums          - List every album, paging through the API")
	fmt.Println("  photos <album>  - List the photos in an album")
	fmt.Println("  warm <album>    - Preload an album's thumbnails into the cache")
	fmt.Println("  stats           - Show server library statistics")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  PHOTOFLOW_SERVER - Server base URL (default: %s)\n", defaultServer)
}

func withAlbumID(fn func(int64) bool) bool {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Error: album ID required")
		printUsage()
		return false
	}
	id, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "Error: invalid album ID %q\n", os.Args[2])
		return false
	}
	return fn(id)
}

// drain pages through the loader until the server reports no next page.
func drain[T any](ctx context.Context, l *loader.Loader[T]) error {
	if err := l.Refresh(ctx); err != nil {
		return err
	}
	for l.Status().HasNextPage {
		if err := l.LoadMore(ctx); err != nil {
			return err
		}
	}
	return nil
}

func listAlbums(ctx context.Context, c *client.Client) bool {
	l := loader.New[library.Album](&client.AlbumFetcher{Client: c}, loader.Config{PageSize: 50})
	if err := drain(ctx, l); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list albums: %v\n", err)
		return false
	}

	albums := l.Items()
	for _, a := range albums {
		fmt.Printf("%6d  %s  %-28s %4d photos\n", a.ID, a.Date, a.Title, a.PhotoCount)
	}
	fmt.Printf("\n%d albums\n", len(albums))
	return true
}

func listPhotos(ctx context.Context, c *client.Client, albumID int64) bool {
	l := loader.New[library.Photo](&client.PhotoFetcher{Client: c, AlbumID: albumID}, loader.Config{PageSize: 50})
	if err := drain(ctx, l); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list photos: %v\n", err)
		return false
	}

	photos := l.Items()
	for _, p := range photos {
		fmt.Printf("%6d  %s  %s  %dx%d  %.1f KB\n",
			p.ID, p.TakenAt.Format("15:04:05"), p.Name, p.Width, p.Height, float64(p.Size)/1024)
	}
	fmt.Printf("\n%d photos\n", len(photos))
	return true
}

// warmAlbum walks the album through a viewer-mode preload orchestrator,
// stepping the focus across every photo so the cache ends up holding
// the full set of thumbnails.
func warmAlbum(ctx context.Context, c *client.Client, server string, albumID int64) bool {
	l := loader.New[library.Photo](&client.PhotoFetcher{Client: c, AlbumID: albumID}, loader.Config{PageSize: 50})
	if err := drain(ctx, l); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list photos: %v\n", err)
		return false
	}

	photos := l.Items()
	if len(photos) == 0 {
		fmt.Println("Album is empty, nothing to warm.")
		return true
	}

	cache := preload.NewCache(preload.Config{MaxConcurrent: 8})
	defer cache.Close()

	items := make([]viewport.Item, len(photos))
	for i, p := range photos {
		items[i] = viewport.Item{ThumbURL: server + p.ThumbnailURL}
	}

	orch := viewport.New(viewport.Config{
		Cache:        cache,
		Mode:         viewport.ModeViewer,
		PreloadAhead: 20,
	})
	orch.NotifyItems(ctx, items)

	fmt.Printf("Warming %d thumbnails...\n", len(photos))
	start := time.Now()
	for i := range items {
		orch.NotifyFocus(ctx, i)
	}
	waitForCache(ctx, cache, len(items))

	stats := cache.Stats()
	fmt.Printf("Preloaded %d, failed %d, skipped %d in %s (avg %s)\n",
		stats.Successful, stats.Failed, stats.Skipped,
		time.Since(start).Round(time.Millisecond), stats.AverageTime.Round(time.Millisecond))
	return true
}

// waitForCache polls cache stats until every distinct URL has settled
// or the context expires.
func waitForCache(ctx context.Context, cache *preload.Cache, want int) {
	for {
		stats := cache.Stats()
		if stats.Successful+stats.Failed+stats.Skipped >= want {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func showStats(ctx context.Context, c *client.Client) bool {
	stats, err := c.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to read stats: %v\n", err)
		return false
	}

	fmt.Printf("Albums:       %d\n", stats.TotalAlbums)
	fmt.Printf("Photos:       %d\n", stats.TotalPhotos)
	fmt.Printf("Total size:   %.1f MB\n", float64(stats.TotalBytes)/(1024*1024))
	if !stats.LastIndexed.IsZero() {
		fmt.Printf("Last indexed: %s\n", stats.LastIndexed.Format(time.RFC3339))
	}
	return true
}
