package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"photoflow/internal/indexer"
	"photoflow/internal/library"
	"photoflow/internal/logging"
	"photoflow/internal/media"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default directory paths, matching the server defaults
	defaultDatabaseDir = "/database"
	defaultPhotosDir   = "/photos"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}
	dbPath := filepath.Join(databaseDir, "photoflow.db")

	store, err := library.Open(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open library database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", databaseDir)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	switch command {
	case "run":
		if !runIndex(store) {
			os.Exit(1)
		}
	case "stats":
		showStats(ctx, store)
	case "vacuum":
		if !runVacuum(store) {
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Photoflow Library Maintenance")
	fmt.Println("")
	fmt.Println("Usage: reindex <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run     - Run a full index of the photo directory")
	fmt.Println("  stats   - Show library statistics")
	fmt.Println("  vacuum  - Compact the library database")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  PHOTOS_DIR   - Path to photo directory (default: %s)\n", defaultPhotosDir)
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
	fmt.Println("  LOG_LEVEL    - debug, info, warn, error")
}

func runIndex(store *library.Store) bool {
	photosDir := os.Getenv("PHOTOS_DIR")
	if photosDir == "" {
		photosDir = defaultPhotosDir
	}

	if _, err := os.Stat(photosDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Photos directory not accessible: %v\n", err)
		return false
	}

	if err := media.InitVips(); err != nil {
		logging.Debug("libvips unavailable: %v", err)
	}
	defer media.ShutdownVips()

	fmt.Printf("Indexing %s...\n", photosDir)
	start := time.Now()

	idx := indexer.New(store, photosDir, 0, nil)
	if err := idx.Index(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Index failed: %v\n", err)
		return false
	}

	stats := store.Stats()
	fmt.Printf("Indexed %d photos in %d albums (%s)\n",
		stats.TotalPhotos, stats.TotalAlbums, time.Since(start).Round(time.Millisecond))
	return true
}

func showStats(ctx context.Context, store *library.Store) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats, err := store.CountStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to read stats: %v\n", err)
		return
	}

	fmt.Printf("Albums:      %d\n", stats.TotalAlbums)
	fmt.Printf("Photos:      %d\n", stats.TotalPhotos)
	fmt.Printf("Total size:  %.1f MB\n", float64(stats.TotalBytes)/(1024*1024))
}

func runVacuum(store *library.Store) bool {
	fmt.Println("Compacting library database...")
	if err := store.Vacuum(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Vacuum failed: %v\n", err)
		return false
	}
	fmt.Println("Done.")
	return true
}
