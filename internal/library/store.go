package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photoflow/internal/logging"
	"photoflow/internal/metrics"
)

// Default timeout for store operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when an album or photo ID does not exist.
// It is a structural failure: retrying the same lookup cannot succeed.
var ErrNotFound = errors.New("not found")

// Store manages the photo library database.
type Store struct {
	db      *sql.DB
	dbPath  string
	mu      sync.RWMutex
	stats   IndexStats
	statsMu sync.RWMutex
	txStart time.Time
}

// Open creates a Store backed by the SQLite file at dbPath. The parent
// directory must already exist and be writable; use startup.LoadConfig
// to validate it first. ":memory:" opens an in-process database.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	logging.Info("Library database path: %s", dbPath)

	// WAL mode and busy_timeout keep concurrent readers from hitting
	// "database is locked" while the indexer writes.
	connStr := dbPath
	if !strings.Contains(dbPath, ":memory:") {
		connStr = fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if strings.Contains(dbPath, ":memory:") {
		// An in-memory database exists per connection; more than one
		// open connection would see different databases.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(time.Hour)
	}

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Library database initialized at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	-- Albums: one per calendar day that has photos
	CREATE TABLE IF NOT EXISTS albums (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_albums_date ON albums(date);

	-- Photos
	CREATE TABLE IF NOT EXISTS photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		album_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		size INTEGER NOT NULL DEFAULT 0,
		taken_at INTEGER NOT NULL,
		mime_type TEXT,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (album_id) REFERENCES albums(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_photos_album ON photos(album_id);
	CREATE INDEX IF NOT EXISTS idx_photos_taken_at ON photos(taken_at);
	CREATE INDEX IF NOT EXISTS idx_photos_path ON photos(path);

	-- Composite index for the album photo listing
	CREATE INDEX IF NOT EXISTS idx_photos_album_taken ON photos(album_id, taken_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginBatch starts a transaction for batch index operations. The
// caller is responsible for calling EndBatch when done.
func (s *Store) BeginBatch() (*sql.Tx, error) {
	s.mu.Lock()
	txStart := time.Now()

	// Background context: transaction lifetime is managed by EndBatch,
	// a deferred cancel here would kill the transaction on return.
	tx, err := s.db.BeginTx(context.Background(), nil)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.txStart = txStart
	return tx, nil
}

// EndBatch commits or rolls back a transaction.
func (s *Store) EndBatch(tx *sql.Tx, err error) error {
	duration := time.Since(s.txStart).Seconds()

	if err != nil {
		metrics.LibraryTxDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.LibraryTxDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// UpsertAlbum inserts or finds the album for a date within a
// transaction and returns its ID.
func (s *Store) UpsertAlbum(tx *sql.Tx, date, title string) (int64, error) {
	_, err := tx.ExecContext(context.Background(), `
	INSERT INTO albums (date, title) VALUES (?, ?)
	ON CONFLICT(date) DO UPDATE SET title = excluded.title
	`, date, title)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRowContext(context.Background(),
		"SELECT id FROM albums WHERE date = ?", date,
	).Scan(&id)
	return id, err
}

// UpsertPhoto inserts or updates a photo record within a transaction.
// updated_at tracks when the indexer last saw the file so cleanup can
// remove records for files that disappeared.
func (s *Store) UpsertPhoto(tx *sql.Tx, p *Photo) error {
	query := `
	INSERT INTO photos (album_id, name, path, size, taken_at, mime_type, width, height, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))
	ON CONFLICT(path) DO UPDATE SET
		album_id = excluded.album_id,
		name = excluded.name,
		size = excluded.size,
		taken_at = excluded.taken_at,
		mime_type = excluded.mime_type,
		width = excluded.width,
		height = excluded.height,
		updated_at = strftime('%s', 'now')
	`

	result, err := tx.ExecContext(context.Background(), query,
		p.AlbumID,
		p.Name,
		p.Path,
		p.Size,
		p.TakenAt.Unix(),
		p.MimeType,
		p.Width,
		p.Height,
	)
	if err == nil {
		if rows, _ := result.RowsAffected(); rows > 0 {
			metrics.LibraryRowsAffected.WithLabelValues("upsert_photo").Observe(float64(rows))
		}
	}
	return err
}

// DeleteMissingPhotos removes photos not seen since cutoffTime. Must
// be called within a transaction.
func (s *Store) DeleteMissingPhotos(tx *sql.Tx, cutoffTime time.Time) (int64, error) {
	result, err := tx.ExecContext(context.Background(),
		"DELETE FROM photos WHERE updated_at < ?",
		cutoffTime.Unix(),
	)
	if err != nil {
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err == nil && rowsAffected > 0 {
		metrics.LibraryRowsAffected.WithLabelValues("delete_photos").Observe(float64(rowsAffected))
	}
	return rowsAffected, err
}

// DeleteEmptyAlbums removes albums whose photos were all cleaned up.
// Must be called within a transaction.
func (s *Store) DeleteEmptyAlbums(tx *sql.Tx) (int64, error) {
	result, err := tx.ExecContext(context.Background(), `
	DELETE FROM albums WHERE id NOT IN (SELECT DISTINCT album_id FROM photos)
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// UpdateStats replaces the cached index statistics.
func (s *Store) UpdateStats(stats IndexStats) {
	s.statsMu.Lock()
	s.stats = stats
	s.statsMu.Unlock()

	metrics.LibraryAlbumsTotal.Set(float64(stats.TotalAlbums))
	metrics.LibraryPhotosTotal.Set(float64(stats.TotalPhotos))
}

// Stats returns the cached index statistics.
func (s *Store) Stats() IndexStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

// CountStats recomputes the statistics from the database. Called by
// the indexer after a pass; queries read the cached copy.
func (s *Store) CountStats(ctx context.Context) (IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats IndexStats
	err := s.db.QueryRowContext(ctx, `
	SELECT
		(SELECT COUNT(*) FROM albums),
		(SELECT COUNT(*) FROM photos),
		(SELECT COALESCE(SUM(size), 0) FROM photos)
	`).Scan(&stats.TotalAlbums, &stats.TotalPhotos, &stats.TotalBytes)
	if err != nil {
		return IndexStats{}, fmt.Errorf("stats query failed: %w", err)
	}
	return stats, nil
}

// Vacuum optimizes the database.
func (s *Store) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records library query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LibraryQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.LibraryQueryDuration.WithLabelValues(operation).Observe(duration)
}
