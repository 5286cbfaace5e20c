package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"photoflow/internal/logging"
	"photoflow/internal/paging"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
)

// ListAlbums returns one page of albums, newest date first. Pagination
// metadata comes from a COUNT of the full result set so hasNextPage is
// accurate even while the indexer is writing.
func (s *Store) ListAlbums(ctx context.Context, page, pageSize int) (*paging.Page[Album], error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_albums", start, err) }()

	page, pageSize = paging.Clamp(page, pageSize, defaultPageSize, maxPageSize)
	logging.Debug("ListAlbums: page=%d pageSize=%d", page, pageSize)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var totalItems int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM albums").Scan(&totalItems)
	if err != nil {
		logging.Error("ListAlbums count query failed: %v", err)
		return nil, fmt.Errorf("count query failed: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := s.db.QueryContext(ctx, `
	SELECT a.id, a.date, a.title, a.created_at,
		(SELECT COUNT(*) FROM photos p WHERE p.album_id = a.id),
		(SELECT p.id FROM photos p WHERE p.album_id = a.id ORDER BY p.taken_at LIMIT 1)
	FROM albums a
	ORDER BY a.date DESC
	LIMIT ? OFFSET ?
	`, pageSize, offset)
	if err != nil {
		logging.Error("ListAlbums select query failed: %v", err)
		return nil, fmt.Errorf("select query failed: %w", err)
	}
	defer rows.Close()

	items := []Album{}
	for rows.Next() {
		var a Album
		var createdAt int64
		var coverID sql.NullInt64

		if err = rows.Scan(&a.ID, &a.Date, &a.Title, &createdAt, &a.PhotoCount, &coverID); err != nil {
			logging.Error("ListAlbums scan failed: %v", err)
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		a.CreatedAt = time.Unix(createdAt, 0)
		if coverID.Valid {
			a.CoverURL = thumbnailURL(coverID.Int64)
		}
		items = append(items, a)
	}
	if err = rows.Err(); err != nil {
		logging.Error("ListAlbums rows error: %v", err)
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &paging.Page[Album]{
		Items:      items,
		Pagination: paging.New(page, pageSize, totalItems),
	}, nil
}

// GetAlbum returns one album by ID, or ErrNotFound.
func (s *Store) GetAlbum(ctx context.Context, id int64) (*Album, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_album", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var a Album
	var createdAt int64
	var coverID sql.NullInt64

	err = s.db.QueryRowContext(ctx, `
	SELECT a.id, a.date, a.title, a.created_at,
		(SELECT COUNT(*) FROM photos p WHERE p.album_id = a.id),
		(SELECT p.id FROM photos p WHERE p.album_id = a.id ORDER BY p.taken_at LIMIT 1)
	FROM albums a WHERE a.id = ?
	`, id).Scan(&a.ID, &a.Date, &a.Title, &createdAt, &a.PhotoCount, &coverID)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("album %d: %w", id, ErrNotFound)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get album failed: %w", err)
	}

	a.CreatedAt = time.Unix(createdAt, 0)
	if coverID.Valid {
		a.CoverURL = thumbnailURL(coverID.Int64)
	}
	return &a, nil
}

// ListPhotos returns one page of an album's photos in capture order.
// An unknown album ID yields ErrNotFound rather than an empty page.
func (s *Store) ListPhotos(ctx context.Context, albumID int64, page, pageSize int) (*paging.Page[Photo], error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_photos", start, err) }()

	page, pageSize = paging.Clamp(page, pageSize, defaultPageSize, maxPageSize)
	logging.Debug("ListPhotos: album=%d page=%d pageSize=%d", albumID, page, pageSize)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var totalItems int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM photos WHERE album_id = ?", albumID,
	).Scan(&totalItems)
	if err != nil {
		logging.Error("ListPhotos count query failed: %v", err)
		return nil, fmt.Errorf("count query failed: %w", err)
	}

	if totalItems == 0 {
		var exists bool
		if err = s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) > 0 FROM albums WHERE id = ?", albumID,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("album check failed: %w", err)
		}
		if !exists {
			err = fmt.Errorf("album %d: %w", albumID, ErrNotFound)
			return nil, err
		}
	}

	offset := (page - 1) * pageSize
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, album_id, name, path, size, taken_at, mime_type, width, height
	FROM photos
	WHERE album_id = ?
	ORDER BY taken_at, id
	LIMIT ? OFFSET ?
	`, albumID, pageSize, offset)
	if err != nil {
		logging.Error("ListPhotos select query failed: %v", err)
		return nil, fmt.Errorf("select query failed: %w", err)
	}
	defer rows.Close()

	items := []Photo{}
	for rows.Next() {
		var p Photo
		if p, err = scanPhoto(rows); err != nil {
			logging.Error("ListPhotos scan failed: %v", err)
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		items = append(items, p)
	}
	if err = rows.Err(); err != nil {
		logging.Error("ListPhotos rows error: %v", err)
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &paging.Page[Photo]{
		Items:      items,
		Pagination: paging.New(page, pageSize, totalItems),
	}, nil
}

// GetPhoto returns one photo by ID, or ErrNotFound.
func (s *Store) GetPhoto(ctx context.Context, id int64) (*Photo, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_photo", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
	SELECT id, album_id, name, path, size, taken_at, mime_type, width, height
	FROM photos WHERE id = ?
	`, id)

	p, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("photo %d: %w", id, ErrNotFound)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get photo failed: %w", err)
	}
	return &p, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row scanner) (Photo, error) {
	var p Photo
	var takenAt int64
	var mimeType sql.NullString

	err := row.Scan(
		&p.ID, &p.AlbumID, &p.Name, &p.Path,
		&p.Size, &takenAt, &mimeType, &p.Width, &p.Height,
	)
	if err != nil {
		return Photo{}, err
	}

	p.TakenAt = time.Unix(takenAt, 0)
	if mimeType.Valid {
		p.MimeType = mimeType.String
	}
	p.ThumbnailURL = thumbnailURL(p.ID)
	p.FullURL = fmt.Sprintf("/api/photos/%d/file", p.ID)
	return p, nil
}

func thumbnailURL(photoID int64) string {
	return fmt.Sprintf("/api/photos/%d/thumbnail", photoID)
}
