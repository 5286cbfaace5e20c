package library

import "time"

// Album is a date-grouped collection of photos. Date is the album's
// day in YYYY-MM-DD form and doubles as its natural key.
type Album struct {
	ID         int64     `json:"id"`
	Date       string    `json:"date"`
	Title      string    `json:"title"`
	PhotoCount int       `json:"photoCount"`
	CoverURL   string    `json:"coverUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Photo is a single indexed image file.
type Photo struct {
	ID           int64     `json:"id"`
	AlbumID      int64     `json:"albumId"`
	Name         string    `json:"name"`
	Path         string    `json:"-"`
	Size         int64     `json:"size"`
	TakenAt      time.Time `json:"takenAt"`
	MimeType     string    `json:"mimeType,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	FullURL      string    `json:"fullUrl"`
}

// IndexStats summarizes the library after an index pass.
type IndexStats struct {
	TotalAlbums   int       `json:"totalAlbums"`
	TotalPhotos   int       `json:"totalPhotos"`
	TotalBytes    int64     `json:"totalBytes"`
	LastIndexed   time.Time `json:"lastIndexed"`
	IndexDuration string    `json:"indexDuration"`
}
