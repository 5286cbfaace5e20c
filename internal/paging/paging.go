// Package paging defines the generic page shape shared by the library
// store, the HTTP API, and the paginated loader.
package paging

import "math"

// Pagination carries the metadata for one fetched page. HasNextPage is
// the sole driver of whether further fetches are attempted.
type Pagination struct {
	Page            int  `json:"page"`
	PageSize        int  `json:"pageSize"`
	TotalItems      int  `json:"totalItems"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// Page is one fetched batch of items plus its pagination metadata.
// Pages are immutable once returned by a fetcher.
type Page[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// New computes pagination metadata for a page/pageSize/total triple.
func New(page, pageSize, totalItems int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	if totalPages < 1 {
		totalPages = 1
	}

	return Pagination{
		Page:            page,
		PageSize:        pageSize,
		TotalItems:      totalItems,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

// Clamp normalizes a requested page and page size against sane bounds.
// Matches the API defaults: page >= 1, pageSize in [1, maxPageSize].
func Clamp(page, pageSize, defaultSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}
