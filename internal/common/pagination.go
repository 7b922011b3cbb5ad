package common

import "net/http"

const maxPerPage = 100

// Pagination describes the page returned by a history listing.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// ParsePagination reads ?page= and ?perPage= (?limit= is accepted as an
// alias), clamping the page size to 100.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	q := r.URL.Query()
	page = AtoiDefault(q.Get("page"), 1)
	if page < 1 {
		page = 1
	}
	size := q.Get("perPage")
	if size == "" {
		size = q.Get("limit")
	}
	perPage = AtoiDefault(size, defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

// Paginate slices rows to the requested page.
func Paginate[T any](r *http.Request, rows []T, defaultPerPage int) ([]T, Pagination) {
	page, perPage := ParsePagination(r, defaultPerPage)
	total := len(rows)
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)
	return rows[start:end], Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
}
