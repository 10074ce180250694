package utils

import (
	"net/http"
	"strconv"
)

type PaginationParams struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	TotalRows  int `json:"total_rows"`
	TotalPages int `json:"total_pages"`
}

// ExtractPagination reads page and limit from the query string. Unparsable
// or non-positive pages fall back to 1; limit falls back to def and is
// clamped to 1..max.
func ExtractPagination(r *http.Request, def, max int) PaginationParams {
	params := PaginationParams{Page: 1, Limit: def}
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		params.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		params.Limit = v
	}
	if params.Limit < 1 {
		params.Limit = 1
	}
	if max > 0 && params.Limit > max {
		params.Limit = max
	}
	params.Offset = (params.Page - 1) * params.Limit
	return params
}

func (p *PaginationParams) SetPaginationStats(totalRows int) {
	p.TotalRows = totalRows
	p.TotalPages = 0
	if totalRows > 0 {
		p.TotalPages = (totalRows + p.Limit - 1) / p.Limit
	}
}
