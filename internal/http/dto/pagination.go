package dto

import (
	"math"
	"net/url"
	"strconv"

	"github.com/cesargomez89/odyvault/internal/constants"
)

type Pagination struct {
	CurrentPage int  `json:"page"`
	TotalPages  int  `json:"total_pages"`
	TotalItems  int  `json:"total_items"`
	PageSize    int  `json:"page_size"`
	HasPrev     bool `json:"has_prev"`
	HasNext     bool `json:"has_next"`
}

func NewPagination(page, pageSize, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = constants.DefaultPageSize
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))
	if totalPages == 0 {
		totalPages = 1
	}

	if page > totalPages {
		page = totalPages
	}

	return &Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  total,
		PageSize:    pageSize,
		HasPrev:     page > 1,
		HasNext:     page < totalPages,
	}
}

// Bounds returns the slice range of the current page.
func (p *Pagination) Bounds() (start, end int) {
	start = (p.CurrentPage - 1) * p.PageSize
	if start > p.TotalItems {
		start = p.TotalItems
	}
	end = start + p.PageSize
	if end > p.TotalItems {
		end = p.TotalItems
	}
	return start, end
}

// Paginate cuts items down to the requested page.
func Paginate[T any](items []T, page, pageSize int) ([]T, *Pagination) {
	p := NewPagination(page, pageSize, len(items))
	start, end := p.Bounds()
	return items[start:end], p
}

// ParsePage reads page and page_size query parameters. Missing values fall
// back to the defaults; page_size is capped.
func ParsePage(values url.Values) (page, pageSize int, errs []ValidationError) {
	page, pageSize = 1, constants.DefaultPageSize
	if s := values.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			errs = append(errs, ValidationError{Field: "page", Message: "must be a positive integer"})
		} else {
			page = n
		}
	}
	if s := values.Get("page_size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			errs = append(errs, ValidationError{Field: "page_size", Message: "must be a positive integer"})
		} else {
			pageSize = min(n, constants.MaxPageSize)
		}
	}
	return page, pageSize, errs
}
