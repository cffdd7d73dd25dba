package pagination

import "math"

const (
	// DefaultLimit is the page size used when a limit is missing or out of range.
	DefaultLimit = 50
	// MaxLimit caps how many rows any page can request.
	MaxLimit = 500
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Page describes the position of a result page inside the full result set.
type Page struct {
	CurrentPage  int   `json:"current_page"`
	TotalPages   int   `json:"total_pages"`
	TotalRecords int64 `json:"total_records"`
	Limit        int   `json:"limit"`
	HasNext      bool  `json:"has_next"`
	HasPrev      bool  `json:"has_prev"`
}

// NormalizePage coerces anything below 1 to the first page.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// NormalizeLimit falls back to DefaultLimit when limit is outside [1, MaxLimit].
func NormalizeLimit(limit int) int {
	if limit < 1 || limit > MaxLimit {
		return DefaultLimit
	}
	return limit
}

// Normalize applies both page and limit coercion.
func (p Params) Normalize() Params {
	return Params{Page: NormalizePage(p.Page), Limit: NormalizeLimit(p.Limit)}
}

// Offset is the number of rows to skip for the normalized params.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Build computes the page metadata for a total row count.
func Build(p Params, total int64) Page {
	n := p.Normalize()
	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(n.Limit)))
	}
	return Page{
		CurrentPage:  n.Page,
		TotalPages:   totalPages,
		TotalRecords: total,
		Limit:        n.Limit,
		HasNext:      n.Page < totalPages,
		HasPrev:      n.Page > 1,
	}
}
