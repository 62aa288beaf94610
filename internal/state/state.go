// Package state holds the live UI-side state the mapping engine reads from
// and writes back to: pagination, sort and the filter expression.
package state

import "math"

// Pagination is the table's pagination state. TotalPages of zero means absent.
type Pagination struct {
	Current    int `json:"current"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages,omitempty"`
}

// DerivedTotalPages returns TotalPages, or ceil(Total/PageSize) when it is absent.
func (p Pagination) DerivedTotalPages() int {
	if p.TotalPages > 0 {
		return p.TotalPages
	}
	if p.PageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(p.Total) / float64(p.PageSize)))
}

// Sort orders.
const (
	Ascend  = "ascend"
	Descend = "descend"
)

// Sort is the sorted column. An empty Order means sorting was cancelled.
type Sort struct {
	Field string `json:"field"`
	Order string `json:"order,omitempty"`
}

// Active reports whether a column is sorted.
func (s *Sort) Active() bool {
	return s != nil && s.Field != "" && (s.Order == Ascend || s.Order == Descend)
}
