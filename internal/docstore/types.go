// Package docstore holds the backend-neutral shapes used by document-store
// adapters: filter parameters, pagination results and the outcome of a
// uniqueness-checked insert.
package docstore

import "github.com/koustreak/roubi/internal/errs"

const (
	// StatusField is the document field that carries the lifecycle status.
	StatusField = "status"

	// StatusArchived marks a document as logically deleted but retained.
	StatusArchived = "archived"

	// DetailUniqueValidation is the InsertResult detail for a duplicate.
	DetailUniqueValidation = "unique validation"
)

// Sort orders accepted by MultiFilter.Order.
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// Filter is one field/value predicate. String values match as a
// case-insensitive regular expression, anything else matches by equality.
type Filter struct {
	Field string `json:"field" mapstructure:"field"`
	Value any    `json:"value" mapstructure:"value"`
}

// TimeRange restricts Field to [GTE, LTE]. It is ignored when GTE is nil.
type TimeRange struct {
	Field string `json:"field" mapstructure:"field"`
	GTE   any    `json:"gte" mapstructure:"gte"`
	LTE   any    `json:"lte" mapstructure:"lte"`
}

// MultiFilter describes one paginated query.
type MultiFilter struct {
	Filters   []Filter   `json:"filters" mapstructure:"filters"`
	TimeRange *TimeRange `json:"timeframe,omitempty" mapstructure:"timeframe"`

	// Page is 1-based; 0 means "no paging, first Size records".
	Page    int    `json:"page" mapstructure:"page"`
	Size    int    `json:"size" mapstructure:"size"`
	OrderBy string `json:"orderBy" mapstructure:"order_by"`
	Order   string `json:"order" mapstructure:"order"`
}

// Validate rejects parameters the pagination arithmetic cannot handle.
func (m MultiFilter) Validate() error {
	if m.Size <= 0 {
		return errs.New(errs.ErrKindInvalidInput, "page size must be positive")
	}
	if m.Page < 0 {
		return errs.New(errs.ErrKindInvalidInput, "page must not be negative")
	}
	return nil
}

// Pagination summarises a paginated query. It is recomputed on every call.
type Pagination struct {
	Size       int   `json:"size" yaml:"size"`
	TotalPages int   `json:"totalPages" yaml:"totalPages"`
	TotalItems int64 `json:"totalItems" yaml:"totalItems"`
}

// Paginate computes the pagination summary for total matching items.
// TotalPages is total/size rounded down when total exceeds size, 1 when
// there is at least one item, and 0 when there are none.
func Paginate(total int64, size int) Pagination {
	p := Pagination{Size: size, TotalItems: total}
	switch {
	case total == 0:
		p.TotalPages = 0
	case total > int64(size):
		p.TotalPages = int(total / int64(size))
	default:
		p.TotalPages = 1
	}
	return p
}

// Skip is the number of records to skip for page (1-based) of size.
func Skip(page, size int) int64 {
	if page <= 1 {
		return 0
	}
	return int64(page-1) * int64(size)
}

// InsertResult is the outcome of a uniqueness-checked insert. A duplicate is
// reported as Status false, never as an error.
type InsertResult struct {
	Status bool   `json:"status" yaml:"status"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Data   any    `json:"data" yaml:"data"`
}
