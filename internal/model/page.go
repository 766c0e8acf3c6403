package model

// Meta is the pagination block of a list envelope; TotalPages is computed server-side.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// MaxPages is the largest page count Total and Limit allow, at least one.
// It returns -1 when Limit is unset.
func (m Meta) MaxPages() int {
	if m.Limit <= 0 {
		return -1
	}
	if m.Total <= 0 {
		return 1
	}
	return (m.Total + m.Limit - 1) / m.Limit
}

// Page is a bounded, ordered slice of a collection.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

// PageNumbers returns the page-number controls 1..TotalPages. TotalPages is
// capped at what Total and Limit allow; a non-positive count yields none.
func (p Page[T]) PageNumbers() []int {
	n := p.Meta.TotalPages
	if most := p.Meta.MaxPages(); most >= 0 && n > most {
		n = most
	}
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, i)
	}
	return out
}

// ListParams are the query parameters accepted by paginated reads.
type ListParams struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder string // "asc" or "desc"
	Search    string
}

// Defaults used when a caller leaves Page or Limit unset.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Normalize fills unset paging fields with the defaults.
func (p ListParams) Normalize() ListParams {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	return p
}

// Partition splits a page into the pinned section and the remaining section.
// An ID never appears in both; the remaining section keeps page order.
func Partition(pinned []ContentItem, page []ContentItem) (top, rest []ContentItem) {
	seen := make(map[string]struct{}, len(pinned))
	top = make([]ContentItem, 0, len(pinned))
	for _, it := range pinned {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		top = append(top, it)
	}
	rest = make([]ContentItem, 0, len(page))
	for _, it := range page {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		rest = append(rest, it)
	}
	return top, rest
}
