// Package paginate windows an ordered slice into fixed-size pages.
package paginate

// DefaultPageSize is the number of items shown per page in chat listings.
const DefaultPageSize = 5

// Page is one window over a source sequence.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Index   int  `json:"index"`
	Pages   int  `json:"pages"`
	Total   int  `json:"total"`
	HasPrev bool `json:"has_prev"`
	HasNext bool `json:"has_next"`
}

// Empty reports whether the source sequence had no items at all, as opposed to
// a page that simply ran out.
func (p Page[T]) Empty() bool {
	return p.Total == 0
}

// Paginate returns the page at index. Out-of-range indexes clamp to the nearest
// valid page; the item order of the source is preserved.
func Paginate[T any](items []T, pageSize, index int) Page[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := len(items)
	if total == 0 {
		return Page[T]{Items: []T{}}
	}

	pages := (total + pageSize - 1) / pageSize
	if index < 0 {
		index = 0
	}
	if index >= pages {
		index = pages - 1
	}

	start := index * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}

	window := make([]T, end-start)
	copy(window, items[start:end])

	return Page[T]{
		Items:   window,
		Index:   index,
		Pages:   pages,
		Total:   total,
		HasPrev: index > 0,
		HasNext: index < pages-1,
	}
}

// PageCount returns how many pages a sequence of length n spans.
func PageCount(n, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if n <= 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}
