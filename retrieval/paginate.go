package retrieval

import "strconv"

// Ellipsis marks a run of 2+ skipped pages in a page-number list.
const Ellipsis = "..."

// Page is one window over an ordered result set. Number is 1-indexed.
type Page[T any] struct {
	Items      []T
	Number     int
	TotalPages int
}

// Paginate slices items into the pageSize-sized window at pageNumber.
// An out-of-range page yields an empty slice, not an error; callers are
// expected to clamp but the adapter tolerates whatever they send.
func Paginate[T any](items []T, pageNumber, pageSize int) Page[T] {
	if pageSize <= 0 {
		pageSize = 1
	}
	totalPages := (len(items) + pageSize - 1) / pageSize

	page := Page[T]{Number: pageNumber, TotalPages: totalPages}
	if pageNumber < 1 || pageNumber > totalPages {
		page.Items = []T{}
		return page
	}

	start := (pageNumber - 1) * pageSize
	end := min(start+pageSize, len(items))
	page.Items = items[start:end]
	return page
}

// PageNumbers builds the label sequence for pagination controls: always the
// first and last page, up to one page either side of the current one, and a
// single ellipsis wherever 2+ pages are skipped.
func PageNumbers(currentPage, totalPages int) []string {
	if totalPages <= 1 {
		return []string{"1"}
	}

	startPage := max(2, currentPage-1)
	endPage := min(totalPages-1, currentPage+1)

	numbers := []string{"1"}
	if startPage > 2 {
		numbers = append(numbers, Ellipsis)
	}
	for page := startPage; page <= endPage; page++ {
		numbers = append(numbers, strconv.Itoa(page))
	}
	if endPage < totalPages-1 {
		numbers = append(numbers, Ellipsis)
	}
	return append(numbers, strconv.Itoa(totalPages))
}
