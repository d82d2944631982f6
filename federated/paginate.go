package federated

import "github.com/mediabot/mediabot/models"

// NoNextOffset marks the last page of a feed
const NoNextOffset = -1

// Pager is one instance's share of a feed, ordered newest first
type Pager[T any] interface {
	Count() (int, error)
	Page(skip, limit int) ([]T, error)
}

// Empty is a Pager without entries, standing in for an unconfigured instance
type Empty[T any] struct{}

func (Empty[T]) Count() (int, error) {
	return 0, nil
}

func (Empty[T]) Page(skip, limit int) ([]T, error) {
	return nil, nil
}

// Source binds a Pager to the instance serving it
type Source[T any] struct {
	Instance models.Instance
	Pager    Pager[T]
}

type Page[T any] struct {
	Items    []T
	Next     int
	Total    int
	Warnings Warnings
}

// EvenPageSize rounds odd sizes up so a page splits evenly into two button columns
func EvenPageSize(size int) int {
	if size%2 != 0 {
		size++
	}
	return size
}

// Paginate merges two feeds into one: all of newer, then all of older. Offsets address the
// merged feed, so consecutive pages have no gaps and no duplicates as long as neither
// instance changes between calls.
func Paginate[T any](newer, older Source[T], offset, size int) (page Page[T]) {
	size = EvenPageSize(size)
	if offset < 0 {
		offset = 0
	}
	page.Next = NoNextOffset

	newerCount, err := newer.Pager.Count()
	if err != nil {
		page.Warnings = append(page.Warnings, Warning{Instance: newer.Instance, Err: err})
		newer.Pager, newerCount = Empty[T]{}, 0
	}
	olderCount, err := older.Pager.Count()
	if err != nil {
		page.Warnings = append(page.Warnings, Warning{Instance: older.Instance, Err: err})
		older.Pager, olderCount = Empty[T]{}, 0
	}
	page.Total = newerCount + olderCount
	if size <= 0 {
		return page
	}

	page.Items = make([]T, 0, size)
	next := offset
	if offset < newerCount {
		items, err := newer.Pager.Page(offset, size)
		if err != nil {
			page.Warnings = append(page.Warnings, Warning{Instance: newer.Instance, Err: err})
		}
		page.Items = append(page.Items, items...)
		next += len(items)
	}

	if len(page.Items) < size {
		skip := next - newerCount
		if skip < 0 {
			skip = 0
		}
		items, err := older.Pager.Page(skip, size-len(page.Items))
		if err != nil {
			page.Warnings = append(page.Warnings, Warning{Instance: older.Instance, Err: err})
		}
		page.Items = append(page.Items, items...)
		next += len(items)
	} else {
		next = offset + size
	}

	if next < page.Total {
		page.Next = next
	}
	return page
}
