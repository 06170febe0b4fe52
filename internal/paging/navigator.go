package paging

import (
	"fmt"
	"sort"

	"ninex/internal/models"
)

// Key identifies a listing. Any change invalidates the known cursors.
type Key struct {
	Role     models.Role
	Username string
	PageSize int
	Search   string
	Sort     string
	Payment  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%d|%s|%s|%s", k.Role, k.Username, k.PageSize, k.Search, k.Sort, k.Payment)
}

// Navigator keeps the sparse page -> cursor map of one listing.
// Page 1 always starts at the empty cursor.
type Navigator struct {
	key     Key
	cursors map[int]string
	// page -> есть ли следующая страница
	more map[int]bool
}

func NewNavigator() *Navigator {
	return &Navigator{cursors: map[int]string{1: ""}, more: map[int]bool{}}
}

// Sync resets the navigator when the listing key changed and reports whether it did.
func (n *Navigator) Sync(key Key) bool {
	if n.key == key && n.cursors != nil {
		return false
	}
	n.key = key
	n.cursors = map[int]string{1: ""}
	n.more = map[int]bool{}
	return true
}

// Cursor returns the cursor that fetches page, if known.
func (n *Navigator) Cursor(page int) (string, bool) {
	c, ok := n.cursors[page]
	return c, ok
}

// Record stores what fetching page returned. An empty next marks page as the last one.
func (n *Navigator) Record(page int, next string) {
	if next == "" {
		n.more[page] = false
		delete(n.cursors, page+1)
		return
	}
	n.more[page] = true
	n.cursors[page+1] = next
}

func (n *Navigator) HasNext(page int) bool {
	return n.more[page]
}

// Nearest returns the highest known page not after page.
func (n *Navigator) Nearest(page int) int {
	best := 1
	for p := range n.cursors {
		if p <= page && p > best {
			best = p
		}
	}
	return best
}

func (n *Navigator) KnownPages() []int {
	pages := make([]int, 0, len(n.cursors))
	for p := range n.cursors {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}
