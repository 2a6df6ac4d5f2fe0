package feed

import "github.com/lazypower/drift/internal/store"

// Batch is one page of the feed. Next is nil when there is nothing more to
// show for this view.
type Batch struct {
	Page []store.Post
	Next *Cursor
}

// after reports whether s sorts strictly after the cursor position.
func (c Cursor) after(s ScoredPost) bool {
	return s.Score < c.Score || (s.Score == c.Score && s.Post.ID < c.ID)
}

// Paginate slices one page out of a sequence sorted by Rank.
// A non-positive limit yields an empty, terminal batch.
//
// Next is nil for a short page and also for a full page that ends on the
// last element. The latter differs from the plain rule "a full page always
// carries a cursor": it saves the caller a final request that could only
// return an empty page.
func Paginate(scored []ScoredPost, cursor *Cursor, limit int) Batch {
	if limit <= 0 {
		return Batch{Page: []store.Post{}}
	}
	start := 0
	if cursor != nil {
		start = -1
		for i, s := range scored {
			if cursor.after(s) {
				start = i
				break
			}
		}
		if start == -1 {
			return Batch{Page: []store.Post{}}
		}
	}

	end := min(start+limit, len(scored))
	page := make([]store.Post, 0, end-start)
	for _, s := range scored[start:end] {
		page = append(page, s.Post)
	}

	// a short page, or one that ends exactly on the last element, is final
	if len(page) < limit || end == len(scored) {
		return Batch{Page: page}
	}
	last := scored[end-1]
	return Batch{Page: page, Next: &Cursor{Score: last.Score, ID: last.Post.ID}}
}
