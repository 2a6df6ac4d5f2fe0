package client

import "sync"

// Chunk is a run of retained posts. Closed chunks were rebuilt by eviction
// and are never re-fetched.
type Chunk struct {
	Items  []Post
	Closed bool
}

// Buffer accumulates the pages of one scrolling session. Once more than
// maxItems posts are held, the oldest are dropped and the rest are
// repartitioned into closed chunks of pageSize. Retention is by arrival
// order only.
//
// The live cursor is kept apart from the chunks, so eviction never ends the
// scroll.
type Buffer struct {
	mu       sync.Mutex
	pageSize int
	maxItems int
	chunks   []Chunk
	count    int
	next     string
	done     bool
	evicted  int
}

// NewBuffer returns an empty buffer. Non-positive sizes fall back to 50
// per page and 500 items.
func NewBuffer(pageSize, maxItems int) *Buffer {
	if pageSize <= 0 {
		pageSize = 50
	}
	if maxItems <= 0 {
		maxItems = 500
	}
	return &Buffer{pageSize: pageSize, maxItems: maxItems}
}

// PageSize is the chunk size used for fetching and repartitioning.
func (b *Buffer) PageSize() int { return b.pageSize }

// Append folds one fetched page into the buffer and records next as the
// live cursor; a nil next marks the feed exhausted. It returns how many
// posts were evicted.
func (b *Buffer) Append(page []Post, next *string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(page) > 0 {
		b.chunks = append(b.chunks, Chunk{Items: page})
		b.count += len(page)
	}
	if next == nil {
		b.next, b.done = "", true
	} else {
		b.next, b.done = *next, false
	}

	if b.count <= b.maxItems {
		return 0
	}

	dropped := b.count - b.maxItems
	keep := b.items()[dropped:]
	chunks := make([]Chunk, 0, (len(keep)+b.pageSize-1)/b.pageSize)
	for i := 0; i < len(keep); i += b.pageSize {
		end := min(i+b.pageSize, len(keep))
		// copy so the evicted head can be collected
		chunks = append(chunks, Chunk{Items: append([]Post(nil), keep[i:end]...), Closed: true})
	}
	b.chunks = chunks
	b.count = len(keep)
	b.evicted += dropped
	return dropped
}

func (b *Buffer) items() []Post {
	out := make([]Post, 0, b.count)
	for _, c := range b.chunks {
		out = append(out, c.Items...)
	}
	return out
}

// Items returns the retained posts, oldest first.
func (b *Buffer) Items() []Post {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items()
}

// Len is the number of retained posts.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Evicted is the total number of posts dropped so far.
func (b *Buffer) Evicted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evicted
}

// Chunks returns a copy of the chunk list.
func (b *Buffer) Chunks() []Chunk {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Chunk(nil), b.chunks...)
}

// Next is the cursor for the following page, "" at the start of the feed.
func (b *Buffer) Next() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.next
}

// HasMore reports whether another fetch may yield posts.
func (b *Buffer) HasMore() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.done
}
