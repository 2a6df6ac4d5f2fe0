package client

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/lazypower/drift/internal/logger"
)

// ErrFetchInFlight is returned by LoadMore while another fetch for the same
// session has not finished.
var ErrFetchInFlight = errors.New("fetch already in flight")

// Fetcher retrieves feed pages. *Client implements it.
type Fetcher interface {
	Feed(ctx context.Context, fr FeedRequest) (Batch, error)
}

// Session is one infinite scroll over the feed. At most one fetch is in
// flight at a time; results fold into a bounded Buffer.
type Session struct {
	fetch    Fetcher
	buf      *Buffer
	epoch    *int64
	inFlight atomic.Bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithEpoch pins the server-side ranking to epoch, a unix millisecond
// instant, for every page.
func WithEpoch(epoch int64) SessionOption {
	return func(s *Session) { s.epoch = &epoch }
}

// WithoutEpoch lets the server rank each page afresh. Pages may then
// overlap or skip posts.
func WithoutEpoch() SessionOption {
	return func(s *Session) { s.epoch = nil }
}

// NewSession starts a session reading from f into buf. By default the
// session pins its start time as the epoch so its pages share one ranking.
func NewSession(f Fetcher, buf *Buffer, opts ...SessionOption) *Session {
	epoch := time.Now().UnixMilli()
	s := &Session{fetch: f, buf: buf, epoch: &epoch}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Buffer returns the session's buffer.
func (s *Session) Buffer() *Buffer { return s.buf }

// Epoch returns the pinned epoch, or nil.
func (s *Session) Epoch() *int64 { return s.epoch }

// LoadMore fetches the next page. It returns false with no error once the
// feed is exhausted, and ErrFetchInFlight if another call is running. A
// failed fetch leaves the buffer untouched and can be retried.
func (s *Session) LoadMore(ctx context.Context) (bool, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return false, ErrFetchInFlight
	}
	defer s.inFlight.Store(false)

	if !s.buf.HasMore() {
		return false, nil
	}

	b, err := s.fetch.Feed(ctx, FeedRequest{
		Limit:  s.buf.PageSize(),
		Cursor: s.buf.Next(),
		Epoch:  s.epoch,
	})
	if err != nil {
		return false, err
	}

	if evicted := s.buf.Append(b.Page, b.Next); evicted > 0 {
		logger.C(ctx).Debug().
			Int("evicted", evicted).
			Int("retained", s.buf.Len()).
			Msg("client: buffer trimmed")
	}
	return true, nil
}
