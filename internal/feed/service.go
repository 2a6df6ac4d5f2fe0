// Package feed is the ranking kernel: it retrieves candidate posts, scores
// them with decay terms, and serves them through keyset-paginated cursors.
package feed

import (
	"context"
	"time"

	"github.com/lazypower/drift/internal/logger"
)

const (
	// DefaultLimit is the page size used when the caller asks for none.
	DefaultLimit = 20
	// MaxLimit caps caller-supplied page sizes.
	MaxLimit = 100
)

// Request is one feed page request.
type Request struct {
	Limit  int
	Cursor string // opaque token from a previous Page; "" starts the feed
	// Epoch, when set, is the unix millisecond start of a scroll session.
	// It pins both the jitter draw and the evaluation instant, so every
	// page of the session ranks the same snapshot of unchanged data.
	Epoch *int64
}

// Service answers feed requests. It keeps no state between requests: every
// call retrieves, scores and paginates from scratch.
type Service struct {
	src    CandidateSource
	params ScoringParams
	now    func() time.Time
	jitter func(*int64) Jitter
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the evaluation instant, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithJitter overrides jitter selection for every request.
func WithJitter(j Jitter) Option {
	return func(s *Service) { s.jitter = func(*int64) Jitter { return j } }
}

// NewService validates params and returns a Service reading from src.
func NewService(src CandidateSource, params ScoringParams, opts ...Option) (*Service, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Service{
		src:    src,
		params: params,
		now:    time.Now,
		jitter: defaultJitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func defaultJitter(epoch *int64) Jitter {
	if epoch != nil {
		return EpochJitter(*epoch)
	}
	return RandomJitter()
}

// evaluationInstant is the epoch instant, never later than now.
func evaluationInstant(now time.Time, epoch *int64) time.Time {
	if epoch == nil {
		return now
	}
	if pinned := time.UnixMilli(*epoch); pinned.Before(now) {
		return pinned
	}
	return now
}

// Params returns the scoring parameters the service was built with.
func (s *Service) Params() ScoringParams { return s.params }

// ClampLimit maps a caller-supplied limit into [1, MaxLimit].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// Page returns one page of the feed. A malformed cursor restarts the feed.
// Store failures return an error wrapping ErrStoreUnavailable and no page.
func (s *Service) Page(ctx context.Context, req Request) (Batch, error) {
	limit := ClampLimit(req.Limit)
	cursor := DecodeCursor(req.Cursor)
	if cursor == nil && req.Cursor != "" {
		logger.C(ctx).Debug().Str("cursor", req.Cursor).Msg("feed: ignoring malformed cursor")
	}

	now := evaluationInstant(s.now(), req.Epoch)
	candidates, err := Retrieve(ctx, s.src, s.params, now)
	if err != nil {
		return Batch{}, err
	}

	scored := Rank(candidates, s.params, now, s.jitter(req.Epoch))
	batch := Paginate(scored, cursor, limit)

	logger.C(ctx).Debug().
		Int("candidates", len(candidates)).
		Int("page", len(batch.Page)).
		Bool("more", batch.Next != nil).
		Msg("feed: page served")
	return batch, nil
}
