package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lazypower/drift/internal/store"
)

// ErrStoreUnavailable wraps any failure reading candidates. Callers should
// treat it as retryable.
var ErrStoreUnavailable = errors.New("post store unavailable")

const (
	// Novelty beyond five half-lives is under 1% of its weight.
	freshHalfLives = 5.0
	// Seen posts cool off for a quarter of the revisit half-life.
	revisitCoolOff = 0.25
)

// CandidateSource reads the two bounded candidate pools. *store.DB
// implements it.
type CandidateSource interface {
	FreshPool(ctx context.Context, since time.Time, limit int) ([]store.Post, error)
	RevisitPool(ctx context.Context, seenBefore time.Time, limit int) ([]store.Post, error)
}

func hoursAgo(now time.Time, h float64) time.Time {
	return now.Add(-time.Duration(h * float64(time.Hour)))
}

// Retrieve returns the fresh pool followed by the revisit pool. The pools
// cannot overlap: one requires seen_count = 0, the other seen_count > 0.
func Retrieve(ctx context.Context, src CandidateSource, params ScoringParams, now time.Time) ([]store.Post, error) {
	fresh, err := src.FreshPool(ctx, hoursAgo(now, freshHalfLives*params.NoveltyHalfLifeH), params.CandidatePoolSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	revisit, err := src.RevisitPool(ctx, hoursAgo(now, revisitCoolOff*params.RevisitHalfLifeH), params.CandidatePoolSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	candidates := make([]store.Post, 0, len(fresh)+len(revisit))
	candidates = append(candidates, fresh...)
	return append(candidates, revisit...), nil
}
