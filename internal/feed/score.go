package feed

import (
	"cmp"
	"encoding/binary"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/lazypower/drift/internal/store"
)

// ScoredPost is a post with its score for one evaluation instant. The
// ordering of a []ScoredPost is only meaningful within one request.
type ScoredPost struct {
	Post  store.Post
	Score float64
}

// Jitter returns the uniform [0,1) term blended into a post's score.
type Jitter func(postID int64) float64

// RandomJitter draws a fresh value on every call.
func RandomJitter() Jitter {
	return func(int64) float64 { return rand.Float64() }
}

// EpochJitter derives the value from (postID, epoch), so every request
// carrying the same epoch ranks identically over unchanged data.
func EpochJitter(epoch int64) Jitter {
	return func(postID int64) float64 {
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[:8], uint64(postID))
		binary.LittleEndian.PutUint64(buf[8:], uint64(epoch))
		h := fnv.New64a()
		h.Write(buf[:])
		// top 53 bits -> [0,1)
		return float64(h.Sum64()>>11) / (1 << 53)
	}
}

// NoJitter always returns 0.
func NoJitter() Jitter {
	return func(int64) float64 { return 0 }
}

// decay returns exp(-x/halfLife), or 0 when halfLife is 0.
func decay(x, halfLife float64) float64 {
	if halfLife <= 0 {
		return 0
	}
	return math.Exp(-x / halfLife)
}

// hoursBetween is clamped at 0 for posts newer than the evaluation instant.
func hoursBetween(from, to time.Time) float64 {
	return max(float64(to.Sub(from))/float64(time.Hour), 0)
}

// Novelty is the recency term of a post's score.
func Novelty(p store.Post, params ScoringParams, now time.Time) float64 {
	return params.WeightNovelty * decay(hoursBetween(p.Timestamp, now), params.NoveltyHalfLifeH)
}

// Revisit is the resurfacing term for a previously seen post. It is 0 for
// unseen posts and fades with both time since last seen and seen count.
func Revisit(p store.Post, params ScoringParams, now time.Time) float64 {
	if p.SeenCount == 0 {
		return 0
	}
	lastSeen := p.Timestamp
	if p.LastSeenTs != nil {
		lastSeen = *p.LastSeenTs
	}
	return params.WeightRevisit *
		decay(hoursBetween(lastSeen, now), params.RevisitHalfLifeH) *
		decay(float64(p.SeenCount), params.MaxRevisitsBeforeFade)
}

// Score computes the final score of p with the given jitter draw u.
func Score(p store.Post, params ScoringParams, now time.Time, u float64) float64 {
	raw := Novelty(p, params, now) + Revisit(p, params, now) - params.ReactionPenalty.For(p.Reaction)
	return raw*(1-params.Randomness) + u*params.Randomness
}

// Rank scores every candidate and sorts by (score desc, id desc).
func Rank(candidates []store.Post, params ScoringParams, now time.Time, jitter Jitter) []ScoredPost {
	if jitter == nil {
		jitter = RandomJitter()
	}
	scored := make([]ScoredPost, len(candidates))
	for i, p := range candidates {
		scored[i] = ScoredPost{Post: p, Score: Score(p, params, now, jitter(p.ID))}
	}
	slices.SortFunc(scored, compareScored)
	return scored
}

// compareScored orders by score descending, then id descending.
func compareScored(a, b ScoredPost) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(b.Post.ID, a.Post.ID)
}
