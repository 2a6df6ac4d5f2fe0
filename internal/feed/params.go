package feed

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/lazypower/drift/internal/store"
)

// ErrInvalidParams is returned for scoring parameters that fail validation.
var ErrInvalidParams = errors.New("invalid scoring params")

// ReactionPenalty is subtracted from a post's raw score per reaction kind.
// ReactionNone never carries a penalty.
type ReactionPenalty struct {
	Heart   float64 `toml:"heart" json:"heart" validate:"finite,gte=0"`
	Like    float64 `toml:"like" json:"like" validate:"finite,gte=0"`
	Dislike float64 `toml:"dislike" json:"dislike" validate:"finite,gte=0"`
}

// For returns the penalty for r.
func (p ReactionPenalty) For(r store.Reaction) float64 {
	switch r {
	case store.ReactionHeart:
		return p.Heart
	case store.ReactionLike:
		return p.Like
	case store.ReactionDislike:
		return p.Dislike
	default:
		return 0
	}
}

// ScoringParams is a snapshot of the ranking configuration, supplied per call.
type ScoringParams struct {
	CandidatePoolSize     int             `toml:"candidate_pool_size" json:"candidate_pool_size" validate:"min=1"`
	NoveltyHalfLifeH      float64         `toml:"novelty_half_life_h" json:"novelty_half_life_h" validate:"finite,gte=0"`
	RevisitHalfLifeH      float64         `toml:"revisit_half_life_h" json:"revisit_half_life_h" validate:"finite,gte=0"`
	MaxRevisitsBeforeFade float64         `toml:"max_revisits_before_fade" json:"max_revisits_before_fade" validate:"finite,gte=0"`
	WeightNovelty         float64         `toml:"weight_novelty" json:"weight_novelty" validate:"finite,gte=0"`
	WeightRevisit         float64         `toml:"weight_revisit" json:"weight_revisit" validate:"finite,gte=0"`
	ReactionPenalty       ReactionPenalty `toml:"reaction_penalty" json:"reaction_penalty"`
	Randomness            float64         `toml:"randomness" json:"randomness" validate:"finite,gte=0,lte=1"`
}

// DefaultParams returns the tuned defaults for a personal feed.
func DefaultParams() ScoringParams {
	return ScoringParams{
		CandidatePoolSize:     250,
		NoveltyHalfLifeH:      4,
		RevisitHalfLifeH:      8,
		MaxRevisitsBeforeFade: 3,
		WeightNovelty:         1.0,
		WeightRevisit:         0.6,
		ReactionPenalty: ReactionPenalty{
			Heart:   0.4,
			Like:    1,
			Dislike: 4,
		},
		Randomness: 0.01,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the "finite" tag registered
// and field names taken from toml tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("toml"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		})
		validate = v
	})
	return validate
}

// Validate rejects parameters that would make scoring undefined. Zero
// half-lives and a zero fade divisor are accepted; they mean full decay.
func (p ScoringParams) Validate() error {
	err := Validator().Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidParams, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidParams, err)
}
