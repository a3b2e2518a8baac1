// Package schedule holds the user-tunable review policy and the planner that turns a
// review history into the wait before the next review.
package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/ripen/internal/domain"
)

// IntervalSettings is the hand-tuned default policy.
type IntervalSettings struct {
	// Initial is the wait between creating an entry and its first review.
	Initial    domain.TimeInterval
	Remembered domain.TimeInterval
	Forgotten  domain.TimeInterval
	// LengtheningFactor multiplies the wait for every extra consecutive success.
	LengtheningFactor float64
	// MaximumInterval caps lengthened waits; the zero interval means no cap.
	MaximumInterval domain.TimeInterval
}

// DefaultIntervalSettings provides the starting policy for a new collection.
func DefaultIntervalSettings() IntervalSettings {
	return IntervalSettings{
		Initial:           domain.MustTimeInterval(14, domain.Hour),
		Remembered:        domain.MustTimeInterval(3, domain.Day),
		Forgotten:         domain.MustTimeInterval(14, domain.Hour),
		LengtheningFactor: 5.0,
	}
}

// NextInterval returns the default wait after the given history:
//   - no reviews: Initial
//   - last review failed: Forgotten, however long the previous streak was
//   - last review succeeded: Remembered * LengtheningFactor^(streak-1)
func (s IntervalSettings) NextInterval(reviews []domain.Review) time.Duration {
	if len(reviews) == 0 {
		return s.Initial.Duration()
	}
	if reviews[len(reviews)-1].Result == domain.Failure {
		return s.Forgotten.Duration()
	}
	lengthenings := domain.TrailingSuccesses(reviews) - 1
	wait := domain.MultiplyDuration(s.Remembered.Duration(), math.Pow(s.LengtheningFactor, float64(lengthenings)))
	if limit := s.MaximumInterval.Duration(); limit > 0 && wait > limit {
		return limit
	}
	return wait
}

// Validate checks the invariants the policy relies on.
func (s IntervalSettings) Validate() error {
	if !(s.LengtheningFactor > 0) {
		return fmt.Errorf("%w: lengthening factor must be positive, got %v", ErrInvalidSettings, s.LengtheningFactor)
	}
	return nil
}

// Equal compares two policies with the same tolerance used for intervals.
func (s IntervalSettings) Equal(o IntervalSettings) bool {
	return s.Initial.Equal(o.Initial) &&
		s.Remembered.Equal(o.Remembered) &&
		s.Forgotten.Equal(o.Forgotten) &&
		domain.FloatsEqualWithinThousandths(s.LengtheningFactor, o.LengtheningFactor) &&
		s.MaximumInterval.Equal(o.MaximumInterval)
}
