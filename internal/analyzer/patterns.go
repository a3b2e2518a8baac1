package analyzer

import (
	"slices"
	"time"

	"github.com/conorfennell/ripen/internal/domain"
)

// PatternStatistics collects the waits, in minutes, that preceded successful and
// failed reviews of one pattern or streak.
type PatternStatistics struct {
	Successes []int64
	Failures  []int64
}

func (p *PatternStatistics) add(waitMinutes int64, result domain.ReviewResult) {
	if result == domain.Success {
		p.Successes = append(p.Successes, waitMinutes)
	} else {
		p.Failures = append(p.Failures, waitMinutes)
	}
}

// Count is the number of observations.
func (p *PatternStatistics) Count() int { return len(p.Successes) + len(p.Failures) }

// All returns successes followed by failures.
func (p *PatternStatistics) All() []int64 {
	return append(slices.Clone(p.Successes), p.Failures...)
}

// SuccessPercentage is 100 * successes / observations.
func (p *PatternStatistics) SuccessPercentage() float64 {
	return float64(len(p.Successes)) * 100 / float64(p.Count())
}

// AverageWait is the mean wait over all observations, in minutes.
func (p *PatternStatistics) AverageWait() float64 {
	var sum float64
	for _, m := range p.All() {
		sum += float64(m)
	}
	return sum / float64(p.Count())
}

// Median returns the middle value; for an even count it is the mean of the two
// middle values. It reports false for an empty slice.
func Median(values []int64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 != 0 {
		return float64(sorted[mid]), true
	}
	return (float64(sorted[mid-1]) + float64(sorted[mid])) / 2, true
}

// Patterns holds statistics keyed by exact review pattern and, more coarsely, by
// streak number (see domain.StreakNumber).
type Patterns struct {
	ByPattern map[string]*PatternStatistics
	ByStreak  map[int]*PatternStatistics
}

// Collect walks every review of every history. Review k is filed under the pattern of
// the k reviews before it, together with the wait that preceded it. An "FS" history
// therefore contributes to "" (first review F) and "F" (second review S).
func Collect(histories []domain.History) Patterns {
	p := Patterns{
		ByPattern: make(map[string]*PatternStatistics),
		ByStreak:  make(map[int]*PatternStatistics),
	}
	for _, h := range histories {
		pattern := make([]byte, 0, len(h.Reviews))
		for k, review := range h.Reviews {
			wait := int64(h.Wait(k) / time.Minute)
			key := string(pattern)

			stats, ok := p.ByPattern[key]
			if !ok {
				stats = &PatternStatistics{}
				p.ByPattern[key] = stats
			}
			stats.add(wait, review.Result)

			streak := domain.StreakNumber(key)
			streakStats, ok := p.ByStreak[streak]
			if !ok {
				streakStats = &PatternStatistics{}
				p.ByStreak[streak] = streakStats
			}
			streakStats.add(wait, review.Result)

			pattern = append(pattern, review.Result.Abbreviation())
		}
	}
	return p
}

// SortedPatterns returns the observed patterns in lexical order.
func (p Patterns) SortedPatterns() []string {
	keys := make([]string, 0, len(p.ByPattern))
	for k := range p.ByPattern {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
