// Package analyzer mines the review histories of a collection for the waits that
// actually worked, and recommends per-pattern intervals that override the default
// interval settings once enough data has been seen.
package analyzer

import (
	"time"

	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/schedule"
)

const (
	// ReliabilityCutoff is the minimum number of observations for a recommendation.
	ReliabilityCutoff = 60

	// Reviews rarely happen right when they are due; aim 20% early.
	lateReviewDiscount = 0.80

	maxPercentageDifference = 10.0
)

// Analyzer turns pattern statistics into recommended waits.
type Analyzer struct {
	// IdealSuccessPercentage is the success rate recommendations steer towards.
	IdealSuccessPercentage float64
	Cutoff                 int
}

// New returns an analyzer with the standard reliability cutoff.
func New(idealSuccessPercentage float64) *Analyzer {
	return &Analyzer{IdealSuccessPercentage: idealSuccessPercentage, Cutoff: ReliabilityCutoff}
}

// Recommendations analyzes the histories and returns an entry for every observed
// pattern. Patterns without enough data in either their own bucket or their streak
// bucket map to an invalid NullDuration.
func (a *Analyzer) Recommendations(histories []domain.History) schedule.Recommendations {
	patterns := Collect(histories)
	recs := make(schedule.Recommendations, len(patterns.ByPattern))
	for pattern := range patterns.ByPattern {
		recs[pattern] = a.Recommend(patterns, pattern)
	}
	return recs
}

// Recommend looks at the exact pattern first and falls back to its streak bucket.
func (a *Analyzer) Recommend(p Patterns, pattern string) schedule.NullDuration {
	if stats, ok := p.ByPattern[pattern]; ok && stats.Count() >= a.Cutoff {
		return minutesToDuration(a.CorrectedImprovedTime(stats))
	}
	if stats, ok := p.ByStreak[domain.StreakNumber(pattern)]; ok && stats.Count() >= a.Cutoff {
		return minutesToDuration(a.CorrectedImprovedTime(stats))
	}
	return schedule.NullDuration{}
}

// CorrectedImprovedTime is the recommended wait in minutes for a bucket: the median
// successful wait, stretched or shrunk towards the ideal success rate, minus the
// late-review discount.
func (a *Analyzer) CorrectedImprovedTime(stats *PatternStatistics) float64 {
	return a.improvedTime(stats) * lateReviewDiscount
}

func (a *Analyzer) improvedTime(stats *PatternStatistics) float64 {
	return baseTime(stats) * a.multiplier(stats.SuccessPercentage())
}

// multiplier is 1 - diff²/200 when below the ideal rate and 1 + diff²/200 above it,
// with diff clamped to ±10 percentage points (so it ranges over [0.5, 1.5]).
func (a *Analyzer) multiplier(successPercentage float64) float64 {
	diff := successPercentage - a.IdealSuccessPercentage
	diff = min(max(diff, -maxPercentageDifference), maxPercentageDifference)
	switch {
	case diff < 0:
		return (100 - 0.5*diff*diff) / 100
	case diff > 0:
		return (100 + 0.5*diff*diff) / 100
	}
	return 1
}

// baseTime prefers the median of the successful waits; the average is skewed too much
// by late reviews. Without successes it uses the median of all waits.
func baseTime(stats *PatternStatistics) float64 {
	if m, ok := Median(stats.Successes); ok {
		return m
	}
	m, _ := Median(stats.All())
	return m
}

func minutesToDuration(minutes float64) schedule.NullDuration {
	return schedule.NullDuration{Duration: time.Duration(int64(minutes)) * time.Minute, Valid: true}
}
