package analyzer

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/conorfennell/ripen/internal/domain"
)

// WriteReport writes a human-readable breakdown of every observed pattern: how often
// it was answered correctly, how long the waits were and what the analyzer aims for.
func (a *Analyzer) WriteReport(w io.Writer, version string, histories []domain.History) error {
	patterns := Collect(histories)

	var successes, failures int
	for _, h := range histories {
		for _, r := range h.Reviews {
			if r.Result == domain.Success {
				successes++
			} else {
				failures++
			}
		}
	}
	total := successes + failures
	var pct float64
	if total > 0 {
		pct = float64(successes) * 100 / float64(total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ripen version %s\n", version)
	fmt.Fprintf(&b, "Number of cards is: %d\n", len(histories))
	fmt.Fprintf(&b, "Number of reviews: %d, success percentage %.1f%% (%d correct, %d incorrect)\n\n",
		total, pct, successes, failures)

	for _, pattern := range patterns.SortedPatterns() {
		stats := patterns.ByPattern[pattern]
		aim := "unknown"
		if rec := a.Recommend(patterns, pattern); rec.Valid {
			aim = hours(rec.Duration.Minutes())
		}
		fmt.Fprintf(&b, "-%s: %d %.1f%% correct (%d successes, %d failures) - average review time %s, aiming for %s; median review times %s for successful reviews, %s for failed reviews.\n",
			pattern, stats.Count(), stats.SuccessPercentage(),
			len(stats.Successes), len(stats.Failures),
			hours(stats.AverageWait()), aim,
			medianHours(stats.Successes), medianHours(stats.Failures),
		)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func hours(minutes float64) string {
	return fmt.Sprintf("%d h", int64(math.Round(math.Round(minutes)/60)))
}

func medianHours(values []int64) string {
	m, ok := Median(values)
	if !ok {
		return "unknown"
	}
	return hours(m)
}
