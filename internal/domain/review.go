package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrOddReviewFields = errors.New("review history needs an even number of fields")

// ReviewResult is the outcome of a single review.
type ReviewResult int

const (
	Success ReviewResult = iota
	Failure
)

// Abbreviation is the letter used in review patterns and on disk: 'S' or 'F'.
func (r ReviewResult) Abbreviation() byte {
	if r == Success {
		return 'S'
	}
	return 'F'
}

func (r ReviewResult) String() string {
	if r == Success {
		return "success"
	}
	return "failure"
}

// ParseReviewResult accepts either the abbreviation ("S", "F") or the full name.
func ParseReviewResult(s string) (ReviewResult, error) {
	switch strings.ToLower(s) {
	case "s", "success":
		return Success, nil
	case "f", "failure":
		return Failure, nil
	}
	return 0, fmt.Errorf("unknown review result %q", s)
}

// Review is an immutable, timestamped review outcome.
type Review struct {
	Instant time.Time
	Result  ReviewResult
}

// ReviewsFromFields decodes a flat, alternating sequence of (instant, result) fields.
func ReviewsFromFields(fields []string) ([]Review, error) {
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrOddReviewFields, len(fields))
	}
	var reviews []Review
	for i := 0; i < len(fields); i += 2 {
		instant, err := time.Parse(time.RFC3339Nano, fields[i])
		if err != nil {
			return nil, fmt.Errorf("review %d instant: %w", i/2, err)
		}
		result, err := ParseReviewResult(fields[i+1])
		if err != nil {
			return nil, fmt.Errorf("review %d: %w", i/2, err)
		}
		reviews = append(reviews, Review{Instant: instant, Result: result})
	}
	return reviews, nil
}

// ReviewFields is the inverse of ReviewsFromFields.
func ReviewFields(reviews []Review) []string {
	fields := make([]string, 0, 2*len(reviews))
	for _, r := range reviews {
		fields = append(fields, r.Instant.UTC().Format(time.RFC3339Nano), string(r.Result.Abbreviation()))
	}
	return fields
}

// Pattern renders a review history as its letter sequence, e.g. "SSF".
func Pattern(reviews []Review) string {
	var b strings.Builder
	b.Grow(len(reviews))
	for _, r := range reviews {
		b.WriteByte(r.Result.Abbreviation())
	}
	return b.String()
}

// TrailingSuccesses counts the consecutive successes that end the history.
func TrailingSuccesses(reviews []Review) int {
	n := 0
	for i := len(reviews) - 1; i >= 0 && reviews[i].Result == Success; i-- {
		n++
	}
	return n
}

// StreakNumber summarizes a pattern by its trailing run: the run length when it is a
// run of successes, minus the run length for failures, and 0 for the empty pattern.
func StreakNumber(pattern string) int {
	if pattern == "" {
		return 0
	}
	last := pattern[len(pattern)-1]
	n := 0
	for i := len(pattern) - 1; i >= 0 && pattern[i] == last; i-- {
		n++
	}
	if last == 'S' {
		return n
	}
	return -n
}
