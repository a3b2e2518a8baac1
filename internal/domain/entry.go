package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var ErrReviewOutOfOrder = errors.New("review is older than the entry's last review")

// IntervalPlanner decides how long to wait after a given review history.
type IntervalPlanner interface {
	PlannedInterval(reviews []Review) time.Duration
}

// History is a value snapshot of an entry's scheduling data.
type History struct {
	Created time.Time
	Reviews []Review
}

// Wait returns the time elapsed before review i: the gap to the previous review,
// or to the creation instant for the first one.
func (h History) Wait(i int) time.Duration {
	start := h.Created
	if i > 0 {
		start = h.Reviews[i-1].Instant
	}
	return h.Reviews[i].Instant.Sub(start)
}

// Entry is a registered card: it always has a priority and a creation instant, and
// owns an append-only, chronological review history.
type Entry struct {
	question string
	answer   string
	priority int
	created  time.Time
	reviews  []Review
}

// NewEntry builds a registered entry, validating the priority and review order.
func NewEntry(question, answer string, priority int, created time.Time, reviews []Review) (*Entry, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if err := ValidatePriority(priority); err != nil {
		return nil, err
	}
	for i := 1; i < len(reviews); i++ {
		if reviews[i].Instant.Before(reviews[i-1].Instant) {
			return nil, fmt.Errorf("%w: review %d", ErrReviewOutOfOrder, i)
		}
	}
	return &Entry{
		question: question,
		answer:   answer,
		priority: priority,
		created:  created,
		reviews:  slices.Clone(reviews),
	}, nil
}

func (e *Entry) Question() string { return e.question }
func (e *Entry) Answer() string { return e.answer }
func (e *Entry) Priority() int { return e.priority }
func (e *Entry) Created() time.Time { return e.created }
func (e *Entry) ReviewCount() int { return len(e.reviews) }
func (e *Entry) Reviews() []Review { return slices.Clone(e.reviews) }
func (e *Entry) Pattern() string { return Pattern(e.reviews) }
func (e *Entry) HasBeenReviewed() bool { return len(e.reviews) > 0 }

// History returns a copy of the entry's scheduling data.
func (e *Entry) History() History {
	return History{Created: e.created, Reviews: e.Reviews()}
}

// SetAnswer replaces the answer text.
func (e *Entry) SetAnswer(answer string) { e.answer = answer }

// SetPriority changes the priority; values outside [1,10] are rejected.
func (e *Entry) SetPriority(p int) error {
	if err := ValidatePriority(p); err != nil {
		return err
	}
	e.priority = p
	return nil
}

// RecordReview appends a review. It must not predate the last recorded review.
func (e *Entry) RecordReview(r Review) error {
	if last, ok := e.LastReview(); ok && r.Instant.Before(last.Instant) {
		return fmt.Errorf("%w: %s before %s", ErrReviewOutOfOrder, r.Instant, last.Instant)
	}
	e.reviews = append(e.reviews, r)
	return nil
}

// LastReview returns the most recent review, if any.
func (e *Entry) LastReview() (Review, bool) {
	if len(e.reviews) == 0 {
		return Review{}, false
	}
	return e.reviews[len(e.reviews)-1], true
}

// ReviewsAfter returns the reviews strictly later than t.
func (e *Entry) ReviewsAfter(t time.Time) []Review {
	var out []Review
	for _, r := range e.reviews {
		if r.Instant.After(t) {
			out = append(out, r)
		}
	}
	return out
}

// NextReviewInstant is the last review (or the creation instant) plus the planned wait.
func (e *Entry) NextReviewInstant(p IntervalPlanner) time.Time {
	start := e.created
	if last, ok := e.LastReview(); ok {
		start = last.Instant
	}
	return start.Add(p.PlannedInterval(e.reviews))
}

// TimeUntilNextReview is negative once the entry is due.
func (e *Entry) TimeUntilNextReview(p IntervalPlanner, ref time.Time) time.Duration {
	return e.NextReviewInstant(p).Sub(ref)
}

// IsDue reports whether the entry should be reviewed at ref.
func (e *Entry) IsDue(p IntervalPlanner, ref time.Time) bool {
	return e.TimeUntilNextReview(p, ref) < 0
}

// Ripeness is TimeUntilNextReview in seconds; lower means more overdue.
func (e *Entry) Ripeness(p IntervalPlanner, ref time.Time) float64 {
	return e.TimeUntilNextReview(p, ref).Seconds()
}
