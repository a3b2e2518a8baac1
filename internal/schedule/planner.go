package schedule

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/conorfennell/ripen/internal/domain"
)

// NullDuration is a duration that may be absent, in the manner of sql.NullTime.
type NullDuration struct {
	Duration time.Duration
	Valid    bool
}

// Recommendations maps a review pattern ("", "S", "SF", ...) to a data-driven wait.
// Patterns that were observed without enough data map to an invalid NullDuration.
type Recommendations map[string]NullDuration

// Lookup returns the recommended wait for a pattern, if there is one.
func (r Recommendations) Lookup(pattern string) (time.Duration, bool) {
	rec, ok := r[pattern]
	if !ok || !rec.Valid {
		return 0, false
	}
	return rec.Duration, true
}

// Known counts the patterns that have a recommendation.
func (r Recommendations) Known() int {
	n := 0
	for _, rec := range r {
		if rec.Valid {
			n++
		}
	}
	return n
}

// Planner answers "how long until the next review" for a history. It consults the
// installed recommendations first and falls back to the interval settings.
//
// Settings and recommendations are replaced wholesale, so a reader always sees either
// the complete old value or the complete new one.
type Planner struct {
	settings        atomic.Pointer[Settings]
	recommendations atomic.Pointer[Recommendations]
}

// NewPlanner creates a planner with no recommendations installed.
func NewPlanner(s Settings) (*Planner, error) {
	p := &Planner{}
	if err := p.SetSettings(s); err != nil {
		return nil, err
	}
	p.Install(nil)
	return p, nil
}

// PlannedInterval implements domain.IntervalPlanner.
func (p *Planner) PlannedInterval(reviews []domain.Review) time.Duration {
	if wait, ok := p.Recommendations().Lookup(domain.Pattern(reviews)); ok {
		return wait
	}
	return p.Settings().Intervals.NextInterval(reviews)
}

func (p *Planner) Settings() Settings {
	return *p.settings.Load()
}

// SetSettings validates and installs new settings.
func (p *Planner) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("set settings: %w", err)
	}
	p.settings.Store(&s)
	return nil
}

// Install swaps in a freshly computed recommendations table. The planner keeps its own
// copy so later changes to r are not observed.
func (p *Planner) Install(r Recommendations) {
	cp := make(Recommendations, len(r))
	for k, v := range r {
		cp[k] = v
	}
	p.recommendations.Store(&cp)
}

// Recommendations returns the installed table. Callers must not modify it.
func (p *Planner) Recommendations() Recommendations {
	return *p.recommendations.Load()
}
