// Package entries owns the live collection of registered entries.
package entries

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/events"
	"github.com/conorfennell/ripen/internal/knol"
	"github.com/conorfennell/ripen/internal/schedule"
)

var ErrNotFound = errors.New("entry not found")

// Record is the persistence shape of an entry. A zero Created or Priority means the
// stored collection had no metadata for the question yet.
type Record struct {
	Question string
	Answer   string
	Priority int
	Created  time.Time
	Reviews  []domain.Review
}

// Outcome says what Add did with a card.
type Outcome int

const (
	Added Outcome = iota
	Merged
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Merged:
		return "merged"
	case Ignored:
		return "ignored"
	}
	return "unknown"
}

// Manager holds the entries of one collection, keyed by normalized question.
// It is not safe for concurrent use.
type Manager struct {
	planner *schedule.Planner
	bus     events.Publisher
	clock   func() time.Time
	logger  *slog.Logger

	entries  []*domain.Entry
	byKey    map[string]*domain.Entry
	loadedAt time.Time
}

// NewManager returns an empty collection. nil collaborators get defaults.
func NewManager(planner *schedule.Planner, bus events.Publisher, clock func() time.Time, logger *slog.Logger) *Manager {
	if bus == nil {
		bus = events.Discard
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		planner: planner,
		bus:     bus,
		clock:   clock,
		logger:  logger,
		byKey:   make(map[string]*domain.Entry),
	}
	m.loadedAt = clock()
	return m
}

// Planner returns the planner due times are computed with.
func (m *Manager) Planner() *schedule.Planner { return m.planner }

// Load replaces the collection with records and pins the load instant. Records
// without metadata are registered now with the default priority. The current
// collection is kept if any record is invalid.
func (m *Manager) Load(records []Record) error {
	now := m.clock()
	defaultPriority := m.planner.Settings().DefaultPriority

	loaded := make([]*domain.Entry, 0, len(records))
	byKey := make(map[string]*domain.Entry, len(records))
	for _, r := range records {
		key := knol.Normalize(r.Question)
		if existing, ok := byKey[key]; ok {
			if answer, changed := mergeAnswers(existing.Answer(), r.Answer); changed {
				existing.SetAnswer(answer)
			}
			m.logger.Warn("duplicate question in collection", "question", key)
			continue
		}
		priority := r.Priority
		if priority == 0 {
			priority = defaultPriority
		}
		created := r.Created
		if created.IsZero() {
			created = now
		}
		e, err := domain.NewEntry(r.Question, r.Answer, priority, created, r.Reviews)
		if err != nil {
			return fmt.Errorf("load entry %q: %w", key, err)
		}
		loaded = append(loaded, e)
		byKey[key] = e
	}

	m.entries = loaded
	m.byKey = byKey
	m.loadedAt = now
	m.logger.Info("collection loaded", "entries", len(loaded), "load_instant", now)
	m.bus.Publish(events.Event{Kind: events.EntriesSwapped})
	return nil
}

// Add registers a new card. A card whose question is already present is ignored when
// the answers match and otherwise has its answer appended to the existing one.
func (m *Manager) Add(card domain.Card) (Outcome, error) {
	if strings.TrimSpace(card.Question) == "" {
		return Ignored, domain.ErrEmptyQuestion
	}
	key := knol.Normalize(card.Question)
	if existing, ok := m.byKey[key]; ok {
		answer, changed := mergeAnswers(existing.Answer(), card.Answer)
		if !changed {
			return Ignored, nil
		}
		existing.SetAnswer(answer)
		m.bus.Publish(events.Event{Kind: events.EntryChanged, Question: existing.Question()})
		return Merged, nil
	}

	priority := card.Priority
	if priority == 0 {
		priority = m.planner.Settings().DefaultPriority
	}
	e, err := domain.NewEntry(card.Question, card.Answer, priority, m.clock(), nil)
	if err != nil {
		return Ignored, fmt.Errorf("add entry: %w", err)
	}
	m.entries = append(m.entries, e)
	m.byKey[key] = e
	m.bus.Publish(events.Event{Kind: events.EntrySetChanged, Question: e.Question()})
	return Added, nil
}

// mergeAnswers appends incoming unless existing already holds it as whole lines, so
// importing the same card again is a no-op.
func mergeAnswers(existing, incoming string) (string, bool) {
	if strings.Contains("\n"+existing+"\n", "\n"+incoming+"\n") {
		return existing, false
	}
	return existing + "\n" + incoming, true
}

// Remove deletes the entry with the given question.
func (m *Manager) Remove(question string) error {
	key := knol.Normalize(question)
	e, ok := m.byKey[key]
	if !ok {
		return fmt.Errorf("remove %q: %w", key, ErrNotFound)
	}
	delete(m.byKey, key)
	m.entries = slices.DeleteFunc(m.entries, func(x *domain.Entry) bool { return x == e })
	m.bus.Publish(events.Event{Kind: events.EntrySetChanged, Question: e.Question()})
	return nil
}

func (m *Manager) Contains(question string) bool {
	_, ok := m.byKey[knol.Normalize(question)]
	return ok
}

// Get returns the entry with the given question, or nil.
func (m *Manager) Get(question string) *domain.Entry {
	return m.byKey[knol.Normalize(question)]
}

// SetPriority changes the priority of an entry.
func (m *Manager) SetPriority(question string, priority int) error {
	e := m.Get(question)
	if e == nil {
		return fmt.Errorf("set priority of %q: %w", question, ErrNotFound)
	}
	if err := e.SetPriority(priority); err != nil {
		return err
	}
	m.bus.Publish(events.Event{Kind: events.EntryChanged, Question: e.Question()})
	return nil
}

// Edit replaces the answer of an entry.
func (m *Manager) Edit(question, answer string) error {
	e := m.Get(question)
	if e == nil {
		return fmt.Errorf("edit %q: %w", question, ErrNotFound)
	}
	e.SetAnswer(answer)
	m.bus.Publish(events.Event{Kind: events.EntryChanged, Question: e.Question()})
	return nil
}

// Len is the number of entries.
func (m *Manager) Len() int { return len(m.entries) }

// Entries returns the entries in insertion order.
func (m *Manager) Entries() []*domain.Entry { return slices.Clone(m.entries) }

// ReviewableEntries returns the entries due at ref.
func (m *Manager) ReviewableEntries(ref time.Time) []*domain.Entry {
	var due []*domain.Entry
	for _, e := range m.entries {
		if e.IsDue(m.planner, ref) {
			due = append(due, e)
		}
	}
	return due
}

// LoadInstant is the reference instant pinned by the last Load.
func (m *Manager) LoadInstant() time.Time { return m.loadedAt }

// DueCount counts the entries due at the load instant.
func (m *Manager) DueCount() int {
	return len(m.ReviewableEntries(m.loadedAt))
}

// TimeUntilNextReview is the smallest wait, from the load instant, until some entry
// becomes due. It reports false for an empty collection.
func (m *Manager) TimeUntilNextReview() (time.Duration, bool) {
	if len(m.entries) == 0 {
		return 0, false
	}
	next := m.entries[0].TimeUntilNextReview(m.planner, m.loadedAt)
	for _, e := range m.entries[1:] {
		next = min(next, e.TimeUntilNextReview(m.planner, m.loadedAt))
	}
	return next, true
}

// ReviewingPoints sums the trailing success streaks of all entries.
func (m *Manager) ReviewingPoints() int {
	points := 0
	for _, e := range m.entries {
		points += domain.TrailingSuccesses(e.Reviews())
	}
	return points
}

// Histories snapshots the scheduling data of every entry.
func (m *Manager) Histories() []domain.History {
	out := make([]domain.History, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.History()
	}
	return out
}

// Records returns the collection in persistence shape, sorted by normalized question.
func (m *Manager) Records() []Record {
	out := make([]Record, len(m.entries))
	for i, e := range m.entries {
		out[i] = Record{
			Question: e.Question(),
			Answer:   e.Answer(),
			Priority: e.Priority(),
			Created:  e.Created(),
			Reviews:  e.Reviews(),
		}
	}
	slices.SortFunc(out, func(a, b Record) int {
		return strings.Compare(knol.Normalize(a.Question), knol.Normalize(b.Question))
	})
	return out
}
