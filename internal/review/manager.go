// Package review runs review sessions: it picks which due entries to show, records
// answers, and summarizes the round when the queue runs out.
package review

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/entries"
	"github.com/conorfennell/ripen/internal/events"
)

var ErrNoCurrentEntry = errors.New("no entry to review")

// State is the session lifecycle position.
type State int

const (
	Uninitialized State = iota
	Active
	Ended
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// Manager drives one review session at a time over an entry collection.
// It is not safe for concurrent use.
type Manager struct {
	entries *entries.Manager
	bus     *events.Bus
	clock   func() time.Time
	rng     *rand.Rand
	logger  *slog.Logger

	state     State
	queue     []*domain.Entry
	counter   int
	sessionID uuid.UUID
	log       *slog.Logger
	tally     Summary
	summary   *Summary
}

// NewManager creates a session manager and subscribes it to bus, which must be the bus
// the entry manager publishes to. nil clock, rng and logger get defaults.
func NewManager(em *entries.Manager, bus *events.Bus, clock func() time.Time, rng *rand.Rand, logger *slog.Logger) *Manager {
	if clock == nil {
		clock = time.Now
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		entries: em,
		bus:     bus,
		clock:   clock,
		rng:     rng,
		logger:  logger,
		log:     logger,
	}
	bus.Subscribe(m.handle)
	return m
}

func (m *Manager) handle(e events.Event) {
	switch e.Kind {
	case events.EntrySetChanged:
		m.prune()
	case events.EntriesSwapped:
		m.reset()
		m.ContinueSession()
	}
}

// ContinueSession builds a new queue unless a session is already active. Due entries
// are those due at the collection's load instant, so the queue agrees with DueCount.
// With nothing due it leaves the manager idle.
func (m *Manager) ContinueSession() {
	if m.state == Active {
		return
	}
	ref := m.entries.LoadInstant()
	due := m.entries.ReviewableEntries(ref)
	if len(due) == 0 {
		m.logger.Debug("nothing due", "load_instant", ref)
		return
	}

	now := m.clock()
	queue := m.pick(due, ref)
	m.rng.Shuffle(len(queue), func(i, j int) { queue[i], queue[j] = queue[j], queue[i] })

	m.queue = queue
	m.counter = 0
	m.state = Active
	m.summary = nil
	m.sessionID = uuid.New()
	m.tally = Summary{SessionID: m.sessionID, Started: now}
	m.log = m.logger.With("session_id", m.sessionID.String())
	m.log.Info("session started", "due", len(due), "queued", len(queue))
	m.bus.Publish(events.Event{Kind: events.SessionStarted})
}

type candidate struct {
	entry    *domain.Entry
	ripeness float64
}

// pick orders previously reviewed entries before new ones, each group by priority
// and then most overdue first, and keeps at most SessionSize of them.
func (m *Manager) pick(due []*domain.Entry, now time.Time) []*domain.Entry {
	planner := m.entries.Planner()
	var reviewed, fresh []candidate
	for _, e := range due {
		c := candidate{entry: e, ripeness: e.Ripeness(planner, now)}
		if e.HasBeenReviewed() {
			reviewed = append(reviewed, c)
		} else {
			fresh = append(fresh, c)
		}
	}
	order := func(a, b candidate) int {
		if c := cmp.Compare(b.entry.Priority(), a.entry.Priority()); c != 0 {
			return c
		}
		// ripeness goes negative once due, so ascending puts the longest overdue first
		return cmp.Compare(a.ripeness, b.ripeness)
	}
	slices.SortStableFunc(reviewed, order)
	slices.SortStableFunc(fresh, order)

	queue := make([]*domain.Entry, 0, len(due))
	for _, c := range append(reviewed, fresh...) {
		queue = append(queue, c.entry)
	}
	if size := planner.Settings().SessionSize; size > 0 && len(queue) > size {
		queue = queue[:size]
	}
	return queue
}

// Current returns the entry to show, or nil outside an active session.
func (m *Manager) Current() *domain.Entry {
	if m.state != Active || m.counter >= len(m.queue) {
		return nil
	}
	return m.queue[m.counter]
}

// Answer records the result for the current entry at the current time and moves on.
func (m *Manager) Answer(result domain.ReviewResult) error {
	e := m.Current()
	if e == nil {
		return ErrNoCurrentEntry
	}
	previous, reviewed := e.LastReview()
	if err := e.RecordReview(domain.Review{Instant: m.clock(), Result: result}); err != nil {
		return fmt.Errorf("record review: %w", err)
	}
	m.tally.record(previous, reviewed, result)
	m.log.Debug("answer recorded", "question", e.Question(), "result", result.String())
	m.counter++
	if m.counter >= len(m.queue) {
		m.end()
	}
	return nil
}

// prune drops queued entries that left the collection. The counter keeps pointing at
// the same next entry; if the current entry was dropped it points at its successor.
func (m *Manager) prune() {
	if m.state != Active {
		return
	}
	kept := make([]*domain.Entry, 0, len(m.queue))
	before := 0
	for i, e := range m.queue {
		if m.entries.Get(e.Question()) == e {
			kept = append(kept, e)
			continue
		}
		if i < m.counter {
			before++
		}
	}
	if len(kept) == len(m.queue) {
		return
	}
	m.log.Debug("queue pruned", "removed", len(m.queue)-len(kept))
	m.queue = kept
	m.counter -= before
	if m.counter >= len(m.queue) {
		m.end()
	}
}

func (m *Manager) end() {
	m.state = Ended
	s := m.tally
	s.Ended = m.clock()
	m.summary = &s
	m.log.Info("session ended", "reviewed", s.Total.Total, "correct", s.Total.Correct)
	m.bus.Publish(events.Event{Kind: events.SessionEnded})
	m.bus.Publish(events.Event{Kind: events.SummaryReady})
}

func (m *Manager) reset() {
	m.state = Uninitialized
	m.queue = nil
	m.counter = 0
	m.tally = Summary{}
	m.summary = nil
	m.log = m.logger
}

// State returns the lifecycle position.
func (m *Manager) State() State { return m.state }

// Remaining counts the queued entries not answered yet.
func (m *Manager) Remaining() int {
	if m.state != Active {
		return 0
	}
	return len(m.queue) - m.counter
}

// Queue returns the session queue in display order.
func (m *Manager) Queue() []*domain.Entry { return slices.Clone(m.queue) }

// SessionID identifies the current or last session.
func (m *Manager) SessionID() uuid.UUID { return m.sessionID }

// Summary returns the summary of the session that ended last.
func (m *Manager) Summary() (Summary, bool) {
	if m.summary == nil {
		return Summary{}, false
	}
	return *m.summary, true
}
