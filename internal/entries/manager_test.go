package entries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/events"
	"github.com/conorfennell/ripen/internal/schedule"
)

var t0 = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

type recorder struct{ got []events.Event }

func (r *recorder) Publish(e events.Event) { r.got = append(r.got, e) }

func (r *recorder) kinds() []events.Kind {
	out := make([]events.Kind, len(r.got))
	for i, e := range r.got {
		out[i] = e.Kind
	}
	return out
}

func newManager(t *testing.T, now *time.Time) (*Manager, *recorder) {
	t.Helper()
	planner, err := schedule.NewPlanner(schedule.DefaultSettings())
	require.NoError(t, err)
	rec := &recorder{}
	return NewManager(planner, rec, func() time.Time { return *now }, nil), rec
}

func TestAddRegistersCard(t *testing.T) {
	now := t0
	m, rec := newManager(t, &now)

	outcome, err := m.Add(domain.Card{Question: "capital of France", Answer: "Paris"})
	require.NoError(t, err)
	assert.Equal(t, Added, outcome)

	e := m.Get("capital  of\tFrance")
	require.NotNil(t, e)
	assert.Equal(t, t0, e.Created())
	assert.Equal(t, schedule.DefaultPriority, e.Priority())
	assert.Equal(t, []events.Kind{events.EntrySetChanged}, rec.kinds())
	assert.Equal(t, "capital of France", rec.got[0].Question)
}

func TestAddDuplicateQuestion(t *testing.T) {
	now := t0
	m, rec := newManager(t, &now)
	_, err := m.Add(domain.Card{Question: "2+2", Answer: "4", Priority: 3})
	require.NoError(t, err)

	outcome, err := m.Add(domain.Card{Question: " 2+2 ", Answer: "4"})
	require.NoError(t, err)
	assert.Equal(t, Ignored, outcome)

	outcome, err = m.Add(domain.Card{Question: "2+2", Answer: "four"})
	require.NoError(t, err)
	assert.Equal(t, Merged, outcome)

	// already merged: importing either answer again changes nothing
	for _, answer := range []string{"4", "four"} {
		outcome, err = m.Add(domain.Card{Question: "2+2", Answer: answer})
		require.NoError(t, err)
		assert.Equal(t, Ignored, outcome)
	}

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "4\nfour", m.Get("2+2").Answer())
	assert.Equal(t, 3, m.Get("2+2").Priority())
	assert.Equal(t, []events.Kind{events.EntrySetChanged, events.EntryChanged}, rec.kinds())
}

func TestAddRejectsInvalidCards(t *testing.T) {
	now := t0
	m, _ := newManager(t, &now)

	_, err := m.Add(domain.Card{Question: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)

	_, err = m.Add(domain.Card{Question: "q", Priority: 11})
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)
	assert.Zero(t, m.Len())
}

func TestRemove(t *testing.T) {
	now := t0
	m, rec := newManager(t, &now)
	for _, q := range []string{"a", "b", "c"} {
		_, err := m.Add(domain.Card{Question: q, Answer: q})
		require.NoError(t, err)
	}

	require.NoError(t, m.Remove("b"))
	assert.False(t, m.Contains("b"))
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "c", m.Entries()[1].Question())
	assert.Equal(t, events.Event{Kind: events.EntrySetChanged, Question: "b"}, rec.got[len(rec.got)-1])

	assert.ErrorIs(t, m.Remove("b"), ErrNotFound)
}

func TestSetPriorityAndEdit(t *testing.T) {
	now := t0
	m, rec := newManager(t, &now)
	_, err := m.Add(domain.Card{Question: "q", Answer: "a"})
	require.NoError(t, err)

	require.NoError(t, m.SetPriority("q", 4))
	assert.Equal(t, 4, m.Get("q").Priority())
	assert.ErrorIs(t, m.SetPriority("q", 0), domain.ErrInvalidPriority)
	assert.ErrorIs(t, m.SetPriority("missing", 4), ErrNotFound)

	require.NoError(t, m.Edit("q", "b"))
	assert.Equal(t, "b", m.Get("q").Answer())
	assert.ErrorIs(t, m.Edit("missing", "b"), ErrNotFound)

	assert.Equal(t, []events.Kind{events.EntrySetChanged, events.EntryChanged, events.EntryChanged}, rec.kinds())
}

func TestLoadPinsInstantAndFillsMetadata(t *testing.T) {
	now := t0
	m, rec := newManager(t, &now)
	created := t0.Add(-48 * time.Hour)

	err := m.Load([]Record{
		{Question: "old", Answer: "x", Priority: 2, Created: created, Reviews: []domain.Review{
			{Instant: created.Add(time.Hour), Result: domain.Success},
		}},
		{Question: "fresh", Answer: "y"},
		{Question: "fresh", Answer: "z"},
	})
	require.NoError(t, err)

	assert.Equal(t, t0, m.LoadInstant())
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, created, m.Get("old").Created())
	assert.Equal(t, 1, m.Get("old").ReviewCount())
	assert.Equal(t, t0, m.Get("fresh").Created())
	assert.Equal(t, schedule.DefaultPriority, m.Get("fresh").Priority())
	assert.Equal(t, "y\nz", m.Get("fresh").Answer())
	assert.Equal(t, []events.Kind{events.EntriesSwapped}, rec.kinds())
}

func TestLoadKeepsCollectionOnError(t *testing.T) {
	now := t0
	m, rec := newManager(t, &now)
	_, err := m.Add(domain.Card{Question: "keep", Answer: "me"})
	require.NoError(t, err)

	err = m.Load([]Record{{Question: "bad", Priority: 99}})
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)
	assert.True(t, m.Contains("keep"))
	assert.Equal(t, []events.Kind{events.EntrySetChanged}, rec.kinds())
}

func TestDueSetUsesPinnedLoadInstant(t *testing.T) {
	now := t0
	m, _ := newManager(t, &now)
	require.NoError(t, m.Load([]Record{
		{Question: "due", Answer: "a", Created: t0.Add(-15 * time.Hour)},
		{Question: "later", Answer: "b", Created: t0.Add(-10 * time.Hour)},
	}))

	assert.Equal(t, 1, m.DueCount())
	wait, ok := m.TimeUntilNextReview()
	require.True(t, ok)
	assert.Equal(t, -time.Hour, wait)

	// the wall clock moving on does not change the pinned answers
	now = t0.Add(10 * time.Hour)
	assert.Equal(t, 1, m.DueCount())
	assert.Len(t, m.ReviewableEntries(now), 2)
}

func TestTimeUntilNextReviewEmpty(t *testing.T) {
	now := t0
	m, _ := newManager(t, &now)
	_, ok := m.TimeUntilNextReview()
	assert.False(t, ok)
}

func TestReviewingPointsAndRecords(t *testing.T) {
	now := t0
	m, _ := newManager(t, &now)
	r := func(h int, result domain.ReviewResult) domain.Review {
		return domain.Review{Instant: t0.Add(time.Duration(h) * time.Hour), Result: result}
	}
	require.NoError(t, m.Load([]Record{
		{Question: "zeta", Answer: "1", Reviews: []domain.Review{r(1, domain.Success), r(2, domain.Success)}},
		{Question: "alpha", Answer: "2", Reviews: []domain.Review{r(1, domain.Success), r(2, domain.Failure), r(3, domain.Success)}},
	}))

	assert.Equal(t, 3, m.ReviewingPoints())

	records := m.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].Question)
	assert.Equal(t, "zeta", records[1].Question)
	assert.Len(t, records[0].Reviews, 3)

	histories := m.Histories()
	require.Len(t, histories, 2)
	assert.Equal(t, t0, histories[0].Created)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "merged", Merged.String())
}
