package app

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/ripen/internal/config"
	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/entries"
	"github.com/conorfennell/ripen/internal/flatfile"
	"github.com/conorfennell/ripen/internal/review"
	"github.com/conorfennell/ripen/internal/schedule"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	cfg *config.Config
	dir string
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--database", filepath.Join(dir, "ripen.db"),
		"--repos-dir", filepath.Join(dir, "repos"),
	}))
	cfg, err := config.Load(fs)
	require.NoError(t, err)
	return &fixture{cfg: cfg, dir: dir, now: t0}
}

func (f *fixture) open(t *testing.T) *App {
	t.Helper()
	a, err := Open(context.Background(), f.cfg, nil,
		WithClock(func() time.Time { return f.now }),
		WithRand(rand.New(rand.NewPCG(7, 11))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func (f *fixture) markdown(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, "cards.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportReviewAndReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.open(t)
	report, err := a.Import(ctx, f.markdown(t, "Q: one\nA: 1\n---\nQ: two\nA: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)

	st := a.Status()
	assert.Equal(t, 2, st.Entries)
	assert.Zero(t, st.Due)
	assert.True(t, st.HasNextReview)
	require.NoError(t, a.Close())

	// the initial interval is 14 hours
	f.now = t0.Add(15 * time.Hour)
	a = f.open(t)
	assert.Equal(t, 2, a.Status().Due)

	a.Reviews.ContinueSession()
	require.Equal(t, review.Active, a.Reviews.State())
	first := a.Reviews.Current()
	require.NotNil(t, first)
	require.NoError(t, a.Answer(ctx, domain.Success))
	require.NoError(t, a.Close())

	// the answer was saved without an explicit Save
	a = f.open(t)
	e := a.Entries.Get(first.Question())
	require.NotNil(t, e)
	assert.Equal(t, 1, e.ReviewCount())
	assert.Equal(t, 1, a.Status().ReviewingPoints)
}

func TestAnswerWithoutSession(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	assert.ErrorIs(t, a.Answer(context.Background(), domain.Success), review.ErrNoCurrentEntry)
}

func TestStoredSettingsWinOverConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.open(t)
	s := a.Planner.Settings()
	s.SessionSize = 3
	require.NoError(t, a.Planner.SetSettings(s))
	require.NoError(t, a.Save(ctx))
	require.NoError(t, a.Close())

	a = f.open(t)
	assert.Equal(t, 3, a.Planner.Settings().SessionSize)
}

func TestFlatRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.open(t)
	_, err := a.Import(ctx, f.markdown(t, "Q: one\nA: 1\nP: 3\n"))
	require.NoError(t, err)

	path := filepath.Join(f.dir, "export.txt")
	require.NoError(t, a.ExportFlat(path))
	assert.FileExists(t, filepath.Join(f.dir, "export_reps.txt"))
	assert.FileExists(t, filepath.Join(f.dir, "export_settings.txt"))

	other := newFixture(t)
	b := other.open(t)
	require.NoError(t, b.ImportFlat(ctx, path))
	e := b.Entries.Get("one")
	require.NotNil(t, e)
	assert.Equal(t, 3, e.Priority())
	assert.Equal(t, t0, e.Created())
}

func TestAnalyzeWritesReport(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)

	var buf bytes.Buffer
	require.NoError(t, a.Analyze(context.Background(), &buf))
	assert.Contains(t, buf.String(), "ripen version dev")
	assert.Contains(t, buf.String(), "Number of cards is: 0")
}

func TestOpenRejectsBadDatabasePath(t *testing.T) {
	f := newFixture(t)
	f.cfg.Database = filepath.Join(f.dir, "missing", "dir", "ripen.db")
	_, err := Open(context.Background(), f.cfg, nil)
	assert.Error(t, err)
}

func TestImportFlatSchedulesWithItsOwnHistory(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	// left over from the previous collection: new cards due after a minute
	a.Planner.Install(schedule.Recommendations{"": {Duration: time.Minute, Valid: true}})

	path := filepath.Join(f.dir, "fresh.txt")
	require.NoError(t, flatfile.Write(path, []entries.Record{
		{Question: "fresh", Answer: "a", Priority: 10, Created: t0.Add(-time.Hour)},
	}, schedule.DefaultSettings()))

	require.NoError(t, a.ImportFlat(context.Background(), path))

	assert.Equal(t, 1, a.Entries.Len())
	assert.Zero(t, a.Status().Due)
	assert.Equal(t, review.Uninitialized, a.Reviews.State())
	assert.Zero(t, a.Reviews.Remaining())
	_, ok := a.Planner.Recommendations().Lookup("")
	assert.False(t, ok)
}

func TestImportFlatKeepsCollectionOnError(t *testing.T) {
	f := newFixture(t)
	a := f.open(t)
	_, err := a.Import(context.Background(), f.markdown(t, "Q: keep\nA: me\n"))
	require.NoError(t, err)

	settings := schedule.DefaultSettings()
	settings.SessionSize = 3
	path := filepath.Join(f.dir, "bad.txt")
	require.NoError(t, flatfile.Write(path, []entries.Record{
		{Question: "bad", Answer: "a", Priority: 99, Created: t0},
	}, settings))

	assert.Error(t, a.ImportFlat(context.Background(), path))
	assert.True(t, a.Entries.Contains("keep"))
	assert.Equal(t, schedule.DefaultSettings().SessionSize, a.Planner.Settings().SessionSize)
}
