// Package app wires the store, the scheduling core and the review session together.
// An App is not safe for concurrent use; callers serialize access.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/conorfennell/ripen/internal/analyzer"
	"github.com/conorfennell/ripen/internal/config"
	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/entries"
	"github.com/conorfennell/ripen/internal/events"
	"github.com/conorfennell/ripen/internal/flatfile"
	"github.com/conorfennell/ripen/internal/review"
	"github.com/conorfennell/ripen/internal/schedule"
	"github.com/conorfennell/ripen/internal/storage"
	"github.com/conorfennell/ripen/internal/sync"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// App is an opened collection with its review session.
type App struct {
	DB        *storage.DB
	Bus       *events.Bus
	Planner   *schedule.Planner
	Entries   *entries.Manager
	Reviews   *review.Manager
	Refresher *analyzer.Refresher
	Syncer    *sync.Syncer

	clock  func() time.Time
	logger *slog.Logger
}

type options struct {
	clock func() time.Time
	rng   *rand.Rand
}

// Option tweaks Open.
type Option func(*options)

// WithClock replaces the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithRand seeds the session shuffle.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// Open opens the database named by cfg, loads the stored collection and computes
// recommendations from its history. Settings stored with the collection win over the
// configured study defaults.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	defaults, err := cfg.Study.Settings()
	if err != nil {
		return nil, fmt.Errorf("study settings: %w", err)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	a, err := build(ctx, db, defaults, cfg.ReposDir, logger, o)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, db *storage.DB, defaults schedule.Settings, reposDir string, logger *slog.Logger, o options) (*App, error) {
	settings, stored, err := db.LoadSettings(ctx, defaults)
	if err != nil {
		return nil, err
	}
	planner, err := schedule.NewPlanner(settings)
	if err != nil {
		return nil, err
	}
	logger.Debug("settings resolved", "stored", stored, "settings", settings.String())

	records, err := db.LoadCollection(ctx)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	em := entries.NewManager(planner, bus, o.clock, logger)
	if err := em.Load(records); err != nil {
		return nil, err
	}

	a := &App{
		DB:        db,
		Bus:       bus,
		Planner:   planner,
		Entries:   em,
		Refresher: analyzer.NewRefresher(em.Histories, planner, logger),
		Syncer:    sync.New(db, em, reposDir),
		clock:     o.clock,
		logger:    logger,
	}
	if _, err := a.Refresher.Refresh(ctx); err != nil {
		return nil, err
	}
	// Subscribed after the initial load so the first queue is built with the
	// recommendations in place.
	a.Reviews = review.NewManager(em, bus, o.clock, o.rng, logger)
	return a, nil
}

// Close closes the database. Unsaved changes are lost.
func (a *App) Close() error {
	return a.DB.Close()
}

// Save writes the collection and the study settings.
func (a *App) Save(ctx context.Context) error {
	records := a.Entries.Records()
	if err := a.DB.SaveCollection(ctx, records, a.Planner.Settings()); err != nil {
		return err
	}
	a.logger.Debug("collection saved", "entries", len(records))
	return nil
}

// Answer records result for the current entry and saves before returning, so the
// review is durable before the next entry is shown.
func (a *App) Answer(ctx context.Context, result domain.ReviewResult) error {
	if err := a.Reviews.Answer(result); err != nil {
		return err
	}
	return a.Save(ctx)
}

// Status is what an idle screen shows.
type Status struct {
	Entries         int
	Due             int
	ReviewingPoints int
	NextReview      time.Duration
	HasNextReview   bool
	Session         review.State
	Remaining       int
}

func (a *App) Status() Status {
	wait, ok := a.Entries.TimeUntilNextReview()
	return Status{
		Entries:         a.Entries.Len(),
		Due:             a.Entries.DueCount(),
		ReviewingPoints: a.Entries.ReviewingPoints(),
		NextReview:      wait,
		HasNextReview:   ok,
		Session:         a.Reviews.State(),
		Remaining:       a.Reviews.Remaining(),
	}
}

// Analyze recomputes recommendations and writes the analysis report to w.
func (a *App) Analyze(ctx context.Context, w io.Writer) error {
	if _, err := a.Refresher.Refresh(ctx); err != nil {
		return err
	}
	an := analyzer.New(a.Planner.Settings().IdealSuccessPercentage)
	return an.WriteReport(w, Version, a.Entries.Histories())
}

// AddSource registers a card source.
func (a *App) AddSource(ctx context.Context, path string) (*storage.Source, error) {
	return sync.AddSource(ctx, a.DB, path)
}

// Sync reconciles every source into the collection and saves it.
func (a *App) Sync(ctx context.Context) (sync.Report, error) {
	report, err := a.Syncer.RunSync(ctx)
	if err != nil {
		return report, err
	}
	return report, a.Save(ctx)
}

// Import adds the cards of markdown files and saves the collection.
func (a *App) Import(ctx context.Context, paths ...string) (sync.Report, error) {
	report := sync.ImportFiles(a.Entries, paths...)
	return report, a.Save(ctx)
}

// ImportFlat replaces the collection and settings with the flat files at path. The
// recommendations of the new collection are installed before the swap, so the
// session rebuilt on it is scheduled with its own history.
func (a *App) ImportFlat(ctx context.Context, path string) error {
	col, err := flatfile.Read(path, a.Planner.Settings())
	if err != nil {
		return err
	}
	previous := a.Planner.Settings()
	if err := a.Planner.SetSettings(col.Settings); err != nil {
		return err
	}

	staged := entries.NewManager(a.Planner, nil, a.clock, a.logger)
	if err := staged.Load(col.Records); err != nil {
		a.Planner.SetSettings(previous)
		return err
	}
	if _, err := a.Refresher.Prime(ctx, staged.Histories()); err != nil {
		return err
	}
	if err := a.Entries.Load(col.Records); err != nil {
		return err
	}
	return a.Save(ctx)
}

// ExportFlat writes the collection and settings as flat files at path.
func (a *App) ExportFlat(path string) error {
	return flatfile.Write(path, a.Entries.Records(), a.Planner.Settings())
}
