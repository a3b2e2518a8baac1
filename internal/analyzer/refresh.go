package analyzer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/schedule"
)

// Refresher recomputes recommendations from a history snapshot and installs them in a
// planner. Concurrent calls share one computation.
type Refresher struct {
	snapshot func() []domain.History
	planner  *schedule.Planner
	logger   *slog.Logger
	group    singleflight.Group
}

// NewRefresher builds a refresher. snapshot must be safe to call from any goroutine.
func NewRefresher(snapshot func() []domain.History, planner *schedule.Planner, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{snapshot: snapshot, planner: planner, logger: logger}
}

// Refresh rebuilds the table and swaps it into the planner. The old table stays in
// place if ctx is cancelled before the swap.
func (r *Refresher) Refresh(ctx context.Context) (schedule.Recommendations, error) {
	v, err, shared := r.group.Do("recommendations", func() (any, error) {
		return r.install(ctx, r.snapshot())
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.logger.Debug("recommendation refresh shared with concurrent caller")
	}
	return v.(schedule.Recommendations), nil
}

// Prime installs the table computed from histories that are about to be loaded, so
// the first queue built for them already uses their own data.
func (r *Refresher) Prime(ctx context.Context, histories []domain.History) (schedule.Recommendations, error) {
	return r.install(ctx, histories)
}

func (r *Refresher) install(ctx context.Context, histories []domain.History) (schedule.Recommendations, error) {
	a := New(r.planner.Settings().IdealSuccessPercentage)
	recs := a.Recommendations(histories)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("refresh recommendations: %w", err)
	}
	r.planner.Install(recs)
	r.logger.Info("recommendations installed",
		"entries", len(histories),
		"patterns", len(recs),
		"known", recs.Known(),
	)
	return recs, nil
}
