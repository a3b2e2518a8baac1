// Package sync imports cards from the configured sources into the collection.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/entries"
	"github.com/conorfennell/ripen/internal/gitsource"
	"github.com/conorfennell/ripen/internal/knol"
	"github.com/conorfennell/ripen/internal/parser"
	"github.com/conorfennell/ripen/internal/storage"
)

var ErrSourceExists = errors.New("source already registered")

// Report sums up what a sync run did.
type Report struct {
	Sources int
	Parsed  int
	Added   int
	Merged  int
	Ignored int
	Removed int
	Errors  []error
}

func (r *Report) merge(o Report) {
	r.Parsed += o.Parsed
	r.Added += o.Added
	r.Merged += o.Merged
	r.Ignored += o.Ignored
	r.Removed += o.Removed
	r.Errors = append(r.Errors, o.Errors...)
}

// Syncer reconciles sources into an entry collection.
type Syncer struct {
	db       *storage.DB
	entries  *entries.Manager
	reposDir string
	clock    func() time.Time
	progress io.Writer
}

// New returns a syncer that keeps git clones below reposDir.
func New(db *storage.DB, em *entries.Manager, reposDir string) *Syncer {
	return &Syncer{db: db, entries: em, reposDir: reposDir, clock: time.Now}
}

// WithProgress sends git progress output to w.
func (s *Syncer) WithProgress(w io.Writer) *Syncer {
	s.progress = w
	return s
}

// AddSource registers a local directory or a git URL.
func AddSource(ctx context.Context, db *storage.DB, path string) (*storage.Source, error) {
	typ := storage.LocalSource
	if gitsource.IsURL(path) {
		typ = storage.GitSource
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", path, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("source %s is not a directory", path)
		}
		path = abs
	}

	existing, err := db.FindSourceByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrSourceExists, path)
	}
	id, err := db.InsertSource(ctx, path, typ)
	if err != nil {
		return nil, err
	}
	return &storage.Source{ID: id, Path: path, Type: typ}, nil
}

// RunSync iterates over all sources and reconciles them. A failing source is
// reported and skipped, and the cards it claimed on its last scan stay. A card one
// source dropped is removed only when no source claims it after the run.
func (s *Syncer) RunSync(ctx context.Context) (Report, error) {
	slog.Info("starting sync process for all sources")
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	if len(sources) == 0 {
		slog.Info("no sources configured")
		return report, nil
	}

	if err := os.MkdirAll(s.reposDir, os.ModePerm); err != nil {
		return report, fmt.Errorf("failed to create repos directory: %w", err)
	}

	orphans := make(map[string]bool)
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		slog.Info("syncing source", "id", source.ID, "type", source.Type, "path", source.Path)
		report.Sources++

		dir := source.Path
		if source.Type == storage.GitSource {
			localRepoPath, err := gitsource.LocalPath(s.reposDir, source.Path)
			if err != nil {
				report.Errors = append(report.Errors, err)
				slog.Error("error determining local path for git repo", "url", source.Path, "error", err)
				continue
			}
			if err := gitsource.Sync(ctx, source.Path, localRepoPath, s.progress); err != nil {
				report.Errors = append(report.Errors, err)
				slog.Error("error syncing git repo", "url", source.Path, "error", err)
				continue
			}
			dir = localRepoPath
		}

		r, dropped, err := s.ReconcileSource(ctx, source, dir)
		report.merge(r)
		if err != nil {
			report.Errors = append(report.Errors, err)
			slog.Error("error reconciling source", "id", source.ID, "error", err)
			continue
		}
		for _, h := range dropped {
			orphans[h] = true
		}
	}

	if err := s.removeOrphans(ctx, orphans, &report); err != nil {
		return report, err
	}
	slog.Info("sync process complete",
		"sources", report.Sources,
		"added", report.Added,
		"merged", report.Merged,
		"removed", report.Removed,
		"errors", len(report.Errors),
	)
	return report, nil
}

// ReconcileSource adds every card found below dir and records them as the cards of
// source. It returns the hashes the source produced last time but no longer does.
func (s *Syncer) ReconcileSource(ctx context.Context, source storage.Source, dir string) (Report, []string, error) {
	var report Report
	found := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		fileCards, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
		}
		for _, card := range fileCards {
			report.Parsed++
			found[knol.Hash(card.Question)] = true
			addCard(s.entries, card, &report)
		}
		return nil
	})
	if walkErr != nil {
		return report, nil, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	previous, err := s.db.SourceCardHashes(ctx, source.ID)
	if err != nil {
		return report, nil, err
	}
	var dropped []string
	for _, h := range previous {
		if !found[h] {
			dropped = append(dropped, h)
		}
	}

	hashes := make([]string, 0, len(found))
	for h := range found {
		hashes = append(hashes, h)
	}
	if err := s.db.ReplaceSourceCards(ctx, source.ID, hashes); err != nil {
		return report, nil, err
	}
	if err := s.db.UpdateSourceLastScanned(ctx, source.ID, s.clock()); err != nil {
		slog.Warn("failed to update last scanned for source", "source_id", source.ID, "error", err)
	}

	slog.Info("reconciliation complete",
		"path", dir,
		"parsed_cards", report.Parsed,
		"dropped", len(dropped),
		"errors", len(report.Errors),
	)
	return report, dropped, nil
}

// removeOrphans removes the entries behind the dropped hashes that no source claims.
func (s *Syncer) removeOrphans(ctx context.Context, dropped map[string]bool, report *Report) error {
	if len(dropped) == 0 {
		return nil
	}
	claimed, err := s.db.ClaimedCardHashes(ctx)
	if err != nil {
		return err
	}
	for _, e := range s.entries.Entries() {
		h := knol.Hash(e.Question())
		if !dropped[h] {
			continue
		}
		if claimed[h] {
			slog.Debug("dropped card still claimed by another source", "question", knol.Normalize(e.Question()))
			continue
		}
		slog.Info("orphaned card, removing", "question", knol.Normalize(e.Question()))
		if err := s.entries.Remove(e.Question()); err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Removed++
	}
	return nil
}

// ImportFiles adds the cards of the given markdown files without registering them as
// a source, so a later sync never removes them.
func ImportFiles(em *entries.Manager, paths ...string) Report {
	var report Report
	for _, path := range paths {
		cards, err := parser.ParseFile(path)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, err))
		}
		for _, card := range cards {
			report.Parsed++
			addCard(em, card, &report)
		}
	}
	slog.Info("import complete", "files", len(paths), "parsed_cards", report.Parsed, "added", report.Added)
	return report
}

func addCard(em *entries.Manager, card domain.Card, report *Report) {
	outcome, err := em.Add(card)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("card %q: %w", knol.Normalize(card.Question), err))
		return
	}
	switch outcome {
	case entries.Added:
		report.Added++
	case entries.Merged:
		report.Merged++
	case entries.Ignored:
		report.Ignored++
	}
}
