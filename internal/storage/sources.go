package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SourceType says how a source is fetched.
type SourceType string

const (
	LocalSource SourceType = "local"
	GitSource   SourceType = "git"
)

// Source represents a card source, either a local path or a Git URL.
type Source struct {
	ID          int64
	Path        string
	Type        SourceType
	LastScanned sql.NullTime
}

// InsertSource inserts a new source into the database and returns its ID.
func (db *DB) InsertSource(ctx context.Context, path string, typ SourceType) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, type)
		VALUES (?, ?)
	`, path, string(typ))
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source from the database by its path.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (*Source, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, path, type, last_scanned
		FROM sources WHERE path = ?
	`, path)

	s, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Source not found
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	return s, nil
}

// GetAllSources retrieves all stored sources from the database.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, path, type, last_scanned
		FROM sources ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source and its card associations. The cards themselves
// stay in the collection.
func (db *DB) DeleteSource(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source ID %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete source ID %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("source ID %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, sourceID int64, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`, at.UTC().Format(timeLayout), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// SourceCardHashes returns the hashes of the cards a source produced on its last scan.
func (db *DB) SourceCardHashes(ctx context.Context, sourceID int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT entry_hash FROM source_cards WHERE source_id = ? ORDER BY entry_hash
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan card hash for source ID %d: %w", sourceID, err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// ClaimedCardHashes returns the hashes produced on the last scan of any source.
func (db *DB) ClaimedCardHashes(ctx context.Context) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT entry_hash FROM source_cards`)
	if err != nil {
		return nil, fmt.Errorf("failed to get claimed cards: %w", err)
	}
	defer rows.Close()

	claimed := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan claimed card hash: %w", err)
		}
		claimed[h] = true
	}
	return claimed, rows.Err()
}

// ReplaceSourceCards records the hashes a source produced on its latest scan.
func (db *DB) ReplaceSourceCards(ctx context.Context, sourceID int64, hashes []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM source_cards WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("failed to clear cards for source ID %d: %w", sourceID, err)
	}
	for _, h := range hashes {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO source_cards (source_id, entry_hash) VALUES (?, ?)
		`, sourceID, h); err != nil {
			return fmt.Errorf("failed to record card %s for source ID %d: %w", h, sourceID, err)
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (*Source, error) {
	var (
		s           Source
		typ         string
		lastScanned sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Path, &typ, &lastScanned); err != nil {
		return nil, err
	}
	s.Type = SourceType(typ)
	if lastScanned.Valid {
		t, err := time.Parse(timeLayout, lastScanned.String)
		if err != nil {
			return nil, fmt.Errorf("last scanned of source %d: %w", s.ID, err)
		}
		s.LastScanned = sql.NullTime{Time: t, Valid: true}
	}
	return &s, nil
}
