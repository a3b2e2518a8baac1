package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/ripen/internal/domain"
	"github.com/conorfennell/ripen/internal/entries"
	"github.com/conorfennell/ripen/internal/knol"
	"github.com/conorfennell/ripen/internal/schedule"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

var ErrNotFound = errors.New("not found")

const timeLayout = time.RFC3339Nano

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps the foreign_keys pragma in effect for every statement.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// LoadCollection returns every stored entry with its review history.
func (db *DB) LoadCollection(ctx context.Context) ([]entries.Record, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT hash, question, answer, priority, created_at
		FROM entries ORDER BY question
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	defer rows.Close()

	var records []entries.Record
	index := make(map[string]int)
	for rows.Next() {
		var (
			hash, created string
			r             entries.Record
		)
		if err := rows.Scan(&hash, &r.Question, &r.Answer, &r.Priority, &created); err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		if r.Created, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("entry %s creation instant: %w", hash, err)
		}
		index[hash] = len(records)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	reviewRows, err := db.conn.QueryContext(ctx, `
		SELECT entry_hash, instant, result
		FROM reviews ORDER BY entry_hash, seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	defer reviewRows.Close()

	for reviewRows.Next() {
		var hash, instant, result string
		if err := reviewRows.Scan(&hash, &instant, &result); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		i, ok := index[hash]
		if !ok {
			continue
		}
		reviews, err := domain.ReviewsFromFields([]string{instant, result})
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", hash, err)
		}
		records[i].Reviews = append(records[i].Reviews, reviews...)
	}
	if err := reviewRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	return records, nil
}

// LoadSettings applies the stored settings on top of defaults. It reports whether any
// settings were stored.
func (db *DB) LoadSettings(ctx context.Context, defaults schedule.Settings) (schedule.Settings, bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT label, value FROM settings`)
	if err != nil {
		return defaults, false, fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var label, value string
		if err := rows.Scan(&label, &value); err != nil {
			return defaults, false, fmt.Errorf("failed to scan settings row: %w", err)
		}
		lines = append(lines, label+": "+value)
	}
	if err := rows.Err(); err != nil {
		return defaults, false, fmt.Errorf("failed to load settings: %w", err)
	}
	if len(lines) == 0 {
		return defaults, false, nil
	}
	s := defaults
	if err := s.ParseLines(lines); err != nil {
		return defaults, false, fmt.Errorf("stored settings: %w", err)
	}
	return s, true, nil
}

// SaveCollection replaces the stored collection and settings in one transaction.
func (db *DB) SaveCollection(ctx context.Context, records []entries.Record, settings schedule.Settings) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM reviews`, `DELETE FROM entries`, `DELETE FROM settings`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear collection: %w", err)
		}
	}

	for _, r := range records {
		hash := knol.Hash(r.Question)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entries (hash, question, answer, priority, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, hash, r.Question, r.Answer, r.Priority, r.Created.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", hash, err)
		}
		for seq, review := range r.Reviews {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO reviews (entry_hash, seq, instant, result)
				VALUES (?, ?, ?, ?)
			`, hash, seq, review.Instant.UTC().Format(timeLayout), string(review.Result.Abbreviation()))
			if err != nil {
				return fmt.Errorf("failed to insert review %d of %s: %w", seq, hash, err)
			}
		}
	}

	for _, p := range settings.Properties() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO settings (label, value) VALUES (?, ?)`, p.Label, p.Value); err != nil {
			return fmt.Errorf("failed to insert setting %q: %w", p.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection: %w", err)
	}
	return nil
}
