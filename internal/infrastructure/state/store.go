// Package state persists the engine State in a local SQLite database.
// Corrupt or missing state degrades to "start fresh": re-surfacing a few
// already-seen items once is cheaper than refusing to start.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"MarineIntel/internal/domain"
	"MarineIntel/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS seen (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id  TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS buffer (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	id        TEXT NOT NULL,
	title     TEXT NOT NULL,
	link      TEXT NOT NULL,
	published TEXT NOT NULL,
	summary   TEXT NOT NULL,
	source    TEXT NOT NULL,
	category  TEXT NOT NULL,
	alert     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

const (
	metaLastReportDate = "last_report_date"
	metaLastPollAt     = "last_poll_at"

	insertChunk = 500
)

// Store is the single durable home of poll/report state.
type Store struct {
	db       *sql.DB
	seenCap  int
	seenTail int
	logger   *slog.Logger
}

var _ ports.StateStore = (*Store)(nil)

// Open prepares the database at path. An unusable file is removed and
// recreated empty rather than treated as fatal.
func Open(path string, seenCap, seenTail int, logger *slog.Logger) (*Store, error) {
	db, err := open(path)
	if err != nil {
		logger.Warn("state database unusable, starting fresh", "path", path, "error", err)
		_ = os.Remove(path)
		db, err = open(path)
		if err != nil {
			return nil, fmt.Errorf("recreate state db %s: %w", path, err)
		}
	}

	return &Store{db: db, seenCap: seenCap, seenTail: seenTail, logger: logger}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	// Single-writer process; more connections just invite SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return db, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the last-persisted State, or a fresh empty State when any
// part of it cannot be read.
func (s *Store) Load(ctx context.Context) domain.State {
	var st domain.State

	seen, err := s.loadSeen(ctx)
	if err != nil {
		s.logger.Warn("loading persisted state failed, starting fresh", "error", err)
		return domain.State{}
	}
	st.Seen = seen

	buffer, err := s.loadBuffer(ctx)
	if err != nil {
		s.logger.Warn("loading persisted buffer failed, starting fresh", "error", err)
		return domain.State{}
	}
	st.Buffer = buffer

	meta, err := s.loadMeta(ctx)
	if err != nil {
		s.logger.Warn("loading persisted meta failed, starting fresh", "error", err)
		return domain.State{}
	}
	st.LastReportDate = meta[metaLastReportDate]
	if raw := meta[metaLastPollAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			st.LastPollAt = t
		}
	}

	return st
}

// Save trims the seen set to its cap and rewrites the whole State in one
// transaction, so a reader never observes a torn write.
func (s *Store) Save(ctx context.Context, st *domain.State) error {
	st.TrimSeen(s.seenCap, s.seenTail)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"seen", "buffer", "meta"} {
		query, args, _ := sq.Delete(table).ToSql()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := saveSeen(ctx, tx, st.Seen); err != nil {
		return err
	}
	if err := saveBuffer(ctx, tx, st.Buffer); err != nil {
		return err
	}
	if err := saveMeta(ctx, tx, st); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (s *Store) loadSeen(ctx context.Context) ([]string, error) {
	query, args, _ := sq.Select("id").From("seen").OrderBy("seq").ToSql()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query seen: %w", err)
	}
	defer rows.Close()

	var seen []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seen: %w", err)
		}
		seen = append(seen, id)
	}
	return seen, rows.Err()
}

func (s *Store) loadBuffer(ctx context.Context) ([]domain.IntelItem, error) {
	query, args, _ := sq.
		Select("id", "title", "link", "published", "summary", "source", "category", "alert").
		From("buffer").
		OrderBy("seq").
		ToSql()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query buffer: %w", err)
	}
	defer rows.Close()

	var buffer []domain.IntelItem
	for rows.Next() {
		var (
			item      domain.IntelItem
			published string
			alert     int
		)
		if err := rows.Scan(&item.ID, &item.Title, &item.Link, &published,
			&item.Summary, &item.Source, &item.Category, &alert); err != nil {
			return nil, fmt.Errorf("scan buffer: %w", err)
		}
		if published != "" {
			if t, err := time.Parse(time.RFC3339Nano, published); err == nil {
				item.PublishedAt = t
			}
		}
		item.Alert = alert != 0
		buffer = append(buffer, item)
	}
	return buffer, rows.Err()
}

func (s *Store) loadMeta(ctx context.Context) (map[string]string, error) {
	query, args, _ := sq.Select("key", "value").From("meta").ToSql()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[key] = value
	}
	return meta, rows.Err()
}

func saveSeen(ctx context.Context, tx *sql.Tx, seen []string) error {
	for start := 0; start < len(seen); start += insertChunk {
		end := min(start+insertChunk, len(seen))
		insert := sq.Insert("seen").Columns("id")
		for _, id := range seen[start:end] {
			insert = insert.Values(id)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build seen insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert seen: %w", err)
		}
	}
	return nil
}

func saveBuffer(ctx context.Context, tx *sql.Tx, buffer []domain.IntelItem) error {
	for start := 0; start < len(buffer); start += insertChunk {
		end := min(start+insertChunk, len(buffer))
		insert := sq.Insert("buffer").
			Columns("id", "title", "link", "published", "summary", "source", "category", "alert")
		for _, item := range buffer[start:end] {
			published := ""
			if !item.PublishedAt.IsZero() {
				published = item.PublishedAt.Format(time.RFC3339Nano)
			}
			alert := 0
			if item.Alert {
				alert = 1
			}
			insert = insert.Values(item.ID, item.Title, item.Link, published,
				item.Summary, item.Source, item.Category, alert)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return fmt.Errorf("build buffer insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert buffer: %w", err)
		}
	}
	return nil
}

func saveMeta(ctx context.Context, tx *sql.Tx, st *domain.State) error {
	lastPoll := ""
	if !st.LastPollAt.IsZero() {
		lastPoll = st.LastPollAt.Format(time.RFC3339Nano)
	}

	query, args, err := sq.Insert("meta").
		Columns("key", "value").
		Values(metaLastReportDate, st.LastReportDate).
		Values(metaLastPollAt, lastPoll).
		ToSql()
	if err != nil {
		return fmt.Errorf("build meta insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	return nil
}
