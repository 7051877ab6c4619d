// Package sqlite stores captured weather observations in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/weather-apps/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/insert-observation.sql
var insertObservationSQL string

//go:embed sql/get-recent-observations.sql
var getRecentObservationsSQL string

// timestampLayout is fixed-width so that lexical order matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Store persists observations. It implements watch.Sink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// A single writer avoids "database is locked" between the watcher and the API.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "sqlite" }

// LoadBatch stores observations in one transaction. Re-storing an ID
// overwrites the earlier reading.
func (s *Store) LoadBatch(ctx context.Context, observations []domain.Observation) (err error) {
	if len(observations) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertObservationSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range observations {
		weather, err := json.Marshal(o.Weather)
		if err != nil {
			return fmt.Errorf("encode observation %s: %w", o.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			o.ID, domain.NormalizeCity(o.Query), o.Query, o.Units, o.Lang,
			o.ObservedAt.UTC().Format(timestampLayout), string(weather),
		); err != nil {
			return fmt.Errorf("insert observation %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit observations for city, newest first.
func (s *Store) Recent(ctx context.Context, city string, limit int) ([]domain.Observation, error) {
	rows, err := s.db.QueryContext(ctx, getRecentObservationsSQL, domain.NormalizeCity(city), limit)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close observation rows", "error", err)
		}
	}()

	var out []domain.Observation
	for rows.Next() {
		var (
			o       domain.Observation
			ts      string
			weather string
		)
		if err := rows.Scan(&o.ID, &o.Query, &o.Units, &o.Lang, &ts, &weather); err != nil {
			return nil, err
		}
		if o.ObservedAt, err = time.Parse(timestampLayout, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		if err := json.Unmarshal([]byte(weather), &o.Weather); err != nil {
			return nil, fmt.Errorf("decode observation %s: %w", o.ID, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func buildDSN(path string) (string, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
