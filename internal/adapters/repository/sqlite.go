package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/blocks"
	"github.com/okian/dayflow/internal/domain/transition"
	"github.com/okian/dayflow/pkg/logger"
	"github.com/okian/dayflow/pkg/metrics"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps transition models in a SQLite database. Only non-zero
// counts are stored; probability tables are rebuilt on load.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	now    func() time.Time
	logger logger.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		now:    time.Now,
		logger: logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("repository")
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, m *transition.Model) (string, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(metrics.Since(start)) }()

	id := uuid.NewString()
	at := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO models (id, created_at, blocks_per_day, block_minutes, day_count) VALUES (?, ?, ?, ?, ?)`,
		id, at.Format(timeLayout), m.BlocksPerDay(), m.Layout.Minutes(), int64(m.Counts.Days)); err != nil {
		return "", fmt.Errorf("failed to insert model: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transition_counts (model_id, block, origin, dest, count) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare count insert: %w", err)
	}
	defer stmt.Close()

	var rows int
	for b := range m.Counts.Grids {
		g := &m.Counts.Grids[b]
		for from := range g {
			for to, c := range g[from] {
				if c == 0 {
					continue
				}
				if _, err := stmt.ExecContext(ctx, id, b, from, to, int64(c)); err != nil {
					return "", fmt.Errorf("failed to insert count (block %d, %d -> %d): %w", b, from, to, err)
				}
				rows++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit model: %w", err)
	}
	metrics.RecordModelSaved()
	s.logger.Info(ctx, "model saved",
		logger.String("model_id", id),
		logger.Int("blocks_per_day", m.BlocksPerDay()),
		logger.Int("count_rows", rows),
	)
	return id, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*transition.Model, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(metrics.Since(start)) }()

	sum, err := s.summary(ctx, s.db.QueryRowContext(ctx,
		`SELECT id, created_at, blocks_per_day, block_minutes, day_count FROM models WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return s.counts(ctx, sum)
}

// Latest implements Store.
func (s *SQLiteStore) Latest(ctx context.Context) (*transition.Model, Summary, error) {
	sum, err := s.summary(ctx, s.db.QueryRowContext(ctx,
		`SELECT id, created_at, blocks_per_day, block_minutes, day_count FROM models ORDER BY created_at DESC, rowid DESC LIMIT 1`))
	if err != nil {
		return nil, Summary{}, err
	}
	m, err := s.counts(ctx, sum)
	if err != nil {
		return nil, Summary{}, err
	}
	return m, sum, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, blocks_per_day, block_minutes, day_count FROM models ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (Summary, error) {
	var (
		sum     Summary
		created string
		days    int64
	)
	if err := row.Scan(&sum.ID, &created, &sum.BlocksPerDay, &sum.BlockMinutes, &days); err != nil {
		return Summary{}, err
	}
	at, err := time.Parse(timeLayout, created)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: created_at %q: %w", ErrInvalidModel, created, err)
	}
	sum.CreatedAt = at
	sum.DayCount = uint64(days)
	return sum, nil
}

func (s *SQLiteStore) summary(_ context.Context, row *sql.Row) (Summary, error) {
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read model: %w", err)
	}
	return sum, nil
}

func (s *SQLiteStore) counts(ctx context.Context, sum Summary) (*transition.Model, error) {
	l, err := blocks.NewLayout(sum.BlockMinutes)
	if err != nil {
		return nil, fmt.Errorf("%w: model %s: %w", ErrInvalidModel, sum.ID, err)
	}
	if l.BlocksPerDay() != sum.BlocksPerDay {
		return nil, fmt.Errorf("%w: model %s: %d blocks per day for %d-minute blocks",
			ErrInvalidModel, sum.ID, sum.BlocksPerDay, sum.BlockMinutes)
	}

	c := &transition.Counts{
		Layout: l,
		Grids:  make([]transition.Grid, sum.BlocksPerDay),
		Days:   sum.DayCount,
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT block, origin, dest, count FROM transition_counts WHERE model_id = ?`, sum.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var block, origin, dest int
		var count int64
		if err := rows.Scan(&block, &origin, &dest, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		if block < 0 || block >= len(c.Grids) ||
			origin < 0 || origin >= activity.Count ||
			dest < 0 || dest >= activity.Count || count < 0 {
			return nil, fmt.Errorf("%w: model %s: count row (%d, %d, %d, %d)",
				ErrInvalidModel, sum.ID, block, origin, dest, count)
		}
		c.Grids[block][origin][dest] = uint64(count)
		c.Transitions += uint64(count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read counts: %w", err)
	}
	return transition.NewModel(c), nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }
