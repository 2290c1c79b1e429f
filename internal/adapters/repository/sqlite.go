package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/vodcut/internal/domain/model"
	"github.com/okian/vodcut/pkg/logger"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	defaultBusyTimeoutMS = 5000
	interruptedMessage   = "interrupted by restart"
)

// Fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists jobs in a single SQLite file. Params, result and
// error are stored as JSON columns.
type SQLiteStore struct {
	conn          *sql.DB
	log           logger.Logger
	busyTimeoutMS int
}

// NewSQLiteStore opens (or creates) the database at path, applies pending
// migrations and fails any job left RUNNING by a previous process.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{log: logger.Discard(), busyTimeoutMS: defaultBusyTimeoutMS}
	for _, opt := range opts {
		opt(s)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", s.busyTimeoutMS),
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	s.conn = conn
	if err := s.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	n, err := s.markInterrupted(ctx)
	if err != nil {
		s.log.Warn(ctx, "failed to mark interrupted jobs", logger.Error(err))
	} else if n > 0 {
		s.log.Warn(ctx, "marked interrupted jobs as failed", logger.Int("count", n))
	}
	return s, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	for _, m := range entries {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.isMigrationApplied(ctx, name) {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.conn.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		if _, err := s.conn.ExecContext(ctx, "INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}
		s.log.Info(ctx, "applied migration", logger.String("name", name))
	}
	return nil
}

func (s *SQLiteStore) isMigrationApplied(ctx context.Context, name string) bool {
	var exists int
	err := s.conn.QueryRowContext(ctx,
		"SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return false
	}
	var applied int
	err = s.conn.QueryRowContext(ctx, "SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

// markInterrupted fails every RUNNING job. No stage of a job can resume
// after the process that ran it is gone.
func (s *SQLiteStore) markInterrupted(ctx context.Context) (int, error) {
	jobs, err := s.List(ctx, Filter{State: model.StateRunning})
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	for _, j := range jobs {
		j.State = model.StateFailed
		j.Result = nil
		j.Error = &model.JobError{Stage: j.Stage, Kind: "internal_error", Message: interruptedMessage}
		j.UpdatedAt = now
		j.FinishedAt = &now
		if err := s.Save(ctx, j); err != nil {
			return 0, err
		}
	}
	return len(jobs), nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, job *model.Job) error {
	start := time.Now()
	defer observe("sqlite", "save", start)

	if job == nil || strings.TrimSpace(job.ID) == "" {
		return ErrInvalidID
	}
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	result, err := nullJSON(job.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	jobErr, err := nullJSON(job.Error)
	if err != nil {
		return fmt.Errorf("encode error: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO jobs (id, type, state, stage, progress, params, result, error,
		                  created_at, updated_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			state = excluded.state,
			stage = excluded.stage,
			progress = excluded.progress,
			params = excluded.params,
			result = excluded.result,
			error = excluded.error,
			updated_at = excluded.updated_at,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		job.ID, string(job.Type), string(job.State), string(job.Stage), job.Progress,
		string(params), result, jobErr,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
		formatTimePtr(job.StartedAt), formatTimePtr(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, type, state, stage, progress, params, result, error,
	created_at, updated_at, started_at, finished_at FROM jobs`

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Job, error) {
	start := time.Now()
	defer observe("sqlite", "get", start)

	row := s.conn.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*model.Job, error) {
	start := time.Now()
	defer observe("sqlite", "list", start)

	var (
		where []string
		args  []any
	)
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(filter.State))
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	q := selectColumns
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (map[model.JobState]int, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT state, COUNT(*) FROM jobs GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	out := make(map[model.JobState]int, 4)
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[model.JobState(state)] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*model.Job, error) {
	var (
		j                     model.Job
		typ, state, stage     string
		params                string
		result, jobErr        sql.NullString
		created, updated      string
		startedAt, finishedAt sql.NullString
	)
	if err := sc.Scan(&j.ID, &typ, &state, &stage, &j.Progress, &params, &result, &jobErr,
		&created, &updated, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	j.Type = model.JobType(typ)
	j.State = model.JobState(state)
	j.Stage = model.Stage(stage)

	if err := json.Unmarshal([]byte(params), &j.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if result.Valid {
		j.Result = &model.Result{}
		if err := json.Unmarshal([]byte(result.String), j.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	if jobErr.Valid {
		j.Error = &model.JobError{}
		if err := json.Unmarshal([]byte(jobErr.String), j.Error); err != nil {
			return nil, fmt.Errorf("decode error: %w", err)
		}
	}

	var err error
	if j.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, err
	}
	if j.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, err
	}
	if j.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, err
	}
	if j.FinishedAt, err = parseTimePtr(finishedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

func nullJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
