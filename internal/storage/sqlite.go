package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ryanbastic/go-placebot/internal/canvas"
	"github.com/ryanbastic/go-placebot/internal/user"
)

// SQLiteStore implements Backend on a single SQLite file. All access goes
// through one connection, which serialises writers.
type SQLiteStore struct {
	db           *sql.DB
	queryTimeout time.Duration
	now          func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(path string, queryTimeout time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}
	for i, ddl := range sqliteMigrations {
		if _, err := db.Exec(ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite migration %d: %w", i, err)
		}
	}

	return &SQLiteStore{db: db, queryTimeout: queryTimeout, now: time.Now}, nil
}

func (s *SQLiteStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return ctx, func() {}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteProfile(row rowScanner) (*user.Profile, error) {
	var (
		p     user.Profile
		last  sql.NullInt64
		extra string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Emoji, &p.Admin, &p.Santa, &p.Canvas,
		&last, &p.TilesCount, &p.Points, &p.Gems, &extra); err != nil {
		return nil, err
	}
	if last.Valid {
		t := time.Unix(0, last.Int64).UTC()
		p.LastPlaceTime = &t
	}
	if extra != "" {
		if err := json.Unmarshal([]byte(extra), &p.Extra); err != nil {
			return nil, fmt.Errorf("decode extra for user %d: %w", p.ID, err)
		}
	}
	if len(p.Extra) == 0 {
		p.Extra = nil
	}
	return &p, nil
}

func nanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func (s *SQLiteStore) CreateUser(ctx context.Context, p user.Profile) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	extra, err := marshalExtra(p.Extra)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, emoji, admin, santa, canvas, last_place_time, tiles_count, points, gems, extra, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.Name, p.Emoji, p.Admin, p.Santa, p.Canvas, nanos(p.LastPlaceTime),
		p.TilesCount, p.Points, p.Gems, string(extra), s.now().UnixNano())
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*user.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := scanSQLiteProfile(s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]user.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM users ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.Profile
	for rows.Next() {
		p, err := scanSQLiteProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("list users scan: %w", err)
		}
		users = append(users, *p)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, id int64, u user.Update) (*user.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanSQLiteProfile(tx.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	p.Apply(u)

	extra, err := marshalExtra(p.Extra)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users
		SET name = ?, emoji = ?, admin = ?, santa = ?, canvas = ?, last_place_time = ?, extra = ?
		WHERE id = ?
	`, p.Name, p.Emoji, p.Admin, p.Santa, p.Canvas, nanos(p.LastPlaceTime), string(extra), id); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update user commit: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) AddCounter(ctx context.Context, id int64, c user.Counter, delta int64) (int64, error) {
	col, err := counterColumn(c)
	if err != nil {
		return 0, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`UPDATE users SET %s = %s + ? WHERE id = ? RETURNING %s`, col, col, col)

	var value int64
	if err := s.db.QueryRowContext(ctx, query, delta, id).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, user.ErrUserNotFound
		}
		return 0, fmt.Errorf("add %s: %w", col, err)
	}
	return value, nil
}

func (s *SQLiteStore) LoadGrid(ctx context.Context, name string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var grid string
	err := s.db.QueryRowContext(ctx, `SELECT grid FROM canvases WHERE name = ?`, name).Scan(&grid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", canvas.ErrGridNotFound
		}
		return "", fmt.Errorf("load grid: %w", err)
	}
	return grid, nil
}

func (s *SQLiteStore) SaveGrid(ctx context.Context, name, data string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO canvases (name, grid, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET grid = excluded.grid, updated_at = excluded.updated_at
	`, name, data, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("save grid: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListGrids(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM canvases ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list grids: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("list grids scan: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) ensureCohort(ctx context.Context, year int, key string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO santa_cohorts (year, cohort_key, created_at) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`, year, key, s.now().UnixNano())
	return err
}

func (s *SQLiteStore) Retrieved(ctx context.Context, year int, key string) ([]int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.ensureCohort(ctx, year, key); err != nil {
		return nil, fmt.Errorf("retrieved: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM santa_retrievals
		WHERE year = ? AND cohort_key = ?
		ORDER BY retrieved_at, user_id
	`, year, key)
	if err != nil {
		return nil, fmt.Errorf("retrieved: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("retrieved scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) MarkRetrieved(ctx context.Context, year int, key string, userID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.ensureCohort(ctx, year, key); err != nil {
		return fmt.Errorf("mark retrieved: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO santa_retrievals (year, cohort_key, user_id, retrieved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, year, key, userID, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("mark retrieved: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
