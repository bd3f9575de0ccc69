package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ryanbastic/go-placebot/internal/canvas"
	"github.com/ryanbastic/go-placebot/internal/user"
)

const profileColumns = `id, name, emoji, admin, santa, canvas, last_place_time, tiles_count, points, gems, extra`

// PostgresStore implements Backend on PostgreSQL.
type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresStore creates a Backend on pool.
// queryTimeout sets the per-query context deadline; zero means no timeout.
func NewPostgresStore(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, queryTimeout: queryTimeout}
}

// withTimeout derives a child context with the configured query timeout.
// If queryTimeout is zero, the parent context is returned unchanged.
func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return ctx, func() {}
}

func scanProfile(row pgx.Row) (*user.Profile, error) {
	var (
		p     user.Profile
		extra []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Emoji, &p.Admin, &p.Santa, &p.Canvas,
		&p.LastPlaceTime, &p.TilesCount, &p.Points, &p.Gems, &extra); err != nil {
		return nil, err
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &p.Extra); err != nil {
			return nil, fmt.Errorf("decode extra for user %d: %w", p.ID, err)
		}
	}
	if len(p.Extra) == 0 {
		p.Extra = nil
	}
	return &p, nil
}

func marshalExtra(extra map[string]string) ([]byte, error) {
	if extra == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(extra)
}

func (s *PostgresStore) CreateUser(ctx context.Context, p user.Profile) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	extra, err := marshalExtra(p.Extra)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, emoji, admin, santa, canvas, last_place_time, tiles_count, points, gems, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.Name, p.Emoji, p.Admin, p.Santa, p.Canvas, p.LastPlaceTime, p.TilesCount, p.Points, p.Gems, extra)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*user.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := scanProfile(s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]user.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+profileColumns+` FROM users ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("list users scan: %w", err)
		}
		users = append(users, *p)
	}
	return users, rows.Err()
}

// UpdateUser locks the row, applies u and writes every mutable column back
// in one transaction.
func (s *PostgresStore) UpdateUser(ctx context.Context, id int64, u user.Update) (*user.Profile, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	p.Apply(u)

	extra, err := marshalExtra(p.Extra)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET name = $2, emoji = $3, admin = $4, santa = $5, canvas = $6, last_place_time = $7, extra = $8
		WHERE id = $1
	`, id, p.Name, p.Emoji, p.Admin, p.Santa, p.Canvas, p.LastPlaceTime, extra); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("update user commit: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) AddCounter(ctx context.Context, id int64, c user.Counter, delta int64) (int64, error) {
	col, err := counterColumn(c)
	if err != nil {
		return 0, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`UPDATE users SET %s = %s + $2 WHERE id = $1 RETURNING %s`, col, col, col)

	var value int64
	if err := s.pool.QueryRow(ctx, query, id, delta).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, user.ErrUserNotFound
		}
		return 0, fmt.Errorf("add %s: %w", col, err)
	}
	return value, nil
}

func (s *PostgresStore) LoadGrid(ctx context.Context, name string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var grid string
	err := s.pool.QueryRow(ctx, `SELECT grid FROM canvases WHERE name = $1`, name).Scan(&grid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", canvas.ErrGridNotFound
		}
		return "", fmt.Errorf("load grid: %w", err)
	}
	return grid, nil
}

func (s *PostgresStore) SaveGrid(ctx context.Context, name, data string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO canvases (name, grid, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET grid = EXCLUDED.grid, updated_at = EXCLUDED.updated_at
	`, name, data)
	if err != nil {
		return fmt.Errorf("save grid: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListGrids(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT name FROM canvases ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list grids: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list grids: %w", err)
	}
	return names, nil
}

func (s *PostgresStore) ensureCohort(ctx context.Context, year int, key string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO santa_cohorts (year, cohort_key) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, year, key)
	return err
}

func (s *PostgresStore) Retrieved(ctx context.Context, year int, key string) ([]int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.ensureCohort(ctx, year, key); err != nil {
		return nil, fmt.Errorf("retrieved: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM santa_retrievals
		WHERE year = $1 AND cohort_key = $2
		ORDER BY retrieved_at, user_id
	`, year, key)
	if err != nil {
		return nil, fmt.Errorf("retrieved: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("retrieved: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) MarkRetrieved(ctx context.Context, year int, key string, userID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.ensureCohort(ctx, year, key); err != nil {
		return fmt.Errorf("mark retrieved: %w", err)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO santa_retrievals (year, cohort_key, user_id) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, year, key, userID)
	if err != nil {
		return fmt.Errorf("mark retrieved: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Close is a no-op; the pool belongs to the caller.
func (s *PostgresStore) Close() error { return nil }
