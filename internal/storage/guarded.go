package storage

import (
	"context"
	"errors"

	"github.com/ryanbastic/go-placebot/internal/canvas"
	"github.com/ryanbastic/go-placebot/internal/circuitbreaker"
	"github.com/ryanbastic/go-placebot/internal/user"
)

// Guarded routes every call to a Backend through a circuit breaker. Only
// infrastructure failures count against the breaker; not-found results and
// caller cancellations pass through untouched.
type Guarded struct {
	next    Backend
	breaker *circuitbreaker.Breaker
}

func NewGuarded(next Backend, breaker *circuitbreaker.Breaker) *Guarded {
	return &Guarded{next: next, breaker: breaker}
}

// Breaker exposes the breaker for health reporting.
func (g *Guarded) Breaker() *circuitbreaker.Breaker { return g.breaker }

func isExpected(err error) bool {
	return errors.Is(err, user.ErrUserNotFound) ||
		errors.Is(err, canvas.ErrGridNotFound) ||
		errors.Is(err, context.Canceled)
}

func (g *Guarded) do(fn func() error) error {
	var expected error
	err := g.breaker.Execute(func() error {
		err := fn()
		if err != nil && isExpected(err) {
			expected = err
			return nil
		}
		return err
	})
	if expected != nil {
		return expected
	}
	return err
}

func (g *Guarded) CreateUser(ctx context.Context, p user.Profile) (created bool, err error) {
	err = g.do(func() error {
		created, err = g.next.CreateUser(ctx, p)
		return err
	})
	return created, err
}

func (g *Guarded) GetUser(ctx context.Context, id int64) (p *user.Profile, err error) {
	err = g.do(func() error {
		p, err = g.next.GetUser(ctx, id)
		return err
	})
	return p, err
}

func (g *Guarded) ListUsers(ctx context.Context) (users []user.Profile, err error) {
	err = g.do(func() error {
		users, err = g.next.ListUsers(ctx)
		return err
	})
	return users, err
}

func (g *Guarded) UpdateUser(ctx context.Context, id int64, u user.Update) (p *user.Profile, err error) {
	err = g.do(func() error {
		p, err = g.next.UpdateUser(ctx, id, u)
		return err
	})
	return p, err
}

func (g *Guarded) AddCounter(ctx context.Context, id int64, c user.Counter, delta int64) (v int64, err error) {
	err = g.do(func() error {
		v, err = g.next.AddCounter(ctx, id, c, delta)
		return err
	})
	return v, err
}

func (g *Guarded) LoadGrid(ctx context.Context, name string) (grid string, err error) {
	err = g.do(func() error {
		grid, err = g.next.LoadGrid(ctx, name)
		return err
	})
	return grid, err
}

func (g *Guarded) SaveGrid(ctx context.Context, name, data string) error {
	return g.do(func() error { return g.next.SaveGrid(ctx, name, data) })
}

func (g *Guarded) ListGrids(ctx context.Context) (names []string, err error) {
	err = g.do(func() error {
		names, err = g.next.ListGrids(ctx)
		return err
	})
	return names, err
}

func (g *Guarded) Retrieved(ctx context.Context, year int, key string) (ids []int64, err error) {
	err = g.do(func() error {
		ids, err = g.next.Retrieved(ctx, year, key)
		return err
	})
	return ids, err
}

func (g *Guarded) MarkRetrieved(ctx context.Context, year int, key string, userID int64) error {
	return g.do(func() error { return g.next.MarkRetrieved(ctx, year, key, userID) })
}

// Ping bypasses the breaker so readiness reflects the backend itself.
func (g *Guarded) Ping(ctx context.Context) error { return g.next.Ping(ctx) }

func (g *Guarded) Close() error { return g.next.Close() }
