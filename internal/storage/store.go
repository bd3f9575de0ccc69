package storage

import (
	"context"

	"github.com/ryanbastic/go-placebot/internal/canvas"
	"github.com/ryanbastic/go-placebot/internal/santa"
	"github.com/ryanbastic/go-placebot/internal/user"
)

// Backend is everything the game persists: profiles, canvas grids and santa
// retrieval records.
type Backend interface {
	user.Store
	canvas.GridStore
	santa.RetrievalStore

	// Ping checks that the backend can serve requests.
	Ping(ctx context.Context) error

	Close() error
}

var (
	_ Backend = (*MemoryStore)(nil)
	_ Backend = (*PostgresStore)(nil)
	_ Backend = (*SQLiteStore)(nil)
	_ Backend = (*Guarded)(nil)
)

// counterColumn maps a counter to its column. Counters are a closed set, so
// the result is safe to splice into SQL.
func counterColumn(c user.Counter) (string, error) {
	if _, err := user.ParseCounter(string(c)); err != nil {
		return "", err
	}
	return string(c), nil
}
