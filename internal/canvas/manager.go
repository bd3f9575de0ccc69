package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ryanbastic/go-placebot/internal/keylock"
)

// ErrGridNotFound is returned by a GridStore when no grid is persisted under a name.
var ErrGridNotFound = errors.New("grid not found")

// ErrInvalidName is returned for canvas names outside [a-z0-9_-]{1,64}.
var ErrInvalidName = errors.New("invalid canvas name")

var namePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ShapeMismatchError reports a persisted grid whose shape differs from the
// configured one. The grid is never reshaped to fit.
type ShapeMismatchError struct {
	Name               string
	Rows, Cols         int
	WantRows, WantCols int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("canvas %q is %dx%d, configured shape is %dx%d",
		e.Name, e.Rows, e.Cols, e.WantRows, e.WantCols)
}

// GridStore persists encoded grids by canvas name.
type GridStore interface {
	// LoadGrid returns the encoded grid or ErrGridNotFound.
	LoadGrid(ctx context.Context, name string) (string, error)

	// SaveGrid replaces the whole grid in one write.
	SaveGrid(ctx context.Context, name, data string) error

	ListGrids(ctx context.Context) ([]string, error)
}

// Shape is a canvas size.
type Shape struct {
	Rows int `yaml:"rows" json:"rows"`
	Cols int `yaml:"cols" json:"cols"`
}

// NormalizeName lower-cases and trims a canvas name and drops a legacy
// ".csv" suffix.
func NormalizeName(s string) (string, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".csv")
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	return name, nil
}

// Manager owns every loaded canvas. Reads and writes of one canvas are
// serialised; different canvases never block each other.
type Manager struct {
	store        GridStore
	defaultShape Shape
	shapes       map[string]Shape
	locks        *keylock.Set[string]
	logger       *slog.Logger

	mu     sync.Mutex
	loaded map[string]*Canvas
}

// NewManager creates a Manager. shapes overrides defaultShape per name.
func NewManager(store GridStore, defaultShape Shape, shapes map[string]Shape, logger *slog.Logger) *Manager {
	if shapes == nil {
		shapes = make(map[string]Shape)
	}
	return &Manager{
		store:        store,
		defaultShape: defaultShape,
		shapes:       shapes,
		locks:        keylock.New[string](),
		logger:       logger,
		loaded:       make(map[string]*Canvas),
	}
}

// ShapeFor returns the configured shape for name.
func (m *Manager) ShapeFor(name string) Shape {
	if s, ok := m.shapes[name]; ok {
		return s
	}
	return m.defaultShape
}

// Load returns a snapshot of the named canvas, creating and persisting an
// empty one on first access.
func (m *Manager) Load(ctx context.Context, name string) (*Canvas, error) {
	return m.Snapshot(ctx, name)
}

// Snapshot returns a copy of the canvas taken under its lock.
func (m *Manager) Snapshot(ctx context.Context, name string) (*Canvas, error) {
	unlock := m.locks.Lock(name)
	defer unlock()

	c, err := m.loadLocked(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// Toggle applies Canvas.Toggle and persists the whole grid before
// returning. If persisting fails the cell is restored and the error is
// returned, so the cached grid never runs ahead of the stored one.
func (m *Manager) Toggle(ctx context.Context, name string, x, y int, userID int64) (int64, error) {
	unlock := m.locks.Lock(name)
	defer unlock()

	c, err := m.loadLocked(ctx, name)
	if err != nil {
		return 0, err
	}

	row, col := c.Resolve(x, y)
	previous := c.cells[row][col]
	owner := c.Toggle(x, y, userID)

	if err := m.store.SaveGrid(ctx, name, Encode(c)); err != nil {
		c.set(row, col, previous)
		return 0, fmt.Errorf("persist canvas %q: %w", name, err)
	}

	m.logger.Debug("canvas cell toggled", "canvas", name, "row", row, "col", col, "owner", owner)
	return owner, nil
}

// Exists reports whether name is persisted or declared in configuration.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	if _, ok := m.shapes[name]; ok {
		return true, nil
	}
	m.mu.Lock()
	_, ok := m.loaded[name]
	m.mu.Unlock()
	if ok {
		return true, nil
	}

	_, err := m.store.LoadGrid(ctx, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrGridNotFound) {
		return false, nil
	}
	return false, err
}

// Names lists persisted and configured canvases, sorted.
func (m *Manager) Names(ctx context.Context) ([]string, error) {
	persisted, err := m.store.ListGrids(ctx)
	if err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}
	seen := make(map[string]bool, len(persisted)+len(m.shapes))
	var names []string
	for _, n := range persisted {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for n := range m.shapes {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// loadLocked must be called with the lock for name held.
func (m *Manager) loadLocked(ctx context.Context, name string) (*Canvas, error) {
	m.mu.Lock()
	c, ok := m.loaded[name]
	m.mu.Unlock()
	if ok {
		return c, nil
	}

	want := m.ShapeFor(name)
	data, err := m.store.LoadGrid(ctx, name)
	switch {
	case errors.Is(err, ErrGridNotFound):
		c, err = New(name, want.Rows, want.Cols)
		if err != nil {
			return nil, err
		}
		if err := m.store.SaveGrid(ctx, name, Encode(c)); err != nil {
			return nil, fmt.Errorf("create canvas %q: %w", name, err)
		}
		m.logger.Info("canvas created", "canvas", name, "rows", want.Rows, "cols", want.Cols)
	case err != nil:
		return nil, fmt.Errorf("load canvas %q: %w", name, err)
	default:
		c, err = Decode(name, data)
		if err != nil {
			m.logger.Error("canvas failed validation", "canvas", name, "error", err)
			return nil, err
		}
		if c.Rows != want.Rows || c.Cols != want.Cols {
			err := &ShapeMismatchError{Name: name, Rows: c.Rows, Cols: c.Cols, WantRows: want.Rows, WantCols: want.Cols}
			m.logger.Error("canvas failed validation", "canvas", name, "error", err)
			return nil, err
		}
	}

	m.mu.Lock()
	m.loaded[name] = c
	m.mu.Unlock()
	return c, nil
}
