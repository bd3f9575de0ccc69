package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ryanbastic/go-placebot/internal/canvas"
	"github.com/ryanbastic/go-placebot/internal/cooldown"
	"github.com/ryanbastic/go-placebot/internal/economy"
	"github.com/ryanbastic/go-placebot/internal/keylock"
	"github.com/ryanbastic/go-placebot/internal/metrics"
	"github.com/ryanbastic/go-placebot/internal/santa"
	"github.com/ryanbastic/go-placebot/internal/user"
)

// Options are the game rules the handlers need besides their collaborators.
type Options struct {
	DefaultCanvas string
	Cooldown      time.Duration
	TilePoints    int64
}

// Game bundles the components every command handler works with.
type Game struct {
	users    *user.Directory
	canvases *canvas.Manager
	economy  *economy.Economy
	santa    *santa.Engine
	gate     cooldown.Gate
	opts     Options
	logger   *slog.Logger

	// placing serialises the check-toggle-record sequence per user, so two
	// concurrent placements cannot both pass the cooldown check.
	placing *keylock.Set[int64]
}

func NewGame(users *user.Directory, canvases *canvas.Manager, econ *economy.Economy, engine *santa.Engine, opts Options, logger *slog.Logger) *Game {
	return &Game{
		users:    users,
		canvases: canvases,
		economy:  econ,
		santa:    engine,
		gate:     cooldown.NewGate(opts.Cooldown),
		opts:     opts,
		logger:   logger,
		placing:  keylock.New[int64](),
	}
}

// Placement is the outcome of one accepted placement.
type Placement struct {
	Canvas  string
	Owner   int64
	Cleared bool
}

// canvasFor returns the canvas the user plays on.
func (g *Game) canvasFor(p *user.Profile) string {
	if p.Canvas != "" {
		return p.Canvas
	}
	return g.opts.DefaultCanvas
}

// Place toggles (x, y) on the user's canvas once the cooldown has elapsed.
// The grid is persisted first, then the placement time, then the credit; a
// failure after the grid write leaves the tile in place without the credit.
func (g *Game) Place(ctx context.Context, userID int64, x, y int, now time.Time) (*Placement, error) {
	unlock := g.placing.Lock(userID)
	defer unlock()

	p, err := g.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if remaining := g.gate.Remaining(now, p.LastPlaceTime); remaining > 0 {
		metrics.ObserveCooldownRejection()
		return nil, &CooldownError{Remaining: remaining}
	}

	name := g.canvasFor(p)
	owner, err := g.canvases.Toggle(ctx, name, x, y, userID)
	if err != nil {
		return nil, err
	}
	cleared := owner == canvas.Unclaimed
	metrics.ObservePlacement(name, cleared)

	placedAt := now.UTC()
	if _, err := g.users.Store().UpdateUser(ctx, userID, user.Update{LastPlaceTime: &placedAt}); err != nil {
		g.logger.Error("record placement time failed after grid write", "user_id", userID, "canvas", name, "error", err)
		return nil, fmt.Errorf("record placement time: %w", err)
	}
	if err := g.economy.CreditPlacement(ctx, userID, g.opts.TilePoints); err != nil {
		g.logger.Error("placement credit lost after grid write", "user_id", userID, "canvas", name, "error", err)
		return nil, fmt.Errorf("credit placement: %w", err)
	}

	g.logger.Info("tile placed", "user_id", userID, "canvas", name, "x", x, "y", y, "cleared", cleared)
	return &Placement{Canvas: name, Owner: owner, Cleared: cleared}, nil
}

// Render draws the named canvas with each owner's persisted emoji.
func (g *Game) Render(ctx context.Context, name string) (string, error) {
	c, err := g.canvases.Snapshot(ctx, name)
	if err != nil {
		return "", err
	}
	glyphs, err := g.glyphs(ctx, c.CountByOwner())
	if err != nil {
		return "", err
	}
	return c.Render(func(owner int64) string { return glyphs[owner] }), nil
}

func (g *Game) glyphs(ctx context.Context, owners map[int64]int) (map[int64]string, error) {
	glyphs := make(map[int64]string, len(owners))
	for id := range owners {
		e, err := g.users.Emoji(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("emoji for user %d: %w", id, err)
		}
		glyphs[id] = e
	}
	return glyphs, nil
}

// profileOrNotFound loads a user named by an admin, turning a missing
// profile into a NotFoundError.
func (g *Game) profileOrNotFound(ctx context.Context, id int64) (*user.Profile, error) {
	p, err := g.users.Get(ctx, id)
	if errors.Is(err, user.ErrUserNotFound) {
		return nil, &NotFoundError{What: fmt.Sprintf("User %d", id)}
	}
	return p, err
}
