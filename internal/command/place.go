package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ryanbastic/go-placebot/internal/user"
)

const placeUsage = "/place [x] [y], /place stats or /place tiles"

func (g *Game) place(ctx context.Context, req Request) (string, error) {
	switch len(req.Args) {
	case 0:
		return g.placeHelp(ctx, req.UserID)
	case 1:
		switch strings.ToLower(req.Args[0]) {
		case "stats":
			return g.tileStats(ctx)
		case "tiles":
			return g.canvasTiles(ctx, req.UserID)
		}
		return "", usage(placeUsage)
	case 2:
	default:
		return "", usage(placeUsage)
	}

	x, y, err := parseCoordinates(req.Args[0], req.Args[1])
	if err != nil {
		return "", err
	}
	res, err := g.Place(ctx, req.UserID, x, y, req.Now)
	if err != nil {
		return "", err
	}
	drawing, err := g.Render(ctx, res.Canvas)
	if err != nil {
		return "", err
	}
	if res.Cleared {
		return "🧹 Tile cleared\n" + drawing, nil
	}
	return "✅ Tile placed\n" + drawing, nil
}

// parseCoordinates validates both axes before anything is mutated.
func parseCoordinates(xs, ys string) (int, int, error) {
	x, errX := strconv.Atoi(xs)
	y, errY := strconv.Atoi(ys)
	if errX != nil || errY != nil {
		return 0, 0, invalid("%s %s are not valid coordinates, use whole numbers. Usage: %s", xs, ys, placeUsage)
	}
	return x, y, nil
}

func (g *Game) placeHelp(ctx context.Context, userID int64) (string, error) {
	p, err := g.users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	drawing, err := g.Render(ctx, g.canvasFor(p))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Place your emoji every %s with /place [x] [y]\n", describeInterval(g.opts.Cooldown))
	b.WriteString("Place on one of your own tiles to clear it\n")
	b.WriteString("/place stats and /place tiles show who owns the canvas\n\n")
	b.WriteString(drawing)
	return b.String(), nil
}

// tileStats ranks users by lifetime placements.
func (g *Game) tileStats(ctx context.Context) (string, error) {
	entries, err := g.economy.Leaderboard(ctx, user.CounterTiles)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "No tiles placed yet.", nil
	}
	var b strings.Builder
	b.WriteString("---📊 Tiles placed 📊---\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s: %d %s\n", e.Emoji, e.Name, e.Value, plural(e.Value, "tile", "tiles"))
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

// canvasTiles counts the cells each user currently holds on the caller's canvas.
func (g *Game) canvasTiles(ctx context.Context, userID int64) (string, error) {
	p, err := g.users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	c, err := g.canvases.Snapshot(ctx, g.canvasFor(p))
	if err != nil {
		return "", err
	}
	counts := c.CountByOwner()
	owners := make([]int64, 0, len(counts))
	for id := range counts {
		owners = append(owners, id)
	}
	sort.Slice(owners, func(i, j int) bool {
		if counts[owners[i]] != counts[owners[j]] {
			return counts[owners[i]] > counts[owners[j]]
		}
		return owners[i] < owners[j]
	})

	var b strings.Builder
	b.WriteString("---🏆 Tiles on the Canvas 🏆---")
	for _, id := range owners {
		name := fmt.Sprintf("user %d", id)
		owner, err := g.users.Get(ctx, id)
		switch {
		case err == nil:
			name = owner.Name
		case !errors.Is(err, user.ErrUserNotFound):
			return "", err
		}
		emoji, err := g.users.Emoji(ctx, id)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n%d %s %s", counts[id], emoji, name)
	}
	return b.String(), nil
}

func (g *Game) leaderboard(ctx context.Context, req Request) (string, error) {
	currency := g.economy.Config().Currency
	entries, err := g.economy.Leaderboard(ctx, currency)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if currency == user.CounterPoints {
		b.WriteString("---⭐ Points Leaderboard ⭐---")
	} else {
		b.WriteString("---🔹 Gems Leaderboard 🔹---")
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%s %s %s", padValue(e.Value), e.Emoji, e.Name)
	}
	return b.String(), nil
}

// padValue right-aligns n in five columns using underscores, which chat
// clients do not collapse the way they collapse spaces.
func padValue(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) < 5 {
		s = strings.Repeat("_", 5-len(s)) + s
	}
	return s
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func describeInterval(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		m := int64(d / time.Minute)
		return fmt.Sprintf("%d %s", m, plural(m, "minute", "minutes"))
	default:
		s := int64(d.Round(time.Second) / time.Second)
		return fmt.Sprintf("%d %s", s, plural(s, "second", "seconds"))
	}
}
