package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ryanbastic/go-placebot/internal/canvas"
	"github.com/ryanbastic/go-placebot/internal/economy"
	"github.com/ryanbastic/go-placebot/internal/user"
)

var extraKeyPattern = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

func (g *Game) getIDs(ctx context.Context, req Request) (string, error) {
	var (
		users []user.Profile
		err   error
	)
	if len(req.Args) > 0 {
		users, err = g.users.Search(ctx, strings.Join(req.Args, " "))
	} else {
		users, err = g.users.List(ctx)
	}
	if err != nil {
		return "", err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	var b strings.Builder
	fmt.Fprintf(&b, "👥 %d %s:", len(users), plural(int64(len(users)), "user", "users"))
	for _, p := range users {
		fmt.Fprintf(&b, "\n%d %s", p.ID, p.Name)
	}
	return b.String(), nil
}

func (g *Game) setEmoji(ctx context.Context, req Request) (string, error) {
	if len(req.Args) != 2 {
		return "", usage("/set_emoji [user_id] [emoji]")
	}
	id, err := parseInt(req.Args[0], "user id")
	if err != nil {
		return "", err
	}
	emoji := strings.TrimSpace(req.Args[1])
	if _, err := g.profileOrNotFound(ctx, id); err != nil {
		return "", err
	}
	if emoji == "" {
		return "", usage("/set_emoji [user_id] [emoji]")
	}
	if _, err := g.users.SetEmoji(ctx, id, emoji); err != nil {
		return "", err
	}
	g.logger.Info("emoji set", "admin_id", req.UserID, "user_id", id, "emoji", emoji)
	return fmt.Sprintf("Emoji %s set for user %d", emoji, id), nil
}

func (g *Game) giveGems(ctx context.Context, req Request) (string, error) {
	if len(req.Args) != 2 {
		return "", usage("/give_gems [user_id] [amount]")
	}
	id, err := parseInt(req.Args[0], "user id")
	if err != nil {
		return "", err
	}
	amount, err := parseInt(req.Args[1], "amount")
	if err != nil {
		return "", err
	}
	if amount == math.MinInt64 {
		return "", invalid("%s is not a valid amount", req.Args[1])
	}
	p, err := g.profileOrNotFound(ctx, id)
	if err != nil {
		return "", err
	}

	total, err := g.economy.Adjust(ctx, id, amount)
	var rejection *economy.RejectionError
	if errors.As(err, &rejection) {
		if errors.Is(rejection, economy.ErrBalanceOverflow) {
			return "", invalid("Cannot give %d gems: %s already has %d gems 🔹", amount, p.Name, rejection.Balance)
		}
		return "", invalid("Cannot remove %d gems: %s has only %d gems 🔹", rejection.Amount, p.Name, rejection.Balance)
	}
	if err != nil {
		return "", err
	}
	g.logger.Info("gems adjusted", "admin_id", req.UserID, "user_id", id, "delta", amount, "balance", total)

	n := amount
	verb := "given to"
	if amount < 0 {
		n = -amount
		verb = "removed from"
	}
	return fmt.Sprintf("🔹 %d %s %s user %s\nNew total: %d gems 🔹", n, plural(n, "gem", "gems"), verb, p.Name, total), nil
}

func (g *Game) listGems(ctx context.Context, req Request) (string, error) {
	users, err := g.users.List(ctx)
	if err != nil {
		return "", err
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Gems > users[j].Gems })

	var b strings.Builder
	b.WriteString("🔹 Gems 🔹")
	for _, p := range users {
		fmt.Fprintf(&b, "\n%s  %s", padValue(p.Gems), p.Name)
	}
	return b.String(), nil
}

func (g *Game) canvasNames(ctx context.Context, req Request) (string, error) {
	names, err := g.canvases.Names(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🎨 %d %s:", len(names), plural(int64(len(names)), "canvas", "canvases"))
	for _, n := range names {
		fmt.Fprintf(&b, "\n- %s", n)
	}
	return b.String(), nil
}

func (g *Game) setCanvas(ctx context.Context, req Request) (string, error) {
	if len(req.Args) != 2 {
		return "", usage("/set_canvas [user_id] [canvas]")
	}
	id, err := parseInt(req.Args[0], "user id")
	if err != nil {
		return "", err
	}
	name, err := canvas.NormalizeName(req.Args[1])
	if err != nil {
		return "", invalid("%q is not a valid canvas name", req.Args[1])
	}
	if _, err := g.profileOrNotFound(ctx, id); err != nil {
		return "", err
	}
	ok, err := g.canvases.Exists(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &NotFoundError{What: fmt.Sprintf("Canvas %q", name)}
	}
	if _, err := g.users.Store().UpdateUser(ctx, id, user.Update{Canvas: &name}); err != nil {
		return "", err
	}
	g.logger.Info("canvas assigned", "admin_id", req.UserID, "user_id", id, "canvas", name)
	return fmt.Sprintf("🎨 Canvas %q set for user %d", name, id), nil
}

func (g *Game) getInfo(ctx context.Context, req Request) (string, error) {
	if len(req.Args) != 1 {
		return "", usage("/get_info [user_id]")
	}
	id, err := parseInt(req.Args[0], "user id")
	if err != nil {
		return "", err
	}
	p, err := g.profileOrNotFound(ctx, id)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Info for user %d:\n", p.ID)
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	fmt.Fprintf(&b, "Emoji: %s\n", p.Emoji)
	fmt.Fprintf(&b, "Canvas: %s\n", g.canvasFor(p))
	fmt.Fprintf(&b, "Admin: %t\n", p.Admin)
	fmt.Fprintf(&b, "Santa: %t\n", p.Santa)
	if p.LastPlaceTime != nil {
		fmt.Fprintf(&b, "Last placement: %s\n", p.LastPlaceTime.UTC().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "Tiles: %d\nPoints: %d\nGems: %d", p.TilesCount, p.Points, p.Gems)

	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, p.Extra[k])
	}
	return b.String(), nil
}

func (g *Game) setSanta(ctx context.Context, req Request) (string, error) {
	if len(req.Args) != 2 {
		return "", usage("/set_santa [user_id] [true|false]")
	}
	id, err := parseInt(req.Args[0], "user id")
	if err != nil {
		return "", err
	}
	flag, err := strconv.ParseBool(strings.ToLower(req.Args[1]))
	if err != nil {
		return "", invalid("%q is not true or false", req.Args[1])
	}
	if _, err := g.profileOrNotFound(ctx, id); err != nil {
		return "", err
	}
	if _, err := g.users.Store().UpdateUser(ctx, id, user.Update{Santa: &flag}); err != nil {
		return "", err
	}
	g.logger.Info("santa flag set", "admin_id", req.UserID, "user_id", id, "santa", flag)
	return fmt.Sprintf("🎅 Santa set to %t for user %d", flag, id), nil
}

func (g *Game) checkSanta(ctx context.Context, req Request) (string, error) {
	pending, size, err := g.santa.Pending(ctx, req.Now)
	if err != nil {
		return "", err
	}
	switch {
	case size == 0:
		return "No santas set!", nil
	case len(pending) == 0:
		return "All santas used the command this year!", nil
	}
	n := int64(len(pending))
	verb := "santas didn't"
	if n == 1 {
		verb = "santa didn't"
	}
	return fmt.Sprintf("%d %s use the command yet!", n, verb), nil
}

func (g *Game) setExtra(ctx context.Context, req Request) (string, error) {
	if len(req.Args) < 3 {
		return "", usage("/set_extra [user_id] [key] [value]")
	}
	id, err := parseInt(req.Args[0], "user id")
	if err != nil {
		return "", err
	}
	key := strings.ToLower(req.Args[1])
	if !extraKeyPattern.MatchString(key) {
		return "", invalid("%q is not a valid key, use 1 to 32 of a-z 0-9 _", req.Args[1])
	}
	value := strings.Join(req.Args[2:], " ")
	if _, err := g.profileOrNotFound(ctx, id); err != nil {
		return "", err
	}
	if _, err := g.users.Store().UpdateUser(ctx, id, user.Update{Extra: map[string]string{key: value}}); err != nil {
		return "", err
	}
	g.logger.Info("profile extra set", "admin_id", req.UserID, "user_id", id, "key", key)
	return fmt.Sprintf("%s set for user %d", key, id), nil
}
