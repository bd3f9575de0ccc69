package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ryanbastic/go-placebot/internal/economy"
	"github.com/ryanbastic/go-placebot/internal/metrics"
	"github.com/ryanbastic/go-placebot/internal/user"
)

func (g *Game) start(ctx context.Context, req Request) (string, error) {
	name := req.UserName
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("user %d", req.UserID)
	}
	p, created, err := g.users.Register(ctx, req.UserID, name)
	if err != nil {
		return "", err
	}
	if created {
		g.logger.Info("user registered", "user_id", p.ID, "name", p.Name)
		return fmt.Sprintf("Hi %s %s! I'm the canvas bot 🤖\nSend /help to see the commands 📚", p.Emoji, p.Name), nil
	}
	return fmt.Sprintf("Welcome back %s %s!\nSend /help to see the commands 📚", p.Emoji, p.Name), nil
}

func (g *Game) listUsers(ctx context.Context, req Request) (string, error) {
	users, err := g.users.List(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("---👥 Registered users 👥---")
	for _, p := range users {
		emoji, err := g.users.Emoji(ctx, p.ID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n%s %s", emoji, p.Name)
	}
	return b.String(), nil
}

func (g *Game) balance(ctx context.Context, req Request) (string, error) {
	if g.economy.Config().Currency == user.CounterPoints {
		p, err := g.users.Get(ctx, req.UserID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("⭐ You have %d points ⭐\n🔹 You own %d gems 🔹", p.Points, p.Gems), nil
	}
	gems, err := g.economy.Balance(ctx, req.UserID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🔹 You own %d gems 🔹", gems), nil
}

func (g *Game) randomUser(ctx context.Context, req Request) (string, error) {
	p, n, err := g.users.Random(ctx)
	if errors.Is(err, user.ErrUserNotFound) {
		return "No registered users yet.", nil
	}
	if err != nil {
		return "", err
	}
	emoji, err := g.users.Emoji(ctx, p.ID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("👥 Registered users: %d\n👤 Random user: %s %s", n, emoji, p.Name), nil
}

var consolations = []string{
	"So close... or not! 🍀",
	"Better luck next time! 🍀",
	"The coins are not on your side today 🪙",
	"Keep trying, fortune favours the bold! 💪",
	"Nothing this time 😢",
}

func (g *Game) gamble(ctx context.Context, req Request) (string, error) {
	cfg := g.economy.Config()
	switch len(req.Args) {
	case 0:
		return fmt.Sprintf("🔹 Toss %d heads 🟡 to win %d times the gems! 🔹\nUsage: /gamble [n_gems]", cfg.Coins, cfg.Multiplier), nil
	case 1:
	default:
		return "", usage("/gamble [n_gems]")
	}

	bet, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil {
		return "", invalid("%s is not a valid bet amount", req.Args[0])
	}
	res, err := g.economy.Wager(ctx, req.UserID, bet)
	if err != nil {
		return "", err
	}
	metrics.ObserveWager(res.Bet, res.Won)

	coins := make([]string, len(res.Coins))
	tails := 0
	for i, c := range res.Coins {
		if c == economy.Heads {
			coins[i] = "🟡"
		} else {
			coins[i] = "🔵"
			tails++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 You bet %d gems 🔹\nCoins: %s\n\n", res.Bet, strings.Join(coins, " "))
	switch {
	case res.Won:
		fmt.Fprintf(&b, "🎉 Congrats! You won %d gems 🔹 🎉\n", res.Payout)
	case tails == 1:
		b.WriteString("💸 Almost there! 💸\n")
	case tails == len(res.Coins):
		b.WriteString("🙃 Not a single head! 🙃\n")
	default:
		b.WriteString(consolations[tails%len(consolations)] + "\n")
	}
	fmt.Fprintf(&b, "💰 You now have %d gems 💰", res.Balance)
	return b.String(), nil
}

func (g *Game) secretSanta(ctx context.Context, req Request) (string, error) {
	a, err := g.santa.Assignment(ctx, req.UserID, req.Now)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🎄☃❄ Secret Santa %d 🎅🎁🎄\n\n", a.Year)
	fmt.Fprintf(&b, "👥 %d participants (make sure everyone is here!):\n", len(a.Cohort))
	for _, p := range a.Cohort {
		fmt.Fprintf(&b, "- %s\n", p.Name)
	}
	fmt.Fprintf(&b, "\nYour gift goes to:\n➡ %s ⬅", a.Recipient.Name)
	return b.String(), nil
}
