package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/ryanbastic/go-placebot/internal/keylock"
	"github.com/ryanbastic/go-placebot/internal/user"
)

var (
	ErrNonPositiveBet    = errors.New("bet must be at least 1")
	ErrOverLimit         = errors.New("bet exceeds the limit")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance would overflow")
)

// RejectionError describes a refused balance change. Nothing was debited.
type RejectionError struct {
	Reason  error
	Amount  int64
	Balance int64
	Limit   int64
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v (amount %d, balance %d, limit %d)", e.Reason, e.Amount, e.Balance, e.Limit)
}

func (e *RejectionError) Unwrap() error { return e.Reason }

// EmojiSource resolves a user's display glyph.
type EmojiSource interface {
	Emoji(ctx context.Context, id int64) (string, error)
}

// Config holds the economy tuning.
type Config struct {
	// Currency is the counter credited for placements and shown on the
	// leaderboard: user.CounterGems or user.CounterPoints.
	Currency   user.Counter
	TilePoints int64

	// Wager: toss Coins coins, win Multiplier times the bet if all come up heads.
	Coins      int
	Multiplier int64
	Limit      int64
}

// Economy applies every balance change. Changes for one user are serialised.
type Economy struct {
	store  user.Store
	emojis EmojiSource
	cfg    Config
	toss   Tosser
	locks  *keylock.Set[int64]
	logger *slog.Logger
}

// New creates an Economy. A nil toss uses a randomly seeded coin.
func New(store user.Store, emojis EmojiSource, cfg Config, toss Tosser, logger *slog.Logger) *Economy {
	if toss == nil {
		toss = RandomCoin(nil)
	}
	return &Economy{
		store:  store,
		emojis: emojis,
		cfg:    cfg,
		toss:   toss,
		locks:  keylock.New[int64](),
		logger: logger,
	}
}

// Config returns the tuning in use.
func (e *Economy) Config() Config { return e.cfg }

// CreditPlacement records one successful placement: tiles_count goes up by
// one and the configured currency by tilePoints. Call it once per placement,
// after the canvas has been persisted.
func (e *Economy) CreditPlacement(ctx context.Context, userID, tilePoints int64) error {
	if tilePoints < 0 {
		return fmt.Errorf("credit placement: negative tile points %d", tilePoints)
	}
	return e.locks.Do(userID, func() error {
		if _, err := e.store.AddCounter(ctx, userID, user.CounterTiles, 1); err != nil {
			return fmt.Errorf("credit placement to user %d: %w", userID, err)
		}
		if tilePoints > 0 {
			if _, err := e.store.AddCounter(ctx, userID, e.cfg.Currency, tilePoints); err != nil {
				return fmt.Errorf("credit placement to user %d: %w", userID, err)
			}
		}
		return nil
	})
}

// Balance returns the user's gems.
func (e *Economy) Balance(ctx context.Context, userID int64) (int64, error) {
	p, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return p.Gems, nil
}

// Adjust adds delta gems (negative to debit). A debit larger than the
// balance is refused with ErrInsufficientFunds and a credit past the int64
// range with ErrBalanceOverflow.
func (e *Economy) Adjust(ctx context.Context, userID, delta int64) (int64, error) {
	if delta == math.MinInt64 {
		return 0, fmt.Errorf("adjust gems for user %d: delta %d out of range", userID, delta)
	}
	unlock := e.locks.Lock(userID)
	defer unlock()

	p, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if delta == 0 {
		return p.Gems, nil
	}
	switch {
	case delta < 0 && -delta > p.Gems:
		return p.Gems, &RejectionError{Reason: ErrInsufficientFunds, Amount: -delta, Balance: p.Gems}
	case delta > 0 && p.Gems > math.MaxInt64-delta:
		return p.Gems, &RejectionError{Reason: ErrBalanceOverflow, Amount: delta, Balance: p.Gems}
	}
	balance, err := e.store.AddCounter(ctx, userID, user.CounterGems, delta)
	if err != nil {
		return 0, fmt.Errorf("adjust gems for user %d: %w", userID, err)
	}
	e.logger.Info("gems adjusted", "user_id", userID, "delta", delta, "balance", balance)
	return balance, nil
}

// Entry is one leaderboard line.
type Entry struct {
	UserID int64
	Name   string
	Emoji  string
	Value  int64
}

// Leaderboard ranks users by metric, highest first. Users with a zero value
// are left out; ties keep registration order.
func (e *Economy) Leaderboard(ctx context.Context, metric user.Counter) ([]Entry, error) {
	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(users))
	for _, p := range users {
		v := p.Value(metric)
		if v == 0 {
			continue
		}
		emoji, err := e.emojis.Emoji(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("leaderboard: %w", err)
		}
		entries = append(entries, Entry{UserID: p.ID, Name: p.Name, Emoji: emoji, Value: v})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})
	return entries, nil
}
