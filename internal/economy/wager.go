package economy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/ryanbastic/go-placebot/internal/user"
)

// Face is one side of a coin.
type Face int

const (
	Heads Face = 0
	Tails Face = 1
)

func (f Face) String() string {
	if f == Heads {
		return "heads"
	}
	return "tails"
}

// Tosser flips one coin.
type Tosser func() Face

// RandomCoin returns a Tosser backed by rnd, or by a freshly seeded PCG
// when rnd is nil. The returned Tosser is safe for concurrent use.
func RandomCoin(rnd *rand.Rand) Tosser {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	var mu sync.Mutex
	return func() Face {
		mu.Lock()
		defer mu.Unlock()
		return Face(rnd.IntN(2))
	}
}

// WagerResult is the outcome of an accepted wager.
type WagerResult struct {
	Bet     int64
	Coins   []Face
	Won     bool
	Payout  int64
	Balance int64
}

// Wager stakes bet gems on a coin toss. The bet is debited first; if every
// coin comes up heads the user is credited bet times the multiplier.
// A refused wager returns a *RejectionError and leaves the balance alone.
func (e *Economy) Wager(ctx context.Context, userID, bet int64) (*WagerResult, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	p, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	reject := func(reason error) error {
		return &RejectionError{Reason: reason, Amount: bet, Balance: p.Gems, Limit: e.cfg.Limit}
	}
	switch {
	case bet <= 0:
		return nil, reject(ErrNonPositiveBet)
	case bet > e.cfg.Limit:
		return nil, reject(ErrOverLimit)
	case bet > p.Gems:
		return nil, reject(ErrInsufficientFunds)
	}

	balance, err := e.store.AddCounter(ctx, userID, user.CounterGems, -bet)
	if err != nil {
		return nil, fmt.Errorf("debit wager for user %d: %w", userID, err)
	}

	res := &WagerResult{Bet: bet, Coins: make([]Face, e.cfg.Coins), Won: true}
	for i := range res.Coins {
		res.Coins[i] = e.toss()
		if res.Coins[i] != Heads {
			res.Won = false
		}
	}

	if res.Won {
		res.Payout = bet * e.cfg.Multiplier
		balance, err = e.store.AddCounter(ctx, userID, user.CounterGems, res.Payout)
		if err != nil {
			e.logger.Error("wager payout failed after debit", "user_id", userID, "bet", bet, "payout", res.Payout, "error", err)
			return nil, fmt.Errorf("credit wager payout for user %d: %w", userID, err)
		}
	}
	res.Balance = balance

	e.logger.Info("wager settled", "user_id", userID, "bet", bet, "won", res.Won, "payout", res.Payout, "balance", balance)
	return res, nil
}
