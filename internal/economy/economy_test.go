package economy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/ryanbastic/go-placebot/internal/storage"
	"github.com/ryanbastic/go-placebot/internal/user"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultConfig() Config {
	return Config{Currency: user.CounterGems, TilePoints: 1, Coins: 5, Multiplier: 30, Limit: 100}
}

// fixedCoin always lands on face.
func fixedCoin(face Face) Tosser {
	return func() Face { return face }
}

type fixture struct {
	store *storage.MemoryStore
	econ  *Economy
}

func newFixture(t *testing.T, cfg Config, toss Tosser, users ...user.Profile) fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	for _, p := range users {
		if _, err := store.CreateUser(context.Background(), p); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}
	dir := user.NewDirectory(store, nil, nil)
	return fixture{store: store, econ: New(store, dir, cfg, toss, testLogger())}
}

func gems(t *testing.T, f fixture, id int64) int64 {
	t.Helper()
	p, err := f.store.GetUser(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	return p.Gems
}

func TestCreditPlacement(t *testing.T) {
	f := newFixture(t, defaultConfig(), nil, user.Profile{ID: 1, Name: "ann", Emoji: "🐶"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := f.econ.CreditPlacement(ctx, 1, 1); err != nil {
			t.Fatalf("CreditPlacement: %v", err)
		}
	}
	p, _ := f.store.GetUser(ctx, 1)
	if p.TilesCount != 3 || p.Gems != 3 {
		t.Errorf("got tiles=%d gems=%d, want 3 and 3", p.TilesCount, p.Gems)
	}
	if p.Points != 0 {
		t.Errorf("points: got %d, want 0 when currency is gems", p.Points)
	}
}

func TestCreditPlacement_PointsCurrency(t *testing.T) {
	cfg := defaultConfig()
	cfg.Currency = user.CounterPoints
	f := newFixture(t, cfg, nil, user.Profile{ID: 1, Name: "ann", Emoji: "🐶"})

	if err := f.econ.CreditPlacement(context.Background(), 1, 2); err != nil {
		t.Fatalf("CreditPlacement: %v", err)
	}
	p, _ := f.store.GetUser(context.Background(), 1)
	if p.Points != 2 || p.Gems != 0 {
		t.Errorf("got points=%d gems=%d, want 2 and 0", p.Points, p.Gems)
	}
}

func TestCreditPlacement_UnknownUser(t *testing.T) {
	f := newFixture(t, defaultConfig(), nil)
	err := f.econ.CreditPlacement(context.Background(), 99, 1)
	if !errors.Is(err, user.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAdjust(t *testing.T) {
	f := newFixture(t, defaultConfig(), nil, user.Profile{ID: 1, Name: "ann", Gems: 10})
	ctx := context.Background()

	bal, err := f.econ.Adjust(ctx, 1, 5)
	if err != nil || bal != 15 {
		t.Fatalf("Adjust(+5): got (%d, %v), want 15", bal, err)
	}
	bal, err = f.econ.Adjust(ctx, 1, -15)
	if err != nil || bal != 0 {
		t.Fatalf("Adjust(-15): got (%d, %v), want 0", bal, err)
	}

	_, err = f.econ.Adjust(ctx, 1, -1)
	var rej *RejectionError
	if !errors.As(err, &rej) || !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Adjust(-1) on empty balance: got %v", err)
	}
	if gems(t, f, 1) != 0 {
		t.Error("refused debit changed the balance")
	}
}

func TestAdjust_RangeLimits(t *testing.T) {
	ctx := context.Background()

	t.Run("large credit is not an overdraft", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil, user.Profile{ID: 1, Name: "ann", Gems: 5})
		_, err := f.econ.Adjust(ctx, 1, math.MaxInt64)
		if !errors.Is(err, ErrBalanceOverflow) {
			t.Fatalf("Adjust(MaxInt64) on 5: got %v, want ErrBalanceOverflow", err)
		}
		if gems(t, f, 1) != 5 {
			t.Error("refused credit changed the balance")
		}
	})

	t.Run("credit up to the maximum", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil, user.Profile{ID: 1, Name: "ann", Gems: math.MaxInt64 - 10})
		bal, err := f.econ.Adjust(ctx, 1, 10)
		if err != nil || bal != math.MaxInt64 {
			t.Fatalf("Adjust(+10): got (%d, %v), want MaxInt64", bal, err)
		}
		if _, err := f.econ.Adjust(ctx, 1, 1); !errors.Is(err, ErrBalanceOverflow) {
			t.Errorf("Adjust(+1) at MaxInt64: got %v", err)
		}
	})

	t.Run("huge debit reports the requested amount", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil, user.Profile{ID: 1, Name: "ann", Gems: 5})
		_, err := f.econ.Adjust(ctx, 1, -math.MaxInt64)
		var rej *RejectionError
		if !errors.As(err, &rej) || !errors.Is(err, ErrInsufficientFunds) || rej.Amount != math.MaxInt64 {
			t.Fatalf("Adjust(-MaxInt64): got %v", err)
		}
	})

	t.Run("min int64 is refused", func(t *testing.T) {
		f := newFixture(t, defaultConfig(), nil, user.Profile{ID: 1, Name: "ann", Gems: 5})
		if _, err := f.econ.Adjust(ctx, 1, math.MinInt64); err == nil {
			t.Fatal("Adjust(MinInt64) accepted")
		}
		if gems(t, f, 1) != 5 {
			t.Error("refused delta changed the balance")
		}
	})
}

func TestLeaderboard(t *testing.T) {
	// dee registers before ann, so a tie must keep dee first even though
	// ann has the lower id.
	f := newFixture(t, defaultConfig(), nil,
		user.Profile{ID: 4, Name: "dee", Emoji: "🐭", Gems: 5},
		user.Profile{ID: 2, Name: "bob", Emoji: "🐱", Gems: 0},
		user.Profile{ID: 3, Name: "cid", Emoji: "🦊", Gems: 9},
		user.Profile{ID: 1, Name: "ann", Emoji: "🐶", Gems: 5},
	)

	got, err := f.econ.Leaderboard(context.Background(), user.CounterGems)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}

	want := []Entry{
		{UserID: 3, Name: "cid", Emoji: "🦊", Value: 9},
		{UserID: 4, Name: "dee", Emoji: "🐭", Value: 5},
		{UserID: 1, Name: "ann", Emoji: "🐶", Value: 5},
	}
	if len(got) != len(want) {
		t.Fatalf("entries: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLeaderboard_AssignsMissingEmoji(t *testing.T) {
	f := newFixture(t, defaultConfig(), nil, user.Profile{ID: 1, Name: "ann", TilesCount: 2})

	got, err := f.econ.Leaderboard(context.Background(), user.CounterTiles)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(got) != 1 || got[0].Emoji == "" {
		t.Fatalf("entries: %+v", got)
	}
	p, _ := f.store.GetUser(context.Background(), 1)
	if p.Emoji != got[0].Emoji {
		t.Errorf("emoji not persisted: stored %q, shown %q", p.Emoji, got[0].Emoji)
	}
}

func TestWager_Rejections(t *testing.T) {
	tests := []struct {
		name string
		bet  int64
		want error
	}{
		{"zero", 0, ErrNonPositiveBet},
		{"negative", -3, ErrNonPositiveBet},
		{"over limit", 101, ErrOverLimit},
		{"over balance", 60, ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultConfig(), fixedCoin(Heads), user.Profile{ID: 1, Name: "ann", Gems: 50})

			res, err := f.econ.Wager(context.Background(), 1, tt.bet)
			if res != nil {
				t.Errorf("expected nil result, got %+v", res)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if gems(t, f, 1) != 50 {
				t.Errorf("balance changed on rejection: %d", gems(t, f, 1))
			}
		})
	}
}

func TestWager_LossDebitsBet(t *testing.T) {
	f := newFixture(t, defaultConfig(), fixedCoin(Tails), user.Profile{ID: 1, Name: "ann", Gems: 50})

	res, err := f.econ.Wager(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Wager: %v", err)
	}
	if res.Won || res.Payout != 0 || res.Balance != 40 {
		t.Errorf("result: %+v", res)
	}
	if len(res.Coins) != 5 {
		t.Errorf("coins: got %d, want 5", len(res.Coins))
	}
	if gems(t, f, 1) != 40 {
		t.Errorf("balance: got %d, want 40", gems(t, f, 1))
	}
}

func TestWager_OneTailLoses(t *testing.T) {
	faces := []Face{Heads, Heads, Heads, Heads, Tails}
	i := 0
	toss := func() Face {
		f := faces[i%len(faces)]
		i++
		return f
	}
	f := newFixture(t, defaultConfig(), toss, user.Profile{ID: 1, Name: "ann", Gems: 50})

	res, err := f.econ.Wager(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Wager: %v", err)
	}
	if res.Won {
		t.Error("a single tails should lose")
	}
}

func TestWager_AllHeadsPaysMultiplier(t *testing.T) {
	f := newFixture(t, defaultConfig(), fixedCoin(Heads), user.Profile{ID: 1, Name: "ann", Gems: 50})

	res, err := f.econ.Wager(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("Wager: %v", err)
	}
	if !res.Won || res.Payout != 300 {
		t.Errorf("result: %+v", res)
	}
	// 50 - 10 + 300
	if res.Balance != 340 || gems(t, f, 1) != 340 {
		t.Errorf("balance: got %d (stored %d), want 340", res.Balance, gems(t, f, 1))
	}
}

func TestWager_BetEqualToBalanceAndLimit(t *testing.T) {
	f := newFixture(t, defaultConfig(), fixedCoin(Tails), user.Profile{ID: 1, Name: "ann", Gems: 100})

	res, err := f.econ.Wager(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("Wager: %v", err)
	}
	if res.Balance != 0 {
		t.Errorf("balance: got %d, want 0", res.Balance)
	}
}

func TestWager_ConcurrentNeverOverdraws(t *testing.T) {
	f := newFixture(t, defaultConfig(), fixedCoin(Tails), user.Profile{ID: 1, Name: "ann", Gems: 50})
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.econ.Wager(ctx, 1, 10); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted != 5 {
		t.Errorf("accepted wagers: got %d, want 5", accepted)
	}
	if gems(t, f, 1) != 0 {
		t.Errorf("balance: got %d, want 0", gems(t, f, 1))
	}
}

func TestRandomCoin_ProducesBothFaces(t *testing.T) {
	toss := RandomCoin(nil)
	seen := map[Face]bool{}
	for i := 0; i < 200 && len(seen) < 2; i++ {
		seen[toss()] = true
	}
	if !seen[Heads] || !seen[Tails] {
		t.Errorf("faces seen: %v", seen)
	}
}
