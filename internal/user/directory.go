package user

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

// DefaultEmojis is the pool new users draw their glyph from.
var DefaultEmojis = []string{
	"⬜️", "🟥", "🟧", "🟨", "🟩", "🟪",
	"⚪", "🟠", "🟡", "🟢", "🔵", "🟣",
	"🐶", "🐱", "🦊", "🐭", "🐹", "🐰",
	"🐻", "🐼", "🐯", "🦁", "🐬", "🐧",
	"🦖", "🍀", "⚡️", "🔥", "⭐️", "☀️",
	"🍎", "🍓", "🍒", "🍉", "🍕", "🍣",
	"⚽️", "🏀", "🥎", "💎", "💻", "🚀",
	"🍪", "🛑", "❇️",
}

// Directory wraps a Store with registration, lookup and emoji defaults.
type Directory struct {
	store  Store
	emojis []string

	mu  sync.Mutex // guards rnd and serialises default-emoji assignment
	rnd *rand.Rand
}

// NewDirectory creates a Directory. An empty pool falls back to DefaultEmojis.
func NewDirectory(store Store, emojis []string, rnd *rand.Rand) *Directory {
	if len(emojis) == 0 {
		emojis = DefaultEmojis
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Directory{store: store, emojis: emojis, rnd: rnd}
}

// Store exposes the underlying profile store.
func (d *Directory) Store() Store { return d.store }

// Register creates the profile for id with a random emoji. Registering an
// existing user is a no-op that returns the stored profile.
func (d *Directory) Register(ctx context.Context, id int64, name string) (*Profile, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, fmt.Errorf("register user %d: empty name", id)
	}

	created, err := d.store.CreateUser(ctx, Profile{ID: id, Name: name, Emoji: d.randomEmoji()})
	if err != nil {
		return nil, false, fmt.Errorf("register user %d: %w", id, err)
	}
	p, err := d.store.GetUser(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return p, created, nil
}

func (d *Directory) Get(ctx context.Context, id int64) (*Profile, error) {
	return d.store.GetUser(ctx, id)
}

func (d *Directory) List(ctx context.Context) ([]Profile, error) {
	return d.store.ListUsers(ctx)
}

// IsAdmin reports the admin flag; unknown users are not admins.
func (d *Directory) IsAdmin(ctx context.Context, id int64) (bool, error) {
	p, err := d.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.Admin, nil
}

// Emoji returns the user's glyph. A user without one is assigned a random
// glyph from the pool, and it is persisted so it never changes between
// renders. Unknown ids get a glyph derived from the id.
func (d *Directory) Emoji(ctx context.Context, id int64) (string, error) {
	p, err := d.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return d.FallbackEmoji(id), nil
		}
		return "", err
	}
	if p.Emoji != "" {
		return p.Emoji, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Re-read under the lock: a concurrent caller may have assigned one.
	p, err = d.store.GetUser(ctx, id)
	if err != nil {
		return "", err
	}
	if p.Emoji != "" {
		return p.Emoji, nil
	}
	emoji := d.emojis[d.rnd.IntN(len(d.emojis))]
	if _, err := d.store.UpdateUser(ctx, id, Update{Emoji: &emoji}); err != nil {
		return "", fmt.Errorf("assign emoji to user %d: %w", id, err)
	}
	return emoji, nil
}

// SetEmoji stores an explicit glyph for id. It shares the lock used by
// Emoji, so a default assignment never lands on top of it.
func (d *Directory) SetEmoji(ctx context.Context, id int64, emoji string) (*Profile, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, fmt.Errorf("set emoji for user %d: empty emoji", id)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.store.UpdateUser(ctx, id, Update{Emoji: &emoji})
	if err != nil {
		return nil, fmt.Errorf("set emoji for user %d: %w", id, err)
	}
	return p, nil
}

// FallbackEmoji is a stable glyph for ids without a profile.
func (d *Directory) FallbackEmoji(id int64) string {
	i := id % int64(len(d.emojis))
	if i < 0 {
		i = -i
	}
	return d.emojis[i]
}

// Search returns users whose name contains query, case-insensitively.
func (d *Directory) Search(ctx context.Context, query string) ([]Profile, error) {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	var out []Profile
	for _, p := range users {
		if strings.Contains(strings.ToLower(p.Name), query) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Random picks one registered user.
func (d *Directory) Random(ctx context.Context) (*Profile, int, error) {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, 0, err
	}
	if len(users) == 0 {
		return nil, 0, ErrUserNotFound
	}
	d.mu.Lock()
	i := d.rnd.IntN(len(users))
	d.mu.Unlock()
	return &users[i], len(users), nil
}

func (d *Directory) randomEmoji() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.emojis[d.rnd.IntN(len(d.emojis))]
}

// Registered reports whether id has a profile.
func (d *Directory) Registered(ctx context.Context, id int64) (bool, error) {
	_, err := d.store.GetUser(ctx, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	return false, err
}
