package user

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUserNotFound is returned when no profile exists for a user id.
var ErrUserNotFound = errors.New("user not found")

// Profile is the per-user record. The zero value of each field is its default.
type Profile struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Emoji         string            `json:"emoji"`
	Admin         bool              `json:"admin"`
	Santa         bool              `json:"santa"`
	Canvas        string            `json:"canvas,omitempty"`
	LastPlaceTime *time.Time        `json:"last_place_time,omitempty"`
	TilesCount    int64             `json:"tiles_count"`
	Points        int64             `json:"points"`
	Gems          int64             `json:"gems"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Counter names one of the numeric balances of a profile.
type Counter string

const (
	CounterTiles  Counter = "tiles_count"
	CounterPoints Counter = "points"
	CounterGems   Counter = "gems"
)

// ParseCounter validates a counter name.
func ParseCounter(s string) (Counter, error) {
	switch c := Counter(s); c {
	case CounterTiles, CounterPoints, CounterGems:
		return c, nil
	}
	return "", fmt.Errorf("unknown counter %q", s)
}

// Value returns the profile's balance for c.
func (p Profile) Value(c Counter) int64 {
	switch c {
	case CounterTiles:
		return p.TilesCount
	case CounterPoints:
		return p.Points
	case CounterGems:
		return p.Gems
	}
	return 0
}

// Update carries the fields to overwrite; nil fields are left untouched.
// Extra entries are merged into the existing map.
type Update struct {
	Name          *string
	Emoji         *string
	Admin         *bool
	Santa         *bool
	Canvas        *string
	LastPlaceTime *time.Time
	Extra         map[string]string
}

// Store persists profiles. ListUsers returns profiles in registration order;
// that order is the enumeration order every ranking and cohort relies on.
type Store interface {
	// CreateUser inserts p unless a profile with the same id exists.
	CreateUser(ctx context.Context, p Profile) (created bool, err error)

	GetUser(ctx context.Context, id int64) (*Profile, error)

	ListUsers(ctx context.Context) ([]Profile, error)

	// UpdateUser applies u durably and returns the resulting profile.
	UpdateUser(ctx context.Context, id int64, u Update) (*Profile, error)

	// AddCounter adds delta to counter c in a single atomic step and
	// returns the new value.
	AddCounter(ctx context.Context, id int64, c Counter, delta int64) (int64, error)
}

// Apply copies the set fields of u into p.
func (p *Profile) Apply(u Update) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Emoji != nil {
		p.Emoji = *u.Emoji
	}
	if u.Admin != nil {
		p.Admin = *u.Admin
	}
	if u.Santa != nil {
		p.Santa = *u.Santa
	}
	if u.Canvas != nil {
		p.Canvas = *u.Canvas
	}
	if u.LastPlaceTime != nil {
		t := *u.LastPlaceTime
		p.LastPlaceTime = &t
	}
	if len(u.Extra) > 0 {
		if p.Extra == nil {
			p.Extra = make(map[string]string, len(u.Extra))
		}
		for k, v := range u.Extra {
			p.Extra[k] = v
		}
	}
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	if p.LastPlaceTime != nil {
		t := *p.LastPlaceTime
		p.LastPlaceTime = &t
	}
	if p.Extra != nil {
		extra := make(map[string]string, len(p.Extra))
		for k, v := range p.Extra {
			extra[k] = v
		}
		p.Extra = extra
	}
	return p
}
