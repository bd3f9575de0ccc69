package santa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ryanbastic/go-placebot/internal/user"
)

// ErrNotInCohort is returned when the caller has not opted in.
var ErrNotInCohort = errors.New("user is not in the cohort")

// RetrievalStore records which members already fetched their pairing for a
// (year, cohort key).
type RetrievalStore interface {
	// Retrieved lists the members who fetched their pairing. A missing
	// record is created empty.
	Retrieved(ctx context.Context, year int, key string) ([]int64, error)

	// MarkRetrieved adds userID to the record. Marking twice is a no-op.
	MarkRetrieved(ctx context.Context, year int, key string, userID int64) error
}

// Assignment is one member's view of the yearly pairing.
type Assignment struct {
	Year      int
	Key       string
	Cohort    []user.Profile
	Recipient user.Profile
}

// Engine computes pairings from the santa flag of registered users.
type Engine struct {
	users  user.Store
	store  RetrievalStore
	logger *slog.Logger
}

func NewEngine(users user.Store, store RetrievalStore, logger *slog.Logger) *Engine {
	return &Engine{users: users, store: store, logger: logger}
}

// Cohort returns the opted-in users in registration order.
func (e *Engine) Cohort(ctx context.Context) ([]user.Profile, error) {
	all, err := e.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cohort: %w", err)
	}
	var cohort []user.Profile
	for _, p := range all {
		if p.Santa {
			cohort = append(cohort, p)
		}
	}
	return cohort, nil
}

// AlreadyRetrieved returns the cohort members who fetched their pairing in year.
func (e *Engine) AlreadyRetrieved(ctx context.Context, year int, cohort []int64) (map[int64]bool, error) {
	ids, err := e.store.Retrieved(ctx, year, CohortKey(year, cohort))
	if err != nil {
		return nil, fmt.Errorf("read retrievals: %w", err)
	}
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (e *Engine) MarkRetrieved(ctx context.Context, year int, cohort []int64, userID int64) error {
	if err := e.store.MarkRetrieved(ctx, year, CohortKey(year, cohort), userID); err != nil {
		return fmt.Errorf("mark retrieval: %w", err)
	}
	return nil
}

// Assignment computes the pairing for the UTC year of now, returns the
// caller's recipient and records the retrieval.
func (e *Engine) Assignment(ctx context.Context, userID int64, now time.Time) (*Assignment, error) {
	year := now.UTC().Year()
	cohort, err := e.Cohort(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(cohort))
	byID := make(map[int64]user.Profile, len(cohort))
	for i, p := range cohort {
		ids[i] = p.ID
		byID[p.ID] = p
	}
	if _, ok := byID[userID]; !ok {
		return nil, ErrNotInCohort
	}

	pairs, err := Pair(int64(year), ids)
	if err != nil {
		return nil, err
	}

	key := CohortKey(year, ids)
	if err := e.store.MarkRetrieved(ctx, year, key, userID); err != nil {
		return nil, fmt.Errorf("mark retrieval: %w", err)
	}
	e.logger.Info("santa assignment retrieved", "user_id", userID, "year", year, "cohort", key)

	return &Assignment{
		Year:      year,
		Key:       key,
		Cohort:    cohort,
		Recipient: byID[pairs[userID]],
	}, nil
}

// Pending returns the cohort members who have not fetched their pairing in
// the UTC year of now, along with the cohort size.
func (e *Engine) Pending(ctx context.Context, now time.Time) ([]user.Profile, int, error) {
	year := now.UTC().Year()
	cohort, err := e.Cohort(ctx)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]int64, len(cohort))
	for i, p := range cohort {
		ids[i] = p.ID
	}
	done, err := e.AlreadyRetrieved(ctx, year, ids)
	if err != nil {
		return nil, 0, err
	}

	var pending []user.Profile
	for _, p := range cohort {
		if !done[p.ID] {
			pending = append(pending, p)
		}
	}
	return pending, len(cohort), nil
}
