package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ryanbastic/go-placebot/internal/canvas"
	"github.com/ryanbastic/go-placebot/internal/user"
)

// MemoryStore keeps everything in process memory. It is used by tests and
// by STORAGE_BACKEND=memory; nothing survives a restart.
type MemoryStore struct {
	mu         sync.Mutex
	users      map[int64]*user.Profile
	order      []int64
	grids      map[string]string
	retrievals map[string][]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[int64]*user.Profile),
		grids:      make(map[string]string),
		retrievals: make(map[string][]int64),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, p user.Profile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[p.ID]; ok {
		return false, nil
	}
	stored := p.Clone()
	s.users[p.ID] = &stored
	s.order = append(s.order, p.ID)
	return true, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id int64) (*user.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	out := p.Clone()
	return &out, nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]user.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]user.Profile, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.users[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, id int64, u user.Update) (*user.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	p.Apply(u)
	out := p.Clone()
	return &out, nil
}

func (s *MemoryStore) AddCounter(ctx context.Context, id int64, c user.Counter, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[id]
	if !ok {
		return 0, user.ErrUserNotFound
	}
	switch c {
	case user.CounterTiles:
		p.TilesCount += delta
		return p.TilesCount, nil
	case user.CounterPoints:
		p.Points += delta
		return p.Points, nil
	case user.CounterGems:
		p.Gems += delta
		return p.Gems, nil
	}
	return 0, fmt.Errorf("unknown counter %q", c)
}

func (s *MemoryStore) LoadGrid(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grids[name]
	if !ok {
		return "", canvas.ErrGridNotFound
	}
	return g, nil
}

func (s *MemoryStore) SaveGrid(ctx context.Context, name, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grids[name] = data
	return nil
}

func (s *MemoryStore) ListGrids(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.grids))
	for n := range s.grids {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func retrievalKey(year int, key string) string {
	return fmt.Sprintf("%d/%s", year, key)
}

func (s *MemoryStore) Retrieved(ctx context.Context, year int, key string) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := retrievalKey(year, key)
	ids, ok := s.retrievals[k]
	if !ok {
		s.retrievals[k] = nil
		return nil, nil
	}
	return append([]int64(nil), ids...), nil
}

func (s *MemoryStore) MarkRetrieved(ctx context.Context, year int, key string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := retrievalKey(year, key)
	for _, id := range s.retrievals[k] {
		if id == userID {
			return nil
		}
	}
	s.retrievals[k] = append(s.retrievals[k], userID)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
