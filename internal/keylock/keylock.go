package keylock

import (
	"sync"
)

// Set hands out one mutex per key. Entries are reference counted and removed
// once no goroutine holds or waits on them, so the map only grows with the
// number of keys in use at the same time.
type Set[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New[K comparable]() *Set[K] {
	return &Set[K]{locks: make(map[K]*entry)}
}

// Lock acquires the mutex for key and returns the function that releases it.
func (s *Set[K]) Lock(key K) (unlock func()) {
	s.mu.Lock()
	e, ok := s.locks[key]
	if !ok {
		e = &entry{}
		s.locks[key] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			s.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(s.locks, key)
			}
			s.mu.Unlock()
		})
	}
}

// Do runs fn while holding the mutex for key.
func (s *Set[K]) Do(key K, fn func() error) error {
	unlock := s.Lock(key)
	defer unlock()
	return fn()
}

// Len returns the number of keys currently held or waited on.
func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
