package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClocked(maxFailures int, reset time.Duration, opts ...Option) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(maxFailures, reset, append(opts, WithClock(clock.Now))...), clock
}

func fail(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		_ = b.Execute(func() error { return errTest })
	}
}

func TestNew(t *testing.T) {
	b := New(5, 30*time.Second)
	if b.GetState() != Closed {
		t.Errorf("initial state: got %s, want closed", b.GetState())
	}
}

func TestExecute_PropagatesError(t *testing.T) {
	b := New(3, time.Second)
	if err := b.Execute(func() error { return errTest }); !errors.Is(err, errTest) {
		t.Errorf("expected errTest, got %v", err)
	}
}

func TestExecute_OpensAfterMaxFailures(t *testing.T) {
	for maxF := 1; maxF <= 5; maxF++ {
		b := New(maxF, time.Minute)
		fail(b, maxF-1)
		if b.GetState() != Closed {
			t.Errorf("maxFailures=%d: opened after %d failures", maxF, maxF-1)
		}
		fail(b, 1)
		if b.GetState() != Open {
			t.Errorf("maxFailures=%d: expected open after %d failures", maxF, maxF)
		}
	}
}

func TestExecute_OpenRejectsWithoutCalling(t *testing.T) {
	b, _ := newClocked(1, time.Hour)
	fail(b, 1)

	err := b.Execute(func() error {
		t.Error("function should not be called when circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestExecute_SuccessResetsFailureCount(t *testing.T) {
	b := New(3, time.Second)
	fail(b, 2)
	_ = b.Execute(func() error { return nil })
	fail(b, 2)

	if b.GetState() != Closed {
		t.Error("state should be closed after success reset")
	}
}

func TestExecute_HalfOpenProbeSucceeds(t *testing.T) {
	b, clock := newClocked(2, 10*time.Second)
	fail(b, 2)

	clock.Advance(9 * time.Second)
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("before timeout: expected ErrCircuitOpen, got %v", err)
	}

	clock.Advance(time.Second)
	called := false
	if err := b.Execute(func() error { called = true; return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !called {
		t.Error("probe was not called")
	}
	if b.GetState() != Closed {
		t.Errorf("state after successful probe: got %s", b.GetState())
	}
}

func TestExecute_HalfOpenProbeFailureReopens(t *testing.T) {
	b, clock := newClocked(3, 10*time.Second)
	fail(b, 3)
	clock.Advance(10 * time.Second)

	fail(b, 1)
	if b.GetState() != Open {
		t.Errorf("a failed probe should reopen at once, got %s", b.GetState())
	}
}

func TestExecute_HalfOpenAdmitsSingleProbe(t *testing.T) {
	b, clock := newClocked(1, time.Second)
	fail(b, 1)
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if b.GetState() != HalfOpen {
		t.Errorf("state during probe: got %s, want half_open", b.GetState())
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second call during probe: expected ErrCircuitOpen, got %v", err)
	}
	close(release)
}

func TestOnStateChange(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []string
	)
	b, clock := newClocked(1, time.Second, OnStateChange(func(from, to State) {
		mu.Lock()
		transitions = append(transitions, from.String()+">"+to.String())
		mu.Unlock()
	}))

	fail(b, 1)
	clock.Advance(time.Second)
	_ = b.Execute(func() error { return nil })

	want := []string{"closed>open", "open>half_open", "half_open>closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions: got %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: got %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestExecute_ConcurrentAccess(t *testing.T) {
	b := New(100, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				_ = b.Execute(func() error { return nil })
			} else {
				_ = b.Execute(func() error { return errTest })
			}
			b.GetState()
		}(i)
	}
	wg.Wait()
}

func TestState_String(t *testing.T) {
	tests := map[State]string{Closed: "closed", Open: "open", HalfOpen: "half_open", State(9): "unknown"}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String(): got %q, want %q", int(s), s.String(), want)
		}
	}
}
