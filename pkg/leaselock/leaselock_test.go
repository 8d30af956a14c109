package leaselock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type row struct {
	token   string
	expires time.Time
}

// memBackend mirrors the app_locks semantics in memory.
type memBackend struct {
	mu   sync.Mutex
	rows map[string]row
	// steal makes every Renew report the lease as taken over.
	steal atomic.Bool
}

func newMemBackend() *memBackend {
	return &memBackend{rows: map[string]row{}}
}

func (b *memBackend) TryAcquire(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.rows[key]; ok && r.token != token && time.Now().Before(r.expires) {
		return false, nil
	}
	b.rows[key] = row{token: token, expires: time.Now().Add(ttl)}
	return true, nil
}

func (b *memBackend) Renew(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rows[key]
	if !ok || r.token != token || b.steal.Load() {
		return false, nil
	}
	b.rows[key] = row{token: token, expires: time.Now().Add(ttl)}
	return true, nil
}

func (b *memBackend) Release(_ context.Context, key, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.rows[key]; ok && r.token == token {
		delete(b.rows, key)
	}
	return nil
}

func TestAcquire_Exclusive(t *testing.T) {
	l := New(newMemBackend())
	ctx := context.Background()

	lease, err := l.Acquire(ctx, "graph-sync-relay", Options{TTL: time.Minute, Holder: "w1-"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !strings.HasPrefix(lease.Token, "w1-") {
		t.Fatalf("expected holder prefix, got %q", lease.Token)
	}

	if _, err := l.Acquire(ctx, "graph-sync-relay", Options{TTL: time.Minute}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if lease.Context.Err() == nil {
		t.Fatal("expected lease context cancelled after release")
	}

	again, err := l.Acquire(ctx, "graph-sync-relay", Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("expected lock free after release, got %v", err)
	}
	_ = again.Release(ctx)
}

func TestAcquire_ExpiredLeaseIsTakenOver(t *testing.T) {
	b := newMemBackend()
	b.rows["k"] = row{token: "stale", expires: time.Now().Add(-time.Second)}

	lease, err := New(b).Acquire(context.Background(), "k", Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("expected expired lease to be taken over, got %v", err)
	}
	_ = lease.Release(context.Background())
}

func TestAcquire_Wait(t *testing.T) {
	b := newMemBackend()
	l := New(b)
	ctx := context.Background()

	first, err := l.Acquire(ctx, "k", Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = first.Release(context.Background())
	}()

	second, err := l.Acquire(ctx, "k", Options{TTL: time.Minute, Wait: true, WaitInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("expected waiting acquire to succeed, got %v", err)
	}
	_ = second.Release(ctx)
}

func TestLease_LostCancelsContext(t *testing.T) {
	b := newMemBackend()
	lease, err := New(b).Acquire(context.Background(), "k", Options{TTL: 40 * time.Millisecond, RenewEvery: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	b.steal.Store(true)

	select {
	case <-lease.Context.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected lease context to be cancelled")
	}
	if cause := context.Cause(lease.Context); !errors.Is(cause, ErrLost) {
		t.Fatalf("expected ErrLost, got %v", cause)
	}
	_ = lease.Release(context.Background())
}

func TestRunExclusive_SingleRunner(t *testing.T) {
	b := newMemBackend()
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	var active, maxActive, runs atomic.Int32
	fn := func(ctx context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		runs.Add(1)
		time.Sleep(time.Millisecond)
		return nil
	}

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = New(b).RunExclusive(ctx, "relay", 10*time.Millisecond, Options{TTL: time.Second}, fn)
		}()
	}
	wg.Wait()

	if runs.Load() == 0 {
		t.Fatal("expected at least one run")
	}
	if maxActive.Load() != 1 {
		t.Fatalf("expected a single concurrent runner, got %d", maxActive.Load())
	}
}
