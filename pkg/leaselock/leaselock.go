// Package leaselock provides expiring, renewable locks shared between
// processes. A lease is held until it is released, its owner stops renewing
// it, or another holder observes it as expired.
package leaselock

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/logger"
)

var (
	ErrBusy = errors.New("lease lock busy")
	ErrLost = errors.New("lease lock lost")
)

// Backend stores lease rows. TryAcquire succeeds when the key is free,
// expired or already held by token. Renew reports false when token no
// longer holds the key.
type Backend interface {
	TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Renew(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

type Locker struct {
	backend Backend
}

type Options struct {
	TTL        time.Duration
	RenewEvery time.Duration

	Wait         bool
	WaitInterval time.Duration
	WaitJitter   time.Duration

	// Holder prefixes the lease token, e.g. the worker name.
	Holder string
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, 10*time.Millisecond)
	}
	if o.WaitInterval <= 0 {
		o.WaitInterval = 250 * time.Millisecond
	}
	if o.WaitJitter < 0 {
		o.WaitJitter = 0
	}
	return o
}

// Lease is a held lock. Its Context is cancelled when the lease is released
// or lost.
type Lease struct {
	Key     string
	Token   string
	Context context.Context

	locker *Locker
	cancel context.CancelCauseFunc

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func New(backend Backend) *Locker {
	return &Locker{backend: backend}
}

// WithLease runs fn while holding key.
func (l *Locker) WithLease(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	lease, err := l.Acquire(ctx, key, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = lease.Release(context.Background())
	}()
	return fn(lease.Context)
}

func (l *Locker) Acquire(ctx context.Context, key string, opts Options) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease lock key is empty")
	}
	opts = opts.withDefaults()

	id, err := util.NewID()
	if err != nil {
		return nil, err
	}
	token := opts.Holder + id

	for {
		ok, err := l.backend.TryAcquire(ctx, key, token, opts.TTL)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !opts.Wait {
			return nil, ErrBusy
		}
		if err := sleepWithJitter(ctx, opts.WaitInterval, opts.WaitJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	lease := &Lease{
		Key:     key,
		Token:   token,
		Context: leaseCtx,
		locker:  l,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go lease.renewLoop(opts)
	return lease, nil
}

// RunExclusive calls fn every interval for as long as this process holds
// key. While another holder owns the key it keeps retrying at interval. It
// returns when ctx is done.
func (l *Locker) RunExclusive(
	ctx context.Context,
	key string,
	interval time.Duration,
	opts Options,
	fn func(ctx context.Context) error,
) error {
	opts.Wait = false
	for {
		lease, err := l.Acquire(ctx, key, opts)
		switch {
		case err == nil:
			logger.Info("[LeaseLock][Run] Acquired lease", "key", key)
			runHeld(lease, interval, fn)
			_ = lease.Release(context.Background())
		case errors.Is(err, ErrBusy):
		default:
			logger.Warn("[LeaseLock][Run] Acquire failed", "key", key, "err", err)
		}

		if err := sleepWithJitter(ctx, interval, interval/10); err != nil {
			return nil
		}
	}
}

func runHeld(lease *Lease, interval time.Duration, fn func(ctx context.Context) error) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := fn(lease.Context); err != nil {
			logger.Warn("[LeaseLock][Run] Run failed", "key", lease.Key, "err", err)
		}
		select {
		case <-lease.Context.Done():
			if cause := context.Cause(lease.Context); errors.Is(cause, ErrLost) {
				logger.Warn("[LeaseLock][Run] Lease lost", "key", lease.Key)
			}
			return
		case <-t.C:
		}
	}
}

// Release stops renewal and deletes the lease row if this lease still
// holds it.
func (l *Lease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.cancel(context.Canceled)
	})
	<-l.done
	return l.locker.backend.Release(ctx, l.Key, l.Token)
}

func (l *Lease) renewLoop(opts Options) {
	defer close(l.done)
	t := time.NewTicker(opts.RenewEvery)
	defer t.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renewOnce(opts.TTL); err != nil {
				l.cancel(err)
				return
			}
		}
	}
}

func (l *Lease) renewOnce(ttl time.Duration) error {
	held, err := util.RetryWithBackoff(l.Context, 3, 200*time.Millisecond, func(ctx context.Context) (bool, error) {
		rCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return l.locker.backend.Renew(rCtx, l.Key, l.Token, ttl)
	})
	if err != nil {
		return err
	}
	if !held {
		return ErrLost
	}
	return nil
}

func sleepWithJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
