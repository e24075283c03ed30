package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yadunandan004/datacore/config"
	"github.com/yadunandan004/datacore/logger"
	"github.com/yadunandan004/datacore/metrics"
)

var (
	// ErrLocked means the lock could not be taken. It is also returned when
	// the stores could not be reached; the lock never fails open.
	ErrLocked     = errors.New("lock: resource is locked")
	ErrInvalidTTL = errors.New("lock: ttl must be positive")
)

const (
	DefaultDriftFactor = 0.01
	driftConstant      = 2 * time.Millisecond
)

const releaseScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"

// Locker implements a quorum lock over independent redis instances. It
// makes exactly one attempt per Acquire.
type Locker struct {
	clients     []redis.UniversalClient
	prefix      string
	driftFactor float64
	token       func() string
	now         func() time.Time
}

type Option func(*Locker)

func WithKeyPrefix(prefix string) Option {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

func WithDriftFactor(f float64) Option {
	return func(l *Locker) {
		if f > 0 {
			l.driftFactor = f
		}
	}
}

func WithTokenGenerator(fn func() string) Option {
	return func(l *Locker) {
		if fn != nil {
			l.token = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Locker) {
		if now != nil {
			l.now = now
		}
	}
}

func NewLocker(clients []redis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		clients:     clients,
		driftFactor: DefaultDriftFactor,
		token:       uuid.NewString,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func NewLockerFromConfig(clients []redis.UniversalClient, cfg *config.LockConfig, opts ...Option) *Locker {
	base := []Option{WithKeyPrefix(cfg.KeyPrefix), WithDriftFactor(cfg.DriftFactor)}
	return NewLocker(clients, append(base, opts...)...)
}

// Quorum is the number of instances that must agree.
func (l *Locker) Quorum() int {
	return len(l.clients)/2 + 1
}

// Handle is a held lock.
type Handle struct {
	Resource string
	Validity time.Duration
	key      string
	token    string
}

func (h *Handle) Token() string {
	return h.token
}

// Acquire sets the key on every instance. It succeeds when a majority
// accepted and time is left on the lease after clock drift; otherwise any
// partial acquisitions are undone and ErrLocked is returned.
func (l *Locker) Acquire(ctx context.Context, resource string, ttl time.Duration) (*Handle, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	if len(l.clients) == 0 {
		metrics.RecordLockAttempt(ctx, "error")
		return nil, fmt.Errorf("%w: %s: no lock stores configured", ErrLocked, resource)
	}

	h := &Handle{Resource: resource, key: l.prefix + resource, token: l.token()}
	start := l.now()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		acquired int
		errs     []error
	)
	for i, client := range l.clients {
		wg.Add(1)
		go func(i int, client redis.UniversalClient) {
			defer wg.Done()
			ok, err := client.SetNX(ctx, h.key, h.token, ttl).Result()
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("store %d: %w", i, err))
			case ok:
				acquired++
			}
		}(i, client)
	}
	wg.Wait()

	drift := time.Duration(float64(ttl)*l.driftFactor) + driftConstant
	h.Validity = ttl - l.now().Sub(start) - drift

	if acquired >= l.Quorum() && h.Validity > 0 {
		metrics.RecordLockAttempt(ctx, "acquired")
		return h, nil
	}

	// a store that timed out may still have applied the set
	if err := l.Release(context.WithoutCancel(ctx), h); err != nil {
		errs = append(errs, err)
	}
	outcome := "contended"
	if len(errs) > 0 {
		outcome = "error"
	}
	metrics.RecordLockAttempt(ctx, outcome)
	return nil, errors.Join(append([]error{fmt.Errorf("%w: %s", ErrLocked, resource)}, errs...)...)
}

// Release deletes the key wherever it still carries this handle's token.
func (l *Locker) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs []error
	)
	for i, client := range l.clients {
		wg.Add(1)
		go func(i int, client redis.UniversalClient) {
			defer wg.Done()
			if err := client.Eval(ctx, releaseScript, []string{h.key}, h.token).Err(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("release on store %d: %w", i, err))
				mu.Unlock()
			}
		}(i, client)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// WithLock runs fn while holding resource. Release is always attempted,
// also when fn fails or panics; release failures are only logged.
func WithLock[T any](ctx context.Context, l *Locker, resource string, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	h, err := l.Acquire(ctx, resource, ttl)
	if err != nil {
		var zero T
		return zero, err
	}
	logger.LogDebug(ctx, "[lock] acquired %s", resource)
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx), h); err != nil {
			logger.LogError(ctx, fmt.Errorf("[lock] release %s: %w", resource, err))
			return
		}
		logger.LogDebug(ctx, "[lock] released %s", resource)
	}()
	return fn(ctx)
}

func (l *Locker) Run(ctx context.Context, resource string, ttl time.Duration, fn func(ctx context.Context) error) error {
	_, err := WithLock(ctx, l, resource, ttl, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
