package partition

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/hupe1980/mrlsearch/blobstore"
)

// Default Fetcher settings.
const (
	DefaultMaxRetries       = 3
	DefaultInitialBackoff   = 50 * time.Millisecond
	DefaultMaxBackoff       = time.Second
	DefaultBreakerThreshold = 5
	DefaultBreakerTimeout   = 10 * time.Second
)

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	// RateLimit caps fetches per second across all keys. Zero disables limiting.
	RateLimit float64
	Burst     int

	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// BreakerThreshold is the number of consecutive failures that opens the
	// circuit. Zero disables the breaker.
	BreakerThreshold uint32
	BreakerTimeout   time.Duration

	// CacheSize keeps up to this many decoded partitions in memory.
	// Zero disables caching.
	CacheSize int

	Logger *slog.Logger
}

// DefaultFetcherOptions returns the settings used by NewFetcher.
func DefaultFetcherOptions() FetcherOptions {
	return FetcherOptions{
		MaxRetries:       DefaultMaxRetries,
		InitialBackoff:   DefaultInitialBackoff,
		MaxBackoff:       DefaultMaxBackoff,
		BreakerThreshold: DefaultBreakerThreshold,
		BreakerTimeout:   DefaultBreakerTimeout,
	}
}

// FetcherOption mutates FetcherOptions.
type FetcherOption func(*FetcherOptions)

// WithRateLimit limits fetches to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) FetcherOption {
	return func(o *FetcherOptions) {
		o.RateLimit = rps
		o.Burst = burst
	}
}

// WithRetries sets the retry budget and exponential backoff bounds.
func WithRetries(maxRetries uint64, initial, maxBackoff time.Duration) FetcherOption {
	return func(o *FetcherOptions) {
		o.MaxRetries = maxRetries
		o.InitialBackoff = initial
		o.MaxBackoff = maxBackoff
	}
}

// WithCircuitBreaker opens the circuit after threshold consecutive
// failures and probes again after timeout.
func WithCircuitBreaker(threshold uint32, timeout time.Duration) FetcherOption {
	return func(o *FetcherOptions) {
		o.BreakerThreshold = threshold
		o.BreakerTimeout = timeout
	}
}

// WithPartitionCache keeps up to size decoded partitions in memory.
func WithPartitionCache(size int) FetcherOption {
	return func(o *FetcherOptions) { o.CacheSize = size }
}

// WithFetcherLogger sets the logger used for retry and breaker events.
func WithFetcherLogger(l *slog.Logger) FetcherOption {
	return func(o *FetcherOptions) { o.Logger = l }
}

// Fetcher fetches partitions with request coalescing, rate limiting,
// retries and a circuit breaker. It is safe for concurrent use.
//
// Concurrent fetches of the same key share one store read under the
// context of the first caller. If that context ends first, callers that
// are still live start a fresh read.
type Fetcher struct {
	store   blobstore.BlobStore
	opts    FetcherOptions
	group   singleflight.Group
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cache   *lru.Cache[string, *ParsedPartition]
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher reading from store.
func NewFetcher(store blobstore.BlobStore, optFns ...FetcherOption) *Fetcher {
	opts := DefaultFetcherOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	f := &Fetcher{
		store:  store,
		opts:   opts,
		logger: opts.Logger,
	}
	if f.logger == nil {
		f.logger = slog.New(slog.DiscardHandler)
	}
	if opts.RateLimit > 0 {
		burst := max(opts.Burst, 1)
		f.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	if opts.BreakerThreshold > 0 {
		threshold := opts.BreakerThreshold
		f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "partition-fetch",
			Timeout: opts.BreakerTimeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= threshold
			},
			// Only transport failures count against the store.
			IsSuccessful: func(err error) bool {
				return err == nil || isPermanent(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				f.logger.Warn("circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		})
	}
	if opts.CacheSize > 0 {
		// Only fails for a non-positive size.
		f.cache, _ = lru.New[string, *ParsedPartition](opts.CacheSize)
	}
	return f
}

// Fetch returns the partition stored under key, (nil, nil) when it does
// not exist, or an error once retries are exhausted.
func (f *Fetcher) Fetch(ctx context.Context, key string) (*ParsedPartition, error) {
	if f.cache != nil {
		if p, ok := f.cache.Get(key); ok {
			return p, nil
		}
	}

	for {
		// Written by the leader only; read after its result is delivered.
		led := false
		ch := f.group.DoChan(key, func() (any, error) {
			led = true
			return f.fetch(ctx, key)
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				// The shared fetch ended with another caller's context.
				// The call is already gone from the group, so go again.
				if !led && isContextError(res.Err) && ctx.Err() == nil {
					continue
				}
				return nil, res.Err
			}
			p, _ := res.Val.(*ParsedPartition)
			return p, nil
		case <-ctx.Done():
			return nil, &FetchError{Key: key, Op: "read", Err: ctx.Err()}
		}
	}
}

func (f *Fetcher) fetch(ctx context.Context, key string) (*ParsedPartition, error) {
	attempt := 0
	op := func() (*ParsedPartition, error) {
		attempt++
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(&FetchError{Key: key, Op: "rate limit", Err: err})
			}
		}

		p, err := f.execute(ctx, key)
		if err == nil {
			return p, nil
		}
		if isPermanent(err) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, backoff.Permanent(err)
		}
		f.logger.Debug("partition fetch failed, retrying",
			"key", key,
			"attempt", attempt,
			"error", err,
		)
		return nil, err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.opts.InitialBackoff
	eb.MaxInterval = f.opts.MaxBackoff
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, f.opts.MaxRetries), ctx)

	p, err := backoff.RetryWithData(op, b)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Key: key, Op: "read", Err: err}
		}
		return nil, err
	}
	if p != nil && f.cache != nil {
		f.cache.Add(key, p)
	}
	return p, nil
}

func (f *Fetcher) execute(ctx context.Context, key string) (*ParsedPartition, error) {
	if f.breaker == nil {
		return FetchPartition(ctx, f.store, key)
	}
	res, err := f.breaker.Execute(func() (any, error) {
		return FetchPartition(ctx, f.store, key)
	})
	if err != nil {
		return nil, err
	}
	p, _ := res.(*ParsedPartition)
	return p, nil
}

// Purge drops all cached partitions.
func (f *Fetcher) Purge() {
	if f.cache != nil {
		f.cache.Purge()
	}
}

// isPermanent reports errors that retrying cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, ErrCorrupt) || isContextError(err)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
