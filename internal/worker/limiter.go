package worker

import (
	"context"
	"fmt"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// defaultIdleExpiry is the minimum time an untouched key is kept
const defaultIdleExpiry = 10 * time.Minute

// Limiter implements keyed token-bucket rate limiting. Keys are hosts for
// outbound fetches and client addresses for the HTTP API.
//
// Buckets for keys that go idle expire, so the key space stays bounded by the
// number of keys active within the idle window. Keys given a custom rate with
// SetRate never expire.
type Limiter struct {
	buckets      *gocache.Cache
	idle         time.Duration
	defaultRate  rate.Limit
	defaultBurst int
}

type bucket struct {
	limiter *rate.Limiter
	pinned  bool
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	// An idle bucket is only dropped once it would have refilled completely.
	idle := defaultIdleExpiry
	if requestsPerSecond > 0 {
		if refill := time.Duration(float64(burst) / requestsPerSecond * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return newLimiter(requestsPerSecond, burst, idle)
}

func newLimiter(requestsPerSecond float64, burst int, idle time.Duration) *Limiter {
	return &Limiter{
		buckets:      gocache.New(idle, idle),
		idle:         idle,
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// Wait blocks until key has a token or ctx ends
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.getLimiter(key).Wait(ctx)
}

// Allow reports whether key may proceed now, consuming a token if so
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

// WaitURL waits for clearance for the host of rawURL
func (l *Limiter) WaitURL(ctx context.Context, rawURL string) error {
	host, err := extractHost(rawURL)
	if err != nil {
		return err
	}
	return l.Wait(ctx, host)
}

// WaitWithDelay waits for rate limit and adds an additional delay, e.g. a robots.txt crawl delay
func (l *Limiter) WaitWithDelay(ctx context.Context, rawURL string, additionalDelay time.Duration) error {
	if err := l.WaitURL(ctx, rawURL); err != nil {
		return err
	}

	if additionalDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(additionalDelay):
		}
	}

	return nil
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.buckets.Get(key); ok {
		b := v.(*bucket)
		if !b.pinned {
			l.buckets.Set(key, b, l.idle)
		}
		return b.limiter
	}

	b := &bucket{limiter: rate.NewLimiter(l.defaultRate, l.defaultBurst)}
	if err := l.buckets.Add(key, b, l.idle); err != nil {
		// Lost the race to another caller
		if v, ok := l.buckets.Get(key); ok {
			return v.(*bucket).limiter
		}
	}
	return b.limiter
}

// SetRate sets a custom rate limit for a specific key
func (l *Limiter) SetRate(key string, requestsPerSecond float64, burst int) {
	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.buckets.Set(key, &bucket{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		pinned:  true,
	}, gocache.NoExpiration)
}

// Len returns the number of tracked keys that have not expired
func (l *Limiter) Len() int {
	return len(l.buckets.Items())
}

func extractHost(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return parsed.Host, nil
}
