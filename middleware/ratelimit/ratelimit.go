// Package ratelimit provides per-client token bucket limiting for the
// auth endpoints. Buckets are keyed by client IP and swept after a
// period of inactivity.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-router"
	"golang.org/x/time/rate"
)

const (
	defaultTTL           = 5 * time.Minute
	defaultSweepInterval = time.Minute
)

// Config describes one limiter: Max requests per Window, per client key.
type Config struct {
	Max    int
	Window time.Duration
	// KeyFunc derives the bucket key from the request. Defaults to the
	// client IP, honoring X-Forwarded-For.
	KeyFunc func(router.Context) string
	// ErrorHandler answers rejected requests. Defaults to a 429 JSON body.
	ErrorHandler router.ErrorHandler
	// TTL is how long an idle bucket survives before the sweeper drops it
	TTL time.Duration
}

type bucket struct {
	lim *rate.Limiter
	ts  time.Time
}

// Limiter tracks one token bucket per client key
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

// New builds a Limiter and starts its sweeper
func New(cfg Config) *Limiter {
	if cfg.Max <= 0 {
		cfg.Max = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}

	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}

	go l.sweep()

	return l
}

// Middleware returns the go-router middleware enforcing this limiter
func (l *Limiter) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if !l.Allow(l.cfg.KeyFunc(ctx)) {
				return l.cfg.ErrorHandler(ctx, ErrRateLimited)
			}
			return next(ctx)
		}
	}
}

// Allow consumes one token from the key's bucket
func (l *Limiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			lim: rate.NewLimiter(rate.Every(l.cfg.Window/time.Duration(l.cfg.Max)), l.cfg.Max),
		}
		l.buckets[key] = b
	}
	b.ts = time.Now()
	l.mu.Unlock()

	return b.lim.Allow()
}

// Stop terminates the sweeper goroutine
func (l *Limiter) Stop() {
	l.once.Do(func() {
		close(l.stop)
	})
}

func (l *Limiter) sweep() {
	ticker := time.NewTicker(defaultSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			now := time.Now()
			l.mu.Lock()
			for k, b := range l.buckets {
				if now.Sub(b.ts) > l.cfg.TTL {
					delete(l.buckets, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

// ErrRateLimited is passed to the configured ErrorHandler on rejection
var ErrRateLimited = errTooManyRequests{}

type errTooManyRequests struct{}

func (errTooManyRequests) Error() string { return "too many requests" }

// ClientIP resolves the bucket key from X-Forwarded-For (first hop) or
// X-Real-Ip. When neither header is present the limiter collapses the
// request into the shared "unknown" bucket.
func ClientIP(ctx router.Context) string {
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	return ctx.Header("X-Real-Ip")
}

func defaultErrorHandler(ctx router.Context, _ error) error {
	return ctx.JSON(router.StatusTooManyRequests, map[string]any{
		"error": map[string]any{
			"message":   "too many requests",
			"text_code": "RATE_LIMITED",
		},
	})
}
