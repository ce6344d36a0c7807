// Package ratelimit limits API requests per client. WindowLimiter shares its
// counters through Redis so every server instance sees the same budget;
// LocalLimiter keeps token buckets in process for single-node and demo runs.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default window configuration values.
const (
	DefaultWindowSize         = time.Minute
	DefaultAnonymousLimit     = 120
	DefaultAuthenticatedLimit = 300
	DefaultGlobalLimit        = 6000
)

// Redis key prefixes for request counters.
const (
	KeyPrefixGlobal = "rl:global:"
	KeyPrefixClient = "rl:client:"
)

// Priority selects which per-client budget applies.
type Priority int

const (
	// PriorityHigh is for requests carrying a valid session token.
	PriorityHigh Priority = iota
	// PriorityLow is for anonymous requests, keyed by remote address.
	PriorityLow
)

// String returns a string representation of the priority level.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "authenticated"
	case PriorityLow:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string, priority Priority) (Decision, error)
}

// WindowLimiterConfig holds configuration for the Redis limiter.
type WindowLimiterConfig struct {
	// Redis is required.
	Redis redis.Cmdable

	// AnonymousLimit is the per-client budget per window for PriorityLow. Default: 120.
	AnonymousLimit int

	// AuthenticatedLimit is the per-client budget per window for PriorityHigh. Default: 300.
	AuthenticatedLimit int

	// GlobalLimit caps all clients together per window. Default: 6000.
	GlobalLimit int

	// WindowSize is the fixed window length. Default: 1m.
	WindowSize time.Duration
}

// Validate checks if the configuration is valid.
func (c *WindowLimiterConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.AnonymousLimit < 0 || c.AuthenticatedLimit < 0 || c.GlobalLimit < 0 {
		return errors.New("limits cannot be negative")
	}
	anon, auth, global := c.withDefaults()
	if anon > global || auth > global {
		return fmt.Errorf("per-client limits (%d, %d) cannot exceed global limit (%d)", anon, auth, global)
	}
	return nil
}

func (c *WindowLimiterConfig) withDefaults() (anon, auth, global int) {
	anon, auth, global = c.AnonymousLimit, c.AuthenticatedLimit, c.GlobalLimit
	if anon == 0 {
		anon = DefaultAnonymousLimit
	}
	if auth == 0 {
		auth = DefaultAuthenticatedLimit
	}
	if global == 0 {
		global = DefaultGlobalLimit
	}
	return anon, auth, global
}

// WindowLimiter is a fixed-window counter in Redis. Each request must fit in
// both its client's budget and the global budget; the check and increment run
// in one Lua script so concurrent servers cannot overshoot.
type WindowLimiter struct {
	redis      redis.Cmdable
	anonLimit  int
	authLimit  int
	global     int
	windowSize time.Duration
	now        func() time.Time
}

// consumeScript returns {allowed, clientUsed}.
var consumeScript = redis.NewScript(`
	local globalKey = KEYS[1]
	local clientKey = KEYS[2]
	local globalLimit = tonumber(ARGV[1])
	local clientLimit = tonumber(ARGV[2])
	local ttl = tonumber(ARGV[3])

	local globalUsed = tonumber(redis.call('GET', globalKey) or '0')
	local clientUsed = tonumber(redis.call('GET', clientKey) or '0')

	if globalUsed + 1 > globalLimit or clientUsed + 1 > clientLimit then
		return {0, clientUsed}
	end

	redis.call('INCR', globalKey)
	redis.call('EXPIRE', globalKey, ttl)
	redis.call('INCR', clientKey)
	redis.call('EXPIRE', clientKey, ttl)

	return {1, clientUsed + 1}
`)

// NewWindowLimiter creates a limiter with the given configuration.
func NewWindowLimiter(cfg *WindowLimiterConfig) (*WindowLimiter, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	anon, auth, global := cfg.withDefaults()
	window := cfg.WindowSize
	if window == 0 {
		window = DefaultWindowSize
	}

	return &WindowLimiter{
		redis:      cfg.Redis,
		anonLimit:  anon,
		authLimit:  auth,
		global:     global,
		windowSize: window,
		now:        time.Now,
	}, nil
}

// windowStart returns the current window aligned to the window size.
func (l *WindowLimiter) windowStart() time.Time {
	return l.now().Truncate(l.windowSize)
}

func (l *WindowLimiter) keys(windowStart time.Time, client string) (globalKey, clientKey string) {
	ts := strconv.FormatInt(windowStart.UnixMilli(), 10)
	return KeyPrefixGlobal + ts, KeyPrefixClient + client + ":" + ts
}

// LimitFor returns the per-window budget for a priority.
func (l *WindowLimiter) LimitFor(priority Priority) int {
	if priority == PriorityHigh {
		return l.authLimit
	}
	return l.anonLimit
}

// Allow consumes one request from key's budget. On a Redis error the request
// is allowed and the error returned so the caller can log it.
func (l *WindowLimiter) Allow(ctx context.Context, key string, priority Priority) (Decision, error) {
	start := l.windowStart()
	globalKey, clientKey := l.keys(start, key)
	limit := l.LimitFor(priority)

	ttl := int((2 * l.windowSize).Seconds())
	if ttl < 1 {
		ttl = 1
	}

	result, err := consumeScript.Run(ctx, l.redis, []string{globalKey, clientKey}, l.global, limit, ttl).Int64Slice()
	if err != nil {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, fmt.Errorf("rate limit script: %w", err)
	}

	used := int(result[1])
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{Allowed: result[0] == 1, Limit: limit, Remaining: remaining}
	if !d.Allowed {
		d.RetryAfter = l.retryAfter(start)
	}
	return d, nil
}

// retryAfter returns the time until the next window starts.
func (l *WindowLimiter) retryAfter(windowStart time.Time) time.Duration {
	wait := windowStart.Add(l.windowSize).Sub(l.now())
	if wait < 0 {
		wait = 0
	}
	return wait + time.Millisecond
}

// Usage returns how many requests key has made in the current window.
func (l *WindowLimiter) Usage(ctx context.Context, key string) (int, error) {
	_, clientKey := l.keys(l.windowStart(), key)
	n, err := l.redis.Get(ctx, clientKey).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
