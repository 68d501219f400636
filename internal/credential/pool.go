// Package credential implements a thread-safe, self-rotating pool of
// interchangeable credentials (API keys, region strings, ...), with
// per-(credential, model) sliding-window rate limiting and cooling.
//
// The mutating section (rate-limit check, window trim, timestamp append)
// and the rotation loop share a single mutex rather than splitting
// cooling checks into a separate fast path.
package credential

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/fangyuan99/uni-api/internal/ratelimit"
)

// Algorithm selects how Next() walks the credential list.
type Algorithm string

const (
	RoundRobin    Algorithm = "round_robin"
	Random        Algorithm = "random"
	FixedPriority Algorithm = "fixed_priority"
)

// ErrExhausted is returned by Next when every credential in the pool is
// rate-limited or cooling; callers should surface this as a 429.
var ErrExhausted = errors.New("credential: too many requests")

// RateLimits maps a model-key pattern (or "default") to the windows that
// apply to it. A model key is matched by exact string, then by substring
// (skipping the "default" key), then falls back to "default" or, absent
// that, ratelimit.Default.
type RateLimits map[string][]ratelimit.Window

// Pool is a rotating set of credentials shared across concurrent requests.
type Pool[T comparable] struct {
	mu         sync.Mutex
	items      []T
	index      int
	algorithm  Algorithm
	rateLimits RateLimits

	// requests[item][modelKey] holds the timestamps of recent requests
	// still inside the widest configured window for that model key.
	requests map[T]map[string][]time.Time
	cooling  map[T]time.Time

	now func() time.Time
}

// New builds a Pool over items, scheduled per algorithm, with the given
// per-model rate-limit table. An unrecognized algorithm falls back to
// RoundRobin.
func New[T comparable](items []T, algorithm Algorithm, rateLimits RateLimits) *Pool[T] {
	cp := make([]T, len(items))
	copy(cp, items)

	switch algorithm {
	case RoundRobin, FixedPriority:
		// keep order
	case Random:
		rand.Shuffle(len(cp), func(i, j int) { cp[i], cp[j] = cp[j], cp[i] })
	default:
		algorithm = RoundRobin
	}

	if rateLimits == nil {
		rateLimits = RateLimits{}
	}

	return &Pool[T]{
		items:      cp,
		algorithm:  algorithm,
		rateLimits: rateLimits,
		requests:   make(map[T]map[string][]time.Time),
		cooling:    make(map[T]time.Time),
		now:        time.Now,
	}
}

// Count returns the number of credentials in the pool.
func (p *Pool[T]) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// SetCooling puts item into cooldown for the given duration. A zero-value
// item is treated as a no-op.
func (p *Pool[T]) SetCooling(item T, d time.Duration) {
	var zero T
	if item == zero {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cooling[item] = p.now().Add(d)
}

// Next returns the next eligible credential for model, rotating scheduling
// state and recording the request against the rate-limit window. Returns
// ErrExhausted if a full pass finds every credential cooling or rate
// limited.
func (p *Pool[T]) Next(model string) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	if len(p.items) == 0 {
		return zero, fmt.Errorf("credential: pool is empty")
	}

	if p.algorithm == FixedPriority {
		p.index = 0
	}

	start := p.index
	for {
		item := p.items[p.index]
		p.index = (p.index + 1) % len(p.items)

		if !p.isRateLimitedLocked(item, model) {
			return item, nil
		}

		if p.index == start {
			return zero, ErrExhausted
		}
	}
}

// AfterNextCurrent returns the credential most recently handed out by
// Next, i.e. the one "current" for the request in flight.
func (p *Pool[T]) AfterNextCurrent() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.items)
	idx := ((p.index-1)%n + n) % n
	return p.items[idx]
}

// isRateLimitedLocked checks cooling and the sliding rate-limit windows for
// (item, model), recording a new timestamp as a side effect when the
// credential is NOT limited. Must be called with p.mu held.
func (p *Pool[T]) isRateLimitedLocked(item T, model string) bool {
	now := p.now()

	if until, ok := p.cooling[item]; ok && now.Before(until) {
		return true
	}

	modelKey := model
	if modelKey == "" {
		modelKey = "default"
	}

	windows := p.resolveWindows(modelKey)

	if p.requests[item] == nil {
		p.requests[item] = make(map[string][]time.Time)
	}
	history := p.requests[item][modelKey]

	maxWindow := 0 * time.Second
	for _, w := range windows {
		windowDur := time.Duration(w.Seconds) * time.Second
		cutoff := now.Add(-windowDur)

		count := 0
		for _, ts := range history {
			if ts.After(cutoff) {
				count++
			}
		}
		if count >= w.Count {
			return true
		}
		if windowDur > maxWindow {
			maxWindow = windowDur
		}
	}

	// Trim to the widest window, then record this request.
	cutoff := now.Add(-maxWindow)
	trimmed := history[:0]
	for _, ts := range history {
		if ts.After(cutoff) {
			trimmed = append(trimmed, ts)
		}
	}
	trimmed = append(trimmed, now)
	p.requests[item][modelKey] = trimmed

	return false
}

// resolveWindows finds the rate-limit windows for modelKey: exact match,
// then substring match against any non-"default" key, then "default", then
// the package default.
func (p *Pool[T]) resolveWindows(modelKey string) []ratelimit.Window {
	if w, ok := p.rateLimits[modelKey]; ok {
		return w
	}
	for pattern, w := range p.rateLimits {
		if pattern == "default" {
			continue
		}
		if containsSubstring(modelKey, pattern) {
			return w
		}
	}
	if w, ok := p.rateLimits["default"]; ok {
		return w
	}
	return ratelimit.Default
}

func containsSubstring(s, substr string) bool {
	if substr == "" {
		return false
	}
	return indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}
