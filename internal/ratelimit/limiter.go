// Package ratelimit implements per-client, per-operation admission control.
//
// Each (client, operation) pair owns a fixed window: the first request opens
// it with a count of one and a reset time of now+window, later requests
// increment the count up to the operation's ceiling, and once the reset time
// has passed the next request replaces the window outright. A background
// sweep drops expired windows so the table stays bounded.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/khanhnv2901/phishrisk/internal/metrics"
	"github.com/khanhnv2901/phishrisk/internal/shared/constants"
	sharederrors "github.com/khanhnv2901/phishrisk/internal/shared/errors"
	"github.com/zeebo/xxh3"
)

// Operation names a rate-limited operation class.
type Operation string

const (
	// OperationDNSCheck is the network-bound DNS verification.
	OperationDNSCheck Operation = "dns-check"
	// OperationCalculateRisk is the CPU-bound scoring path.
	OperationCalculateRisk Operation = "calculate-risk"
)

// Rule bounds one operation.
type Rule struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultRules gives DNS checks a tighter ceiling than scoring.
func DefaultRules() map[Operation]Rule {
	return map[Operation]Rule{
		OperationDNSCheck: {
			MaxRequests: constants.DefaultDNSCheckMaxRequests,
			Window:      constants.DefaultRateWindow,
		},
		OperationCalculateRisk: {
			MaxRequests: constants.DefaultCalculateRiskMaxRequests,
			Window:      constants.DefaultRateWindow,
		},
	}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// RetryAfter is the wait until the window resets, rounded up to whole
// seconds and never negative.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return time.Duration(math.Ceil(wait.Seconds())) * time.Second
}

// Config configures a Limiter.
type Config struct {
	// Rules per operation. Nil means DefaultRules.
	Rules map[Operation]Rule
	// Now overrides the clock, for tests.
	Now func() time.Time
	// Metrics is optional.
	Metrics *metrics.Metrics
}

const shardCount = 32

type window struct {
	count   int
	resetAt time.Time
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// Limiter is an in-memory window table. Instances are independent; nothing is
// process-global.
type Limiter struct {
	rules   map[Operation]Rule
	now     func() time.Time
	metrics *metrics.Metrics
	shards  [shardCount]shard
}

// New creates a Limiter. Rules with a non-positive ceiling or window panic.
func New(cfg Config) *Limiter {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	copied := make(map[Operation]Rule, len(rules))
	for op, rule := range rules {
		if rule.MaxRequests <= 0 || rule.Window <= 0 {
			panic(fmt.Sprintf("ratelimit: invalid rule for %s: %+v", op, rule))
		}
		copied[op] = rule
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	l := &Limiter{rules: copied, now: now, metrics: cfg.Metrics}
	for i := range l.shards {
		l.shards[i].windows = make(map[string]*window)
	}
	return l
}

// Rule returns the configured rule for op.
func (l *Limiter) Rule(op Operation) (Rule, bool) {
	rule, ok := l.rules[op]
	return rule, ok
}

// Admit records a request for (clientKey, op) and reports whether it fits in
// the current window. An operation without a rule is a programming error and
// panics.
func (l *Limiter) Admit(clientKey string, op Operation) Decision {
	rule, ok := l.rules[op]
	if !ok {
		panic(fmt.Errorf("%w: %q", sharederrors.ErrUnknownOperation, op))
	}

	key := string(op) + "|" + clientKey
	s := l.shardFor(key)
	now := l.now()

	s.mu.Lock()
	w, exists := s.windows[key]
	var d Decision
	switch {
	case !exists || now.After(w.resetAt):
		w = &window{count: 1, resetAt: now.Add(rule.Window)}
		s.windows[key] = w
		d = Decision{Allowed: true, Remaining: rule.MaxRequests - 1, ResetAt: w.resetAt}
	case w.count < rule.MaxRequests:
		w.count++
		d = Decision{Allowed: true, Remaining: rule.MaxRequests - w.count, ResetAt: w.resetAt}
	default:
		d = Decision{Allowed: false, Remaining: 0, ResetAt: w.resetAt}
	}
	s.mu.Unlock()

	l.metrics.ObserveAdmission(string(op), d.Allowed)
	return d
}

// Sweep deletes windows whose reset time has passed and returns how many were
// removed.
func (l *Limiter) Sweep() int {
	now := l.now()
	removed, remaining := 0, 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		for key, w := range s.windows {
			if now.After(w.resetAt) {
				delete(s.windows, key)
				removed++
			}
		}
		remaining += len(s.windows)
		s.mu.Unlock()
	}
	l.metrics.ObserveSweep(removed, remaining)
	return removed
}

// Len returns the number of live windows.
func (l *Limiter) Len() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.windows)
		s.mu.Unlock()
	}
	return n
}

// Run sweeps every interval until ctx is done. Sweeps lock one shard at a
// time, so admissions on other shards proceed while a sweep runs.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = constants.DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (l *Limiter) shardFor(key string) *shard {
	return &l.shards[xxh3.HashString(key)%shardCount]
}
