package checker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CheckResult is the outcome of checking a single target.
type CheckResult struct {
	Target       string  `json:"target"`
	Report       *Report `json:"report,omitempty"`
	ResponseTime float64 `json:"response_time_ms,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// Checker is the interface that all check implementations must satisfy
type Checker interface {
	// Check performs the actual check logic for a single target
	Check(ctx context.Context, target string) CheckResult

	// Name returns the name of this checker (e.g., "check email-auth")
	Name() string
}

// ProgressFunc is called once per finished target.
type ProgressFunc func(target string, result CheckResult, duration float64) error

// Runner orchestrates the execution of checks with concurrency and rate limiting
type Runner struct {
	Concurrency int           // Maximum number of concurrent checks
	RateLimit   int           // Targets started per second, 0 for unlimited
	Timeout     time.Duration // Timeout for each check, 0 for none
}

// RunChecks checks every target with a bounded worker pool. Results are
// returned in input order.
func (r *Runner) RunChecks(ctx context.Context, targets []string, checker Checker, progressFn ProgressFunc) []CheckResult {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if r.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.RateLimit), r.RateLimit)
	}

	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]CheckResult, len(targets))

	for i, target := range targets {
		i, target := i, target
		wg.Add(1)
		go func() {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := limiter.Wait(ctx); err != nil {
				results[i] = CheckResult{Target: target, Error: err.Error()}
				return
			}

			start := time.Now()

			checkCtx, cancel := ctx, context.CancelFunc(func() {})
			if r.Timeout > 0 {
				checkCtx, cancel = context.WithTimeout(ctx, r.Timeout)
			}
			defer cancel()

			result := checker.Check(checkCtx, target)
			duration := time.Since(start)
			result.ResponseTime = float64(duration.Microseconds()) / 1000

			if progressFn != nil {
				_ = progressFn(target, result, duration.Seconds())
			}

			results[i] = result
		}()
	}

	wg.Wait()
	return results
}
