package resolver

import (
	"context"
	"slices"
	"sync/atomic"
	"time"
)

// MockResolver is a Resolver used for testing. TXT maps FQDNs (with trailing
// dot) to their records.
type MockResolver struct {
	TXT map[string][]string

	// Fail lists FQDNs that return ErrServFail.
	Fail []string

	// Slow lists FQDNs that block until the context is done.
	Slow []string

	// Delay is applied to every lookup before answering.
	Delay time.Duration

	// Panic lists FQDNs whose lookup panics.
	Panic []string

	calls atomic.Int64
}

var _ Resolver = (*MockResolver)(nil)

// Calls returns how many lookups have been issued.
func (r *MockResolver) Calls() int64 {
	return r.calls.Load()
}

// LookupTXT returns the configured records for name.
func (r *MockResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	r.calls.Add(1)
	fqdn := ensureAbsolute(name)

	if slices.Contains(r.Panic, fqdn) {
		panic("mock resolver: lookup of " + fqdn)
	}
	if slices.Contains(r.Slow, fqdn) {
		<-ctx.Done()
		return nil, ErrTimeout
	}
	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return nil, ErrTimeout
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if slices.Contains(r.Fail, fqdn) {
		return nil, ErrServFail
	}

	records, ok := r.TXT[fqdn]
	if !ok || len(records) == 0 {
		return nil, ErrNotFound
	}
	return append([]string(nil), records...), nil
}
