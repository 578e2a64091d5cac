package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// StdResolver implements Resolver on the standard library's net.Resolver.
type StdResolver struct {
	resolver *net.Resolver
}

// NewStdResolver uses the host resolver. When nameservers are given, queries
// are dialed to the first one instead.
func NewStdResolver(nameservers []string, dialTimeout time.Duration) *StdResolver {
	if len(nameservers) == 0 {
		return &StdResolver{resolver: net.DefaultResolver}
	}

	server := withPorts(nameservers)[0]
	dialer := &net.Dialer{Timeout: dialTimeout}
	return &StdResolver{
		resolver: &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, server)
			},
		},
	}
}

// LookupTXT retrieves TXT records using the standard library.
func (r *StdResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	records, err := r.resolver.LookupTXT(ctx, strings.TrimSuffix(name, "."))
	if err != nil {
		return nil, convertError(err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// convertError converts standard library DNS errors to package errors.
func convertError(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		switch {
		case dnsErr.IsNotFound:
			return ErrNotFound
		case dnsErr.IsTimeout:
			return ErrTimeout
		case dnsErr.IsTemporary:
			return ErrServFail
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fmt.Errorf("dns lookup failed: %w", err)
}
