// Package resolver provides the TXT lookups the email-authentication checks
// depend on.
//
// Implementations translate transport-specific failures into the package
// sentinels below so callers can tell "no record" from "resolver trouble"
// without inspecting error strings.
package resolver

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound covers NXDOMAIN and NOERROR responses without TXT data.
	ErrNotFound = errors.New("dns: record not found")
	// ErrTimeout is returned when the query deadline expires.
	ErrTimeout = errors.New("dns: query timeout")
	// ErrServFail is a SERVFAIL or other temporary server failure.
	ErrServFail = errors.New("dns: server failure")
	// ErrRefused is a REFUSED response.
	ErrRefused = errors.New("dns: query refused")
)

// Resolver looks up TXT records. Each returned string is one record with its
// character-strings concatenated.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// IsNotFound reports whether err means the name has no TXT data.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTimeout reports whether err is a query timeout, including an expired
// context deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// ensureAbsolute ensures the name ends with a dot (FQDN format).
func ensureAbsolute(name string) string {
	if !strings.HasSuffix(name, ".") {
		return name + "."
	}
	return name
}
