package checker

import (
	"fmt"
	"regexp"
	"strings"

	sharederrors "github.com/khanhnv2901/phishrisk/internal/shared/errors"
	"golang.org/x/net/publicsuffix"
)

const (
	maxDomainLength = 253
	maxLabelLength  = 63
	maxLabels       = 10
)

// Validation reasons returned to callers verbatim.
const (
	ReasonRequired          = "Domain is required"
	ReasonLength            = "Domain length must be between 1-253 characters"
	ReasonFormat            = "Invalid domain format"
	ReasonConsecutive       = "Domain cannot contain consecutive dots or hyphens"
	ReasonTooManyLabels     = "Domain has too many subdomains (max 10 levels)"
	ReasonLabelTooLong      = "Domain label exceeds 63 characters"
	ReasonLabelHyphenBounds = "Domain labels cannot start or end with hyphens"
)

var domainPattern = regexp.MustCompile(`^([a-z0-9_-]+\.)*[a-z0-9][a-z0-9_-]+\.[a-z]{2,24}$`)

// Domain is a sanitized, validated domain name. Values are only produced by
// NormalizeDomain.
type Domain string

func (d Domain) String() string { return string(d) }

// OrganizationalDomain returns the registrable domain according to the Public
// Suffix List, or the domain itself when it cannot be determined.
func (d Domain) OrganizationalDomain() string {
	org, err := publicsuffix.EffectiveTLDPlusOne(string(d))
	if err != nil {
		return string(d)
	}
	return org
}

// ValidationError explains why an input was rejected as a domain.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return sharederrors.ErrValidation }

// SanitizeDomain strips scheme, leading www., path, query, fragment and port
// from raw and lower-cases the result.
func SanitizeDomain(raw string) string {
	host := strings.ToLower(strings.TrimSpace(raw))
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

// ValidateDomain checks an already sanitized name and returns the first rule
// it breaks, or "" when it is acceptable.
func ValidateDomain(host string) string {
	switch {
	case host == "":
		return ReasonRequired
	case len(host) > maxDomainLength:
		return ReasonLength
	case !domainPattern.MatchString(host):
		return ReasonFormat
	case strings.Contains(host, "..") || strings.Contains(host, "--"):
		return ReasonConsecutive
	}

	labels := strings.Split(host, ".")
	if len(labels) > maxLabels {
		return ReasonTooManyLabels
	}
	for _, label := range labels {
		if len(label) > maxLabelLength {
			return ReasonLabelTooLong
		}
	}
	for _, label := range labels {
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return ReasonLabelHyphenBounds
		}
	}
	return ""
}

// NormalizeDomain sanitizes and validates raw. Failures are *ValidationError.
func NormalizeDomain(raw string) (Domain, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &ValidationError{Input: raw, Reason: ReasonRequired}
	}
	host := SanitizeDomain(raw)
	if reason := ValidateDomain(host); reason != "" {
		return "", &ValidationError{Input: raw, Reason: reason}
	}
	return Domain(host), nil
}

// MustDomain is NormalizeDomain for inputs known to be valid.
func MustDomain(raw string) Domain {
	d, err := NormalizeDomain(raw)
	if err != nil {
		panic(fmt.Sprintf("checker: %q: %v", raw, err))
	}
	return d
}
