package application

import (
	"fmt"
	"time"

	"github.com/khanhnv2901/phishrisk/internal/application/assessment"
	"github.com/khanhnv2901/phishrisk/internal/checker"
	"github.com/khanhnv2901/phishrisk/internal/metrics"
	"github.com/khanhnv2901/phishrisk/internal/ratelimit"
	"github.com/khanhnv2901/phishrisk/internal/resolver"
	"go.uber.org/zap"
)

// Resolver backends.
const (
	ResolverMiekg = "miekg"
	ResolverStd   = "std"
)

// Options configures the container.
type Options struct {
	// DNS
	ResolverKind string
	Nameservers  []string
	DNSTimeout   time.Duration
	DNSQPS       float64
	Selectors    []string

	// Admission control. A nil map disables rate limiting.
	Limits map[ratelimit.Operation]ratelimit.Rule

	Logger *zap.Logger
	// DisableMetrics skips collector registration, for one-shot CLI commands.
	DisableMetrics bool
}

// Container holds all application services and their dependencies
// This is a simple dependency injection container
type Container struct {
	Resolver resolver.Resolver
	Checker  *checker.EmailAuthChecker
	Limiter  *ratelimit.Limiter
	Metrics  *metrics.Metrics

	AssessmentService *assessment.Service
}

// NewContainer creates a new application service container
func NewContainer(opts Options) (*Container, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var m *metrics.Metrics
	if !opts.DisableMetrics {
		m = metrics.New()
	}

	var base resolver.Resolver
	switch opts.ResolverKind {
	case "", ResolverMiekg:
		base = resolver.NewDNSResolver(resolver.Config{
			Nameservers: opts.Nameservers,
			Timeout:     opts.DNSTimeout,
		})
	case ResolverStd:
		base = resolver.NewStdResolver(opts.Nameservers, opts.DNSTimeout)
	default:
		return nil, fmt.Errorf("unknown resolver %q (want %s or %s)", opts.ResolverKind, ResolverMiekg, ResolverStd)
	}
	res := resolver.NewThrottled(base, opts.DNSQPS, max(1, int(opts.DNSQPS)))

	emailAuth := &checker.EmailAuthChecker{
		Resolver:  res,
		Timeout:   opts.DNSTimeout,
		Selectors: opts.Selectors,
		Metrics:   m,
	}

	serviceOpts := []assessment.Option{
		assessment.WithMetrics(m),
		assessment.WithLogger(logger),
	}

	var limiter *ratelimit.Limiter
	if opts.Limits != nil {
		limiter = ratelimit.New(ratelimit.Config{Rules: opts.Limits, Metrics: m})
		serviceOpts = append(serviceOpts, assessment.WithLimiter(limiter))
	}

	return &Container{
		Resolver:          res,
		Checker:           emailAuth,
		Limiter:           limiter,
		Metrics:           m,
		AssessmentService: assessment.NewService(emailAuth, serviceOpts...),
	}, nil
}
