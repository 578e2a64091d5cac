package application

import (
	"testing"
	"time"

	"github.com/khanhnv2901/phishrisk/internal/ratelimit"
	"go.uber.org/zap/zaptest"
)

func TestNewContainer(t *testing.T) {
	c, err := NewContainer(Options{
		Nameservers: []string{"127.0.0.1:5353"},
		DNSTimeout:  2 * time.Second,
		DNSQPS:      50,
		Limits:      ratelimit.DefaultRules(),
		Logger:      zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	if c.AssessmentService == nil || c.Checker == nil || c.Limiter == nil || c.Metrics == nil {
		t.Fatalf("container not fully wired: %+v", c)
	}
	if c.Checker.Timeout != 2*time.Second {
		t.Errorf("checker timeout = %v", c.Checker.Timeout)
	}
	if rule, ok := c.Limiter.Rule(ratelimit.OperationDNSCheck); !ok || rule.MaxRequests != 10 {
		t.Errorf("dns-check rule = %+v", rule)
	}
}

func TestNewContainerWithoutLimitsOrMetrics(t *testing.T) {
	c, err := NewContainer(Options{ResolverKind: ResolverStd, DisableMetrics: true})
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	if c.Limiter != nil || c.Metrics != nil {
		t.Fatal("limiter and metrics should be disabled")
	}
}

func TestNewContainerUnknownResolver(t *testing.T) {
	if _, err := NewContainer(Options{ResolverKind: "doh"}); err == nil {
		t.Fatal("expected error for unknown resolver")
	}
}
