package checker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/khanhnv2901/phishrisk/internal/metrics"
	"github.com/khanhnv2901/phishrisk/internal/resolver"
	"github.com/khanhnv2901/phishrisk/internal/shared/constants"
	"golang.org/x/sync/errgroup"
)

// DefaultDKIMSelectors are the selectors probed when none are configured.
var DefaultDKIMSelectors = []string{
	"default",
	"selector1",
	"selector2",
	"google",
	"k1",
	"s1",
	"dkim",
	"mail",
}

const (
	errNoSPF      = "No SPF record found"
	errNoDKIM     = "No DKIM record found for common selectors"
	errNoDMARC    = "No DMARC record found"
	errDNSTimeout = "DNS query timeout"

	spfPrefix   = "v=spf1"
	dmarcPrefix = "v=DMARC1"
)

// EmailAuthChecker verifies SPF, DKIM and DMARC for a domain.
type EmailAuthChecker struct {
	Resolver  resolver.Resolver
	Timeout   time.Duration // per query
	Selectors []string      // DKIM selectors, DefaultDKIMSelectors when empty
	Metrics   *metrics.Metrics
}

// Verify queries all three mechanisms concurrently and waits for every probe
// to settle. Probes are detached from ctx cancellation and bounded only by
// their own timeout. Resolver failures are reported inside the findings.
func (c *EmailAuthChecker) Verify(ctx context.Context, domain Domain) Report {
	probeCtx := context.WithoutCancel(ctx)
	report := Report{
		Domain:               domain.String(),
		OrganizationalDomain: domain.OrganizationalDomain(),
		CheckedAt:            time.Now().UTC(),
	}

	var g errgroup.Group
	g.Go(func() error {
		report.SPF = c.guard(MechanismSPF, func() Finding { return c.checkSPF(probeCtx, domain) })
		return nil
	})
	g.Go(func() error {
		report.DKIM = c.guard(MechanismDKIM, func() Finding { return c.checkDKIM(probeCtx, domain) })
		return nil
	})
	g.Go(func() error {
		report.DMARC = c.guard(MechanismDMARC, func() Finding { return c.checkDMARC(probeCtx, domain) })
		return nil
	})
	_ = g.Wait()

	return report
}

// Check implements Checker for the batch runner.
func (c *EmailAuthChecker) Check(ctx context.Context, target string) CheckResult {
	domain, err := NormalizeDomain(target)
	if err != nil {
		return CheckResult{Target: target, Error: err.Error()}
	}
	report := c.Verify(ctx, domain)
	return CheckResult{Target: target, Report: &report}
}

// Name returns the checker name.
func (c *EmailAuthChecker) Name() string {
	return "check email-auth"
}

func (c *EmailAuthChecker) checkSPF(ctx context.Context, domain Domain) Finding {
	records, err := c.lookup(ctx, MechanismSPF, domain.String())
	if err != nil {
		return Finding{Error: lookupError(err, errNoSPF)}
	}
	record, ok := firstWithPrefix(records, spfPrefix)
	if !ok {
		return Finding{}
	}
	// Any "all" term counts as a terminal mechanism.
	return Finding{Exists: true, Valid: strings.Contains(record, "all"), Record: record}
}

func (c *EmailAuthChecker) checkDKIM(ctx context.Context, domain Domain) Finding {
	selectors := c.Selectors
	if len(selectors) == 0 {
		selectors = DefaultDKIMSelectors
	}

	found := make([]bool, len(selectors))
	var g errgroup.Group
	for i, selector := range selectors {
		i, selector := i, selector
		g.Go(func() error {
			defer func() { _ = recover() }()
			name := selector + "._domainkey." + domain.String()
			if _, err := c.lookup(ctx, MechanismDKIM, name); err == nil {
				found[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	var present []string
	for i, ok := range found {
		if ok {
			present = append(present, selectors[i])
		}
	}
	if len(present) == 0 {
		return Finding{Error: errNoDKIM}
	}
	return Finding{
		Exists:     true,
		Valid:      true,
		Confidence: ConfidencePresenceOnly,
		Selectors:  present,
	}
}

func (c *EmailAuthChecker) checkDMARC(ctx context.Context, domain Domain) Finding {
	records, err := c.lookup(ctx, MechanismDMARC, "_dmarc."+domain.String())
	if err != nil {
		return Finding{Error: lookupError(err, errNoDMARC)}
	}
	record, ok := firstWithPrefix(records, dmarcPrefix)
	if !ok {
		return Finding{}
	}
	return Finding{Exists: true, Valid: true, Policy: parseDMARCPolicy(record), Record: record}
}

func (c *EmailAuthChecker) lookup(ctx context.Context, mech Mechanism, name string) ([]string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultDNSTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	records, err := c.Resolver.LookupTXT(ctx, name)
	c.Metrics.ObserveDNSQuery(string(mech), queryOutcome(err), time.Since(start))
	return records, err
}

// guard turns a panicking probe into an error finding.
func (c *EmailAuthChecker) guard(mech Mechanism, probe func() Finding) (f Finding) {
	defer func() {
		if r := recover(); r != nil {
			f = Finding{Error: fmt.Sprintf("%s check failed: %v", strings.ToUpper(string(mech)), r)}
		}
		c.Metrics.ObserveFinding(string(mech), f.Exists, f.Valid)
	}()
	return probe()
}

// parseDMARCPolicy reads the p tag. Missing or unknown values mean none.
func parseDMARCPolicy(record string) string {
	for _, tag := range strings.Split(record, ";") {
		name, value, ok := strings.Cut(tag, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "p") {
			continue
		}
		switch policy := strings.ToLower(strings.TrimSpace(value)); policy {
		case PolicyNone, PolicyQuarantine, PolicyReject:
			return policy
		}
		return PolicyNone
	}
	return PolicyNone
}

func firstWithPrefix(records []string, prefix string) (string, bool) {
	for _, r := range records {
		if strings.HasPrefix(r, prefix) {
			return r, true
		}
	}
	return "", false
}

func lookupError(err error, notFound string) string {
	switch {
	case resolver.IsNotFound(err):
		return notFound
	case resolver.IsTimeout(err):
		return errDNSTimeout
	default:
		return err.Error()
	}
}

func queryOutcome(err error) string {
	switch {
	case err == nil:
		return "found"
	case resolver.IsNotFound(err):
		return "not_found"
	case resolver.IsTimeout(err):
		return "timeout"
	default:
		return "error"
	}
}
