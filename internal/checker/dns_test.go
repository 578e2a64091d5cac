package checker

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/khanhnv2901/phishrisk/internal/metrics"
	"github.com/khanhnv2901/phishrisk/internal/resolver"
	"github.com/khanhnv2901/phishrisk/internal/scoring"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestChecker(mock *resolver.MockResolver) *EmailAuthChecker {
	return &EmailAuthChecker{Resolver: mock, Timeout: 200 * time.Millisecond}
}

func TestEmailAuthChecker_Name(t *testing.T) {
	checker := &EmailAuthChecker{}
	if checker.Name() != "check email-auth" {
		t.Errorf("unexpected name %q", checker.Name())
	}
}

func TestVerifyFullyProtectedDomain(t *testing.T) {
	mock := &resolver.MockResolver{TXT: map[string][]string{
		"example.com.":                      {"google-site-verification=abc", "v=spf1 include:_spf.google.com -all"},
		"google._domainkey.example.com.":    {"v=DKIM1; k=rsa; p=MIGf"},
		"selector1._domainkey.example.com.": {"v=DKIM1; p=MIIB"},
		"_dmarc.example.com.":               {"v=DMARC1; p=reject; rua=mailto:d@example.com"},
	}}

	report := newTestChecker(mock).Verify(context.Background(), MustDomain("example.com"))

	if !report.SPF.Exists || !report.SPF.Valid || report.SPF.Record != "v=spf1 include:_spf.google.com -all" {
		t.Errorf("unexpected SPF finding: %+v", report.SPF)
	}
	if !report.DKIM.Exists || !report.DKIM.Valid || report.DKIM.Confidence != ConfidencePresenceOnly {
		t.Errorf("unexpected DKIM finding: %+v", report.DKIM)
	}
	if !slices.Equal(report.DKIM.Selectors, []string{"selector1", "google"}) {
		t.Errorf("selectors not in canonical order: %v", report.DKIM.Selectors)
	}
	if report.DMARC.Policy != PolicyReject || !report.DMARC.Valid {
		t.Errorf("unexpected DMARC finding: %+v", report.DMARC)
	}
	if report.Domain != "example.com" || report.OrganizationalDomain != "example.com" {
		t.Errorf("unexpected report domain fields: %+v", report)
	}

	want := scoring.Answers{scoring.Q6: 0, scoring.Q7: 0, scoring.Q8: 0, scoring.Q9: 0}
	if got := report.RiskValues(); !mapsEqual(got, want) {
		t.Errorf("RiskValues() = %v, want %v", got, want)
	}
}

func TestVerifyUnprotectedDomain(t *testing.T) {
	mock := &resolver.MockResolver{}
	report := newTestChecker(mock).Verify(context.Background(), MustDomain("bare.example"))

	if report.SPF.Exists || report.SPF.Error != "No SPF record found" {
		t.Errorf("unexpected SPF finding: %+v", report.SPF)
	}
	if report.DKIM.Exists || report.DKIM.Error != "No DKIM record found for common selectors" {
		t.Errorf("unexpected DKIM finding: %+v", report.DKIM)
	}
	if report.DMARC.Exists || report.DMARC.Error != "No DMARC record found" {
		t.Errorf("unexpected DMARC finding: %+v", report.DMARC)
	}

	for q, v := range report.RiskValues() {
		if v != scoring.RiskFull {
			t.Errorf("%s = %d, want 100", q, v)
		}
	}
	// 1 SPF + 8 DKIM + 1 DMARC
	if mock.Calls() != 10 {
		t.Errorf("expected 10 queries, got %d", mock.Calls())
	}
}

func TestVerifySPFWithoutAllIsInvalid(t *testing.T) {
	mock := &resolver.MockResolver{TXT: map[string][]string{
		"example.com.": {"v=spf1 include:_spf.example.net"},
	}}
	report := newTestChecker(mock).Verify(context.Background(), MustDomain("example.com"))

	if !report.SPF.Exists || report.SPF.Valid {
		t.Fatalf("SPF without all should exist but be invalid: %+v", report.SPF)
	}
	if report.RiskValues()[scoring.Q6] != scoring.RiskFull {
		t.Fatal("invalid SPF should carry full risk")
	}
}

func TestVerifyTXTWithoutSPFRecord(t *testing.T) {
	mock := &resolver.MockResolver{TXT: map[string][]string{
		"example.com.": {"ms=ms123456"},
	}}
	report := newTestChecker(mock).Verify(context.Background(), MustDomain("example.com"))
	if report.SPF.Exists || report.SPF.Valid || report.SPF.Error != "" {
		t.Fatalf("unexpected SPF finding: %+v", report.SPF)
	}
}

func TestVerifyDMARCPolicies(t *testing.T) {
	testCases := []struct {
		record   string
		policy   string
		enforced bool
	}{
		{record: "v=DMARC1; p=none", policy: PolicyNone},
		{record: "v=DMARC1; p=quarantine; pct=50", policy: PolicyQuarantine, enforced: true},
		{record: "v=DMARC1;p=REJECT", policy: PolicyReject, enforced: true},
		{record: "v=DMARC1; sp=reject; p=none", policy: PolicyNone},
		{record: "v=DMARC1; rua=mailto:x@example.com", policy: PolicyNone},
		{record: "v=DMARC1; p=bogus", policy: PolicyNone},
	}

	for _, tc := range testCases {
		t.Run(tc.record, func(t *testing.T) {
			mock := &resolver.MockResolver{TXT: map[string][]string{
				"_dmarc.example.com.": {tc.record},
			}}
			report := newTestChecker(mock).Verify(context.Background(), MustDomain("example.com"))

			if !report.DMARC.Exists || !report.DMARC.Valid || report.DMARC.Policy != tc.policy {
				t.Fatalf("unexpected DMARC finding: %+v", report.DMARC)
			}
			wantQ9 := scoring.RiskFull
			if tc.enforced {
				wantQ9 = scoring.RiskNone
			}
			values := report.RiskValues()
			if values[scoring.Q8] != scoring.RiskNone || values[scoring.Q9] != wantQ9 {
				t.Fatalf("q8/q9 = %d/%d, want 0/%d", values[scoring.Q8], values[scoring.Q9], wantQ9)
			}
		})
	}
}

func TestVerifyTimeoutsAndFailures(t *testing.T) {
	mock := &resolver.MockResolver{
		TXT: map[string][]string{
			"k1._domainkey.example.com.": {"v=DKIM1; p=abc"},
		},
		Slow: []string{"example.com."},
		Fail: []string{"_dmarc.example.com."},
	}
	checker := &EmailAuthChecker{Resolver: mock, Timeout: 20 * time.Millisecond}

	start := time.Now()
	report := checker.Verify(context.Background(), MustDomain("example.com"))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("verify took %v; probes should be bounded by their timeout", elapsed)
	}

	if report.SPF.Error != "DNS query timeout" {
		t.Errorf("SPF error = %q, want timeout", report.SPF.Error)
	}
	if report.DMARC.Exists || report.DMARC.Error != resolver.ErrServFail.Error() {
		t.Errorf("DMARC finding = %+v, want server failure", report.DMARC)
	}
	if !report.DKIM.Exists || !slices.Equal(report.DKIM.Selectors, []string{"k1"}) {
		t.Errorf("one slow mechanism should not affect others: %+v", report.DKIM)
	}
}

func TestVerifyProbesRunInParallel(t *testing.T) {
	slow := []string{"example.com.", "_dmarc.example.com."}
	for _, selector := range DefaultDKIMSelectors {
		slow = append(slow, selector+"._domainkey.example.com.")
	}
	const timeout = 50 * time.Millisecond
	checker := &EmailAuthChecker{Resolver: &resolver.MockResolver{Slow: slow}, Timeout: timeout}

	start := time.Now()
	report := checker.Verify(context.Background(), MustDomain("example.com"))
	elapsed := time.Since(start)

	if sequential := time.Duration(len(slow)) * timeout; elapsed >= sequential/2 {
		t.Fatalf("verify took %v for %d timed-out queries; sequential cost would be %v", elapsed, len(slow), sequential)
	}
	if report.SPF.Exists || report.SPF.Error != "DNS query timeout" {
		t.Errorf("SPF finding = %+v, want timeout", report.SPF)
	}
	if report.DMARC.Exists || report.DMARC.Error != "DNS query timeout" {
		t.Errorf("DMARC finding = %+v, want timeout", report.DMARC)
	}
	if report.DKIM.Exists || report.DKIM.Error != "No DKIM record found for common selectors" {
		t.Errorf("DKIM finding = %+v, want not found", report.DKIM)
	}
}

func TestVerifyIgnoresCallerCancellation(t *testing.T) {
	mock := &resolver.MockResolver{
		TXT:   map[string][]string{"example.com.": {"v=spf1 -all"}},
		Delay: 20 * time.Millisecond,
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := newTestChecker(mock).Verify(ctx, MustDomain("example.com"))
	if !report.SPF.Valid {
		t.Fatalf("probe should complete despite cancelled caller: %+v", report.SPF)
	}
}

func TestVerifyRecoversProbePanic(t *testing.T) {
	mock := &resolver.MockResolver{
		TXT:   map[string][]string{"_dmarc.example.com.": {"v=DMARC1; p=quarantine"}},
		Panic: []string{"example.com.", "mail._domainkey.example.com."},
	}
	report := newTestChecker(mock).Verify(context.Background(), MustDomain("example.com"))

	if report.SPF.Exists || report.SPF.Error == "" {
		t.Errorf("panicking SPF probe should become an error finding: %+v", report.SPF)
	}
	if report.DKIM.Exists {
		t.Errorf("panicking DKIM selector should count as absent: %+v", report.DKIM)
	}
	if report.DMARC.Policy != PolicyQuarantine {
		t.Errorf("DMARC unaffected by other panics: %+v", report.DMARC)
	}
}

func TestVerifyCustomSelectors(t *testing.T) {
	mock := &resolver.MockResolver{TXT: map[string][]string{
		"corp2024._domainkey.example.com.": {"v=DKIM1; p=abc"},
	}}
	checker := newTestChecker(mock)
	checker.Selectors = []string{"corp2024"}

	report := checker.Verify(context.Background(), MustDomain("example.com"))
	if !slices.Equal(report.DKIM.Selectors, []string{"corp2024"}) {
		t.Fatalf("unexpected selectors %v", report.DKIM.Selectors)
	}
}

func TestVerifyRecordsMetrics(t *testing.T) {
	m := metrics.New()
	mock := &resolver.MockResolver{TXT: map[string][]string{
		"_dmarc.example.com.": {"v=DMARC1; p=none"},
	}}
	checker := newTestChecker(mock)
	checker.Metrics = m

	checker.Verify(context.Background(), MustDomain("example.com"))

	if got := testutil.ToFloat64(m.DNSQueriesTotal.WithLabelValues("dkim", "not_found")); got != 8 {
		t.Errorf("dkim not_found queries = %v, want 8", got)
	}
	if got := testutil.ToFloat64(m.DNSFindings.WithLabelValues("dmarc", "true", "true")); got != 1 {
		t.Errorf("dmarc findings = %v, want 1", got)
	}
}

func TestCheckRejectsInvalidTarget(t *testing.T) {
	mock := &resolver.MockResolver{}
	result := newTestChecker(mock).Check(context.Background(), "not a domain")
	if result.Error != ReasonFormat || result.Report != nil {
		t.Fatalf("unexpected result %+v", result)
	}
	if mock.Calls() != 0 {
		t.Fatal("invalid target must not reach the resolver")
	}
}

func mapsEqual(a, b scoring.Answers) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
