// Package assessment implements the phishing-exposure operations: DNS
// verification of a domain, risk calculation from questionnaire answers, and
// ranked recommendations for a scored assessment.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/khanhnv2901/phishrisk/internal/checker"
	"github.com/khanhnv2901/phishrisk/internal/metrics"
	"github.com/khanhnv2901/phishrisk/internal/ratelimit"
	"github.com/khanhnv2901/phishrisk/internal/recommend"
	"github.com/khanhnv2901/phishrisk/internal/scoring"
	sharederrors "github.com/khanhnv2901/phishrisk/internal/shared/errors"
	"go.uber.org/zap"
)

// Verifier observes a domain's email-authentication posture.
type Verifier interface {
	Verify(ctx context.Context, domain checker.Domain) checker.Report
}

// RateLimitError is returned when a client exhausted its window.
type RateLimitError struct {
	Operation  ratelimit.Operation
	RetryAfter time.Duration
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: retry after %s", e.Operation, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return sharederrors.ErrRateLimited }

// RetryAfterSeconds is RetryAfter in whole seconds.
func (e *RateLimitError) RetryAfterSeconds() int {
	return int(e.RetryAfter / time.Second)
}

// ErrMissingResponses is returned when a risk calculation has no answers.
var ErrMissingResponses = fmt.Errorf("%w: User responses are required", sharederrors.ErrMissingRequired)

// RecommendationSet is the fix-first view of an assessment.
type RecommendationSet struct {
	Recommendations    []recommend.Recommendation `json:"recommendations"`
	TopRecommendations []recommend.Recommendation `json:"topRecommendations"`
	Summary            recommend.Summary          `json:"summary"`
}

// Service runs the assessment operations. A nil limiter disables admission
// control, which the CLI relies on.
type Service struct {
	verifier Verifier
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithLimiter enables per-client admission control.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithMetrics records assessment metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the clock used for retry-after computation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new assessment service.
func NewService(verifier Verifier, opts ...Option) *Service {
	s := &Service{
		verifier: verifier,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckDomain verifies SPF, DKIM and DMARC for rawDomain on behalf of
// clientKey. Errors are *RateLimitError or *checker.ValidationError.
func (s *Service) CheckDomain(ctx context.Context, clientKey, rawDomain string) (checker.Report, error) {
	if err := s.admit(clientKey, ratelimit.OperationDNSCheck); err != nil {
		return checker.Report{}, err
	}

	domain, err := checker.NormalizeDomain(rawDomain)
	if err != nil {
		return checker.Report{}, err
	}

	report := s.verifier.Verify(ctx, domain)
	s.logger.Debug("dns_check_completed",
		zap.String("domain", report.Domain),
		zap.Bool("spf", report.SPF.Exists),
		zap.Bool("dkim", report.DKIM.Exists),
		zap.Bool("dmarc", report.DMARC.Exists),
	)
	return report, nil
}

// CalculateRisk scores the user's answers, filling q6-q9 from technical
// evidence or at maximum risk when there is none.
func (s *Service) CalculateRisk(ctx context.Context, clientKey string, user, technical scoring.Answers) (scoring.Assessment, error) {
	if err := s.admit(clientKey, ratelimit.OperationCalculateRisk); err != nil {
		return scoring.Assessment{}, err
	}
	if user == nil {
		return scoring.Assessment{}, ErrMissingResponses
	}

	result, err := scoring.Assess(user, technical)
	if err != nil {
		return scoring.Assessment{}, err
	}

	s.metrics.ObserveAssessment(string(result.RiskLevel), result.TotalScore, len(technical) > 0)
	return result, nil
}

// Recommendations ranks the gaps in a complete set of answers.
func (s *Service) Recommendations(ctx context.Context, clientKey string, responses scoring.Answers) (RecommendationSet, error) {
	if err := s.admit(clientKey, ratelimit.OperationCalculateRisk); err != nil {
		return RecommendationSet{}, err
	}
	if responses == nil {
		return RecommendationSet{}, fmt.Errorf("%w: questionResponses are required", sharederrors.ErrMissingRequired)
	}

	scored, err := scoring.Score(responses)
	if err != nil {
		return RecommendationSet{}, err
	}

	all := recommend.Generate(scored)
	if all == nil {
		all = []recommend.Recommendation{}
	}
	return RecommendationSet{
		Recommendations:    all,
		TopRecommendations: all[:min(recommend.TopN, len(all))],
		Summary:            recommend.Summarize(scored),
	}, nil
}

func (s *Service) admit(clientKey string, op ratelimit.Operation) error {
	if s.limiter == nil {
		return nil
	}
	decision := s.limiter.Admit(clientKey, op)
	if decision.Allowed {
		return nil
	}
	return &RateLimitError{
		Operation:  op,
		RetryAfter: decision.RetryAfter(s.now()),
		ResetAt:    decision.ResetAt,
	}
}

// IsClientError reports whether err was caused by the request rather than by
// the service.
func IsClientError(err error) bool {
	return errors.Is(err, sharederrors.ErrValidation) ||
		errors.Is(err, sharederrors.ErrInvalidInput) ||
		errors.Is(err, sharederrors.ErrMissingRequired)
}
