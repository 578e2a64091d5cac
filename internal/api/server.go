package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/phishrisk/internal/api/middleware"
	"github.com/khanhnv2901/phishrisk/internal/application/assessment"
	"github.com/khanhnv2901/phishrisk/internal/checker"
	"github.com/khanhnv2901/phishrisk/internal/metrics"
	"github.com/khanhnv2901/phishrisk/internal/ratelimit"
	"github.com/khanhnv2901/phishrisk/internal/scoring"
	"github.com/khanhnv2901/phishrisk/internal/shared/constants"
	sharederrors "github.com/khanhnv2901/phishrisk/internal/shared/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AssessmentService is the application layer behind the API.
type AssessmentService interface {
	CheckDomain(ctx context.Context, clientKey, rawDomain string) (checker.Report, error)
	CalculateRisk(ctx context.Context, clientKey string, user, technical scoring.Answers) (scoring.Assessment, error)
	Recommendations(ctx context.Context, clientKey string, responses scoring.Answers) (assessment.RecommendationSet, error)
}

type Config struct {
	Assessments AssessmentService
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	Version     string
	CORSOrigins []string // Allowed CORS origins (empty = allow all)
	RateLimit   int      // Requests per second per IP (0 = disabled)
	RateBurst   int      // Burst size for rate limiter
	Now         func() time.Time
}

type Server struct {
	cfg      Config
	mux      *http.ServeMux
	routes   map[string]bool
	limiters *rateLimiterMap
	handler  http.Handler
}

type dnsCheckRequest struct {
	Domain string `json:"domain"`
}

type calculateRiskRequest struct {
	UserResponses   scoring.Answers `json:"userResponses"`
	TechnicalChecks scoring.Answers `json:"technicalChecks,omitempty"`
}

type recommendationsRequest struct {
	QuestionResponses scoring.Answers `json:"questionResponses"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type pillarResponse struct {
	scoring.PillarInfo
	Questions []scoring.Question `json:"questions"`
}

type rateLimitResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

var rateLimitMessages = map[ratelimit.Operation]string{
	ratelimit.OperationDNSCheck:      "Too many DNS checks. Please try again later.",
	ratelimit.OperationCalculateRisk: "Too many calculation requests. Please try again later.",
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	srv := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		routes:   make(map[string]bool),
		limiters: newRateLimiterMap(),
	}
	srv.registerRoutes()
	// Middleware chain: RequestID -> Recover -> Logging -> RateLimit -> CORS -> Handler
	srv.handler = middleware.RequestID(srv.withRecover(srv.withLogging(srv.withRateLimit(srv.withCORS(srv.mux)))))
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	// Version 1 API routes (primary) with unversioned aliases
	for _, prefix := range []string{"/api/v1", "/api"} {
		s.handle(prefix+"/dns-check", s.handleDNSCheck)
		s.handle(prefix+"/calculate-risk", s.handleCalculateRisk)
		s.handle(prefix+"/recommendations", s.handleRecommendations)
		s.handle(prefix+"/health", s.handleHealth)
		s.handle(prefix+"/pillars", s.handlePillars)
	}
	s.routes["/metrics"] = true
	s.mux.Handle("/metrics", s.cfg.Metrics.Handler())
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.routes[pattern] = true
	s.mux.Handle(pattern, h)
}

func (s *Server) handleDNSCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	var req dnsCheckRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	report, err := s.cfg.Assessments.CheckDomain(r.Context(), ClientKey(r), req.Domain)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCalculateRisk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	var req calculateRiskRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	result, err := s.cfg.Assessments.CalculateRisk(r.Context(), ClientKey(r), req.UserResponses, req.TechnicalChecks)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	var req recommendationsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	set, err := s.cfg.Assessments.Recommendations(r.Context(), ClientKey(r), req.QuestionResponses)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   s.cfg.Version,
		Timestamp: s.cfg.Now().UTC(),
	})
}

func (s *Server) handlePillars(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	infos := scoring.PillarMetadata()
	out := make([]pillarResponse, len(infos))
	for i, info := range infos {
		out[i] = pillarResponse{PillarInfo: info, Questions: info.Pillar.Questions()}
	}
	writeJSON(w, http.StatusOK, out)
}

// ClientKey identifies the caller: the first X-Forwarded-For entry when
// present, otherwise the host part of the remote address.
func ClientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rlErr *assessment.RateLimitError
	switch {
	case errors.As(err, &rlErr):
		s.writeRateLimited(w, r, rlErr)
	case assessment.IsClientError(err):
		s.writeError(w, r, http.StatusBadRequest, err)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request, rlErr *assessment.RateLimitError) {
	s.requestLogger(r).Warn("rate_limit_exceeded",
		zap.String("client", ClientKey(r)),
		zap.String("operation", string(rlErr.Operation)),
		zap.Duration("retry_after", rlErr.RetryAfter),
	)
	seconds := rlErr.RetryAfterSeconds()
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeJSON(w, http.StatusTooManyRequests, rateLimitResponse{
		Error:      "Rate limit exceeded",
		Message:    rateLimitMessages[rlErr.Operation],
		RetryAfter: seconds,
	})
}

func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip rate limiting if disabled
		if s.cfg.RateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := ClientKey(r)
		limiter := s.limiters.getLimiter(clientIP, s.cfg.RateLimit, s.cfg.RateBurst)
		if !limiter.Allow() {
			s.requestLogger(r).Warn("global_rate_limit_exceeded", zap.String("client_ip", clientIP))
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, http.StatusTooManyRequests, sharederrors.ErrRateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if len(s.cfg.CORSOrigins) > 0 {
			allowOrigin = ""
			for _, allowedOrigin := range s.cfg.CORSOrigins {
				if allowedOrigin == origin {
					allowOrigin = origin
					break
				}
			}
		}

		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			w.Header().Set("Access-Control-Expose-Headers", "Retry-After, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")
			if allowOrigin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)

		duration := time.Since(start)
		s.cfg.Metrics.ObserveHTTP(s.routeLabel(r.URL.Path), strconv.Itoa(lrw.statusCode), duration)
		s.cfg.Logger.Info("http_request",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", duration),
			zap.Int64("bytes", lrw.bytesWritten),
		)
	})
}

// routeLabel bounds metric cardinality to registered routes.
func (s *Server) routeLabel(path string) string {
	if s.routes[path] {
		return path
	}
	return "other"
}

// loggingResponseWriter wraps http.ResponseWriter to capture status code and bytes written
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	// Sanitize error messages to prevent information disclosure
	msg := err.Error()

	// For 5xx errors, return generic message and log details server-side
	if status >= 500 {
		s.requestLogger(r).Error("internal_server_error",
			zap.Error(err),
			zap.Int("status", status),
		)
		msg = "internal server error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger creates a logger with request context (request ID, method, path)
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if s.cfg.Logger == nil {
		return zap.NewNop()
	}
	return s.cfg.Logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, sharederrors.ErrUnsupportedMethod)
}

// rateLimiterMap manages per-IP token buckets. Idle buckets are dropped
// opportunistically on access.
type rateLimiterMap struct {
	mu          sync.Mutex
	limiters    map[string]*ipLimiter
	lastCleanup time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	ipLimiterIdle        = 5 * time.Minute
	ipLimiterCleanupTick = time.Minute
)

func newRateLimiterMap() *rateLimiterMap {
	return &rateLimiterMap{
		limiters:    make(map[string]*ipLimiter),
		lastCleanup: time.Now(),
	}
}

func (m *rateLimiterMap) getLimiter(ip string, rps, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.lastCleanup) > ipLimiterCleanupTick {
		for key, l := range m.limiters {
			if now.Sub(l.lastSeen) > ipLimiterIdle {
				delete(m.limiters, key)
			}
		}
		m.lastCleanup = now
	}

	if burst <= 0 {
		burst = rps
	}
	limiter, exists := m.limiters[ip]
	if !exists {
		limiter = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		m.limiters[ip] = limiter
	}
	limiter.lastSeen = now
	return limiter.limiter
}
