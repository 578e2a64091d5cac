package constants

import "time"

const (
	// DefaultDNSTimeout bounds every individual DNS query.
	DefaultDNSTimeout = 5 * time.Second
	// DefaultRateWindow is the admission window for both operation classes.
	DefaultRateWindow = time.Minute
	// DefaultDNSCheckMaxRequests caps DNS checks per client per window.
	DefaultDNSCheckMaxRequests = 10
	// DefaultCalculateRiskMaxRequests caps scoring requests per client per window.
	DefaultCalculateRiskMaxRequests = 20
	// DefaultSweepInterval is how often expired rate windows are dropped.
	DefaultSweepInterval = 5 * time.Minute
)

const (
	// MaxRequestBodyBytes caps JSON request bodies.
	MaxRequestBodyBytes = 1 << 20
	// TopRecommendations is the length of the fix-first list.
	TopRecommendations = 3
)
