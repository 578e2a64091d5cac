package checker

import (
	"time"

	"github.com/khanhnv2901/phishrisk/internal/scoring"
)

// Mechanism identifies one email-authentication mechanism.
type Mechanism string

const (
	MechanismSPF   Mechanism = "spf"
	MechanismDKIM  Mechanism = "dkim"
	MechanismDMARC Mechanism = "dmarc"
)

// DMARC policies.
const (
	PolicyNone       = "none"
	PolicyQuarantine = "quarantine"
	PolicyReject     = "reject"
)

// ConfidencePresenceOnly marks a DKIM finding that saw a key record but did
// not validate any signature.
const ConfidencePresenceOnly = "presence-only"

// Finding is the observed state of one mechanism. It is never cached.
type Finding struct {
	Exists     bool     `json:"exists"`
	Valid      bool     `json:"valid"`
	Policy     string   `json:"policy,omitempty"`
	Confidence string   `json:"confidence,omitempty"`
	Error      string   `json:"error,omitempty"`
	Record     string   `json:"record,omitempty"`
	Selectors  []string `json:"selectors,omitempty"`
}

// Enforced reports whether a DMARC finding asks receivers to act on failures.
func (f Finding) Enforced() bool {
	return f.Exists && (f.Policy == PolicyQuarantine || f.Policy == PolicyReject)
}

// Report holds the three findings for a domain.
type Report struct {
	Domain               string    `json:"domain"`
	OrganizationalDomain string    `json:"organizationalDomain,omitempty"`
	CheckedAt            time.Time `json:"checkedAt"`
	SPF                  Finding   `json:"spf"`
	DKIM                 Finding   `json:"dkim"`
	DMARC                Finding   `json:"dmarc"`
}

// RiskValues converts the findings into the technical questionnaire answers.
func (r Report) RiskValues() scoring.Answers {
	return scoring.Answers{
		scoring.Q6: riskOf(r.SPF.Exists && r.SPF.Valid),
		scoring.Q7: riskOf(r.DKIM.Exists && r.DKIM.Valid),
		scoring.Q8: riskOf(r.DMARC.Exists && r.DMARC.Valid),
		scoring.Q9: riskOf(r.DMARC.Enforced()),
	}
}

func riskOf(controlPresent bool) int {
	if controlPresent {
		return scoring.RiskNone
	}
	return scoring.RiskFull
}
