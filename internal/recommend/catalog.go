package recommend

import "github.com/khanhnv2901/phishrisk/internal/scoring"

// Impact ranks how much closing a gap reduces exposure.
type Impact string

const (
	ImpactCritical Impact = "CRITICAL"
	ImpactHigh     Impact = "HIGH"
	ImpactMedium   Impact = "MEDIUM"
	ImpactLow      Impact = "LOW"
)

func (i Impact) rank() int {
	switch i {
	case ImpactCritical:
		return 4
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	case ImpactLow:
		return 1
	}
	return 0
}

// Cost is the rough spend needed to close a gap.
type Cost string

const (
	CostFree Cost = "FREE"
	CostLow  Cost = "LOW"
)

// Guidance is the remediation plan for one question.
type Guidance struct {
	Title     string   `json:"title"`
	Actions   []string `json:"actions"`
	Timeframe string   `json:"timeframe"`
	Resources []string `json:"resources"`
}

// Metadata describes a question and how to fix it.
type Metadata struct {
	Question       string         `json:"question"`
	Pillar         scoring.Pillar `json:"pillar"`
	Impact         Impact         `json:"impact"`
	Cost           Cost           `json:"cost"`
	Recommendation Guidance       `json:"recommendation"`
}

// Lookup returns the metadata for q.
func Lookup(q scoring.Question) (Metadata, bool) {
	m, ok := catalog[q]
	return m, ok
}

var catalog = map[scoring.Question]Metadata{
	scoring.Q1: {
		Question: "Regular phishing awareness training for staff",
		Pillar:   scoring.PillarHuman,
		Impact:   ImpactHigh,
		Cost:     CostLow,
		Recommendation: Guidance{
			Title: "Implement Monthly Phishing Awareness Training",
			Actions: []string{
				"Schedule 15-minute monthly security briefings",
				"Use free resources from SABRIC or StaySafeOnline",
				"Focus on South African threats: invoice fraud, CEO impersonation",
				"Make training relevant to roles (finance, HR, IT)",
			},
			Timeframe: "30 days to launch",
			Resources: []string{"SABRIC Cybersecurity Hub", "KnowBe4 free resources"},
		},
	},
	scoring.Q2: {
		Question: "Phishing simulations conducted in last 12 months",
		Pillar:   scoring.PillarHuman,
		Impact:   ImpactHigh,
		Cost:     CostLow,
		Recommendation: Guidance{
			Title: "Run Quarterly Phishing Simulations",
			Actions: []string{
				"Use free tools like Gophish (self-hosted)",
				"Test with realistic SA scenarios (SARS, banking, courier)",
				"Track click rates without punishing staff",
				"Use results to tailor training content",
			},
			Timeframe: "60 days to first test",
			Resources: []string{"Gophish (open-source)", "PhishMe simulators"},
		},
	},
	scoring.Q3: {
		Question: "Safe reporting culture for suspicious emails",
		Pillar:   scoring.PillarHuman,
		Impact:   ImpactMedium,
		Cost:     CostFree,
		Recommendation: Guidance{
			Title: "Create Simple Phishing Reporting Process",
			Actions: []string{
				"Set up dedicated email: security@yourdomain (or alias)",
				`Add "Report Phishing" button to email client (if possible)`,
				"Acknowledge every report within 24 hours",
				"Never punish staff for reporting false positives",
			},
			Timeframe: "7 days to implement",
			Resources: []string{"Email alias setup", "Internal communication campaign"},
		},
	},
	scoring.Q4: {
		Question: "Controls/training updated after incidents",
		Pillar:   scoring.PillarHuman,
		Impact:   ImpactMedium,
		Cost:     CostFree,
		Recommendation: Guidance{
			Title: "Establish Incident Review Process",
			Actions: []string{
				"Document every phishing incident (template: who, what, impact)",
				"Review monthly: what worked, what failed",
				"Update training content based on real attacks",
				"Share lessons learned (anonymized) with all staff",
			},
			Timeframe: "Immediate",
			Resources: []string{"Incident response template"},
		},
	},
	scoring.Q5: {
		Question: "Unique passwords enforced (policy or manager)",
		Pillar:   scoring.PillarHuman,
		Impact:   ImpactHigh,
		Cost:     CostLow,
		Recommendation: Guidance{
			Title: "Deploy Password Manager Organization-Wide",
			Actions: []string{
				"Choose Bitwarden (free for small teams) or similar",
				"Mandate use for all work accounts",
				"Provide setup training (30 minutes per user)",
				"Block password reuse at system level if possible",
			},
			Timeframe: "30 days to full deployment",
			Resources: []string{"Bitwarden", "LastPass", "KeePass"},
		},
	},
	scoring.Q6: {
		Question: "SPF configured",
		Pillar:   scoring.PillarInfrastructure,
		Impact:   ImpactHigh,
		Cost:     CostFree,
		Recommendation: Guidance{
			Title: "Configure SPF Record Immediately",
			Actions: []string{
				`Add TXT record to DNS: "v=spf1 include:_spf.yourmailprovider.com ~all"`,
				"Ask your email provider for exact SPF string",
				"Test with dmarcian.com or mxtoolbox.com",
				"Update within 24-48 hours (DNS propagation)",
			},
			Timeframe: "24-48 hours",
			Resources: []string{"dmarcian.com", "MXToolbox SPF checker"},
		},
	},
	scoring.Q7: {
		Question: "DKIM enabled",
		Pillar:   scoring.PillarInfrastructure,
		Impact:   ImpactHigh,
		Cost:     CostFree,
		Recommendation: Guidance{
			Title: "Enable DKIM Email Signing",
			Actions: []string{
				"Contact your email provider (Microsoft 365, Google Workspace, etc.)",
				"Request DKIM activation and DNS records",
				"Add provided TXT records to your domain DNS",
				"Verify with mail-tester.com",
			},
			Timeframe: "48 hours",
			Resources: []string{"Email provider documentation", "mail-tester.com"},
		},
	},
	scoring.Q8: {
		Question: "DMARC enabled",
		Pillar:   scoring.PillarInfrastructure,
		Impact:   ImpactCritical,
		Cost:     CostFree,
		Recommendation: Guidance{
			Title: "Deploy DMARC Policy (Start with Monitoring)",
			Actions: []string{
				`Add DNS TXT record: "_dmarc.yourdomain.com" → "v=DMARC1; p=none; rua=mailto:dmarc@yourdomain.com"`,
				"Start with p=none to monitor without blocking",
				"Review reports weekly for 30 days",
				"Graduate to p=quarantine, then p=reject",
			},
			Timeframe: "1 hour to enable monitoring",
			Resources: []string{"DMARC.org", "dmarcian.com"},
		},
	},
	scoring.Q9: {
		Question: "DMARC policy enforced (quarantine/reject)",
		Pillar:   scoring.PillarInfrastructure,
		Impact:   ImpactCritical,
		Cost:     CostFree,
		Recommendation: Guidance{
			Title: "Enforce DMARC Policy to Quarantine/Reject",
			Actions: []string{
				"After 30 days of p=none, upgrade to p=quarantine",
				"Monitor for legitimate email blocks (check rua reports)",
				"Fix any SPF/DKIM failures identified",
				"Final step: upgrade to p=reject for full protection",
			},
			Timeframe: "90 days (gradual escalation)",
			Resources: []string{"DMARC monitoring tools", "Email authentication reports"},
		},
	},
	scoring.Q10: {
		Question: "MFA enforced on email accounts",
		Pillar:   scoring.PillarInfrastructure,
		Impact:   ImpactCritical,
		Cost:     CostFree,
		Recommendation: Guidance{
			Title: "Mandate MFA for All Email Accounts",
			Actions: []string{
				"Enable MFA in Microsoft 365, Google Workspace, or email provider",
				"Use authenticator apps (Microsoft/Google Authenticator)",
				"Enforce at admin level (disable bypass options)",
				"Provide user training: setup takes 5 minutes per person",
			},
			Timeframe: "14 days to full enforcement",
			Resources: []string{"Microsoft Authenticator", "Google Authenticator"},
		},
	},
	scoring.Q11: {
		Question: "Phone verification for banking changes",
		Pillar:   scoring.PillarFinancial,
		Impact:   ImpactCritical,
		Cost:     CostFree,
		Recommendation: Guidance{
			Title: "Implement Phone Verification for Banking Changes",
			Actions: []string{
				"Policy: All banking detail changes require phone confirmation",
				"Call back using independently verified number (not from email)",
				"Use pre-approved contact list (updated annually)",
				"Document every verification (date, time, who called)",
			},
			Timeframe: "Immediate policy change",
			Resources: []string{"Policy template", "Verification log spreadsheet"},
		},
	},
	scoring.Q12: {
		Question: "Dual approval for payments > R10,000",
		Pillar:   scoring.PillarFinancial,
		Impact:   ImpactHigh,
		Cost:     CostFree,
		Recommendation: Guidance{
			Title: "Require Dual Approval for Large Payments",
			Actions: []string{
				"Set banking threshold at R10,000 (adjust for your risk)",
				"Require two authorized signatories (different people)",
				"Use banking app with dual authorization",
				"Review high-value payments weekly",
			},
			Timeframe: "Immediate (update banking mandates)",
			Resources: []string{"Bank authorization forms", "Payment approval matrix"},
		},
	},
	scoring.Q13: {
		Question: "Cross-channel verification for requests",
		Pillar:   scoring.PillarFinancial,
		Impact:   ImpactHigh,
		Cost:     CostFree,
		Recommendation: Guidance{
			Title: "Verify Financial Requests on Second Channel",
			Actions: []string{
				"Email request → verify by phone call",
				"WhatsApp request → verify by email or in-person",
				"Never act on urgent payment requests without verification",
				`Train staff: "If it's urgent, it's suspicious"`,
			},
			Timeframe: "Immediate policy + training",
			Resources: []string{"Verification protocol document", "Staff awareness poster"},
		},
	},
}
