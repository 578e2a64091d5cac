package scoring

// Question identifies one of the 13 assessment questions.
type Question string

const (
	Q1  Question = "q1"  // Regular phishing awareness training
	Q2  Question = "q2"  // Phishing simulations in last 12 months
	Q3  Question = "q3"  // Safe reporting culture
	Q4  Question = "q4"  // Controls updated after incidents
	Q5  Question = "q5"  // Unique passwords enforced
	Q6  Question = "q6"  // SPF configured
	Q7  Question = "q7"  // DKIM enabled
	Q8  Question = "q8"  // DMARC enabled
	Q9  Question = "q9"  // DMARC policy enforced (quarantine/reject)
	Q10 Question = "q10" // MFA enforced on email accounts
	Q11 Question = "q11" // Phone verification for banking changes
	Q12 Question = "q12" // Dual approval for large payments
	Q13 Question = "q13" // Cross-channel verification for requests
)

// Risk values an answer may carry.
const (
	RiskNone = 0
	RiskFull = 100
)

// basisPoints is the denominator of the weight table.
const basisPoints = 10000

// Questions lists every question in canonical order.
var Questions = []Question{Q1, Q2, Q3, Q4, Q5, Q6, Q7, Q8, Q9, Q10, Q11, Q12, Q13}

// TechnicalQuestions are the DNS-verifiable infrastructure codes.
var TechnicalQuestions = []Question{Q6, Q7, Q8, Q9}

// weights holds each question's share of the total score in basis points.
// Pillar subtotals are 4500, 3500 and 2000.
var weights = map[Question]int{
	Q1: 1000, Q2: 1000, Q3: 800, Q4: 900, Q5: 800,
	Q6: 700, Q7: 700, Q8: 900, Q9: 600, Q10: 600,
	Q11: 800, Q12: 600, Q13: 600,
}

// Weight returns the question's weight as a fraction of 1.
func Weight(q Question) float64 {
	return float64(weights[q]) / basisPoints
}

// WeightBasisPoints returns the question's weight in basis points, or 0 for an
// unknown code.
func WeightBasisPoints(q Question) int {
	return weights[q]
}

// Valid reports whether q is one of the 13 known codes.
func (q Question) Valid() bool {
	_, ok := weights[q]
	return ok
}

// Technical reports whether q is backed by DNS evidence.
func (q Question) Technical() bool {
	switch q {
	case Q6, Q7, Q8, Q9:
		return true
	}
	return false
}

// Pillar is a named, weighted group of questions.
type Pillar string

const (
	PillarHuman          Pillar = "human"
	PillarInfrastructure Pillar = "infrastructure"
	PillarFinancial      Pillar = "financial"
)

// Pillars lists the pillars in reporting order.
var Pillars = []Pillar{PillarHuman, PillarInfrastructure, PillarFinancial}

var pillarQuestions = map[Pillar][]Question{
	PillarHuman:          {Q1, Q2, Q3, Q4, Q5},
	PillarInfrastructure: {Q6, Q7, Q8, Q9, Q10},
	PillarFinancial:      {Q11, Q12, Q13},
}

// Questions returns the pillar's member codes.
func (p Pillar) Questions() []Question {
	return append([]Question(nil), pillarQuestions[p]...)
}

// PillarOf returns the pillar a question belongs to.
func PillarOf(q Question) (Pillar, bool) {
	for _, p := range Pillars {
		for _, member := range pillarQuestions[p] {
			if member == q {
				return p, true
			}
		}
	}
	return "", false
}

// PillarInfo is the human-readable description of a pillar.
type PillarInfo struct {
	Pillar      Pillar `json:"pillar"`
	Name        string `json:"name"`
	Weight      int    `json:"weight"`
	Description string `json:"description"`
}

// PillarMetadata describes every pillar in reporting order.
func PillarMetadata() []PillarInfo {
	return []PillarInfo{
		{
			Pillar:      PillarHuman,
			Name:        "Human Vulnerability",
			Weight:      45,
			Description: "Staff awareness, training, and security culture",
		},
		{
			Pillar:      PillarInfrastructure,
			Name:        "Email Infrastructure",
			Weight:      35,
			Description: "Technical email security controls (SPF, DKIM, DMARC, MFA)",
		},
		{
			Pillar:      PillarFinancial,
			Name:        "Financial Process Controls",
			Weight:      20,
			Description: "Verification procedures for financial transactions",
		},
	}
}
