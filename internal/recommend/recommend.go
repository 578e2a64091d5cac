// Package recommend ranks the gaps in an assessment into a fix-first list and
// an executive summary.
package recommend

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/khanhnv2901/phishrisk/internal/scoring"
	"github.com/khanhnv2901/phishrisk/internal/shared/constants"
)

// TopN is the length of the fix-first list.
const TopN = constants.TopRecommendations

// Recommendation is one failing question with its remediation guidance.
type Recommendation struct {
	QuestionID scoring.Question `json:"questionId"`
	Metadata
	Weight float64 `json:"weight"`
}

// Summary is the executive view of an assessment.
type Summary struct {
	OverallRisk      scoring.RiskLevel `json:"overallRisk"`
	TotalScore       int               `json:"totalScore"`
	WeakestArea      scoring.Pillar    `json:"weakestArea"`
	WeakestAreaScore int               `json:"weakestAreaScore"`
	CriticalIssues   int               `json:"criticalIssues"`
	TotalIssues      int               `json:"totalIssues"`
	QuickWins        int               `json:"quickWins"`
	EstimatedFixTime string            `json:"estimatedFixTime"`
}

// Generate returns a recommendation for every question answered at full risk,
// highest impact first, then highest weight. Ties keep question order.
func Generate(a scoring.Assessment) []Recommendation {
	var recs []Recommendation
	for _, q := range scoring.Questions {
		if a.QuestionResponses[q] != scoring.RiskFull {
			continue
		}
		meta, ok := catalog[q]
		if !ok {
			continue
		}
		recs = append(recs, Recommendation{QuestionID: q, Metadata: meta, Weight: scoring.Weight(q)})
	}

	slices.SortStableFunc(recs, func(x, y Recommendation) int {
		if c := cmp.Compare(y.Impact.rank(), x.Impact.rank()); c != 0 {
			return c
		}
		return cmp.Compare(scoring.WeightBasisPoints(y.QuestionID), scoring.WeightBasisPoints(x.QuestionID))
	})
	return recs
}

// Top returns at most n recommendations from the head of the ranking.
func Top(a scoring.Assessment, n int) []Recommendation {
	recs := Generate(a)
	if n < len(recs) {
		recs = recs[:max(n, 0)]
	}
	return recs
}

// Summarize builds the executive summary.
func Summarize(a scoring.Assessment) Summary {
	recs := Generate(a)

	s := Summary{
		OverallRisk: a.RiskLevel,
		TotalScore:  a.TotalScore,
		TotalIssues: len(recs),
	}

	// Highest pillar score is the weakest area; the first pillar wins ties.
	for i, p := range scoring.Pillars {
		if score := a.PillarBreakdown[p]; i == 0 || score > s.WeakestAreaScore {
			s.WeakestArea, s.WeakestAreaScore = p, score
		}
	}

	for _, r := range recs {
		if r.Impact == ImpactCritical {
			s.CriticalIssues++
		}
		if r.Cost == CostFree {
			s.QuickWins++
		}
	}
	s.EstimatedFixTime = estimateFixTime(recs[:min(TopN, len(recs))])
	return s
}

var leadingNumber = regexp.MustCompile(`^\s*(\d+)`)

func estimateFixTime(top []Recommendation) string {
	var immediate, slow bool
	for _, r := range top {
		tf := r.Recommendation.Timeframe
		if strings.Contains(strings.ToLower(tf), "immediate") {
			immediate = true
		}
		if m := leadingNumber.FindStringSubmatch(tf); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= 30 {
				slow = true
			}
		}
	}

	switch {
	case slow:
		return "4-8 weeks"
	case immediate:
		return "1-2 weeks"
	default:
		return "2-4 weeks"
	}
}
