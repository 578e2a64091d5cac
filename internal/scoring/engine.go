package scoring

import (
	"fmt"
	"sort"
	"strings"

	sharederrors "github.com/khanhnv2901/phishrisk/internal/shared/errors"
)

// ErrInvalidInput is wrapped by every rejection from Score and Assess.
var ErrInvalidInput = sharederrors.ErrInvalidInput

// RiskLevel is the tier derived from a total score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Answers maps question codes to risk values (0 or 100).
type Answers map[Question]int

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for q, v := range a {
		out[q] = v
	}
	return out
}

// Assessment is the scored result of a complete set of answers.
type Assessment struct {
	TotalScore        int            `json:"totalScore"`
	RiskLevel         RiskLevel      `json:"riskLevel"`
	PillarBreakdown   map[Pillar]int `json:"pillarBreakdown"`
	QuestionResponses Answers        `json:"questionResponses"`
}

// LevelFor maps a total score onto its tier. Band boundaries are inclusive on
// the upper end: 30 is LOW, 60 is MEDIUM.
func LevelFor(score int) RiskLevel {
	switch {
	case score <= 30:
		return RiskLow
	case score <= 60:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// ApplyTechnicalEvidence merges DNS-derived evidence into the user's answers.
//
// Without technical evidence the four infrastructure-authentication codes are
// forced to maximum risk. With evidence, each of those codes takes the
// evidence value, and a code the evidence omits is still forced to maximum
// risk. Whatever the user supplied for q6-q9 is discarded either way.
func ApplyTechnicalEvidence(user, technical Answers) Answers {
	all := user.Clone()
	for _, q := range TechnicalQuestions {
		v, ok := technical[q]
		if !ok {
			v = RiskFull
		}
		all[q] = v
	}
	return all
}

// Assess validates the caller's answers and technical evidence, applies the
// risk-assumed defaults and scores the result.
func Assess(user, technical Answers) (Assessment, error) {
	if err := ValidateAnswers(user); err != nil {
		return Assessment{}, err
	}
	if err := ValidateTechnical(technical); err != nil {
		return Assessment{}, err
	}
	return Score(ApplyTechnicalEvidence(user, technical))
}

// Score computes the assessment for a complete 13-code answer map.
func Score(complete Answers) (Assessment, error) {
	if err := ValidateAnswers(complete); err != nil {
		return Assessment{}, err
	}
	if missing := missingQuestions(complete); len(missing) > 0 {
		return Assessment{}, fmt.Errorf("%w: missing responses for: %s", ErrInvalidInput, joinQuestions(missing))
	}

	total := weightedCeil(weights, Questions, complete)
	breakdown := make(map[Pillar]int, len(Pillars))
	for _, p := range Pillars {
		breakdown[p] = weightedCeil(weights, pillarQuestions[p], complete)
	}

	return Assessment{
		TotalScore:        total,
		RiskLevel:         LevelFor(total),
		PillarBreakdown:   breakdown,
		QuestionResponses: complete.Clone(),
	}, nil
}

// ValidateAnswers rejects unknown codes and values other than 0 or 100.
// Every unknown code is reported, sorted.
func ValidateAnswers(a Answers) error {
	var unknown []Question
	for q := range a {
		if !q.Valid() {
			unknown = append(unknown, q)
		}
	}
	if len(unknown) > 0 {
		sortQuestions(unknown)
		return fmt.Errorf("%w: invalid question IDs: %s", ErrInvalidInput, joinQuestions(unknown))
	}
	for _, q := range Questions {
		v, ok := a[q]
		if !ok {
			continue
		}
		if v != RiskNone && v != RiskFull {
			return fmt.Errorf("%w: invalid value for %s: must be 0 or 100", ErrInvalidInput, q)
		}
	}
	return nil
}

// ValidateTechnical checks that technical evidence only names q6-q9 with
// valid values.
func ValidateTechnical(t Answers) error {
	var foreign []Question
	for q := range t {
		if !q.Technical() {
			foreign = append(foreign, q)
		}
	}
	if len(foreign) > 0 {
		sortQuestions(foreign)
		return fmt.Errorf("%w: technical checks only accept %s: got %s",
			ErrInvalidInput, joinQuestions(TechnicalQuestions), joinQuestions(foreign))
	}
	return ValidateAnswers(t)
}

// weightedCeil returns ceil(Σ weight·value) over codes, computed exactly in
// basis points.
func weightedCeil(table map[Question]int, codes []Question, answers Answers) int {
	var sum int64
	for _, q := range codes {
		sum += int64(table[q]) * int64(answers[q])
	}
	return int((sum + basisPoints - 1) / basisPoints)
}

func missingQuestions(a Answers) []Question {
	var missing []Question
	for _, q := range Questions {
		if _, ok := a[q]; !ok {
			missing = append(missing, q)
		}
	}
	return missing
}

// sortQuestions orders known codes canonically and unknown ones after them
// lexically.
func sortQuestions(qs []Question) {
	index := make(map[Question]int, len(Questions))
	for i, q := range Questions {
		index[q] = i
	}
	sort.Slice(qs, func(i, j int) bool {
		ii, iok := index[qs[i]]
		jj, jok := index[qs[j]]
		switch {
		case iok && jok:
			return ii < jj
		case iok != jok:
			return iok
		default:
			return qs[i] < qs[j]
		}
	})
}

func joinQuestions(qs []Question) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = string(q)
	}
	return strings.Join(parts, ", ")
}
