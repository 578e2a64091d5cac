package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/khanhnv2901/phishrisk/internal/application"
	"github.com/khanhnv2901/phishrisk/internal/application/assessment"
	"github.com/khanhnv2901/phishrisk/internal/checker"
	"github.com/khanhnv2901/phishrisk/internal/scoring"
	"github.com/spf13/cobra"
)

// cliClientKey identifies local runs to the service; the CLI runs without
// admission control so the value only shows up in logs.
const cliClientKey = "cli"

type assessOptions struct {
	AnswersFile string
	Domain      string
	JSON        bool
}

var assessOpts assessOptions

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Score questionnaire answers and print the fix-first list",
	Long: `Score a completed questionnaire. With --domain the SPF, DKIM and DMARC
answers come from live DNS; without it they are assumed to be at maximum risk.

The answers file is JSON, either a flat object ({"q1": 0, "q2": 100, ...})
or the API request shape ({"userResponses": {...}}).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		answers, err := loadAnswers(assessOpts.AnswersFile)
		if err != nil {
			return err
		}

		opts := cliConfig.containerOptions()
		opts.Logger = appLogger()
		opts.DisableMetrics = true
		container, err := application.NewContainer(opts)
		if err != nil {
			return err
		}
		return runAssessment(cmd.Context(), cmd.OutOrStdout(), container.AssessmentService, answers, assessOpts)
	},
}

type assessReport struct {
	DNSCheck        *checker.Report              `json:"dnsCheck,omitempty"`
	Assessment      scoring.Assessment           `json:"assessment"`
	Recommendations assessment.RecommendationSet `json:"recommendations"`
}

func loadAnswers(path string) (scoring.Answers, error) {
	if path == "" {
		return nil, fmt.Errorf("--answers is required")
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) // #nosec G304 -- path is supplied by the operator.
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read answers: %w", err)
	}
	return parseAnswers(data)
}

func parseAnswers(data []byte) (scoring.Answers, error) {
	var wrapped struct {
		UserResponses scoring.Answers `json:"userResponses"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.UserResponses != nil {
		return wrapped.UserResponses, nil
	}

	var flat scoring.Answers
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("failed to parse answers: %w", err)
	}
	return flat, nil
}

func runAssessment(ctx context.Context, out io.Writer, svc *assessment.Service, answers scoring.Answers, opts assessOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var report assessReport
	var technical scoring.Answers
	if opts.Domain != "" {
		dnsReport, err := svc.CheckDomain(ctx, cliClientKey, opts.Domain)
		if err != nil {
			return err
		}
		report.DNSCheck = &dnsReport
		technical = dnsReport.RiskValues()
	}

	result, err := svc.CalculateRisk(ctx, cliClientKey, answers, technical)
	if err != nil {
		return err
	}
	report.Assessment = result

	recs, err := svc.Recommendations(ctx, cliClientKey, result.QuestionResponses)
	if err != nil {
		return err
	}
	report.Recommendations = recs

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printAssessment(out, report)
	return nil
}

func printAssessment(out io.Writer, report assessReport) {
	if report.DNSCheck != nil {
		printCheckResult(out, checker.CheckResult{Target: report.DNSCheck.Domain, Report: report.DNSCheck})
	}

	a := report.Assessment
	fmt.Fprintf(out, "Risk score: %d/100 (%s)\n", a.TotalScore, formatRiskLevel(a.RiskLevel))
	for _, p := range scoring.PillarMetadata() {
		fmt.Fprintf(out, "  %-22s %3d  (weight %d%%)\n", p.Name, a.PillarBreakdown[p.Pillar], p.Weight)
	}

	s := report.Recommendations.Summary
	fmt.Fprintf(out, "\nIssues: %d (%d critical, %d quick wins)\n", s.TotalIssues, s.CriticalIssues, s.QuickWins)
	if s.TotalIssues == 0 {
		fmt.Fprintf(out, "%s No gaps found\n", colorSuccess("✓"))
		return
	}
	fmt.Fprintf(out, "Weakest area: %s (%d)\n", s.WeakestArea, s.WeakestAreaScore)
	fmt.Fprintf(out, "Estimated fix time: %s\n", s.EstimatedFixTime)

	fmt.Fprintf(out, "\n%s Fix first:\n", colorInfo("→"))
	for i, rec := range report.Recommendations.TopRecommendations {
		fmt.Fprintf(out, "  %d. [%s] %s (%s, %s)\n", i+1, rec.Impact, rec.Recommendation.Title, rec.Recommendation.Timeframe, rec.Cost)
		for _, action := range rec.Recommendation.Actions {
			fmt.Fprintf(out, "       - %s\n", action)
		}
	}
}

func init() {
	assessCmd.Flags().StringVar(&assessOpts.AnswersFile, "answers", "", "questionnaire answers as JSON (\"-\" for stdin)")
	assessCmd.Flags().StringVar(&assessOpts.Domain, "domain", "", "check this domain's DNS for the email authentication answers")
	assessCmd.Flags().BoolVar(&assessOpts.JSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(assessCmd)
}
