package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/khanhnv2901/phishrisk/internal/application"
	"github.com/khanhnv2901/phishrisk/internal/checker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type dnsOptions struct {
	Concurrency int
	RateLimit   int
	JSON        bool
	Progress    bool
}

var dnsOpts = dnsOptions{Concurrency: 4}

var dnsCmd = &cobra.Command{
	Use:   "dns <domain>...",
	Short: "Check SPF, DKIM and DMARC records for one or more domains",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cliConfig.containerOptions()
		opts.Logger = appLogger()
		opts.DisableMetrics = true

		container, err := application.NewContainer(opts)
		if err != nil {
			return err
		}
		return runDNSChecks(cmd.Context(), cmd.OutOrStdout(), container.Checker, args, dnsOpts)
	},
}

// runDNSChecks checks every domain and prints one block per domain, or a JSON
// array with --json. It fails when any domain could not be checked at all.
func runDNSChecks(ctx context.Context, out io.Writer, c checker.Checker, domains []string, opts dnsOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runner := &checker.Runner{Concurrency: opts.Concurrency, RateLimit: opts.RateLimit}

	var progressFn checker.ProgressFunc
	if opts.Progress && !opts.JSON {
		printer := newProgressPrinter(os.Stderr, len(domains), "DNS")
		printer.Start()
		defer printer.Stop()
		progressFn = func(target string, result checker.CheckResult, duration float64) error {
			printer.Increment(result.Error == "", duration)
			return nil
		}
	}

	results := runner.RunChecks(ctx, domains, c, progressFn)

	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
			appLogger().Debug("domain check failed", zap.String("target", res.Target), zap.String("error", res.Error))
		}
	}

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
	} else {
		for _, res := range results {
			printCheckResult(out, res)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d domains could not be checked", failed, len(domains))
	}
	return nil
}

func printCheckResult(out io.Writer, res checker.CheckResult) {
	if res.Report == nil {
		fmt.Fprintf(out, "%s %s: %s\n\n", colorError("✗"), res.Target, res.Error)
		return
	}

	report := res.Report
	fmt.Fprintf(out, "%s %s", colorInfo("→"), report.Domain)
	if report.OrganizationalDomain != "" && report.OrganizationalDomain != report.Domain {
		fmt.Fprintf(out, " (organization: %s)", report.OrganizationalDomain)
	}
	fmt.Fprintf(out, "  %.0fms\n", res.ResponseTime)

	printFinding(out, checker.MechanismSPF, report.SPF, report.SPF.Record)
	printFinding(out, checker.MechanismDKIM, report.DKIM, strings.Join(report.DKIM.Selectors, ", "))

	dmarcDetail := report.DMARC.Record
	if report.DMARC.Exists {
		dmarcDetail = "p=" + report.DMARC.Policy
	}
	printFinding(out, checker.MechanismDMARC, report.DMARC, dmarcDetail)
	fmt.Fprintln(out)
}

func printFinding(out io.Writer, mechanism checker.Mechanism, f checker.Finding, detail string) {
	status := findingStatus(mechanism, f)
	if f.Error != "" {
		detail = f.Error
	}
	// Pad before coloring so escape codes do not skew the columns.
	fmt.Fprintf(out, "  %-6s %s %s\n",
		strings.ToUpper(string(mechanism)),
		formatStatusWithColor(fmt.Sprintf("%-8s", status)),
		detail)
}

func appLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.Desugar()
}

func init() {
	dnsCmd.Flags().IntVar(&dnsOpts.Concurrency, "concurrency", dnsOpts.Concurrency, "domains checked in parallel")
	dnsCmd.Flags().IntVar(&dnsOpts.RateLimit, "qps", 0, "domains started per second (0 = unlimited)")
	dnsCmd.Flags().BoolVar(&dnsOpts.JSON, "json", false, "print results as JSON")
	dnsCmd.Flags().BoolVar(&dnsOpts.Progress, "progress", false, "show a progress line on stderr")
	rootCmd.AddCommand(dnsCmd)
}
