package cmd

import (
	"strings"

	"github.com/fatih/color"
	"github.com/khanhnv2901/phishrisk/internal/checker"
	"github.com/khanhnv2901/phishrisk/internal/scoring"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

func formatStatusWithColor(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "ok", "success", "pass":
		return colorSuccess(status)
	case "weak", "warn":
		return colorWarn(status)
	case "error", "fail", "failed", "missing":
		return colorError(status)
	default:
		return status
	}
}

func formatRiskLevel(level scoring.RiskLevel) string {
	switch level {
	case scoring.RiskLow:
		return colorSuccess(string(level))
	case scoring.RiskMedium:
		return colorWarn(string(level))
	case scoring.RiskHigh:
		return colorError(string(level))
	default:
		return string(level)
	}
}

// findingStatus collapses a finding into one word for terminal output.
func findingStatus(mechanism checker.Mechanism, f checker.Finding) string {
	switch {
	case f.Error != "" && !f.Exists:
		return "error"
	case !f.Exists:
		return "missing"
	case !f.Valid:
		return "weak"
	case mechanism == checker.MechanismDMARC && !f.Enforced():
		return "weak"
	default:
		return "ok"
	}
}
