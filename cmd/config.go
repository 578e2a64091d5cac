package cmd

import (
	"time"

	"github.com/khanhnv2901/phishrisk/internal/application"
	"github.com/khanhnv2901/phishrisk/internal/ratelimit"
	"github.com/khanhnv2901/phishrisk/internal/shared/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultServeAddr       = "127.0.0.1:8080"
	defaultShutdownTimeout = 30 * time.Second
	defaultBatchQPS        = 20
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	DNS    DNSConfig
	Limits LimitsConfig
	Server ServerConfig
}

// DNSConfig groups resolver options.
type DNSConfig struct {
	Resolver    string
	Nameservers []string
	Timeout     time.Duration
	QPS         float64
	Selectors   []string
}

// RuleConfig is one operation's admission window.
type RuleConfig struct {
	MaxRequests int
	Window      time.Duration
}

// LimitsConfig holds the per-client admission rules of the API.
type LimitsConfig struct {
	DNSCheck      RuleConfig
	CalculateRisk RuleConfig
	SweepInterval time.Duration
}

// ServerConfig captures serve command options.
type ServerConfig struct {
	Addr            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	RateLimit       int
	RateBurst       int
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		DNS: DNSConfig{
			Resolver:    application.ResolverMiekg,
			Nameservers: []string{},
			Timeout:     constants.DefaultDNSTimeout,
			QPS:         defaultBatchQPS,
		},
		Limits: LimitsConfig{
			DNSCheck: RuleConfig{
				MaxRequests: constants.DefaultDNSCheckMaxRequests,
				Window:      constants.DefaultRateWindow,
			},
			CalculateRisk: RuleConfig{
				MaxRequests: constants.DefaultCalculateRiskMaxRequests,
				Window:      constants.DefaultRateWindow,
			},
			SweepInterval: constants.DefaultSweepInterval,
		},
		Server: ServerConfig{
			Addr:            defaultServeAddr,
			CORSOrigins:     []string{},
			ShutdownTimeout: defaultShutdownTimeout,
			RateLimit:       10,
			RateBurst:       20,
		},
	}
}

// rules converts the limits into limiter rules.
func (c LimitsConfig) rules() map[ratelimit.Operation]ratelimit.Rule {
	return map[ratelimit.Operation]ratelimit.Rule{
		ratelimit.OperationDNSCheck:      {MaxRequests: c.DNSCheck.MaxRequests, Window: c.DNSCheck.Window},
		ratelimit.OperationCalculateRisk: {MaxRequests: c.CalculateRisk.MaxRequests, Window: c.CalculateRisk.Window},
	}
}

// containerOptions maps the runtime config onto the service container.
func (c *CLIConfig) containerOptions() application.Options {
	return application.Options{
		ResolverKind: c.DNS.Resolver,
		Nameservers:  c.DNS.Nameservers,
		DNSTimeout:   c.DNS.Timeout,
		DNSQPS:       c.DNS.QPS,
		Selectors:    c.DNS.Selectors,
	}
}

// applyConfigDefaults merges config file and environment values into the
// runtime config when the user did not explicitly set the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	flags := cmd.Flags()

	if viper.IsSet("dns.resolver") {
		applyFlagDefault(flags, "resolver", viper.GetString("dns.resolver"), func(v string) { cliConfig.DNS.Resolver = v })
	}
	if viper.IsSet("dns.nameservers") {
		applyFlagDefault(flags, "nameservers", viper.GetStringSlice("dns.nameservers"), func(v []string) { cliConfig.DNS.Nameservers = v })
	}
	if viper.IsSet("dns.timeout") {
		applyFlagDefault(flags, "dns-timeout", viper.GetDuration("dns.timeout"), func(v time.Duration) { cliConfig.DNS.Timeout = v })
	}
	if viper.IsSet("dns.qps") {
		applyFlagDefault(flags, "dns-qps", viper.GetFloat64("dns.qps"), func(v float64) { cliConfig.DNS.QPS = v })
	}
	if viper.IsSet("dns.selectors") {
		applyFlagDefault(flags, "dkim-selectors", viper.GetStringSlice("dns.selectors"), func(v []string) { cliConfig.DNS.Selectors = v })
	}

	if viper.IsSet("limits.dns_check.max_requests") {
		cliConfig.Limits.DNSCheck.MaxRequests = viper.GetInt("limits.dns_check.max_requests")
	}
	if viper.IsSet("limits.dns_check.window") {
		cliConfig.Limits.DNSCheck.Window = viper.GetDuration("limits.dns_check.window")
	}
	if viper.IsSet("limits.calculate_risk.max_requests") {
		cliConfig.Limits.CalculateRisk.MaxRequests = viper.GetInt("limits.calculate_risk.max_requests")
	}
	if viper.IsSet("limits.calculate_risk.window") {
		cliConfig.Limits.CalculateRisk.Window = viper.GetDuration("limits.calculate_risk.window")
	}
	if viper.IsSet("limits.sweep_interval") {
		cliConfig.Limits.SweepInterval = viper.GetDuration("limits.sweep_interval")
	}

	if viper.IsSet("server.addr") {
		applyFlagDefault(flags, "addr", viper.GetString("server.addr"), func(v string) { cliConfig.Server.Addr = v })
	}
	if viper.IsSet("server.cors_origins") {
		applyFlagDefault(flags, "cors-origins", viper.GetStringSlice("server.cors_origins"), func(v []string) { cliConfig.Server.CORSOrigins = v })
	}
}

// applyFlagDefault calls setter unless the named flag was set on the command
// line.
func applyFlagDefault[T any](flags *pflag.FlagSet, name string, value T, setter func(T)) {
	if setter == nil {
		return
	}
	if flags != nil {
		if flag := flags.Lookup(name); flag != nil && flag.Changed {
			return
		}
	}
	setter(value)
}
