package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string
var debug bool
var logger *zap.SugaredLogger

var rootCmd = &cobra.Command{
	Use:   "phishrisk",
	Short: "Phishing exposure assessment: email authentication checks and risk scoring",
	Long: `phishrisk scores an organization's phishing exposure from questionnaire
answers and the SPF, DKIM and DMARC records published for its domain.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}

		l, err := newLogger(debug)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l.Sugar()

		applyConfigDefaults(cmd)
		logger.Debugw("configuration loaded",
			"config_file", viper.ConfigFileUsed(),
			"resolver", cliConfig.DNS.Resolver,
			"dns_timeout", cliConfig.DNS.Timeout,
		)
		return nil
	},
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".phishrisk")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PHISHRISK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one must load.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorError(err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.phishrisk.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable development logging")

	// DNS flags shared by serve, dns and assess
	rootCmd.PersistentFlags().StringVar(&cliConfig.DNS.Resolver, "resolver", cliConfig.DNS.Resolver, "DNS client: miekg or std")
	rootCmd.PersistentFlags().StringSliceVar(&cliConfig.DNS.Nameservers, "nameservers", cliConfig.DNS.Nameservers, "nameservers to query (default from /etc/resolv.conf)")
	rootCmd.PersistentFlags().DurationVar(&cliConfig.DNS.Timeout, "dns-timeout", cliConfig.DNS.Timeout, "timeout for each DNS query")
	rootCmd.PersistentFlags().Float64Var(&cliConfig.DNS.QPS, "dns-qps", cliConfig.DNS.QPS, "outbound DNS queries per second (0 = unlimited)")
	rootCmd.PersistentFlags().StringSliceVar(&cliConfig.DNS.Selectors, "dkim-selectors", nil, "DKIM selectors to probe (default: common provider selectors)")

	rootCmd.AddCommand(versionCmd)
}
