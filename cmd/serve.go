package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/khanhnv2901/phishrisk/internal/api"
	"github.com/khanhnv2901/phishrisk/internal/application"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assessment REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		zl := appLogger()
		defer func() {
			_ = zl.Sync()
		}()

		opts := cliConfig.containerOptions()
		opts.Logger = zl
		opts.Limits = cliConfig.Limits.rules()
		container, err := application.NewContainer(opts)
		if err != nil {
			return err
		}

		httpServer := newHTTPServer(container, zl)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sweepCtx, stopSweep := context.WithCancel(context.Background())
		defer stopSweep()
		go container.Limiter.Run(sweepCtx, cliConfig.Limits.SweepInterval)

		// Channel to listen for errors from the server
		serverErrors := make(chan error, 1)
		go func() {
			zl.Info("api_server_listening",
				zap.String("addr", httpServer.Addr),
				zap.String("resolver", cliConfig.DNS.Resolver),
				zap.Int("dns_check_limit", cliConfig.Limits.DNSCheck.MaxRequests),
				zap.Int("calculate_risk_limit", cliConfig.Limits.CalculateRisk.MaxRequests),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%s API server listening on %s\n", colorInfo("→"), httpServer.Addr)
			fmt.Fprintf(cmd.OutOrStdout(), "%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s Received shutdown signal, draining requests...\n", colorInfo("→"))

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cliConfig.Server.ShutdownTimeout)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				// Force close if graceful shutdown fails
				if closeErr := httpServer.Close(); closeErr != nil {
					return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
				}
				return fmt.Errorf("failed to gracefully shutdown server: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Server shutdown complete\n", colorSuccess("✓"))
		}

		return nil
	},
}

func newHTTPServer(container *application.Container, zl *zap.Logger) *http.Server {
	server := api.NewServer(api.Config{
		Assessments: container.AssessmentService,
		Metrics:     container.Metrics,
		Logger:      zl,
		Version:     Version,
		CORSOrigins: cliConfig.Server.CORSOrigins,
		RateLimit:   cliConfig.Server.RateLimit,
		RateBurst:   cliConfig.Server.RateBurst,
	})

	return &http.Server{
		Addr:              cliConfig.Server.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func init() {
	serveCmd.Flags().StringVar(&cliConfig.Server.Addr, "addr", cliConfig.Server.Addr, "Address for the API server")
	serveCmd.Flags().DurationVar(&cliConfig.Server.ShutdownTimeout, "shutdown-timeout", cliConfig.Server.ShutdownTimeout, "Graceful shutdown timeout")
	serveCmd.Flags().StringSliceVar(&cliConfig.Server.CORSOrigins, "cors-origins", cliConfig.Server.CORSOrigins, "Allowed CORS origins (empty = allow all)")
	serveCmd.Flags().IntVar(&cliConfig.Server.RateLimit, "rate-limit", cliConfig.Server.RateLimit, "Rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().IntVar(&cliConfig.Server.RateBurst, "rate-burst", cliConfig.Server.RateBurst, "Rate limit burst size")
	rootCmd.AddCommand(serveCmd)
}
