package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/merlin-labs/merlin/bridge"
	"github.com/merlin-labs/merlin/exec"
	"github.com/merlin-labs/merlin/llmprovider"
	"github.com/merlin-labs/merlin/otelobs"
	"github.com/merlin-labs/merlin/server"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent bridge HTTP server",
		RunE:  runServe,
	}

	cmd.Flags().IntP("port", "p", 8080, "Listen port")
	cmd.Flags().String("host", "0.0.0.0", "Listen host")
	cmd.Flags().String("cors-origin", "*", "Allowed CORS origin")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	cmd.Flags().String("rescan-schedule", server.DefaultRescanSchedule, "Cron schedule for periodic detection")
	cmd.Flags().String("otlp-endpoint", "", "OTLP trace endpoint (host:port); empty disables export")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	corsOrigin, _ := cmd.Flags().GetString("cors-origin")
	maxBody, _ := cmd.Flags().GetInt64("max-body")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")
	rescanSchedule, _ := cmd.Flags().GetString("rescan-schedule")
	otlpEndpoint, _ := cmd.Flags().GetString("otlp-endpoint")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if otlpEndpoint != "" {
		shutdown, err := otelobs.Setup(cmd.Context(), otlpEndpoint)
		if err != nil {
			return fmt.Errorf("initializing trace export: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	installObserver, err := otelobs.NewInstallObserver(
		otelapi.GetMeterProvider().Meter("merlin/exec"),
		otelapi.GetTracerProvider().Tracer("merlin/exec"),
	)
	if err != nil {
		return fmt.Errorf("initializing install observability: %w", err)
	}
	exec.SetObserver(installObserver)
	defer exec.SetObserver(nil)

	deps := bridge.Deps{
		Config:    a.cfg,
		Manifests: a.store,
		Resolver:  a.resolver,
		Executor:  a.executor,
		Detector:  a.detector,
		Records:   a.records,
	}
	if catalog, err := llmprovider.NewCatalog(a.cfg.OllamaHost); err == nil {
		deps.Catalog = catalog
	}
	registry := bridge.New(deps)

	rescanner, err := server.NewRescanner(a.detector, rescanSchedule, a.logger)
	if err != nil {
		return exitError(exitValidation, "invalid rescan schedule: %v", err)
	}
	rescanner.Start()
	defer rescanner.Stop()

	srv := server.New(server.Config{
		Registry:   registry,
		Rescanner:  rescanner,
		CORSOrigin: corsOrigin,
		MaxBody:    maxBody,
		Logger:     a.logger,
	})

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "Merlin bridge listening on %s\n", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}
