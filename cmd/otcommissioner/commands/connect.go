package commands

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/openthread/otcommissioner/internal/cli/health"
	"github.com/openthread/otcommissioner/internal/commissioner"
	"github.com/openthread/otcommissioner/internal/logger"
	"github.com/openthread/otcommissioner/internal/telemetry"
	"github.com/openthread/otcommissioner/pkg/config"
	"github.com/openthread/otcommissioner/pkg/facade"
	"github.com/openthread/otcommissioner/pkg/metrics"
	promMetrics "github.com/openthread/otcommissioner/pkg/metrics/prometheus"
)

const defaultMetricsPort = 9090

var (
	connectPidFile string
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a border agent and petition as the active commissioner",
	Long: `Connect opens a DTLS session with the border agent named in the
configuration file, petitions to become the active commissioner, and then
blocks, keeping the session alive with periodic keep-alives until
interrupted.

While connected, a health/metrics HTTP server exposes GET /healthz and
GET /metrics (when metrics are enabled) for "otcommissioner status" and
Prometheus scraping to use.

Examples:
  # Connect using the default config file
  otcommissioner connect

  # Connect using a custom config file
  otcommissioner connect --config /etc/otcommissioner/config.yaml`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVar(&connectPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/otcommissioner/otcommissioner.pid)")
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Profiling.Enabled,
		ServiceName:    cfg.Profiling.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Profiling.Endpoint,
		ProfileTypes:   cfg.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("otcommissioner starting", "version", Version, "commit", Commit)
	logger.Info("configuration loaded", "source", configSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("profiling enabled", "endpoint", cfg.Profiling.Endpoint)
	}

	var commissionerMetrics commissioner.Metrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		commissionerMetrics = commissioner.Metrics{
			Coap:    promMetrics.NewCoapMetrics(),
			Session: promMetrics.NewSessionMetrics(),
			Joiner:  promMetrics.NewJoinerMetrics(),
		}
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics disabled")
	}

	ccfg, err := cfg.ToCommissionerConfig(commissionerMetrics)
	if err != nil {
		return fmt.Errorf("failed to resolve credentials: %w", err)
	}

	startedAt := time.Now()
	f, err := facade.New(ccfg, facade.Handler{})
	if err != nil {
		return fmt.Errorf("failed to construct commissioner: %w", err)
	}
	defer f.Close()

	stopWatch, err := config.WatchCredentials(cfg, func(cert *tls.Certificate, anchors [][]byte, err error) {
		if err != nil {
			logger.Warn("credential reload failed", logger.Err(err))
			return
		}
		if setErr := f.SetCCMCredentials(ctx, cert, anchors); setErr != nil {
			logger.Warn("credential rotation rejected", logger.Err(setErr))
			return
		}
		logger.Info("CCM credentials rotated")
	})
	if err != nil {
		return fmt.Errorf("failed to start credential watcher: %w", err)
	}
	defer func() { _ = stopWatch() }()

	if err := f.Connect(ctx, cfg.BorderAgent.Address, cfg.BorderAgent.Port); err != nil {
		return fmt.Errorf("failed to connect to border agent: %w", err)
	}
	logger.Info("connected to border agent", "address", cfg.BorderAgent.Address, "port", cfg.BorderAgent.Port)

	if err := f.Petition(ctx); err != nil {
		f.Disconnect(ctx)
		return fmt.Errorf("failed to petition: %w", err)
	}
	logger.Info("petitioned as active commissioner", "id", cfg.Commissioner.ID)

	pidFile := connectPidFile
	if pidFile == "" {
		pidFile = GetDefaultPidFile()
	}
	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}
	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer func() { _ = os.Remove(pidFile) }()

	healthSrv := startHealthServer(cfg, startedAt, f)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		_ = healthSrv.Shutdown(shutdownCtx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("commissioner is running, press Ctrl+C to resign and disconnect")
	<-sigChan
	signal.Stop(sigChan)

	logger.Info("shutdown signal received, resigning")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := f.Resign(shutdownCtx); err != nil {
		logger.Warn("resign failed", logger.Err(err))
	}
	f.Disconnect(shutdownCtx)
	logger.Info("disconnected")

	return nil
}

// startHealthServer serves GET /healthz (for "otcommissioner status") and,
// when metrics are enabled, GET /metrics for Prometheus to scrape. It runs
// in the background; callers should Shutdown it on exit.
func startHealthServer(cfg *config.Config, startedAt time.Time, f *facade.Facade) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeHealth(w, startedAt, f)
	})
	if cfg.Metrics.Enabled && metrics.GetRegistry() != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: r,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("health server stopped", logger.Err(err))
		}
	}()
	return srv
}

func writeHealth(w http.ResponseWriter, startedAt time.Time, f *facade.Facade) {
	uptime := time.Since(startedAt)

	resp := health.Response{Status: "healthy"}
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	resp.Data.Service = "otcommissioner"
	resp.Data.StartedAt = startedAt.UTC().Format(time.RFC3339)
	resp.Data.Uptime = uptime.String()
	resp.Data.UptimeSec = int64(uptime.Seconds())

	w.Header().Set("Content-Type", "application/json")
	if f.State() != commissioner.StateActive {
		resp.Status = "unhealthy"
		resp.Error = fmt.Sprintf("commissioner state is %s, expected active", f.State())
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func configSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
