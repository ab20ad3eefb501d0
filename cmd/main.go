package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/tejusbharadwaj/edgemeter/internal/config"
	"github.com/tejusbharadwaj/edgemeter/internal/database"
	server "github.com/tejusbharadwaj/edgemeter/internal/grpc"
	"github.com/tejusbharadwaj/edgemeter/internal/httpserver"
	"github.com/tejusbharadwaj/edgemeter/internal/ingest"
	"github.com/tejusbharadwaj/edgemeter/internal/meter"
	"github.com/tejusbharadwaj/edgemeter/internal/mirror"
	"github.com/tejusbharadwaj/edgemeter/internal/registry"
	"github.com/tejusbharadwaj/edgemeter/internal/scheduler"
)

// Command edgemeter polls networked power meters, stores their cumulative
// readings in per-device monthly shards and serves consumption queries.
//
// The service supports:
//   - Scheduled polling of every enabled meter (cron spec)
//   - Range reads across month shards and yearly archive reads
//   - Hourly, daily and monthly consumption diffs
//   - Per-channel sum and average rollups
//   - Prometheus metrics and health on the ops HTTP port
//
// Usage:
//
//	edgemeter [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-env string
//	      optional dotenv file loaded before the config (default ".env")
func main() {
	flags := parseFlags()

	if err := godotenv.Load(flags.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load %s: %v", flags.EnvFile, err)
	}

	appConfig, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(appConfig.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	if err := run(appConfig, logger); err != nil {
		logger.Fatalf("Service error: %v", err)
	}
}

type Flags struct {
	ConfigPath string
	EnvFile    string
}

func parseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "config.yaml", "Path to the config file")
	flag.StringVar(&f.EnvFile, "env", ".env", "Optional dotenv file")

	flag.Parse()

	return f
}

func newLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	return logger, nil
}

func newRegistry(cfg *config.Config, logger *logrus.Logger) (registry.Registry, func(), error) {
	if cfg.Registry.Type == config.RegistryPostgres {
		pg, err := registry.NewPostgresRegistry(cfg.Registry.DSN, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect device registry: %w", err)
		}
		return pg, func() { pg.Close() }, nil
	}
	static, err := registry.NewStaticRegistry(cfg.Devices, logger)
	if err != nil {
		return nil, nil, err
	}
	return static, func() {}, nil
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	devices, closeRegistry, err := newRegistry(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRegistry()

	store := database.NewShardStore(database.Config{
		Root:        cfg.Storage.Root,
		BusyTimeout: cfg.Storage.BusyTimeout,
	}, logger)
	if err := store.Check(ctx); err != nil {
		return err
	}

	client := meter.NewClient(meter.Config{
		Timeout:         cfg.Meter.Timeout,
		Command:         cfg.Meter.Command,
		TerminalChannel: cfg.Meter.TerminalChannel,
	}, nil)

	var readingMirror ingest.Mirror
	if cfg.Influx.Enabled() {
		influx := mirror.NewInfluxMirror(cfg.Influx)
		defer influx.Close()
		readingMirror = influx
		logger.WithField("bucket", cfg.Influx.Bucket).Info("Mirroring readings to InfluxDB")
	}

	ingestor := ingest.NewIngestor(client, store, readingMirror, ingest.NewMetrics(metrics), logger)
	poller := scheduler.NewScheduler(ctx, ingestor, devices, cfg.Scheduler.Cron, logger)

	srv, health, err := server.SetupServer(store, devices, server.ServerConfig{
		CacheSize:      cfg.Server.CacheSize,
		CacheTTL:       cfg.Server.CacheTTL,
		RateLimit:      cfg.Server.RateLimit,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	}, logger, metrics)
	if err != nil {
		return fmt.Errorf("setup server: %w", err)
	}
	health.AddProbe("storage", store.Check)
	health.AddProbe("registry", func(ctx context.Context) error {
		_, err := devices.Devices(ctx)
		return err
	})

	httpSrv := httpserver.NewServer(
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		httpserver.NewRouter(metrics, health, devices, logger),
	)

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	errChan := make(chan error, 2)

	if err := poller.Start(); err != nil {
		return fmt.Errorf("scheduler error: %w", err)
	}

	go func() {
		logger.WithField("port", cfg.Server.GRPCPort).Info("Starting gRPC server")
		if err := srv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	go func() {
		logger.WithField("port", cfg.Server.HTTPPort).Info("Starting HTTP server")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err = <-errChan:
		logger.WithError(err).Error("Component failed, shutting down")
	}

	shutdown(health, poller, srv, httpSrv, logger)
	return err
}

// shutdown stops intake first, then drains in-flight polls and requests.
func shutdown(health *server.HealthChecker, poller *scheduler.Scheduler, srv *grpc.Server, httpSrv *http.Server, logger *logrus.Logger) {
	health.Shutdown()

	logger.Info("Waiting for in-flight polls")
	poller.Stop()

	logger.Info("Gracefully stopping servers")
	srv.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("HTTP shutdown incomplete")
	}
	logger.Info("Server stopped")
}
