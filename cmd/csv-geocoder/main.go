package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/csv-geocoder/internal/core/config"
	"github.com/mohammed-shakir/csv-geocoder/internal/core/httpclient"
	"github.com/mohammed-shakir/csv-geocoder/internal/core/observability"
	"github.com/mohammed-shakir/csv-geocoder/internal/core/server"
	"github.com/mohammed-shakir/csv-geocoder/internal/csvgeo"
	"github.com/mohammed-shakir/csv-geocoder/internal/events"
	"github.com/mohammed-shakir/csv-geocoder/internal/geocoder"
	"github.com/mohammed-shakir/csv-geocoder/internal/geocoder/addok"
	"github.com/mohammed-shakir/csv-geocoder/internal/limiter"
	"github.com/mohammed-shakir/csv-geocoder/internal/logger"
	"github.com/mohammed-shakir/csv-geocoder/internal/metrics"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env", ".env", "optional dotenv file")
	addr := flag.String("addr", "", "listen address (overrides ADDR)")
	flag.Parse()

	envErr := godotenv.Load(*envFile)

	cfg := config.FromEnv()
	if *addr != "" {
		cfg.Addr = strings.TrimSpace(*addr)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "csv-geocoder",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		appLog.Warn("dotenv not loaded", "file", *envFile, "err", envErr)
	}

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting csv-geocoder",
		"addr", cfg.Addr,
		"version", Version,
		"geocoder", cfg.GeocoderURL,
		"limiter", cfg.Limiter.Driver,
		"events", cfg.Events.Enabled)

	attrs, err := geocoder.NewAttributeTable(geocoder.ParseFields(cfg.ExtraFields), cfg.H3Res)
	if err != nil {
		appLog.Error("invalid extra fields", "err", err)
		return 1
	}

	client, err := addok.New(appLog, httpclient.NewOutbound(cfg.GeocoderTimeout), cfg.GeocoderURL, cfg.QueryMaxLength)
	if err != nil {
		appLog.Error("failed to initialize geocoder client", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sink events.Sink
	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(appLog, cfg.Events.Brokers, cfg.Events.Topic, 0)
		if err != nil {
			appLog.Error("failed to initialize event publisher", "err", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("event publisher close", "err", err)
			}
		}()
		sink = pub
	}
	diag := events.NewRecorder(appLog, sink, cfg.Events.DedupeSize)

	lim, closeLim, err := newLimiter(ctx, cfg)
	if err != nil {
		appLog.Error("failed to initialize batch limiter", "err", err)
		return 1
	}
	defer closeLim()
	if sized, ok := lim.(interface{ MaxConcurrent() int }); ok {
		appLog.Info("batch limiter ready", "driver", cfg.Limiter.Driver, "max_concurrent", sized.MaxConcurrent(), "max_wait", cfg.Limiter.MaxWait.String())
	}

	opts := csvgeo.Options{
		DefaultEncoding: cfg.CSV.Encoding,
		OutputEncoding:  cfg.CSV.OutputEncoding,
		SniffSize:       cfg.CSV.SniffSize,
	}
	deps := server.Deps{
		Search:  csvgeo.NewProcessor(appLog, csvgeo.NewSearchEnricher(client, attrs, cfg.SearchLimit, diag), opts),
		Reverse: csvgeo.NewProcessor(appLog, csvgeo.NewReverseEnricher(client, attrs, diag), opts),
		Limiter: lim,
		Ready:   client,
	}

	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   firstNonEmpty(os.Getenv("BUILD_VERSION"), Version),
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		p.Register(observability.Collectors()...)
		if local, ok := lim.(*limiter.Local); ok {
			p.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "csv_batches_in_flight",
				Help: "Batches currently holding a limiter slot.",
			}, func() float64 { return float64(local.Active()) }))
		}
		go func() {
			if err := p.Serve(ctx, appLog); err != nil {
				appLog.Error("metrics server exited", "err", err)
			}
		}()
	}

	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}

	if local, ok := lim.(*limiter.Local); ok {
		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := local.WaitForDrain(drainCtx); err != nil {
			appLog.Warn("batches still running at shutdown", "active", local.Active())
		}
	}
	appLog.Info("server stopped")
	return 0
}

func newLimiter(ctx context.Context, cfg config.Config) (limiter.Limiter, func(), error) {
	switch cfg.Limiter.Driver {
	case "redis":
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		r, err := limiter.NewRedis(pingCtx, cfg.Limiter.RedisAddr, cfg.Limiter.RedisKey,
			cfg.Limiter.MaxConcurrent, cfg.Limiter.MaxWait, limiter.WithLease(cfg.Limiter.Lease))
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return limiter.NewLocal(cfg.Limiter.MaxConcurrent, cfg.Limiter.MaxWait), func() {}, nil
	}
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
