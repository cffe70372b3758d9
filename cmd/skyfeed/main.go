// Package main is the skyfeed daemon entrypoint.
//
// skyfeed aggregates realtime weather-station packets into running
// statistics and publishes a fixed-format realtime record (clientraw.txt)
// on a throttled cadence. This file handles dependency wiring only; all
// business logic lives under internal/.
//
// Wiring order: config, logger, optional archive database, aggregation
// buffer, publishing engine and sinks, HTTP server, signal handling.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"

	"skyfeed/internal/api"
	"skyfeed/internal/config"
	"skyfeed/internal/derive"
	"skyfeed/internal/history"
	"skyfeed/internal/publish"
	"skyfeed/internal/record"
	"skyfeed/internal/stats"
	"skyfeed/internal/telemetry"
	"skyfeed/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("skyfeed starting",
		"environment", cfg.Environment,
		"station", cfg.Station.Name,
		"min_interval", cfg.Pipeline.MinInterval.String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc := cfg.Location(logger)
	now := time.Now()

	// Aggregation buffer. The wind history window must span the longest
	// horizon any record token reads from it: the hour gust.
	windHorizon := maxDuration(cfg.Pipeline.AvgSpeedWindow, cfg.Pipeline.GustWindow, time.Hour)
	table := stats.DefaultTable(windHorizon, cfg.Pipeline.TrendPeriod, cfg.Pipeline.AvgSpeedWindow)
	buffer := stats.NewBuffer(table, cfg.Pipeline.DayResetHour, loc, now)

	// Record formatter and derived-observation calculator.
	recordCfg := record.Config{
		StationName:    cfg.Station.Name,
		Latitude:       cfg.Station.Latitude,
		Longitude:      cfg.Station.Longitude,
		HasLocation:    cfg.Station.HasLocation(),
		AvgSpeedWindow: cfg.Pipeline.AvgSpeedWindow,
		GustWindow:     cfg.Pipeline.GustWindow,
		TrendPeriod:    cfg.Pipeline.TrendPeriod,
		DayResetHour:   cfg.Pipeline.DayResetHour,
		Location:       loc,
	}
	if cfg.Pipeline.WindDirNull == "zero" {
		recordCfg.WindDirNull = record.WindDirZero
	}
	formatter := record.NewFormatter(recordCfg)

	calc := derive.Calculator{ATC: cfg.Station.ATC}
	if cfg.Station.HasLocation() {
		calc.Loc = &derive.Location{
			Latitude:  cfg.Station.Latitude,
			Longitude: cfg.Station.Longitude,
			AltitudeM: cfg.Station.AltitudeM,
		}
	}

	sinks, err := buildSinks(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize sinks", "error", err)
		os.Exit(1)
	}

	metrics := buildMetrics(ctx, cfg, logger)

	engine, err := publish.NewEngine(publish.Config{
		Buffer:      buffer,
		Cache:       publish.NewPacketCache(cfg.Pipeline.CacheMaxAge),
		Calc:        calc,
		Formatter:   formatter,
		Sinks:       sinks,
		MinInterval: cfg.Pipeline.MinInterval,
		SinkTimeout: cfg.Pipeline.SinkTimeout,
		QueueSize:   cfg.Pipeline.QueueSize,
		Metrics:     metrics,
		Logger:      logger,
		LogSuccess:  cfg.Output.LogSuccess,
		LogFailure:  cfg.Output.LogFailure,
	})
	if err != nil {
		logger.Error("failed to initialize publishing engine", "error", err)
		os.Exit(1)
	}

	// Optional archive database: seeds day totals and longer-horizon
	// aggregates so a restart does not zero the published record.
	var pool *pgxpool.Pool
	if cfg.Database.Enabled() {
		pool, err = openPool(ctx, cfg)
		if err != nil {
			logger.Warn("archive database unavailable; continuing without history seeding", "error", err)
		} else {
			defer pool.Close()
			store := history.NewPostgresStore(pool, cfg.Pipeline.DayResetHour, loc)
			seedFromHistory(ctx, store, engine, logger)
			go refreshSeeds(ctx, store, engine, cfg.Database.SeedRefreshInterval, logger)
		}
	}

	engine.Start()

	// Periodic tick so day boundaries roll over even when no packets arrive.
	go runTicker(ctx, engine)

	server, err := api.NewServer(engine, logger)
	if err != nil {
		logger.Error("failed to initialize http server", "error", err)
		os.Exit(1)
	}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "port", cfg.Server.Port)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}
	if err := engine.Close(shutdownCtx); err != nil {
		logger.Error("publishing engine shutdown failed", "error", err)
	}
	logger.Info("skyfeed stopped")
}

// buildSinks assembles the configured sinks: the file sink is always on,
// remote and spool are optional.
func buildSinks(cfg *config.Config, logger *slog.Logger) ([]publish.Sink, error) {
	var sinks []publish.Sink
	if cfg.Output.LocalSave {
		fileSink, err := publish.NewFileSink(cfg.Output.Dir, cfg.Output.Filename)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fileSink)
	}

	if cfg.Output.RemoteURL != "" {
		if usableRemoteURL(cfg.Output.RemoteURL) {
			sinks = append(sinks, publish.NewRemoteSink(cfg.Output.RemoteURL, cfg.Output.RemoteTimeout))
			logger.Info("remote sink enabled", "url", cfg.Output.RemoteURL)
		} else {
			// Optional feature: disable with a warning rather than failing.
			logger.Warn("remote sink disabled: REMOTE_URL is not an absolute http(s) URL",
				"url", cfg.Output.RemoteURL)
		}
	}
	if cfg.Output.SpoolPath != "" {
		spool, err := publish.NewSpoolSink(cfg.Output.SpoolPath)
		if err != nil {
			// Optional feature: disable with a warning rather than failing.
			logger.Warn("spool sink disabled", "path", cfg.Output.SpoolPath, "error", err)
		} else {
			sinks = append(sinks, spool)
			logger.Info("spool sink enabled", "path", cfg.Output.SpoolPath)
		}
	}
	return sinks, nil
}

// usableRemoteURL reports whether raw parses as an absolute http(s) URL.
func usableRemoteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// buildMetrics returns a CloudWatch recorder when telemetry is enabled, nil
// (engine-internal noop) otherwise.
func buildMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) publish.Metrics {
	if !cfg.Telemetry.Enabled {
		return nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Telemetry.Region))
	if err != nil {
		logger.Warn("telemetry disabled: failed to load AWS SDK config", "error", err)
		return nil
	}
	client := cloudwatch.NewFromConfig(awsCfg)
	return telemetry.NewCloudWatchMetrics(client, cfg.Station.Name, types.SlogLogger{L: logger})
}

// openPool creates and pings the archive database pool.
func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// seedFromHistory primes the engine with archive aggregates and the packet
// cache with the last archive row. Failures degrade to empty seeds.
func seedFromHistory(ctx context.Context, store history.Store, engine *publish.Engine, logger *slog.Logger) {
	seeds, err := store.Seeds(ctx, time.Now())
	if err != nil {
		logger.Warn("failed to read history seeds; starting from zero", "error", err)
		return
	}
	engine.UpdateSeeds(seeds)
	logger.Info("history seeds loaded",
		"day_sums", len(seeds.DaySums),
		"wind_run_m", seeds.WindRunMeters,
	)

	if pkt, ok, err := store.LatestPacket(ctx); err != nil {
		logger.Warn("failed to read latest archive record", "error", err)
	} else if ok {
		engine.Submit(pkt)
	}
}

// refreshSeeds periodically re-reads the longer-horizon aggregates.
func refreshSeeds(ctx context.Context, store history.Store, engine *publish.Engine, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seeds, err := store.Seeds(ctx, time.Now())
			if err != nil {
				logger.Warn("history seed refresh failed", "error", err)
				continue
			}
			engine.UpdateSeeds(seeds)
		}
	}
}

// runTicker nudges the engine once a minute for day-boundary checks.
func runTicker(ctx context.Context, engine *publish.Engine) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.Tick(time.Now())
		}
	}
}

func maxDuration(ds ...time.Duration) time.Duration {
	var out time.Duration
	for _, d := range ds {
		if d > out {
			out = d
		}
	}
	return out
}
