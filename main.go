package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"tasks-api/api"
	"tasks-api/config"
	"tasks-api/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := log.New()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)

	var seed []storage.Option
	if cfg.SeedSampleTasks {
		seed = append(seed, storage.WithTasks(storage.SampleTasks()...))
	}
	var store api.Storage = storage.NewMemory(seed...)
	opts := api.Options{Logger: logger, MaxBodyBytes: cfg.MaxBodyBytes}

	var rc *redis.Client
	if cfg.RedisEnabled() {
		redisOpts, err := config.RedisOptions(cfg.RedisConn)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		rc = redis.NewClient(redisOpts)
		if err := rc.Ping(context.Background()).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable at startup")
		}
		store = storage.NewCache(store, rc, cfg.CacheTTL, cfg.KeyPrefix)
		opts.Deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL, cfg.KeyPrefix)
		opts.Publisher = storage.NewRedisPublisher(rc, cfg.EventsChannel)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(api.CORS())
	e.Use(api.RequestID())
	e.Use(api.RequestMetrics(logger))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, store, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithFields(log.Fields{
			"addr":  cfg.ListenAddr(),
			"redis": cfg.RedisEnabled(),
		}).Info("tasks api listening")
		if err := e.Start(cfg.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed, closing connections")
		_ = e.Close()
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("tracer provider shutdown")
	}
	if rc != nil {
		if err := rc.Close(); err != nil {
			logger.WithError(err).Warn("redis close")
		}
	}
}
