package main

import (
	"calc-server/internal/cache"
	"calc-server/internal/calc"
	"calc-server/internal/config"
	"calc-server/internal/httpapi"
	"calc-server/internal/metrics"
	"calc-server/pkg/logger"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ENTRY POINT

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run возвращает ошибку вместо выхода, чтобы отработали все defer.
func run() error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Инициализация логгера
	zapLogger, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	// Обработка сигналов завершения
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	// Кэш результатов: Redis, если задан адрес
	var resultCache cache.Cache = cache.Noop{}
	if cfg.CacheEnabled() {
		redisCache, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:           cfg.RedisAddr,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			TTL:            cfg.CacheTTL,
			ConnectTimeout: cfg.RedisConnectTimeout,
		}, zapLogger)
		if err != nil {
			zapLogger.Error("Failed to init Redis cache", zap.Error(err))
			return err
		}
		resultCache = redisCache
	}
	defer resultCache.Close()

	engine := calc.NewEngine(calc.Options{
		Workers:         cfg.OfferWorkers,
		AllFailedPolicy: cfg.Policy(),
		Logger:          zapLogger,
	})

	api := httpapi.New(httpapi.Options{
		Engine:      engine,
		Cache:       resultCache,
		Metrics:     metrics.NewRegistry(),
		Logger:      zapLogger,
		CORSOrigin:  cfg.CORSOrigin,
		AllowedIPs:  cfg.AllowedIPs,
		BodyLimitMB: cfg.BodyLimitMB,
		// результат зависит от политики, поэтому она входит в ключ
		CacheKeyPrefix: string(cfg.Policy()),
	})

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      api.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	zapLogger.Info("Calc server starting",
		zap.Int("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.Bool("cache", cfg.CacheEnabled()),
		zap.Int("allowed_ips", len(cfg.AllowedIPs)))

	return serve(ctx, srv, cfg.ShutdownTimeout, zapLogger)
}

// serve runs srv until ctx is done, then shuts it down within timeout.
// A listen failure is returned as is.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server stopped with error", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}

	log.Info("Server shutdown gracefully")
	return nil
}
