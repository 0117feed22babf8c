// Package main API Gateway 服务入口
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"adventure-story-api/internal/config"
	"adventure-story-api/internal/infrastructure/eino/callback"
	"adventure-story-api/internal/wire"
	"adventure-story-api/pkg/logger"
	"adventure-story-api/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting api-gateway",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
		"dispatch_mode", cfg.Story.DispatchMode,
	)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SampleRate:     cfg.Observability.Tracing.SampleRate,
		Enabled:        cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Error(ctx, "failed to shutdown tracer", err)
		}
	}()

	// Eino 全局 callbacks（指标/追踪/日志）
	callback.Init()

	app, cleanupApp, err := wire.InitializeApp(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize app", err)
	}
	defer cleanupApp()

	sweeper := app.Sweeper
	if cfg.Story.DispatchMode != config.DispatchModeStream {
		app.Pool.Start()
		// 进程内队列重启即丢失，启动时重新调度遗留的 pending 任务
		if n, err := sweeper.RequeuePending(ctx); err != nil {
			logger.Error(ctx, "failed to requeue pending jobs", err)
		} else if n > 0 {
			log.Info("requeued pending jobs from previous run", "count", n)
		}
	}
	if _, err := sweeper.ExpireStale(ctx); err != nil {
		logger.Error(ctx, "failed to expire stale jobs", err)
	}

	scheduler := cron.New()
	if cfg.Story.SweepSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.Story.SweepSchedule, sweeper.Run); err != nil {
			logger.Fatal(ctx, "invalid story.sweep_schedule", err, "schedule", cfg.Story.SweepSchedule)
		}
		scheduler.Start()
	}

	srv := &http.Server{
		Addr:         cfg.Server.HTTP.Addr(),
		Handler:      app.Router.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "http server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	timeout := cfg.Server.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "server forced to shutdown", err)
	}
	<-scheduler.Stop().Done()

	// 先停 HTTP 再排空 worker，未完成的任务由下次启动的 sweeper 接管
	if err := app.Pool.Stop(shutdownCtx); err != nil {
		logger.Warn(ctx, "worker pool did not drain before deadline", "error", err.Error())
	}

	log.Info("server exited")
}
