package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ib-77/fetchpipe/internal/config"
	"github.com/ib-77/fetchpipe/internal/logger"
	"github.com/ib-77/fetchpipe/internal/otel"
	"github.com/ib-77/fetchpipe/internal/ssr"
	"github.com/ib-77/fetchpipe/pkg/fetchctx"
	"github.com/ib-77/fetchpipe/pkg/lifecycle"
	"github.com/ib-77/fetchpipe/pkg/pipeline"
	"github.com/ib-77/fetchpipe/pkg/stageconf"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider when enabled)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	stages := defaultStages()
	if cfg.Pipeline.StagesFile != "" {
		stages, err = stageconf.Load(cfg.Pipeline.StagesFile)
		if err != nil {
			slog.ErrorContext(ctx, "failed to load stage file", "error", err)
			os.Exit(1)
		}
	}
	slog.InfoContext(ctx, "stages loaded", "stages", describe(stages), "file", cfg.Pipeline.StagesFile)

	engine := pipeline.New(pipeline.Config[*fetchctx.Context]{
		Pipelines: tasks(),
		Stages:    stages,
	})
	if err := engine.Validate(); err != nil {
		for _, problem := range pipeline.GetErrors(err) {
			slog.ErrorContext(ctx, "invalid stage configuration", "error", problem)
		}
		os.Exit(1)
	}

	warmUp(ctx, engine, cfg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, engine)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// warmUp mounts the configured route once so mounted and idle stages run
// before traffic is accepted.
func warmUp(ctx context.Context, engine *pipeline.Engine[*fetchctx.Context], cfg config.Config) {
	factory := &fetchctx.Factory{
		Store: fetchctx.NewMemoryStore("fetchpipe-warmup"),
		Error: func(ctx context.Context, err error) {
			slog.WarnContext(ctx, "warm-up stage error", "error", err)
		},
		Logger: slog.Default(),
	}
	hook := lifecycle.Mixin(engine, factory,
		lifecycle.WithScheduler(lifecycle.TimerScheduler{Budget: cfg.Pipeline.IdleBudget}),
	)

	m := hook(ctx, fetchctx.Route{Path: cfg.Pipeline.MountRoute, FullPath: cfg.Pipeline.MountRoute})
	idle := m.Wait()
	slog.InfoContext(ctx, "warm-up finished",
		"mounted_ok", m.Mounted.IsSuccess(),
		"idle_ok", idle.IsSuccess(),
		"state_keys", len(m.Context.Store.State().Snapshot()),
	)
}

func setupRouter(cfg config.Config, engine *pipeline.Engine[*fetchctx.Context]) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(ssr.Recovery())
	router.Use(ssr.Logger())

	ssr.SetupRoutes(router, ssr.NewHandler(engine, ssr.HandlerConfig{
		Routes:  routes,
		Timeout: cfg.Pipeline.RequestTimeout,
		Logger:  slog.Default(),
	}))

	return router
}
