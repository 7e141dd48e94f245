package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/pavithragopisetty/GirlsNav4/internal/api"
	"github.com/pavithragopisetty/GirlsNav4/internal/app"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/config"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/metrics"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/tracing"
	"github.com/pavithragopisetty/GirlsNav4/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting girlsnav-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, "girlsnav-api")
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	infra, err := app.Connect(ctx, cfg, log)
	fatalOnErr(err, "connect infrastructure")
	defer infra.Close()

	uc, err := infra.NewAnalyzeUseCase(cfg, log)
	fatalOnErr(err, "create analysis use case")

	ready := infra.ReadyChecks()
	checks := make(map[string]api.HealthCheck, len(ready))
	for name, check := range ready {
		checks[name] = api.HealthCheck(check)
	}

	handler := api.NewHandler(uc, infra.NewSessionService(log), checks, cfg.MaxUploadMB<<20, log)
	router := api.NewRouter(handler, api.RouterConfig{CORSOrigins: cfg.CORSOrigins}, log)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, ready, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: router,
	}

	go func() {
		log.Info("api server listening", zap.Int("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down girlsnav-api")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("api server shutdown", zap.Error(err))
	}
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("girlsnav-api stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
