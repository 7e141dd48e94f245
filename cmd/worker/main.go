package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pavithragopisetty/GirlsNav4/internal/app"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/config"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/metrics"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/rabbitmq"
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

	log.Info("starting girlsnav-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, "girlsnav-worker")
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

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, infra.ReadyChecks(), log)

	consumer, err := rabbitmq.NewConsumer(infra.AMQP, rabbitmq.ConsumerConfig{
		Topology:    infra.Topology,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("girlsnav-worker started, consuming analysis requests",
		zap.Int("workers", cfg.WorkerCount),
		zap.Int("classifier_concurrency", cfg.ClassifierConcurrency),
	)

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("girlsnav-worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
