// Package app connects the infrastructure shared by the worker and the API.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pavithragopisetty/GirlsNav4/internal/domain/port"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/config"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/email"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/ffmpeg"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/metrics"
	miniostorage "github.com/pavithragopisetty/GirlsNav4/internal/infra/minio"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/openai"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/postgres"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/rabbitmq"
	redisinfra "github.com/pavithragopisetty/GirlsNav4/internal/infra/redis"
	"github.com/pavithragopisetty/GirlsNav4/internal/infra/report"
	"github.com/pavithragopisetty/GirlsNav4/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Infra struct {
	Pool      *pgxpool.Pool
	Repo      *postgres.SessionRepository
	Storage   *miniostorage.Storage
	Redis     *goredis.Client
	Cache     *redisinfra.TotalsCache
	AMQP      *amqp.Connection
	Publisher *rabbitmq.Publisher
	Topology  rabbitmq.Topology
}

// Connect opens every backing service and applies migrations. On error whatever was
// already opened is closed again.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *Infra, err error) {
	infra := &Infra{
		Topology: rabbitmq.Topology{
			Exchange:     cfg.RabbitMQExchange,
			RequestQueue: cfg.RabbitMQAnalysisQueue,
			StatusQueue:  cfg.RabbitMQStatusQueue,
			DLQ:          cfg.RabbitMQDLQ,
		},
	}
	defer func() {
		if err != nil {
			infra.Close()
		}
	}()

	infra.Pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := postgres.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}
	infra.Repo = postgres.NewSessionRepository(infra.Pool)

	infra.Storage, err = miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       cfg.MinIOEndpoint,
		AccessKey:      cfg.MinIOAccessKey,
		SecretKey:      cfg.MinIOSecretKey,
		UseSSL:         cfg.MinIOUseSSL,
		UploadBucket:   cfg.MinIOUploadBucket,
		ArtifactBucket: cfg.MinIOArtifactBucket,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio storage: %w", err)
	}
	if err := infra.Storage.EnsureBuckets(ctx); err != nil {
		return nil, fmt.Errorf("ensure minio buckets: %w", err)
	}

	infra.Redis, err = redisinfra.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	infra.Cache = redisinfra.NewTotalsCache(infra.Redis, cfg.TotalsCacheTTL)

	infra.AMQP, err = amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	infra.Publisher, err = rabbitmq.NewPublisher(infra.AMQP, cfg.RabbitMQExchange)
	if err != nil {
		return nil, fmt.Errorf("create rabbitmq publisher: %w", err)
	}

	ch, err := infra.AMQP.Channel()
	if err != nil {
		return nil, fmt.Errorf("open topology channel: %w", err)
	}
	defer ch.Close()
	if err := infra.Topology.Declare(ch); err != nil {
		return nil, err
	}

	return infra, nil
}

// NewAnalyzeUseCase builds the classifier and the pipeline around the connected services.
func (i *Infra) NewAnalyzeUseCase(cfg *config.Config, log *zap.Logger) (*usecase.AnalyzeVideoUseCase, error) {
	classifier, err := openai.NewClassifier(openai.ClientConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIModel,
		MaxTokens:  cfg.OpenAIMaxTokens,
		Timeout:    cfg.ClassifierTimeout,
		RatePerSec: cfg.ClassifierRatePerSec,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("create classifier: %w", err)
	}

	var annotator port.FrameAnnotator
	if cfg.AnnotateFrames {
		annotator = ffmpeg.NewAnnotator(cfg.FontFile, log)
	}

	return usecase.NewAnalyzeVideoUseCase(usecase.AnalyzeVideoDeps{
		Repo:       i.Repo,
		Videos:     i.Storage,
		Artifacts:  i.Storage,
		Extractor:  ffmpeg.NewExtractor(cfg.FrameStep, cfg.FrameFormat, log),
		Aggregator: usecase.NewFrameAggregator(classifier, annotator, cfg.ClassifierConcurrency, log),
		Reports:    report.NewWriter(log),
		Zipper:     ffmpeg.NewZipCreator(),
		Cache:      i.Cache,
		Status:     rabbitmq.NewStatusPublisher(i.Publisher),
		Requests:   rabbitmq.NewRequestPublisher(i.Publisher),
		DLQ:        rabbitmq.NewDLQPublisher(i.Publisher, cfg.RabbitMQDLQ),
		Notifier:   email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log),
	}, log, usecase.AnalyzeVideoConfig{
		TempDir:    cfg.TempDir,
		MaxRetries: cfg.MaxRetries,
	}), nil
}

func (i *Infra) NewSessionService(log *zap.Logger) *usecase.SessionService {
	return usecase.NewSessionService(i.Repo, i.Storage, i.Storage, i.Cache, log)
}

// ReadyChecks are probed by /readyz and /health.
func (i *Infra) ReadyChecks() map[string]metrics.ReadyCheck {
	return map[string]metrics.ReadyCheck{
		"postgres": i.Repo.Ping,
		"redis":    i.Cache.Ping,
		"minio":    i.Storage.Ping,
		"rabbitmq": func(context.Context) error {
			if i.AMQP.IsClosed() {
				return fmt.Errorf("connection closed")
			}
			return nil
		},
	}
}

func (i *Infra) Close() {
	if i.Publisher != nil {
		i.Publisher.Close()
	}
	if i.AMQP != nil {
		i.AMQP.Close()
	}
	if i.Redis != nil {
		i.Redis.Close()
	}
	if i.Pool != nil {
		i.Pool.Close()
	}
}

// ShutdownTimeout bounds how long servers get to drain.
const ShutdownTimeout = 5 * time.Second
