package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"StockCast/internal/domain/repository"
	"StockCast/internal/handler/api"
	internalrepo "StockCast/internal/repository"
	"StockCast/internal/services/features"
	"StockCast/internal/services/forecast"
	"StockCast/internal/usecase"
	"StockCast/pkg/cache"
	pkgch "StockCast/pkg/clickhouse"
	"StockCast/pkg/config"
	xhttp "StockCast/pkg/http"
	pkgkafka "StockCast/pkg/kafka"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/metrics"
	"StockCast/pkg/queue"
	"StockCast/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Logging.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Logging.Format
	if format == "" {
		format = "json"
	}
	output := cfg.Logging.Output
	if output == "" {
		output = "stdout"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: output})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS stockcast",
		"CREATE TABLE IF NOT EXISTS stockcast.bars_1m (ts DateTime, symbol String, open Float64, high Float64, low Float64, close Float64, vol Float64) ENGINE=ReplacingMergeTree ORDER BY (symbol, ts)",
		"CREATE TABLE IF NOT EXISTS stockcast.bars_1h (ts DateTime, symbol String, open Float64, high Float64, low Float64, close Float64, vol Float64) ENGINE=ReplacingMergeTree ORDER BY (symbol, ts)",
		"CREATE TABLE IF NOT EXISTS stockcast.bars_1d (ts DateTime, symbol String, open Float64, high Float64, low Float64, close Float64, vol Float64) ENGINE=ReplacingMergeTree ORDER BY (symbol, ts)",
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideBarStore creates the ClickHouse bar repository.
func ProvideBarStore(chClient *pkgch.Client, l *applogger.Logger) repository.BarStore {
	store := internalrepo.NewCHBarStore(chClient)
	store.SetLogger(l)
	return store
}

// ProvideCache selects Redis when enabled, in-process memory otherwise.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(
			cache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
		), nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix("stockcast"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis prediction cache enabled", applogger.String("addr", cfg.Redis.Addr))
	return c, nil
}

// ProvideFeatureEngine creates the feature engine over the default registry.
func ProvideFeatureEngine(l *applogger.Logger) *features.Engine {
	return features.NewEngine(features.NewRegistry(), l)
}

// ProvideArtifactStore creates the on-disk model artifact store.
func ProvideArtifactStore(cfg *config.Config, l *applogger.Logger) (*forecast.ArtifactStore, error) {
	return forecast.NewArtifactStore(cfg.Forecast.ModelDir, l)
}

// ProvideWorkerPool creates the pool for CPU-bound model work.
func ProvideWorkerPool(cfg *config.Config, l *applogger.Logger) *queue.Pool {
	return queue.NewPool(cfg.Forecast.Workers.Count, cfg.Forecast.Workers.QueueSize, l)
}

// ProvideTrainer creates the training pipeline.
func ProvideTrainer(engine *features.Engine, store *forecast.ArtifactStore, l *applogger.Logger, cfg *config.Config) *forecast.Trainer {
	return forecast.NewTrainer(engine, store, l, cfg.Forecast.SequenceLength, cfg.Forecast.Horizon)
}

// ProvidePredictor creates the inference pipeline.
func ProvidePredictor(engine *features.Engine, m repository.Metrics, l *applogger.Logger) *forecast.Predictor {
	return forecast.NewPredictor(engine, m, l)
}

// ProvideFallback creates the degradation ladder.
func ProvideFallback(l *applogger.Logger) *forecast.Fallback {
	return forecast.NewFallback(l)
}

// ProvideManager creates the per-symbol model lifecycle manager.
func ProvideManager(
	trainer *forecast.Trainer,
	predictor *forecast.Predictor,
	fallback *forecast.Fallback,
	store *forecast.ArtifactStore,
	pool *queue.Pool,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *forecast.Manager {
	return forecast.NewManager(
		trainer, predictor, fallback, store, pool, m, l,
		cfg.Forecast.Retrain.MaxModelAge,
		cfg.Forecast.SequenceLength,
		cfg.Forecast.Horizon,
	)
}

// ProvideForecastUseCase wires the forecast orchestration.
func ProvideForecastUseCase(
	bars repository.BarStore,
	manager *forecast.Manager,
	m repository.Metrics,
	l *applogger.Logger,
	c cache.Service,
	producer *pkgkafka.Producer,
	cfg *config.Config,
) *usecase.ForecastUseCase {
	opts := []usecase.ForecastOption{
		usecase.WithSymbols(cfg.Forecast.Symbols),
		usecase.WithTrainingDefaults(forecast.TrainConfig{
			Epochs:          cfg.Forecast.Training.Epochs,
			BatchSize:       cfg.Forecast.Training.BatchSize,
			ValidationSplit: cfg.Forecast.Training.ValidationSplit,
			Patience:        cfg.Forecast.Training.Patience,
			HiddenSize:      cfg.Forecast.Training.HiddenSize,
		}),
	}
	if c != nil {
		ttl := cfg.Cache.PredictionTTL
		if ttl <= 0 {
			ttl = 6 * time.Hour
		}
		opts = append(opts, usecase.WithCache(c, ttl))
	}
	if producer != nil && cfg.Kafka.PredictionsTopic != "" {
		opts = append(opts, usecase.WithPublisher(producer, cfg.Kafka.PredictionsTopic))
	}
	return usecase.NewForecastUseCase(bars, manager, m, l, opts...)
}

// ProvideKafkaBarsHandler registers the ingestion handler for the bars topic.
func ProvideKafkaBarsHandler(bars repository.BarStore, l *applogger.Logger, cfg *config.Config) *usecase.KafkaBarsHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.BarsTopic, bars, l)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(l *applogger.Logger, uc *usecase.ForecastUseCase) xhttp.Handler {
	return api.NewForecastEchoHandler(l, uc)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	uc *usecase.ForecastUseCase,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	pool *queue.Pool,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, l, uc, handler, consumer, kh, chClient, producer, pool)
}
