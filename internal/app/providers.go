package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	brokerhttp "github.com/uniedit/mediaupload/internal/adapter/inbound/http/broker"
	"github.com/uniedit/mediaupload/internal/adapter/outbound/blobhttp"
	"github.com/uniedit/mediaupload/internal/adapter/outbound/brokerclient"
	redisadapter "github.com/uniedit/mediaupload/internal/adapter/outbound/redis"
	s3adapter "github.com/uniedit/mediaupload/internal/adapter/outbound/s3"
	"github.com/uniedit/mediaupload/internal/domain/broker"
	"github.com/uniedit/mediaupload/internal/domain/upload"
	"github.com/uniedit/mediaupload/internal/infra/config"
	"github.com/uniedit/mediaupload/internal/infra/events"
	"github.com/uniedit/mediaupload/internal/infra/httpclient"
	"github.com/uniedit/mediaupload/internal/port/inbound"
	"github.com/uniedit/mediaupload/internal/port/outbound"
	"github.com/uniedit/mediaupload/internal/utils/logger"
	"github.com/uniedit/mediaupload/internal/utils/metrics"
)

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies shared by both binaries.
var InfraSet = wire.NewSet(
	ProvideLogger,
	ProvideZapLogger,
	ProvideMetrics,
	ProvideHTTPClient,
)

// ProvideLogger creates a logger instance.
func ProvideLogger(cfg *config.Config) *logger.Logger {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

// ProvideZapLogger creates a zap logger instance.
func ProvideZapLogger(cfg *config.Config) (*zap.Logger, func()) {
	l := logger.NewZap(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	return l, func() { _ = l.Sync() }
}

// ProvideMetrics creates the metrics registry.
func ProvideMetrics() *metrics.Metrics {
	return metrics.New("mediaupload", prometheus.NewRegistry())
}

// ProvideHTTPClient creates a shared HTTP client with connection pooling.
func ProvideHTTPClient(cfg *config.Config) *http.Client {
	return httpclient.New(cfg.HTTPClient)
}

// ===== Broker Server Providers =====

// BrokerSet provides the authorization broker and its HTTP surface.
var BrokerSet = wire.NewSet(
	ProvideRedisClient,
	ProvideRateLimiter,
	ProvideS3Client,
	ProvideMediaStorage,
	ProvideBrokerConfig,
	ProvideBrokerDomain,
	brokerhttp.NewHandler,
)

// ProvideRedisClient connects to Redis. It returns nil when Redis is not
// configured or unreachable, which disables rate limiting.
func ProvideRedisClient(cfg *config.Config, zapLog *zap.Logger) (*goredis.Client, func()) {
	if cfg.Redis.Address == "" {
		return nil, func() {}
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		zapLog.Warn("Redis connection failed, continuing without rate limiting", zap.Error(err))
		_ = client.Close()
		return nil, func() {}
	}
	return client, func() { _ = client.Close() }
}

// ProvideRateLimiter creates a rate limiter, or nil without Redis.
func ProvideRateLimiter(client *goredis.Client) outbound.RateLimiterPort {
	if client == nil {
		return nil
	}
	return redisadapter.NewRateLimiter(client)
}

// ProvideS3Client creates the S3 client.
func ProvideS3Client(cfg *config.Config) (*awss3.Client, error) {
	return s3adapter.NewClient(context.Background(), &s3adapter.ClientConfig{
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Bucket:          cfg.Storage.Bucket,
		Endpoint:        cfg.Storage.Endpoint,
		UsePathStyle:    cfg.Storage.UsePathStyle,
	})
}

// ProvideMediaStorage creates the media storage adapter.
func ProvideMediaStorage(client *awss3.Client, cfg *config.Config) outbound.MediaStoragePort {
	return s3adapter.NewMediaStorageAdapter(client, cfg.Storage.Bucket)
}

// ProvideBrokerConfig maps storage settings to broker configuration.
func ProvideBrokerConfig(cfg *config.Config) *broker.Config {
	return &broker.Config{
		PresignExpiry:       cfg.Storage.PresignExpiry,
		PublicBaseURL:       cfg.Storage.ResolvedPublicBaseURL(),
		KeyRandomSuffix:     cfg.Storage.KeyRandomSuffix,
		AllowedContentTypes: cfg.Storage.AllowedContentTypes,
		ListPrefix:          cfg.Storage.ListPrefix,
		ListMaxKeys:         cfg.Storage.ListMaxKeys,
	}
}

// ProvideBrokerDomain creates the broker domain.
func ProvideBrokerDomain(
	storage outbound.MediaStoragePort,
	m *metrics.Metrics,
	cfg *broker.Config,
	zapLog *zap.Logger,
) inbound.BrokerDomain {
	return broker.NewDomain(storage, m, cfg, zapLog)
}

// ===== Uploader Providers =====

// UploaderSet provides the client-side upload orchestrator.
var UploaderSet = wire.NewSet(
	ProvideBrokerClient,
	wire.Bind(new(outbound.UploadAuthorizerPort), new(*brokerclient.Client)),
	ProvideBlobTransport,
	ProvideProgressBus,
	wire.Bind(new(outbound.ProgressBusPort), new(*events.ProgressBus)),
	ProvideUploadConfig,
	ProvideRegistry,
	ProvideUploadDomain,
)

// ProvideBrokerClient creates the broker HTTP client.
func ProvideBrokerClient(cfg *config.Config, httpClient *http.Client, zapLog *zap.Logger) *brokerclient.Client {
	return brokerclient.NewClient(&brokerclient.Config{
		BaseURL:          cfg.Broker.BaseURL,
		MaxRequests:      cfg.Broker.BreakerMaxRequests,
		Interval:         cfg.Broker.BreakerInterval,
		Timeout:          cfg.Broker.BreakerTimeout,
		FailureThreshold: cfg.Broker.BreakerFailureThreshold,
	}, httpClient, zapLog)
}

// ProvideBlobTransport creates the presigned PUT transport.
func ProvideBlobTransport(httpClient *http.Client, zapLog *zap.Logger) outbound.BlobTransportPort {
	return blobhttp.NewTransport(httpClient, zapLog)
}

// ProvideProgressBus creates the progress bus.
func ProvideProgressBus(zapLog *zap.Logger) *events.ProgressBus {
	return events.NewProgressBus(zapLog)
}

// ProvideUploadConfig maps upload settings to orchestrator configuration.
func ProvideUploadConfig(cfg *config.Config) (*upload.Config, error) {
	threshold, err := cfg.Upload.SizeThresholdBytes()
	if err != nil {
		return nil, err
	}
	chunk, err := cfg.Upload.ChunkSizeBytes()
	if err != nil {
		return nil, err
	}
	uc := &upload.Config{
		SizeThreshold:        threshold,
		ChunkSize:            chunk,
		PartConcurrency:      cfg.Upload.PartConcurrency,
		MaxConcurrentUploads: cfg.Upload.MaxConcurrentUploads,
		AbortOnFailure:       cfg.Upload.AbortOnFailure,
		RetireDelay:          cfg.Upload.RetireDelay,
	}
	if err := uc.Validate(); err != nil {
		return nil, fmt.Errorf("upload config: %w", err)
	}
	return uc, nil
}

// ProvideRegistry creates the upload registry.
func ProvideRegistry(cfg *upload.Config, zapLog *zap.Logger) *upload.Registry {
	return upload.NewRegistry(cfg.RetireDelay, zapLog)
}

// ProvideUploadDomain creates the upload orchestrator.
func ProvideUploadDomain(
	authorizer outbound.UploadAuthorizerPort,
	transport outbound.BlobTransportPort,
	bus outbound.ProgressBusPort,
	registry *upload.Registry,
	observer upload.Observer,
	m *metrics.Metrics,
	cfg *upload.Config,
	zapLog *zap.Logger,
) (*upload.Domain, error) {
	return upload.NewDomain(authorizer, transport, bus, registry, observer, m, cfg, zapLog)
}
