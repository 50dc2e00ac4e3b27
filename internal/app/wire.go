//go:build wireinject
// +build wireinject

package app

import (
	"net/http"

	"github.com/google/wire"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	brokerhttp "github.com/uniedit/mediaupload/internal/adapter/inbound/http/broker"
	"github.com/uniedit/mediaupload/internal/adapter/outbound/brokerclient"
	"github.com/uniedit/mediaupload/internal/domain/upload"
	"github.com/uniedit/mediaupload/internal/infra/config"
	"github.com/uniedit/mediaupload/internal/infra/events"
	"github.com/uniedit/mediaupload/internal/port/inbound"
	"github.com/uniedit/mediaupload/internal/port/outbound"
	"github.com/uniedit/mediaupload/internal/utils/logger"
	"github.com/uniedit/mediaupload/internal/utils/metrics"
)

// Dependencies holds the broker server dependencies.
type Dependencies struct {
	Config      *config.Config
	Redis       *goredis.Client
	RateLimiter outbound.RateLimiterPort
	Logger      *logger.Logger
	ZapLogger   *zap.Logger
	Metrics     *metrics.Metrics

	BrokerDomain  inbound.BrokerDomain
	BrokerHandler *brokerhttp.Handler
}

// UploaderDependencies holds the upload client dependencies.
type UploaderDependencies struct {
	Config       *config.Config
	HTTPClient   *http.Client
	ZapLogger    *zap.Logger
	Metrics      *metrics.Metrics
	BrokerClient *brokerclient.Client
	Bus          *events.ProgressBus
	Registry     *upload.Registry
	Uploads      *upload.Domain
}

// InitializeDependencies creates the broker server dependencies using Wire.
func InitializeDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	wire.Build(
		InfraSet,
		BrokerSet,
		wire.Struct(new(Dependencies), "*"),
	)
	return nil, nil, nil
}

// InitializeUploader creates the upload client dependencies using Wire.
func InitializeUploader(cfg *config.Config, observer upload.Observer) (*UploaderDependencies, func(), error) {
	wire.Build(
		InfraSet,
		UploaderSet,
		wire.Struct(new(UploaderDependencies), "*"),
	)
	return nil, nil, nil
}
