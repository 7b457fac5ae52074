package server

import (
	httpapi "cidrvend/internal/api/http"
	"cidrvend/internal/api/http/logger"
	"cidrvend/internal/config"
	"cidrvend/internal/core/vending"
	"cidrvend/internal/ipam"
	"cidrvend/internal/metrics"
	"cidrvend/internal/store/allocation"
	"cidrvend/internal/utils"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/go-chi/chi/v5"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Service is the wired allocation service shared by the server and lambda
// entry points.
type Service struct {
	Store   allocation.AllocationStore
	Router  *chi.Mux
	Metrics *metrics.Metrics
}

// NewService builds store, allocator and router from cfg. trustDomain is
// empty when identity is attached before the router.
func NewService(cfg *config.ServiceConf, trustDomain string, logs *zap.Logger) (*Service, error) {
	pool, err := ipam.NewPool(cfg.MasterCidrBlock, cfg.VpcNetmask, cfg.SubnetNetmask)
	if err != nil {
		return nil, &config.ConfigurationError{Err: err}
	}

	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	svc := vending.NewVendingService(ipam.NewIpamManager(store, pool, clock.NewDefaultClock(), logs), m, logs)

	host, _ := os.Hostname()
	router := httpapi.NewApiRouter(httpapi.NewRequestHandler(svc), httpapi.RouterConfig{
		TrustDomain: trustDomain,
		AuditLogger: logger.ZapLogger{Logs: logs.Named("audit")},
		Node:        host,
		Metrics:     m.Handler(),
	})

	logs.Info("allocation service ready",
		zap.String("master", pool.Master.String()),
		zap.Int("vpc_netmask", pool.BlockBits),
		zap.Int("subnet_netmask", pool.SubBits),
		zap.Uint64("candidates", pool.NumCandidates()),
		zap.String("store", cfg.StoreBackend))

	return &Service{Store: store, Router: router, Metrics: m}, nil
}

// NewStore opens the configured store backend.
func NewStore(cfg *config.ServiceConf) (allocation.AllocationStore, error) {
	switch cfg.StoreBackend {
	case config.BackendDynamo:
		awsCfg := &aws.Config{}
		if cfg.AWSRegion != "" {
			awsCfg.Region = aws.String(cfg.AWSRegion)
		}
		sess, err := session.NewSession(awsCfg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to setup aws session")
		}
		return allocation.NewDynamoStore(dynamodb.New(sess), cfg.TableName), nil

	case config.BackendBolt:
		path := storePath(cfg.StorePath, utils.BoltStorePath)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create state dir")
		}
		return allocation.NewBoltStore(path)

	case config.BackendFile:
		return allocation.NewFileStore(storePath(cfg.StorePath, utils.FileStorePath)), nil

	default:
		return nil, &config.ConfigurationError{Err: errors.Errorf("unknown store backend %q", cfg.StoreBackend)}
	}
}

func storePath(configured string, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}
