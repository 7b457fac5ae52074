package main

import (
	"cidrvend/internal/config"
	"cidrvend/internal/logging"
	"cidrvend/internal/server"
	"context"
	"crypto/tls"
	"crypto/x509"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.ServiceConfFromEnv()
	if err != nil {
		log.Fatalf("failed to load configuration: %+v", err)
	}

	logs, level, err := logging.NewWithLevel(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("failed to create logger: %+v", err)
	}
	defer logs.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// log level follows the config file at runtime
	if path := os.Getenv(config.FileEnv); path != "" {
		err := config.WatchFile(ctx, path, logs, func(c *config.ServiceConf) {
			if c.LogLevel == "" {
				return
			}
			if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
				logs.Warn("invalid log level in config file", zap.String("level", c.LogLevel))
				return
			}
			logs.Info("log level changed", zap.String("level", c.LogLevel))
		})
		if err != nil {
			logs.Warn("config file not watched", zap.Error(err))
		}
	}

	// identity comes from client certificates only when they are verified
	trustDomain := ""
	if cfg.TLSClientCA != "" {
		trustDomain = cfg.TrustDomain
	}

	svc, err := server.NewService(cfg, trustDomain, logs)
	if err != nil {
		logs.Fatal("failed to build allocation service", zap.Error(err))
	}
	defer svc.Store.Close()

	tlsCfg, err := serverTLSConfig(cfg)
	if err != nil {
		logs.Fatal("failed to setup tls", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           svc.Router,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logs.Info("management server listening", zap.String("addr", cfg.ListenAddr), zap.Bool("tls", tlsCfg != nil))
		var err error
		if tlsCfg != nil {
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logs.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logs.Error("graceful shutdown failed", zap.Error(err))
	}
}

func serverTLSConfig(cfg *config.ServiceConf) (*tls.Config, error) {
	if cfg.TLSCert == "" {
		return nil, nil
	}

	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS13,
	}
	if cfg.TLSClientCA != "" {
		caPem, err := os.ReadFile(cfg.TLSClientCA)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read client CA")
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPem); !ok {
			return nil, errors.New("failed to append client CA cert")
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tlsCfg, nil
}
