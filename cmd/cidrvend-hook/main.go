package main

import (
	"cidrvend/internal/config"
	"cidrvend/internal/lifecycle"
	"cidrvend/internal/logging"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func main() {
	stdin := flag.Bool("stdin", false, "read one lifecycle event from stdin instead of the lambda runtime")
	flag.Parse()

	cfg, err := config.ClientConfFromEnv()
	if err != nil {
		log.Fatalf("failed to load configuration: %+v", err)
	}

	logs, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("failed to create logger: %+v", err)
	}
	defer logs.Sync()

	handler, err := newHandler(cfg, logs)
	if err != nil {
		logs.Fatal("failed to setup lifecycle handler", zap.Error(err))
	}

	if !*stdin && os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		lambda.Start(handler.Handle)
		return
	}

	// read stdin (lifecycle event json)
	body, err := readBodyWithLimit(os.Stdin, 1<<20) // 1 MiB limit
	if err != nil {
		logs.Fatal("read stdin", zap.Error(err))
	}
	var req lifecycle.Request
	if err := json.Unmarshal(body, &req); err != nil {
		logs.Fatal("json parse", zap.Error(err))
	}

	if err := handler.Handle(context.Background(), req); err != nil {
		os.Exit(1)
	}
}

func newHandler(cfg *config.ClientConf, logs *zap.Logger) (*lifecycle.Handler, error) {
	var (
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
		signer     lifecycle.RequestSigner
		region     = cfg.AWSRegion
	)

	switch cfg.AuthMode {
	case config.AuthMTLS:
		c, err := lifecycle.NewMTLSClient(cfg.TLSCA, cfg.TLSCert, cfg.TLSKey, cfg.RequestTimeout)
		if err != nil {
			return nil, errors.Wrap(err, "init http client")
		}
		httpClient = c

	default:
		sess, err := session.NewSession()
		if err != nil {
			return nil, errors.Wrap(err, "failed to setup aws session")
		}
		if region == "" && sess.Config.Region != nil {
			region = *sess.Config.Region
		}
		// credentials must be scoped to the region of the api endpoint
		signingRegion := lifecycle.SigningRegion(cfg.VendingMachineAPI, region)
		signer = lifecycle.NewSigV4Signer(sess.Config.Credentials, signingRegion, clock.NewDefaultClock())
	}

	if region == "" {
		return nil, &config.ConfigurationError{Err: errors.New("no region configured, set AWS_REGION")}
	}

	client, err := lifecycle.NewClient(cfg.VendingMachineAPI, region, httpClient, signer)
	if err != nil {
		return nil, err
	}

	responder := lifecycle.NewHTTPResponder(&http.Client{Timeout: cfg.RequestTimeout})
	return lifecycle.NewHandler(client, responder, logs), nil
}

func readBodyWithLimit(r io.Reader, limit int64) ([]byte, error) {
	lr := &io.LimitedReader{R: r, N: limit + 1}
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errors.Errorf("input too large (>%d bytes)", limit)
	}
	return b, nil
}
