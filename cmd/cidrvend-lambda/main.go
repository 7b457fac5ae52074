package main

import (
	"cidrvend/internal/api/gateway"
	"cidrvend/internal/config"
	"cidrvend/internal/logging"
	"cidrvend/internal/server"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

// Serves the allocation API behind an API Gateway proxy integration with
// IAM authorization.
func main() {
	cfg, err := config.ServiceConfFromEnv()
	if err != nil {
		log.Fatalf("failed to load configuration: %+v", err)
	}

	logs, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("failed to create logger: %+v", err)
	}

	svc, err := server.NewService(cfg, "", logs)
	if err != nil {
		logs.Fatal("failed to build allocation service", zap.Error(err))
	}

	lambda.Start(gateway.NewHandler(svc.Router, cfg.StripBaseMappings, logs).Handle)
}
