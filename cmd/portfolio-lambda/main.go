// Command portfolio-lambda serves the portfolio API on AWS Lambda behind an
// HTTP API (payload format 2.0).
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-portfolio/internal/config"
	"github.com/fpang/photo-portfolio/internal/lambdaboot"
	"github.com/fpang/photo-portfolio/internal/logging"
)

// Build-time version identity, injected via -ldflags:
//
//	go build -ldflags="-X main.commitHash=${COMMIT_HASH}"
var commitHash = "dev"

func main() {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	startup := logging.NewStartupLogger("portfolio-lambda").Version(commitHash)
	app, err := lambdaboot.Wire(context.Background(), cfg, startup, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	startup.InitDuration(time.Since(initStart)).Log()

	adapter := httpadapter.NewV2(app.Handler(commitHash))
	lambda.Start(adapter.ProxyWithContext)
}
