package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/photo-portfolio/internal/config"
	"github.com/fpang/photo-portfolio/internal/lambdaboot"
	"github.com/fpang/photo-portfolio/internal/logging"
)

// Build-time version identity, injected via -ldflags:
//
//	go build -ldflags="-X main.commitHash=${COMMIT_HASH}"
var commitHash = "dev"

// Flags shared by every command. Empty values keep the environment config.
var (
	backendFlag string
	dataDirFlag string
)

var rootCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Photography portfolio service",
	Long: `Portfolio serves the photo and gallery API of a photography portfolio and
offers maintenance commands against the same record backend.

Configuration is read from PORTFOLIO_* environment variables; flags override them.

Examples:
  portfolio serve --addr :9090
  portfolio normalize --folder galleries/boda
  portfolio galleries --backend baas`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Record backend: baas, dynamo, file or memory")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory for the file backend and local uploads")
	rootCmd.AddCommand(serveCmd, normalizeCmd, galleriesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (config.Config, error) {
	if backendFlag != "" {
		os.Setenv("PORTFOLIO_BACKEND", backendFlag)
	}
	if dataDirFlag != "" {
		os.Setenv("PORTFOLIO_DATA_DIR", dataDirFlag)
	}
	return config.Load()
}

// wire loads the configuration and builds the service. The startup event is
// logged once wiring succeeds.
func wire(ctx context.Context, name string, metrics bool) (*lambdaboot.App, error) {
	start := time.Now()
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	var metricsOut io.Writer
	if metrics {
		metricsOut = os.Stdout
	}
	startup := logging.NewStartupLogger(name).Version(commitHash)
	app, err := lambdaboot.Wire(ctx, cfg, startup, metricsOut)
	if err != nil {
		return nil, err
	}
	startup.InitDuration(time.Since(start)).Log()
	return app, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write output")
		return err
	}
	return nil
}
