package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	addrFlag    string
	metricsFlag bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the photo and gallery API",
	Long: `Serve starts the HTTP API. When uploads are stored on local disk they are
also served under the configured upload URL prefix.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Listen address (default PORTFOLIO_LISTEN_ADDR or :8080)")
	serveCmd.Flags().BoolVar(&metricsFlag, "metrics", false, "Write EMF metrics to stdout")
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := wire(cmd.Context(), "portfolio", metricsFlag)
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", app.Handler(commitHash))
	if app.UploadDir != "" {
		prefix := strings.TrimRight(app.Config.UploadURLPrefix, "/") + "/"
		mux.Handle(prefix, http.StripPrefix(prefix, withStaticHeaders(http.FileServer(http.Dir(app.UploadDir)))))
	}

	addr := addrFlag
	if addr == "" {
		addr = app.Config.ListenAddr
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info().Str("addr", addr).Msg("Starting portfolio server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Server failed")
		return err
	}
	return nil
}

// withStaticHeaders sets the security headers of uploaded files.
func withStaticHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		next.ServeHTTP(w, r)
	})
}
