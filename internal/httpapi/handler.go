// Package httpapi exposes the photo and gallery operations over JSON HTTP.
package httpapi

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"

	"github.com/fpang/photo-portfolio/internal/folder"
	"github.com/fpang/photo-portfolio/internal/gallery"
	"github.com/fpang/photo-portfolio/internal/metrics"
	"github.com/fpang/photo-portfolio/internal/photoorder"
	"github.com/fpang/photo-portfolio/internal/upload"
)

// Options are the collaborators of the HTTP handler.
type Options struct {
	Folders   *folder.Resolver
	Photos    *photoorder.Engine
	Uploads   *upload.Pipeline
	Galleries *gallery.Directory
	// Metrics is optional.
	Metrics *metrics.Emitter
	// OriginVerify, when set, is required in the x-origin-verify header.
	OriginVerify string
	// MaxUploadBytes bounds a single uploaded file.
	MaxUploadBytes int64
	// Version is reported by the health check.
	Version string
}

type server struct {
	folders        *folder.Resolver
	photos         *photoorder.Engine
	uploads        *upload.Pipeline
	galleries      *gallery.Directory
	metrics        *metrics.Emitter
	originVerify   string
	maxUploadBytes int64
	version        string
}

// NewHandler builds the API handler with logging, metrics, origin
// verification and gzip compression applied.
func NewHandler(opts Options) http.Handler {
	s := &server{
		folders:        opts.Folders,
		photos:         opts.Photos,
		uploads:        opts.Uploads,
		galleries:      opts.Galleries,
		metrics:        opts.Metrics,
		originVerify:   opts.OriginVerify,
		maxUploadBytes: opts.MaxUploadBytes,
		version:        opts.Version,
	}
	if s.maxUploadBytes <= 0 {
		s.maxUploadBytes = upload.DefaultMaxFileSize
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/photos", s.handlePhotos)
	mux.HandleFunc("/api/photos/order", s.handlePhotoOrder)
	mux.HandleFunc("/api/photos/order/swap", s.handlePhotoSwap)
	mux.HandleFunc("/api/photos/group", s.handlePhotoGroup)
	mux.HandleFunc("/api/photos/all", s.handlePhotosAll)
	mux.HandleFunc("/api/galleries", s.handleGalleries)
	mux.HandleFunc("/api/galleries/order", s.handleGalleryOrder)
	mux.HandleFunc("/api/galleries/", s.handleGalleryRoutes)

	return gzhttp.GzipHandler(withLogging(s.withMetrics(s.withOriginVerify(mux))))
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}
