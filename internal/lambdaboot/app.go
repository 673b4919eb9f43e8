package lambdaboot

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-portfolio/internal/config"
	"github.com/fpang/photo-portfolio/internal/folder"
	"github.com/fpang/photo-portfolio/internal/gallery"
	"github.com/fpang/photo-portfolio/internal/httpapi"
	"github.com/fpang/photo-portfolio/internal/logging"
	"github.com/fpang/photo-portfolio/internal/metrics"
	"github.com/fpang/photo-portfolio/internal/photoorder"
	"github.com/fpang/photo-portfolio/internal/recordstore"
	"github.com/fpang/photo-portfolio/internal/upload"
)

// App is the wired portfolio service.
type App struct {
	Config    config.Config
	Folders   *folder.Resolver
	Photos    *photoorder.Engine
	Uploads   *upload.Pipeline
	Galleries *gallery.Directory
	// Metrics is nil when no metrics output was requested.
	Metrics *metrics.Emitter
	// UploadDir is set when uploads are stored on local disk.
	UploadDir string
}

// Wire builds the service for cfg and registers its resources on startup.
// EMF metrics are written to metricsOut when it is not nil. AWS clients are
// only created when the configuration needs them.
func Wire(ctx context.Context, cfg config.Config, startup *logging.StartupLogger, metricsOut io.Writer) (*App, error) {
	app := &App{Config: cfg}
	startup.Backend(string(cfg.Backend))

	var clients *AWSClients
	awsClients := func() (AWSClients, error) {
		if clients != nil {
			return *clients, nil
		}
		c, err := InitAWS(ctx)
		if err != nil {
			return AWSClients{}, err
		}
		clients = &c
		return c, nil
	}

	var opts []photoorder.Option
	if metricsOut != nil {
		app.Metrics = metrics.NewEmitter(metrics.Namespace, metricsOut)
		opts = append(opts, photoorder.WithNormalizeObserver(app.Metrics.Normalized))
	}
	startup.Feature("metrics", app.Metrics != nil)

	var (
		orderStore   photoorder.OrderStore
		galleryStore gallery.Store
	)
	switch cfg.Backend {
	case config.BackendFile:
		orderStore = photoorder.NewFileOrderStore(cfg.DataDir)
		galleryStore = gallery.NewFileStore(cfg.DataDir)
		startup.Directory("data", cfg.DataDir)
	default:
		gw, err := initGateway(ctx, cfg, startup, awsClients)
		if err != nil {
			return nil, err
		}
		orderStore = photoorder.NewRemoteOrderStore(gw)
		galleryStore = gallery.NewRemoteStore(gw, cfg.SiteID)
	}

	var storage upload.Storage
	if cfg.Bucket != "" {
		c, err := awsClients()
		if err != nil {
			return nil, err
		}
		storage = InitS3Storage(c.Config, cfg.Bucket, cfg.PublicBaseURL)
		startup.S3Bucket("media", cfg.Bucket)
		startup.Feature("presignedURLs", cfg.PublicBaseURL == "")
	} else {
		storage = upload.DiskStorage{}
		app.UploadDir = cfg.UploadDir()
		startup.Directory("uploads", app.UploadDir)
	}

	// Folder directories are only derived when files live on disk.
	app.Folders = folder.NewResolver(app.UploadDir, cfg.UploadURLPrefix)
	app.Photos = photoorder.NewEngine(orderStore, opts...)
	app.Uploads = upload.NewPipeline(app.Photos, storage, cfg.MaxUploadBytes())
	app.Galleries = gallery.NewDirectory(galleryStore, app.Photos, app.Folders)

	startup.
		Feature("originVerify", cfg.OriginVerify != "").
		Config("maxUploadMB", fmt.Sprint(cfg.MaxUploadMB))
	if cfg.SiteID != "" {
		startup.Config("siteId", cfg.SiteID)
	}
	return app, nil
}

func initGateway(ctx context.Context, cfg config.Config, startup *logging.StartupLogger, awsClients func() (AWSClients, error)) (recordstore.Gateway, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn().Msg("Using the in-memory record store; data is lost on exit")
		return recordstore.NewMemoryGateway(), nil

	case config.BackendDynamo:
		c, err := awsClients()
		if err != nil {
			return nil, err
		}
		startup.DynamoTable("records", cfg.Table)
		return InitDynamoGateway(c.Config, cfg.Table), nil

	case config.BackendBaaS:
		key := cfg.BaaSRESTKey
		if key == "" {
			c, err := awsClients()
			if err != nil {
				return nil, err
			}
			key, err = LoadBaaSKey(ctx, c.SSM, cfg.SSMRESTKeyParam)
			if err != nil {
				return nil, err
			}
			startup.SSMParam("restKey", cfg.SSMRESTKeyParam)
		}
		gw, err := recordstore.NewRESTClient(recordstore.RESTConfig{
			BaseURL:      cfg.BaaSURL,
			AppID:        cfg.BaaSAppID,
			RESTKey:      key,
			SessionToken: cfg.BaaSSessionToken,
			Timeout:      restTimeout,
		})
		if err != nil {
			return nil, err
		}
		startup.Config("baasURL", cfg.BaaSURL)
		return gw, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// Handler returns the API handler of the app.
func (a *App) Handler(version string) http.Handler {
	return httpapi.NewHandler(httpapi.Options{
		Folders:        a.Folders,
		Photos:         a.Photos,
		Uploads:        a.Uploads,
		Galleries:      a.Galleries,
		Metrics:        a.Metrics,
		OriginVerify:   a.Config.OriginVerify,
		MaxUploadBytes: a.Config.MaxUploadBytes(),
		Version:        version,
	})
}
