// Package config reads process configuration from the environment once at
// startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Backend selects where photo and gallery records live.
type Backend string

const (
	BackendBaaS   Backend = "baas"
	BackendDynamo Backend = "dynamo"
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
)

// Config is the process configuration.
type Config struct {
	Backend Backend

	// Hosted REST store.
	BaaSURL          string
	BaaSAppID        string
	BaaSRESTKey      string
	BaaSSessionToken string
	// SSMRESTKeyParam names the SSM parameter holding the REST key when
	// BaaSRESTKey is not set.
	SSMRESTKeyParam string

	// DynamoDB record table.
	Table string

	// Durable file storage. Without a bucket, files go to DataDir.
	Bucket        string
	PublicBaseURL string

	// DataDir holds the JSON documents of the file backend and locally
	// stored uploads.
	DataDir string
	// UploadURLPrefix is the public path under which DataDir/uploads is served.
	UploadURLPrefix string

	SiteID       string
	OriginVerify string
	MaxUploadMB  int
	ListenAddr   string
}

// Default values.
const (
	DefaultMaxUploadMB     = 25
	DefaultListenAddr      = ":8080"
	DefaultDataDir         = "data"
	DefaultUploadURLPrefix = "/uploads"
	DefaultSSMRESTKeyParam = "/photo-portfolio/prod/baas-rest-key"
)

// Load reads the PORTFOLIO_* environment variables.
func Load() (Config, error) {
	cfg := Config{
		Backend:          Backend(strings.ToLower(env("PORTFOLIO_BACKEND", string(BackendFile)))),
		BaaSURL:          os.Getenv("PORTFOLIO_BAAS_URL"),
		BaaSAppID:        os.Getenv("PORTFOLIO_BAAS_APP_ID"),
		BaaSRESTKey:      os.Getenv("PORTFOLIO_BAAS_REST_KEY"),
		BaaSSessionToken: os.Getenv("PORTFOLIO_BAAS_SESSION_TOKEN"),
		SSMRESTKeyParam:  env("PORTFOLIO_SSM_REST_KEY_PARAM", DefaultSSMRESTKeyParam),
		Table:            os.Getenv("PORTFOLIO_TABLE"),
		Bucket:           os.Getenv("PORTFOLIO_BUCKET"),
		PublicBaseURL:    os.Getenv("PORTFOLIO_PUBLIC_BASE_URL"),
		DataDir:          env("PORTFOLIO_DATA_DIR", DefaultDataDir),
		UploadURLPrefix:  env("PORTFOLIO_UPLOAD_URL_PREFIX", DefaultUploadURLPrefix),
		SiteID:           os.Getenv("PORTFOLIO_SITE_ID"),
		OriginVerify:     os.Getenv("PORTFOLIO_ORIGIN_VERIFY"),
		MaxUploadMB:      DefaultMaxUploadMB,
		ListenAddr:       env("PORTFOLIO_LISTEN_ADDR", DefaultListenAddr),
	}

	if raw := os.Getenv("PORTFOLIO_MAX_UPLOAD_MB"); raw != "" {
		mb, err := strconv.Atoi(raw)
		if err != nil || mb <= 0 {
			return Config{}, fmt.Errorf("PORTFOLIO_MAX_UPLOAD_MB must be a positive integer, got %q", raw)
		}
		cfg.MaxUploadMB = mb
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs. The BaaS REST
// key may still be missing here; it can be fetched from SSM afterwards.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendBaaS:
		if c.BaaSURL == "" || c.BaaSAppID == "" {
			return fmt.Errorf("backend %s requires PORTFOLIO_BAAS_URL and PORTFOLIO_BAAS_APP_ID", c.Backend)
		}
	case BackendDynamo:
		if c.Table == "" {
			return fmt.Errorf("backend %s requires PORTFOLIO_TABLE", c.Backend)
		}
	case BackendFile, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (want baas, dynamo, file or memory)", c.Backend)
	}
	if c.Backend == BackendFile {
		if c.DataDir == "" {
			return fmt.Errorf("backend %s requires PORTFOLIO_DATA_DIR", c.Backend)
		}
		// The file backend derives its photo list from the upload directory.
		if c.Bucket != "" {
			return fmt.Errorf("backend %s stores uploads on disk; unset PORTFOLIO_BUCKET", c.Backend)
		}
	}
	return nil
}

// UploadDir is the directory locally stored uploads are written under.
func (c Config) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// MaxUploadBytes is the per-file upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
