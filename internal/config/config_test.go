package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORTFOLIO_BACKEND", "PORTFOLIO_DATA_DIR", "PORTFOLIO_MAX_UPLOAD_MB", "PORTFOLIO_LISTEN_ADDR", "PORTFOLIO_BUCKET"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendFile {
		t.Errorf("backend: got %q", cfg.Backend)
	}
	if cfg.DataDir != DefaultDataDir || cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxUploadBytes() != DefaultMaxUploadMB*1024*1024 {
		t.Errorf("unexpected upload limit %d", cfg.MaxUploadBytes())
	}
	if cfg.SSMRESTKeyParam != DefaultSSMRESTKeyParam {
		t.Errorf("unexpected SSM param %q", cfg.SSMRESTKeyParam)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown backend",
			env:     map[string]string{"PORTFOLIO_BACKEND": "mongo"},
			wantErr: "unknown backend",
		},
		{
			name:    "baas without url",
			env:     map[string]string{"PORTFOLIO_BACKEND": "baas", "PORTFOLIO_BAAS_URL": "", "PORTFOLIO_BAAS_APP_ID": "app"},
			wantErr: "PORTFOLIO_BAAS_URL",
		},
		{
			name:    "dynamo without table",
			env:     map[string]string{"PORTFOLIO_BACKEND": "dynamo", "PORTFOLIO_TABLE": ""},
			wantErr: "PORTFOLIO_TABLE",
		},
		{
			name:    "file backend with bucket",
			env:     map[string]string{"PORTFOLIO_BACKEND": "file", "PORTFOLIO_BUCKET": "portfolio-media"},
			wantErr: "PORTFOLIO_BUCKET",
		},
		{
			name:    "bad upload limit",
			env:     map[string]string{"PORTFOLIO_BACKEND": "memory", "PORTFOLIO_MAX_UPLOAD_MB": "lots"},
			wantErr: "PORTFOLIO_MAX_UPLOAD_MB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadBaaS(t *testing.T) {
	t.Setenv("PORTFOLIO_BACKEND", "BaaS")
	t.Setenv("PORTFOLIO_BAAS_URL", "https://api.example.com/parse")
	t.Setenv("PORTFOLIO_BAAS_APP_ID", "portfolio")
	t.Setenv("PORTFOLIO_SITE_ID", "ana")
	t.Setenv("PORTFOLIO_MAX_UPLOAD_MB", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backend != BackendBaaS || cfg.SiteID != "ana" || cfg.MaxUploadMB != 8 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}
