package lambdaboot

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fpang/photo-portfolio/internal/config"
	"github.com/fpang/photo-portfolio/internal/logging"
	"github.com/fpang/photo-portfolio/internal/upload"
)

func TestWireFileBackend(t *testing.T) {
	dataDir := t.TempDir()
	cfg := config.Config{
		Backend:         config.BackendFile,
		DataDir:         dataDir,
		UploadURLPrefix: "/uploads",
		MaxUploadMB:     1,
	}
	app, err := Wire(context.Background(), cfg, logging.NewStartupLogger("test"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.Metrics != nil {
		t.Error("metrics must be off without an output")
	}
	if app.UploadDir != filepath.Join(dataDir, "uploads") {
		t.Errorf("unexpected upload dir %q", app.UploadDir)
	}

	ctx := context.Background()
	if _, err := app.Galleries.Create(ctx, "Boda"); err != nil {
		t.Fatal(err)
	}
	f, err := app.Folders.Resolve("galleries/boda")
	if err != nil {
		t.Fatal(err)
	}
	photos, err := app.Uploads.Upload(ctx, f, []upload.File{{Name: "a.jpg", ContentType: "image/jpeg", Data: []byte("a")}})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(photos) != 1 || !strings.HasPrefix(photos[0].URL, "/uploads/galleries/boda/") {
		t.Errorf("unexpected photos %+v", photos)
	}

	if _, err := app.Galleries.Delete(ctx, "boda"); err != nil {
		t.Fatalf("delete gallery: %v", err)
	}
	listed, err := app.Photos.List(ctx, f)
	if err != nil || len(listed) != 0 {
		t.Errorf("expected purged folder, got %v / %v", listed, err)
	}
}

func TestWireMemoryBackendHandler(t *testing.T) {
	var out bytes.Buffer
	cfg := config.Config{
		Backend:         config.BackendMemory,
		DataDir:         t.TempDir(),
		UploadURLPrefix: "/uploads",
		MaxUploadMB:     1,
		OriginVerify:    "secret",
	}
	app, err := Wire(context.Background(), cfg, logging.NewStartupLogger("test"), &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := app.Handler("v1")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/galleries", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected origin verification, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/galleries", nil)
	req.Header.Set("x-origin-verify", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(out.String(), "RequestCount") {
		t.Errorf("expected request metrics, got %q", out.String())
	}
}
