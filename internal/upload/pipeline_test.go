package upload

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fpang/photo-portfolio/internal/apperr"
	"github.com/fpang/photo-portfolio/internal/folder"
	"github.com/fpang/photo-portfolio/internal/photoorder"
	"github.com/fpang/photo-portfolio/internal/recordstore"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func diskFolder(t *testing.T, key string) folder.Folder {
	t.Helper()
	f, err := folder.NewResolver(t.TempDir(), "/uploads").Resolve(key)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestUploadAppendsInOrderWithMetadata(t *testing.T) {
	f := diskFolder(t, "home")
	gw := recordstore.NewMemoryGateway()
	engine := photoorder.NewEngine(photoorder.NewRemoteOrderStore(gw))
	p := NewPipeline(engine, DiskStorage{}, 0)
	ctx := context.Background()

	if _, err := p.Upload(ctx, f, []File{{Name: "first.png", ContentType: "image/png", Data: pngBytes(t, 4, 3)}}); err != nil {
		t.Fatal(err)
	}
	photos, err := p.Upload(ctx, f, []File{
		{Name: "second.png", ContentType: "image/png", Data: pngBytes(t, 2, 2)},
		{Name: `C:\Users\ana\third.png`, ContentType: "image/png; charset=binary", Data: pngBytes(t, 10, 20)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(photos) != 3 {
		t.Fatalf("expected 3 photos, got %d", len(photos))
	}
	want := []string{"first.png", "second.png", "third.png"}
	for i, photo := range photos {
		if photo.OriginalName != want[i] {
			t.Errorf("photo %d: got %s, want %s", i, photo.OriginalName, want[i])
		}
		if photo.Order != i {
			t.Errorf("photo %d has order %d", i, photo.Order)
		}
		if !strings.HasSuffix(photo.Filename, "_"+want[i]) {
			t.Errorf("unexpected stored name %q", photo.Filename)
		}
		if !strings.HasPrefix(photo.URL, "/uploads/home/") {
			t.Errorf("unexpected url %q", photo.URL)
		}
	}
	if photos[2].Width != 10 || photos[2].Height != 20 {
		t.Errorf("dimensions not recorded: %dx%d", photos[2].Width, photos[2].Height)
	}
	if len(dirNames(t, f.Dir)) != 3 {
		t.Errorf("expected 3 stored files, got %v", dirNames(t, f.Dir))
	}
}

func TestUploadValidation(t *testing.T) {
	valid := File{Name: "ok.png", ContentType: "image/png", Data: []byte("x")}

	tests := []struct {
		name  string
		files []File
	}{
		{"unsupported type", []File{valid, {Name: "notes.txt", ContentType: "text/plain", Data: []byte("x")}}},
		{"empty file", []File{{Name: "empty.png", ContentType: "image/png"}}},
		{"too large", []File{{Name: "big.png", ContentType: "image/png", Data: make([]byte, 11)}}},
		{"traversal", []File{{Name: "..", ContentType: "image/png", Data: []byte("x")}}},
		{"unsafe characters", []File{{Name: "<script>.png", ContentType: "image/png", Data: []byte("x")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := diskFolder(t, "contact")
			engine := photoorder.NewEngine(photoorder.NewRemoteOrderStore(recordstore.NewMemoryGateway()))
			p := NewPipeline(engine, DiskStorage{}, 10)

			_, err := p.Upload(context.Background(), f, tt.files)
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if names := dirNames(t, f.Dir); len(names) != 0 {
				t.Errorf("nothing should be stored, found %v", names)
			}
		})
	}
}

func TestUploadWithoutFilesReturnsList(t *testing.T) {
	f := diskFolder(t, "home")
	p := NewPipeline(photoorder.NewEngine(photoorder.NewRemoteOrderStore(recordstore.NewMemoryGateway())), DiskStorage{}, 0)
	ctx := context.Background()
	if _, err := p.Upload(ctx, f, []File{{Name: "a.png", ContentType: "image/png", Data: []byte("a")}}); err != nil {
		t.Fatal(err)
	}

	photos, err := p.Upload(ctx, f, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(photos) != 1 || photos[0].OriginalName != "a.png" {
		t.Errorf("expected passthrough list, got %+v", photos)
	}
}

// failingStorage stores the first n files and then fails.
type failingStorage struct {
	DiskStorage
	n       int
	deleted []string
}

func (s *failingStorage) Put(ctx context.Context, f folder.Folder, name, ct string, data []byte) (Stored, error) {
	if s.n == 0 {
		return Stored{}, errors.New("disk full")
	}
	s.n--
	return s.DiskStorage.Put(ctx, f, name, ct, data)
}

func (s *failingStorage) Delete(ctx context.Context, f folder.Folder, filename string) error {
	s.deleted = append(s.deleted, filename)
	return s.DiskStorage.Delete(ctx, f, filename)
}

func TestUploadStorageFailureRemovesStoredFiles(t *testing.T) {
	f := diskFolder(t, "home")
	gw := recordstore.NewMemoryGateway()
	storage := &failingStorage{n: 1}
	p := NewPipeline(photoorder.NewEngine(photoorder.NewRemoteOrderStore(gw)), storage, 0)

	_, err := p.Upload(context.Background(), f, []File{
		{Name: "a.png", ContentType: "image/png", Data: []byte("a")},
		{Name: "b.png", ContentType: "image/png", Data: []byte("b")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(storage.deleted) != 1 {
		t.Errorf("expected the stored file to be removed, got %v", storage.deleted)
	}
	if names := dirNames(t, f.Dir); len(names) != 0 {
		t.Errorf("expected empty directory, found %v", names)
	}
	if gw.Len(photoorder.PhotoCollection) != 0 {
		t.Error("no photo should be registered")
	}
}

// limitedGateway accepts the first n creates and then fails.
type limitedGateway struct {
	*recordstore.MemoryGateway
	n int
}

func (g *limitedGateway) Create(ctx context.Context, c string, body map[string]any) (recordstore.Record, error) {
	if g.n == 0 {
		return nil, &recordstore.RequestError{Status: 503, Message: "unavailable"}
	}
	g.n--
	return g.MemoryGateway.Create(ctx, c, body)
}

func TestUploadAppendFailureRemovesUnregisteredFiles(t *testing.T) {
	f := diskFolder(t, "home")
	gw := &limitedGateway{MemoryGateway: recordstore.NewMemoryGateway(), n: 1}
	storage := &failingStorage{n: -1}
	p := NewPipeline(photoorder.NewEngine(photoorder.NewRemoteOrderStore(gw)), storage, 0)
	ctx := context.Background()

	_, err := p.Upload(ctx, f, []File{
		{Name: "a.png", ContentType: "image/png", Data: []byte("a")},
		{Name: "b.png", ContentType: "image/png", Data: []byte("b")},
		{Name: "c.png", ContentType: "image/png", Data: []byte("c")},
	})
	var appendErr *photoorder.AppendError
	if !errors.As(err, &appendErr) || appendErr.Created != 1 {
		t.Fatalf("expected an append error after one photo, got %v", err)
	}
	if len(storage.deleted) != 2 {
		t.Errorf("expected two unregistered files removed, got %v", storage.deleted)
	}

	photos, err := p.photos.List(ctx, f)
	if err != nil {
		t.Fatal(err)
	}
	if len(photos) != 1 || photos[0].OriginalName != "a.png" {
		t.Fatalf("unexpected registered photos: %+v", photos)
	}
	left := dirNames(t, f.Dir)
	if len(left) != 1 || left[0] != photos[0].Filename {
		t.Errorf("only the registered file should remain, found %v", left)
	}
}

func TestRemoveDeletesStoredFile(t *testing.T) {
	f := diskFolder(t, "home")
	gw := recordstore.NewMemoryGateway()
	p := NewPipeline(photoorder.NewEngine(photoorder.NewRemoteOrderStore(gw)), DiskStorage{}, 0)
	ctx := context.Background()

	photos, err := p.Upload(ctx, f, []File{
		{Name: "a.png", ContentType: "image/png", Data: []byte("a")},
		{Name: "b.png", ContentType: "image/png", Data: []byte("b")},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.Remove(ctx, f, photos[0].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Photos) != 1 || res.Photos[0].ID != photos[1].ID || res.Photos[0].Order != 0 {
		t.Errorf("unexpected remaining photos: %+v", res.Photos)
	}
	if _, err := os.Stat(filepath.Join(f.Dir, photos[0].Filename)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stored file not removed: %v", err)
	}

	// A second delete of the same id is absorbed and keeps the other file.
	res, err = p.Remove(ctx, f, photos[0].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Ignored == nil {
		t.Error("expected the store error to be reported as ignored")
	}
	if len(dirNames(t, f.Dir)) != 1 {
		t.Errorf("unexpected files: %v", dirNames(t, f.Dir))
	}
}

func TestUploadWithFileOrderStore(t *testing.T) {
	dataDir := t.TempDir()
	f, err := folder.NewResolver(filepath.Join(dataDir, "uploads"), "/uploads").Resolve("galleries/boda")
	if err != nil {
		t.Fatal(err)
	}
	engine := photoorder.NewEngine(photoorder.NewFileOrderStore(dataDir))
	p := NewPipeline(engine, DiskStorage{}, 0)
	ctx := context.Background()

	if _, err := p.Upload(ctx, f, []File{{Name: "a.png", ContentType: "image/png", Data: []byte("a")}}); err != nil {
		t.Fatal(err)
	}
	photos, err := p.Upload(ctx, f, []File{{Name: "b.png", ContentType: "image/png", Data: []byte("b")}})
	if err != nil {
		t.Fatal(err)
	}
	if len(photos) != 2 || photos[0].OriginalName != "a.png" || photos[1].OriginalName != "b.png" {
		t.Fatalf("unexpected photos: %+v", photos)
	}

	res, err := p.Remove(ctx, f, photos[0].ID)
	if err != nil || res.Ignored != nil {
		t.Fatalf("unexpected error: %v / %v", err, res.Ignored)
	}
	if len(res.Photos) != 1 || res.Photos[0].OriginalName != "b.png" {
		t.Errorf("unexpected remaining photos: %+v", res.Photos)
	}
}
