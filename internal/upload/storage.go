package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/fpang/photo-portfolio/internal/folder"
)

// Stored describes a file written to durable storage.
type Stored struct {
	// Ref is the storage reference recorded on the photo.
	Ref string
	URL string
}

// Storage is durable file storage for uploaded photos. Delete takes the
// stored file name (the last element of Ref).
type Storage interface {
	Put(ctx context.Context, f folder.Folder, name, contentType string, data []byte) (Stored, error)
	Delete(ctx context.Context, f folder.Folder, filename string) error
}

// storedName prefixes name with a random id so uploads never collide.
func storedName(name string) string {
	return uuid.NewString() + "_" + name
}

// DiskStorage writes photos into the folder's directory. The reference is
// the bare file name, which is also the photo id in the file order store.
type DiskStorage struct{}

// Compile-time interface check.
var _ Storage = DiskStorage{}

func (DiskStorage) Put(ctx context.Context, f folder.Folder, name, contentType string, data []byte) (Stored, error) {
	if f.Dir == "" {
		return Stored{}, fmt.Errorf("folder %s has no directory", f.Key)
	}
	filename := storedName(name)
	path := filepath.Join(f.Dir, filename)

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Stored{}, fmt.Errorf("create %s: %w", filename, err)
	}
	if _, err := bytes.NewReader(data).WriteTo(out); err != nil {
		out.Close()
		os.Remove(path)
		return Stored{}, fmt.Errorf("write %s: %w", filename, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return Stored{}, fmt.Errorf("close %s: %w", filename, err)
	}
	return Stored{Ref: filename, URL: f.URLPrefix + "/" + url.PathEscape(filename)}, nil
}

// Delete removes the file. A file that is already gone is not an error.
func (DiskStorage) Delete(ctx context.Context, f folder.Folder, filename string) error {
	if f.Dir == "" || filename == "" || filename != filepath.Base(filename) {
		return fmt.Errorf("invalid stored file %q", filename)
	}
	err := os.Remove(filepath.Join(f.Dir, filename))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filename, err)
	}
	return nil
}
