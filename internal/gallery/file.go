package gallery

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fpang/photo-portfolio/internal/jsonutil"
)

// FileStore keeps galleries in a single JSON array document that is
// rewritten wholesale on every change. The slug doubles as the id.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore backed by dataDir/galleries.json.
func NewFileStore(dataDir string) *FileStore {
	return &FileStore{path: filepath.Join(dataDir, "galleries.json")}
}

func (s *FileStore) read() ([]Gallery, error) {
	var galleries []Gallery
	if _, err := jsonutil.ReadFile(s.path, &galleries); err != nil {
		return nil, fmt.Errorf("galleries document: %w", err)
	}
	for i := range galleries {
		galleries[i].ID = galleries[i].Slug
	}
	return galleries, nil
}

func (s *FileStore) write(galleries []Gallery) error {
	if galleries == nil {
		galleries = []Gallery{}
	}
	return jsonutil.WriteFile(s.path, galleries)
}

// modify applies fn to the gallery with slug and rewrites the document.
func (s *FileStore) modify(slug string, fn func(galleries []Gallery, i int) []Gallery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	galleries, err := s.read()
	if err != nil {
		return err
	}
	for i := range galleries {
		if galleries[i].Slug == slug {
			return s.write(fn(galleries, i))
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, slug)
}

func (s *FileStore) List(ctx context.Context) ([]Gallery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Find(ctx context.Context, slug string) (Gallery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	galleries, err := s.read()
	if err != nil {
		return Gallery{}, err
	}
	for _, g := range galleries {
		if g.Slug == slug {
			return g, nil
		}
	}
	return Gallery{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
}

func (s *FileStore) Create(ctx context.Context, g Gallery) (Gallery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	galleries, err := s.read()
	if err != nil {
		return Gallery{}, err
	}
	for _, existing := range galleries {
		if existing.Slug == g.Slug {
			return Gallery{}, fmt.Errorf("gallery slug %q already exists", g.Slug)
		}
	}
	g.ID = g.Slug
	if err := s.write(append(galleries, g)); err != nil {
		return Gallery{}, err
	}
	return g, nil
}

func (s *FileStore) Rename(ctx context.Context, g Gallery, name string) error {
	return s.modify(g.Slug, func(galleries []Gallery, i int) []Gallery {
		galleries[i].Name = name
		return galleries
	})
}

func (s *FileStore) SetPosition(ctx context.Context, g Gallery, position int) error {
	return s.modify(g.Slug, func(galleries []Gallery, i int) []Gallery {
		galleries[i].Position = position
		return galleries
	})
}

func (s *FileStore) Delete(ctx context.Context, g Gallery) error {
	return s.modify(g.Slug, func(galleries []Gallery, i int) []Gallery {
		return append(galleries[:i], galleries[i+1:]...)
	})
}
