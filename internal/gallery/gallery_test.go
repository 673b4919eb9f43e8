package gallery

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/fpang/photo-portfolio/internal/apperr"
	"github.com/fpang/photo-portfolio/internal/folder"
	"github.com/fpang/photo-portfolio/internal/photoorder"
	"github.com/fpang/photo-portfolio/internal/recordstore"
)

type fakePurger struct {
	purged []string
	err    error
}

func (p *fakePurger) Purge(ctx context.Context, f folder.Folder) error {
	if p.err != nil {
		return p.err
	}
	p.purged = append(p.purged, f.Key)
	return nil
}

func newTestDirectory(store Store, purger Purger) *Directory {
	d := NewDirectory(store, purger, folder.NewResolver("", ""))
	d.now = func() time.Time { return time.Unix(1700000000, 0) }
	return d
}

func slugs(galleries []Gallery) []string {
	out := make([]string, len(galleries))
	for i, g := range galleries {
		out[i] = g.Slug
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// stores runs a test against both Store implementations.
func stores(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"remote": func() Store { return NewRemoteStore(recordstore.NewMemoryGateway(), "") },
		"file":   func() Store { return NewFileStore(t.TempDir()) },
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Boda", "boda"},
		{"Boda en Cancún", "boda-en-cancun"},
		{"  Ñandú & Café!! ", "nandu-cafe"},
		{"2024 -- Retratos", "2024-retratos"},
		{"Crème Brûlée", "creme-brulee"},
		{"★★★", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.name); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.name, got, tt.want)
			}
			if got := Slugify(tt.name); got != "" && !folder.ValidSlug(got) {
				t.Errorf("Slugify(%q) = %q is not a valid slug", tt.name, got)
			}
		})
	}
}

func TestCreateUniqueSlugs(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			d := newTestDirectory(newStore(), &fakePurger{})
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				if _, err := d.Create(ctx, "Boda"); err != nil {
					t.Fatalf("create %d: %v", i, err)
				}
			}
			got, err := d.Create(ctx, "Viaje")
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			if !equal(slugs(got), []string{"boda", "boda-2", "boda-3", "viaje"}) {
				t.Errorf("unexpected slugs: %v", slugs(got))
			}
			for i, g := range got {
				if g.Position != i {
					t.Errorf("gallery %s has position %d, want %d", g.Slug, g.Position, i)
				}
				if g.Name == "" {
					t.Errorf("gallery %s has no name", g.Slug)
				}
			}
		})
	}
}

func TestCreateValidation(t *testing.T) {
	d := newTestDirectory(NewRemoteStore(recordstore.NewMemoryGateway(), ""), &fakePurger{})

	_, err := d.Create(context.Background(), "   ")
	var ve *apperr.ValidationError
	if !errors.Is(err, ErrEmptyName) || !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}

	got, err := d.Create(context.Background(), "¡¡!!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Slug != "gallery-1700000000" {
		t.Errorf("expected timestamp fallback slug, got %v", slugs(got))
	}
}

func TestRename(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			d := newTestDirectory(newStore(), &fakePurger{})
			ctx := context.Background()
			if _, err := d.Create(ctx, "Boda"); err != nil {
				t.Fatal(err)
			}

			got, err := d.Rename(ctx, "boda", "  Boda de Ana ")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got[0].Name != "Boda de Ana" || got[0].Slug != "boda" {
				t.Errorf("unexpected gallery: %+v", got[0])
			}

			if _, err := d.Rename(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestDeletePurgesFirst(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			purger := &fakePurger{}
			d := newTestDirectory(newStore(), purger)
			ctx := context.Background()
			d.Create(ctx, "Boda")
			d.Create(ctx, "Viaje")

			got, err := d.Delete(ctx, "boda")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !equal(slugs(got), []string{"viaje"}) {
				t.Errorf("unexpected galleries: %v", slugs(got))
			}
			if !equal(purger.purged, []string{"galleries/boda"}) {
				t.Errorf("unexpected purges: %v", purger.purged)
			}

			if _, err := d.Delete(ctx, "boda"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestDeleteAbortsWhenPurgeFails(t *testing.T) {
	purger := &fakePurger{err: &recordstore.RequestError{Status: http.StatusInternalServerError, Message: "boom"}}
	d := newTestDirectory(NewRemoteStore(recordstore.NewMemoryGateway(), ""), purger)
	ctx := context.Background()
	d.Create(ctx, "Boda")

	if _, err := d.Delete(ctx, "boda"); err == nil {
		t.Fatal("expected purge error")
	}
	got, err := d.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !equal(slugs(got), []string{"boda"}) {
		t.Errorf("gallery must survive a failed purge: %v", slugs(got))
	}
}

func TestDeleteCascadesToPhotos(t *testing.T) {
	gw := recordstore.NewMemoryGateway()
	engine := photoorder.NewEngine(photoorder.NewRemoteOrderStore(gw))
	d := newTestDirectory(NewRemoteStore(gw, ""), engine)
	ctx := context.Background()

	if _, err := d.Create(ctx, "Boda"); err != nil {
		t.Fatal(err)
	}
	f := folder.Folder{Key: folder.GalleryKey("boda"), Kind: folder.KindGallery, Slug: "boda"}
	var photos []photoorder.NewPhoto
	for _, n := range []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg"} {
		photos = append(photos, photoorder.NewPhoto{OriginalName: n, StorageRef: n})
	}
	if _, err := engine.Append(ctx, f, photos); err != nil {
		t.Fatal(err)
	}

	if _, err := d.Delete(ctx, "boda"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	listed, err := engine.List(ctx, f)
	if err != nil {
		t.Fatalf("listing a deleted gallery must not fail: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("expected no photos, got %d", len(listed))
	}
}

func TestUpdatePositions(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			d := newTestDirectory(newStore(), &fakePurger{})
			ctx := context.Background()
			for _, n := range []string{"A", "B", "C"} {
				d.Create(ctx, n)
			}

			p := func(v float64) *float64 { return &v }
			got, err := d.UpdatePositions(ctx, []PositionUpdate{
				{Slug: "c", Position: p(0)},
				{Slug: "a", Position: p(2)},
				{Slug: "ghost", Position: p(1)},
				{Slug: "b", Position: nil},
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			// b keeps position 1.
			if !equal(slugs(got), []string{"c", "b", "a"}) {
				t.Errorf("unexpected order: %v", slugs(got))
			}
		})
	}
}

func TestRemoteStoreSiteScope(t *testing.T) {
	gw := recordstore.NewMemoryGateway()
	ctx := context.Background()
	siteA := newTestDirectory(NewRemoteStore(gw, "site-a"), &fakePurger{})
	siteB := newTestDirectory(NewRemoteStore(gw, "site-b"), &fakePurger{})

	siteA.Create(ctx, "Boda")
	got, err := siteB.Create(ctx, "Boda")
	if err != nil {
		t.Fatal(err)
	}
	if !equal(slugs(got), []string{"boda"}) {
		t.Errorf("slugs are unique per site, got %v", slugs(got))
	}
	if got[0].SiteID != "site-b" {
		t.Errorf("unexpected site id %q", got[0].SiteID)
	}
	if gw.Len(Collection) != 2 {
		t.Errorf("expected 2 gallery records, got %d", gw.Len(Collection))
	}
}
