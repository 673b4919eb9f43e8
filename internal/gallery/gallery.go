// Package gallery manages the set of named galleries of a site: unique slugs,
// display names, and the position order of the galleries themselves.
//
// Deleting a gallery first purges the photos of its folder; the gallery
// record is only removed once the purge succeeded.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/fpang/photo-portfolio/internal/apperr"
	"github.com/fpang/photo-portfolio/internal/folder"
)

var (
	// ErrNotFound is returned when no gallery has the requested slug.
	ErrNotFound = errors.New("gallery not found")

	// ErrEmptyName is returned when a gallery name is blank after trimming.
	ErrEmptyName = apperr.Validation("name", "gallery name is required")
)

// Gallery is one named gallery.
type Gallery struct {
	// ID is the store's record id. Not exposed to clients.
	ID       string `json:"-"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Position int    `json:"position"`
	SiteID   string `json:"siteId,omitempty"`
}

// Store persists galleries. Implementations scope every call to one site.
type Store interface {
	List(ctx context.Context) ([]Gallery, error)
	// Find returns ErrNotFound when no gallery has slug.
	Find(ctx context.Context, slug string) (Gallery, error)
	Create(ctx context.Context, g Gallery) (Gallery, error)
	Rename(ctx context.Context, g Gallery, name string) error
	SetPosition(ctx context.Context, g Gallery, position int) error
	Delete(ctx context.Context, g Gallery) error
}

// Purger removes every photo of a folder.
type Purger interface {
	Purge(ctx context.Context, f folder.Folder) error
}

// FolderResolver maps a gallery slug to its photo folder.
type FolderResolver interface {
	Gallery(slug string) (folder.Folder, error)
}

// PositionUpdate is one entry of a gallery reorder request. A nil Position is
// skipped.
type PositionUpdate struct {
	Slug     string   `json:"slug"`
	Position *float64 `json:"position"`
}

// Directory implements the gallery operations on a Store.
type Directory struct {
	store   Store
	purger  Purger
	folders FolderResolver
	now     func() time.Time
}

// NewDirectory creates a Directory. purger and folders are used by Delete.
func NewDirectory(store Store, purger Purger, folders FolderResolver) *Directory {
	return &Directory{store: store, purger: purger, folders: folders, now: time.Now}
}

// List returns all galleries sorted by position, then slug.
func (d *Directory) List(ctx context.Context) ([]Gallery, error) {
	galleries, err := d.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list galleries: %w", err)
	}
	sortGalleries(galleries)
	return galleries, nil
}

// Find returns the gallery with slug.
func (d *Directory) Find(ctx context.Context, slug string) (Gallery, error) {
	return d.store.Find(ctx, slug)
}

// Create adds a gallery at the end of the list and returns the new set.
func (d *Directory) Create(ctx context.Context, name string) ([]Gallery, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	existing, err := d.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list galleries: %w", err)
	}

	base := Slugify(name)
	if base == "" {
		base = "gallery-" + strconv.FormatInt(d.now().Unix(), 10)
	}
	taken := make(map[string]bool, len(existing))
	position := 0
	for i, g := range existing {
		taken[g.Slug] = true
		if i == 0 || g.Position+1 > position {
			position = g.Position + 1
		}
	}
	slug := uniqueSlug(base, taken)

	created, err := d.store.Create(ctx, Gallery{Name: name, Slug: slug, Position: position})
	if err != nil {
		return nil, fmt.Errorf("create gallery %s: %w", slug, err)
	}
	log.Info().Str("slug", created.Slug).Int("position", created.Position).Msg("Gallery created")
	return d.List(ctx)
}

// Rename changes the display name of a gallery. The slug is kept.
func (d *Directory) Rename(ctx context.Context, slug, name string) ([]Gallery, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	g, err := d.store.Find(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := d.store.Rename(ctx, g, name); err != nil {
		return nil, fmt.Errorf("rename gallery %s: %w", slug, err)
	}
	log.Info().Str("slug", slug).Str("name", name).Msg("Gallery renamed")
	return d.List(ctx)
}

// Delete purges the gallery's photos and then removes the gallery. A purge
// failure aborts the delete.
func (d *Directory) Delete(ctx context.Context, slug string) ([]Gallery, error) {
	g, err := d.store.Find(ctx, slug)
	if err != nil {
		return nil, err
	}

	f, err := d.folders.Gallery(g.Slug)
	if err != nil {
		return nil, fmt.Errorf("resolve gallery folder %s: %w", g.Slug, err)
	}
	if err := d.purger.Purge(ctx, f); err != nil {
		return nil, fmt.Errorf("purge gallery %s: %w", g.Slug, err)
	}

	if err := d.store.Delete(ctx, g); err != nil {
		return nil, fmt.Errorf("delete gallery %s: %w", g.Slug, err)
	}
	log.Info().Str("slug", g.Slug).Msg("Gallery deleted")
	return d.List(ctx)
}

// UpdatePositions writes new positions. Each slug is looked up once per call;
// unknown slugs and non-finite positions are skipped.
func (d *Directory) UpdatePositions(ctx context.Context, updates []PositionUpdate) ([]Gallery, error) {
	cache := make(map[string]*Gallery, len(updates))
	lookup := func(slug string) (*Gallery, error) {
		if g, ok := cache[slug]; ok {
			return g, nil
		}
		g, err := d.store.Find(ctx, slug)
		if errors.Is(err, ErrNotFound) {
			cache[slug] = nil
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		cache[slug] = &g
		return &g, nil
	}

	updated := 0
	for _, u := range updates {
		if u.Position == nil || math.IsNaN(*u.Position) || math.IsInf(*u.Position, 0) {
			continue
		}
		g, err := lookup(u.Slug)
		if err != nil {
			return nil, fmt.Errorf("find gallery %s: %w", u.Slug, err)
		}
		if g == nil {
			log.Debug().Str("slug", u.Slug).Msg("Skipping position update for unknown gallery")
			continue
		}
		if err := d.store.SetPosition(ctx, *g, int(*u.Position)); err != nil {
			return nil, fmt.Errorf("set position of gallery %s: %w", u.Slug, err)
		}
		updated++
	}

	log.Info().Int("updated", updated).Int("requested", len(updates)).Msg("Gallery positions updated")
	return d.List(ctx)
}

func sortGalleries(galleries []Gallery) {
	sort.SliceStable(galleries, func(i, j int) bool {
		if galleries[i].Position != galleries[j].Position {
			return galleries[i].Position < galleries[j].Position
		}
		return galleries[i].Slug < galleries[j].Slug
	})
}

// uniqueSlug returns base, or base-2, base-3, ... whichever is free first.
func uniqueSlug(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if !taken[candidate] {
			return candidate
		}
	}
}

// Slugify lowercases name, strips diacritics, and collapses every run of
// other characters into a single dash. It returns "" when nothing is left.
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(stripped) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
