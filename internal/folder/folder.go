// Package folder maps caller-supplied folder identifiers to canonical order
// keys and, for disk-backed deployments, to a directory and public URL prefix.
//
// Recognized shapes:
//
//	home              the home/featured feed
//	contact           the contact photo slot
//	galleries/<slug>  one named gallery
//	<name>            a single bare name (legacy single-level folders)
package folder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidFolder is returned for empty or malformed folder identifiers.
var ErrInvalidFolder = errors.New("invalid folder")

// Well-known order keys.
const (
	HomeKey       = "home"
	ContactKey    = "contact"
	GalleryPrefix = "galleries/"
)

// Kind classifies a resolved folder.
type Kind string

const (
	KindHome    Kind = "home"
	KindContact Kind = "contact"
	KindGallery Kind = "gallery"
	KindNamed   Kind = "named"
)

// slugRegex matches URL-safe slugs: lowercase alphanumerics joined by single dashes.
var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Folder is a resolved folder identifier.
type Folder struct {
	// Key is the canonical order key, e.g. "home" or "galleries/boda".
	Key  string
	Kind Kind
	// Slug is set for gallery folders.
	Slug string
	// Dir is the on-disk directory; empty when the resolver has no root.
	Dir string
	// URLPrefix is the public URL prefix of files in Dir.
	URLPrefix string
}

// Resolver validates folder identifiers. A Resolver with an empty root only
// derives order keys; with a root it also derives and creates directories.
type Resolver struct {
	root      string
	urlPrefix string
}

// NewResolver creates a Resolver. root may be empty for store-only deployments.
// urlPrefix is the public path under which root is served, e.g. "/uploads".
func NewResolver(root, urlPrefix string) *Resolver {
	return &Resolver{root: root, urlPrefix: strings.TrimRight(urlPrefix, "/")}
}

// Resolve validates param and returns the canonical folder.
func (r *Resolver) Resolve(param string) (Folder, error) {
	f, err := parse(param)
	if err != nil {
		return Folder{}, err
	}
	if r.root == "" {
		return f, nil
	}

	segments := strings.Split(f.Key, "/")
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return Folder{}, fmt.Errorf("%w: %q", ErrInvalidFolder, param)
		}
	}
	f.Dir = filepath.Join(append([]string{r.root}, segments...)...)
	f.URLPrefix = r.urlPrefix + "/" + f.Key

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return Folder{}, fmt.Errorf("create folder directory %s: %w", f.Dir, err)
	}
	return f, nil
}

// Gallery resolves the folder of the gallery with the given slug.
func (r *Resolver) Gallery(slug string) (Folder, error) {
	return r.Resolve(GalleryKey(slug))
}

// GalleryKey returns the order key of a gallery.
func GalleryKey(slug string) string {
	return GalleryPrefix + slug
}

// ValidSlug reports whether s is a well-formed slug.
func ValidSlug(s string) bool {
	return slugRegex.MatchString(s)
}

func parse(param string) (Folder, error) {
	key := strings.TrimSpace(param)
	if key == "" {
		return Folder{}, fmt.Errorf("%w: folder is required", ErrInvalidFolder)
	}

	switch {
	case key == HomeKey:
		return Folder{Key: HomeKey, Kind: KindHome}, nil
	case key == ContactKey:
		return Folder{Key: ContactKey, Kind: KindContact}, nil
	case key == strings.TrimSuffix(GalleryPrefix, "/"):
		// The bare prefix names the parent of every gallery folder.
		return Folder{}, fmt.Errorf("%w: %q is reserved", ErrInvalidFolder, param)
	case strings.HasPrefix(key, GalleryPrefix):
		slug := strings.TrimPrefix(key, GalleryPrefix)
		if !ValidSlug(slug) {
			return Folder{}, fmt.Errorf("%w: %q", ErrInvalidFolder, param)
		}
		return Folder{Key: key, Kind: KindGallery, Slug: slug}, nil
	case ValidSlug(key):
		return Folder{Key: key, Kind: KindNamed}, nil
	}
	return Folder{}, fmt.Errorf("%w: %q", ErrInvalidFolder, param)
}
