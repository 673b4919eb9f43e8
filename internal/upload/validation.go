package upload

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fpang/photo-portfolio/internal/apperr"
)

// safeFilenameRegex allows alphanumeric, dots, hyphens, underscores, spaces, and parentheses.
var safeFilenameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._ ()-]{0,200}$`)

// allowedContentTypes is the content-type allowlist for photo uploads.
var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
	"image/tiff": true,
	"image/avif": true,
}

// DefaultMaxFileSize is the per-file limit when none is configured.
const DefaultMaxFileSize int64 = 25 * 1024 * 1024

// cleanFilename strips directory components and rejects unsafe names.
func cleanFilename(name string) (string, error) {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return "", apperr.Validation("filename", "filename is required")
	}
	if strings.Contains(name, "..") {
		return "", apperr.Validation("filename", "filename contains invalid characters")
	}
	if !safeFilenameRegex.MatchString(name) {
		return "", apperr.Validation("filename", "filename %q contains invalid characters; only alphanumeric, dots, hyphens, underscores, spaces, and parentheses allowed", name)
	}
	return name, nil
}

// contentTypeOf returns the declared content type with parameters removed.
func contentTypeOf(declared string) string {
	ct := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

func validate(f File, maxSize int64) (name, contentType string, err error) {
	name, err = cleanFilename(f.Name)
	if err != nil {
		return "", "", err
	}
	contentType = contentTypeOf(f.ContentType)
	if !allowedContentTypes[contentType] {
		return "", "", apperr.Validation("file", "unsupported content type %q for %s", f.ContentType, name)
	}
	if len(f.Data) == 0 {
		return "", "", apperr.Validation("file", "%s is empty", name)
	}
	if int64(len(f.Data)) > maxSize {
		return "", "", apperr.Validation("file", "%s exceeds the %d MB limit", name, maxSize/(1024*1024))
	}
	return name, contentType, nil
}
