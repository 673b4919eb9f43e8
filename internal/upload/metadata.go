package upload

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/webp"
)

// imageInfo is what can be learned from a photo's bytes without decoding
// the full image.
type imageInfo struct {
	TakenAt time.Time
	Width   int
	Height  int
}

// probe reads EXIF capture time and pixel dimensions. Both are optional:
// formats the decoders do not know simply yield zero values.
func probe(name string, data []byte) imageInfo {
	var info imageInfo

	// Priority: DateTimeOriginal > CreateDate.
	if exifData, err := imagemeta.Decode(bytes.NewReader(data)); err == nil {
		switch {
		case !exifData.DateTimeOriginal().IsZero():
			info.TakenAt = exifData.DateTimeOriginal()
		case !exifData.CreateDate().IsZero():
			info.TakenAt = exifData.CreateDate()
		}
	} else {
		log.Debug().Err(err).Str("file", name).Msg("No EXIF metadata")
	}

	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		info.Width, info.Height = cfg.Width, cfg.Height
		log.Debug().Str("file", name).Str("format", format).Int("width", cfg.Width).Int("height", cfg.Height).Msg("Image dimensions read")
	}
	return info
}
