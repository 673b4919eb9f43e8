// Package photoorder keeps the photos of each folder in a stable, gap-free
// display order.
//
// Ordering metadata is repaired lazily: every List sorts the folder's
// entries, and when the stored positions have drifted (missing, fractional,
// duplicated, or out of step with the sort) the whole folder is renumbered
// to 0..n-1 and written back. Deletes never renumber; the next List closes
// the gap. Because nothing is cached between requests, a failed write-back
// is detected and repaired again on the following read.
//
// Persistence is behind OrderStore, with a record-store implementation
// (RemoteOrderStore) and a local JSON implementation (FileOrderStore).
package photoorder

import (
	"errors"
	"path"
	"time"
)

// ErrPhotoNotFound is returned when a referenced photo id is not in the folder.
var ErrPhotoNotFound = errors.New("photo not found")

// AppendError reports an Append that stopped part way. The first Created
// photos of the batch were registered; the rest were not.
type AppendError struct {
	Created int
	Err     error
}

func (e *AppendError) Error() string { return e.Err.Error() }

func (e *AppendError) Unwrap() error { return e.Err }

// PhotoEntry is one photo as stored, before normalization.
type PhotoEntry struct {
	ID           string
	FolderKey    string
	OriginalName string
	StorageRef   string
	URL          string
	FileSize     int64
	// Position is the stored rank; nil when the record has none.
	Position  *float64
	CreatedAt time.Time
	Group     string
	TakenAt   time.Time
	Width     int
	Height    int
}

// NewPhoto describes a stored file to register in a folder.
type NewPhoto struct {
	OriginalName string
	StorageRef   string
	URL          string
	FileSize     int64
	TakenAt      time.Time
	Width        int
	Height       int
}

// Photo is the public shape returned to clients.
type Photo struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	OriginalName string     `json:"originalName"`
	URL          string     `json:"url"`
	UploadedAt   time.Time  `json:"uploadedAt"`
	Size         int64      `json:"size,omitempty"`
	Order        int        `json:"order"`
	Group        string     `json:"group,omitempty"`
	TakenAt      *time.Time `json:"takenAt,omitempty"`
	Width        int        `json:"width,omitempty"`
	Height       int        `json:"height,omitempty"`
}

// toPhotos maps normalized entries to the public shape. The order field is
// the index in entries, not the stored value.
func toPhotos(entries []PhotoEntry) []Photo {
	photos := make([]Photo, len(entries))
	for i, e := range entries {
		p := Photo{
			ID:           e.ID,
			Filename:     path.Base(e.StorageRef),
			OriginalName: e.OriginalName,
			URL:          e.URL,
			UploadedAt:   e.CreatedAt,
			Size:         e.FileSize,
			Order:        i,
			Group:        e.Group,
			Width:        e.Width,
			Height:       e.Height,
		}
		if e.StorageRef == "" {
			p.Filename = ""
		}
		if !e.TakenAt.IsZero() {
			taken := e.TakenAt
			p.TakenAt = &taken
		}
		photos[i] = p
	}
	return photos
}

func positionOf(i int) *float64 {
	v := float64(i)
	return &v
}
