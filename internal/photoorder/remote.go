package photoorder

import (
	"context"
	"fmt"
	"time"

	"github.com/fpang/photo-portfolio/internal/folder"
	"github.com/fpang/photo-portfolio/internal/recordstore"
)

// PhotoCollection is the record store collection holding photo records.
const PhotoCollection = "photos"

// Photo record fields.
const (
	fieldFolder       = "folder"
	fieldOriginalName = "originalName"
	fieldStorageRef   = "storageRef"
	fieldURL          = "url"
	fieldFileSize     = "fileSize"
	fieldPosition     = "position"
	fieldGroup        = "group"
	fieldTakenAt      = "takenAt"
	fieldWidth        = "width"
	fieldHeight       = "height"
)

// RemoteOrderStore keeps one record per photo in the record store, with the
// display rank in a "position" field.
type RemoteOrderStore struct {
	gw recordstore.Gateway
}

// Compile-time interface check.
var _ OrderStore = (*RemoteOrderStore)(nil)

// NewRemoteOrderStore creates a RemoteOrderStore on gw.
func NewRemoteOrderStore(gw recordstore.Gateway) *RemoteOrderStore {
	return &RemoteOrderStore{gw: gw}
}

func (s *RemoteOrderStore) Load(ctx context.Context, f folder.Folder) ([]PhotoEntry, error) {
	records, err := s.gw.Query(ctx, PhotoCollection, recordstore.Query{
		Where: map[string]any{fieldFolder: f.Key},
		Order: fieldPosition,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]PhotoEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, entryFromRecord(rec))
	}
	return entries, nil
}

func (s *RemoteOrderStore) SavePositions(ctx context.Context, f folder.Folder, entries []PhotoEntry) error {
	requests := make([]recordstore.BatchRequest, 0, len(entries))
	for _, e := range entries {
		if e.Position == nil {
			continue
		}
		requests = append(requests, recordstore.UpdateRequest(PhotoCollection, e.ID, map[string]any{
			fieldPosition: int(*e.Position),
		}))
	}
	return s.gw.Batch(ctx, requests)
}

func (s *RemoteOrderStore) Create(ctx context.Context, f folder.Folder, p NewPhoto, position int) (PhotoEntry, error) {
	body := map[string]any{
		fieldFolder:       f.Key,
		fieldOriginalName: p.OriginalName,
		fieldStorageRef:   p.StorageRef,
		fieldURL:          p.URL,
		fieldPosition:     position,
	}
	if p.FileSize > 0 {
		body[fieldFileSize] = p.FileSize
	}
	if !p.TakenAt.IsZero() {
		body[fieldTakenAt] = p.TakenAt.UTC().Format(time.RFC3339)
	}
	if p.Width > 0 && p.Height > 0 {
		body[fieldWidth] = p.Width
		body[fieldHeight] = p.Height
	}

	rec, err := s.gw.Create(ctx, PhotoCollection, body)
	if err != nil {
		return PhotoEntry{}, err
	}
	return entryFromRecord(rec), nil
}

// members returns the ids of the folder's photo records.
func (s *RemoteOrderStore) members(ctx context.Context, f folder.Folder) (map[string]bool, error) {
	records, err := s.gw.Query(ctx, PhotoCollection, recordstore.Query{
		Where: map[string]any{fieldFolder: f.Key},
	})
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(records))
	for _, rec := range records {
		ids[rec.ID()] = true
	}
	return ids, nil
}

// requireMembers fails with ErrPhotoNotFound unless every id is in the folder.
func (s *RemoteOrderStore) requireMembers(ctx context.Context, f folder.Folder, ids []string) error {
	known, err := s.members(ctx, f)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("%w: %s", ErrPhotoNotFound, id)
		}
	}
	return nil
}

func (s *RemoteOrderStore) Delete(ctx context.Context, f folder.Folder, id string) error {
	if err := s.requireMembers(ctx, f, []string{id}); err != nil {
		return err
	}
	return s.gw.Delete(ctx, PhotoCollection, id)
}

func (s *RemoteOrderStore) Reorder(ctx context.Context, f folder.Folder, ids []string) error {
	if err := s.requireMembers(ctx, f, ids); err != nil {
		return err
	}
	for i, id := range ids {
		if err := s.gw.Update(ctx, PhotoCollection, id, map[string]any{fieldPosition: i}); err != nil {
			return fmt.Errorf("set position of %s to %d: %w", id, i, err)
		}
	}
	return nil
}

func (s *RemoteOrderStore) SetGroup(ctx context.Context, f folder.Folder, ids []string, group string) error {
	if err := s.requireMembers(ctx, f, ids); err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.gw.Update(ctx, PhotoCollection, id, map[string]any{fieldGroup: group}); err != nil {
			return fmt.Errorf("set group of %s: %w", id, err)
		}
	}
	return nil
}

func (s *RemoteOrderStore) Purge(ctx context.Context, f folder.Folder) (int, error) {
	records, err := s.gw.Query(ctx, PhotoCollection, recordstore.Query{
		Where: map[string]any{fieldFolder: f.Key},
	})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	requests := make([]recordstore.BatchRequest, 0, len(records))
	for _, rec := range records {
		requests = append(requests, recordstore.DeleteRequest(PhotoCollection, rec.ID()))
	}
	if err := s.gw.Batch(ctx, requests); err != nil {
		return 0, err
	}
	return len(records), nil
}

func entryFromRecord(rec recordstore.Record) PhotoEntry {
	e := PhotoEntry{
		ID:           rec.ID(),
		FolderKey:    rec.String(fieldFolder),
		OriginalName: rec.String(fieldOriginalName),
		StorageRef:   rec.String(fieldStorageRef),
		URL:          rec.String(fieldURL),
	}
	if v, ok := rec.Number(fieldPosition); ok {
		e.Position = &v
	}
	if v, ok := rec.Number(fieldFileSize); ok {
		e.FileSize = int64(v)
	}
	if t, ok := rec.Time(recordstore.FieldCreatedAt); ok {
		e.CreatedAt = t
	}
	if t, ok := rec.Time(fieldTakenAt); ok {
		e.TakenAt = t
	}
	if v, ok := rec.Number(fieldWidth); ok {
		e.Width = int(v)
	}
	if v, ok := rec.Number(fieldHeight); ok {
		e.Height = int(v)
	}
	// group may be stored as a number by older clients
	if g := rec.String(fieldGroup); g != "" {
		e.Group = g
	} else if v, ok := rec.Number(fieldGroup); ok {
		e.Group = fmt.Sprintf("%g", v)
	}
	return e
}
