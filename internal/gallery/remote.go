package gallery

import (
	"context"
	"fmt"

	"github.com/fpang/photo-portfolio/internal/recordstore"
)

// Collection is the record store collection holding gallery records.
const Collection = "galleries"

const (
	fieldName     = "name"
	fieldSlug     = "slug"
	fieldPosition = "position"
	fieldSiteID   = "siteId"
)

// RemoteStore keeps galleries as records in the record store. When siteID
// is set, every query is restricted to that site and new galleries are
// tagged with it.
type RemoteStore struct {
	gw     recordstore.Gateway
	siteID string
}

// Compile-time interface check.
var _ Store = (*RemoteStore)(nil)

// NewRemoteStore creates a RemoteStore. siteID may be empty.
func NewRemoteStore(gw recordstore.Gateway, siteID string) *RemoteStore {
	return &RemoteStore{gw: gw, siteID: siteID}
}

func (s *RemoteStore) where(extra map[string]any) map[string]any {
	w := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		w[k] = v
	}
	if s.siteID != "" {
		w[fieldSiteID] = s.siteID
	}
	return w
}

func (s *RemoteStore) List(ctx context.Context) ([]Gallery, error) {
	records, err := s.gw.Query(ctx, Collection, recordstore.Query{
		Where: s.where(nil),
		Order: fieldPosition,
	})
	if err != nil {
		return nil, err
	}
	galleries := make([]Gallery, 0, len(records))
	for _, rec := range records {
		galleries = append(galleries, fromRecord(rec))
	}
	return galleries, nil
}

func (s *RemoteStore) Find(ctx context.Context, slug string) (Gallery, error) {
	records, err := s.gw.Query(ctx, Collection, recordstore.Query{
		Where: s.where(map[string]any{fieldSlug: slug}),
		Limit: 1,
	})
	if err != nil {
		return Gallery{}, err
	}
	if len(records) == 0 {
		return Gallery{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return fromRecord(records[0]), nil
}

func (s *RemoteStore) Create(ctx context.Context, g Gallery) (Gallery, error) {
	body := map[string]any{
		fieldName:     g.Name,
		fieldSlug:     g.Slug,
		fieldPosition: g.Position,
	}
	if s.siteID != "" {
		body[fieldSiteID] = s.siteID
	}
	rec, err := s.gw.Create(ctx, Collection, body)
	if err != nil {
		return Gallery{}, err
	}
	return fromRecord(rec), nil
}

func (s *RemoteStore) Rename(ctx context.Context, g Gallery, name string) error {
	return s.gw.Update(ctx, Collection, g.ID, map[string]any{fieldName: name})
}

func (s *RemoteStore) SetPosition(ctx context.Context, g Gallery, position int) error {
	return s.gw.Update(ctx, Collection, g.ID, map[string]any{fieldPosition: position})
}

func (s *RemoteStore) Delete(ctx context.Context, g Gallery) error {
	return s.gw.Delete(ctx, Collection, g.ID)
}

func fromRecord(rec recordstore.Record) Gallery {
	g := Gallery{
		ID:     rec.ID(),
		Name:   rec.String(fieldName),
		Slug:   rec.String(fieldSlug),
		SiteID: rec.String(fieldSiteID),
	}
	if v, ok := rec.Number(fieldPosition); ok {
		g.Position = int(v)
	}
	return g
}
