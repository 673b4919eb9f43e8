package photoorder

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-portfolio/internal/folder"
)

// NormalizeObserver is notified after a folder has been renumbered.
// persisted is false when the write-back failed.
type NormalizeObserver func(folderKey string, entries int, persisted bool)

// Engine applies ordering operations to folders through an OrderStore.
type Engine struct {
	store    OrderStore
	observer NormalizeObserver
}

// Option configures an Engine.
type Option func(*Engine)

// WithNormalizeObserver registers a callback for renormalizations.
func WithNormalizeObserver(fn NormalizeObserver) Option {
	return func(e *Engine) { e.observer = fn }
}

// NewEngine creates an Engine over store.
func NewEngine(store OrderStore, opts ...Option) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DeleteResult is the outcome of Delete. Photos is always the folder's
// current list. Ignored holds the store error absorbed by the delete, if any;
// it is informational and never a client-visible failure.
type DeleteResult struct {
	Photos  []Photo
	Ignored error
}

// List returns the folder's photos in display order, repairing drifted
// positions on the way. Store read errors propagate; a failed write-back is
// logged and the computed order is still returned.
func (e *Engine) List(ctx context.Context, f folder.Folder) ([]Photo, error) {
	entries, err := e.entries(ctx, f)
	if err != nil {
		return nil, err
	}
	return toPhotos(entries), nil
}

// entries loads and normalizes the folder.
func (e *Engine) entries(ctx context.Context, f folder.Folder) ([]PhotoEntry, error) {
	stored, err := e.store.Load(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load folder %s: %w", f.Key, err)
	}

	sorted, changed := Normalize(stored)
	if !changed {
		return sorted, nil
	}

	persisted := true
	if err := e.store.SavePositions(ctx, f, sorted); err != nil {
		persisted = false
		log.Warn().
			Err(err).
			Str("folder", f.Key).
			Int("entries", len(sorted)).
			Msg("Failed to persist normalized order; will retry on next read")
	} else {
		log.Info().Str("folder", f.Key).Int("entries", len(sorted)).Msg("Folder order normalized")
	}
	if e.observer != nil {
		e.observer(f.Key, len(sorted), persisted)
	}
	return sorted, nil
}

// Append registers photos at the tail of the folder in input order. Each
// entry is created individually, so a failure leaves the earlier photos in
// place and is returned as an *AppendError counting them.
func (e *Engine) Append(ctx context.Context, f folder.Folder, photos []NewPhoto) ([]Photo, error) {
	current, err := e.entries(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return toPhotos(current), nil
	}

	next := len(current)
	for i, p := range photos {
		entry, err := e.store.Create(ctx, f, p, next)
		if err != nil {
			return nil, &AppendError{
				Created: i,
				Err:     fmt.Errorf("append %s to %s (%d of %d): %w", p.OriginalName, f.Key, i+1, len(photos), err),
			}
		}
		log.Debug().
			Str("folder", f.Key).
			Str("id", entry.ID).
			Int("position", next).
			Msg("Photo appended")
		next++
	}

	log.Info().Str("folder", f.Key).Int("count", len(photos)).Msg("Photos appended")
	return e.List(ctx, f)
}

// Delete removes one photo. A store failure (for example a record that is
// already gone) is absorbed into DeleteResult.Ignored and the current list
// is returned; only a failure to re-read the folder is an error.
func (e *Engine) Delete(ctx context.Context, f folder.Folder, id string) (DeleteResult, error) {
	var res DeleteResult
	if err := e.store.Delete(ctx, f, id); err != nil {
		log.Warn().Err(err).Str("folder", f.Key).Str("id", id).Msg("Photo delete failed; returning current list")
		res.Ignored = err
	} else {
		log.Info().Str("folder", f.Key).Str("id", id).Msg("Photo deleted")
	}

	photos, err := e.List(ctx, f)
	if err != nil {
		return res, err
	}
	res.Photos = photos
	return res, nil
}

// UpdateOrder writes the caller's complete ordering, one position per id, and
// returns the re-read folder. The result reflects what the store accepted,
// not necessarily the requested order.
func (e *Engine) UpdateOrder(ctx context.Context, f folder.Folder, ids []string) ([]Photo, error) {
	ids = dedupe(ids)
	if err := e.store.Reorder(ctx, f, ids); err != nil {
		return nil, fmt.Errorf("reorder %s: %w", f.Key, err)
	}
	log.Info().Str("folder", f.Key).Int("count", len(ids)).Msg("Folder reordered")
	return e.List(ctx, f)
}

// Swap exchanges the positions of two photos.
func (e *Engine) Swap(ctx context.Context, f folder.Folder, sourceID, targetID string) ([]Photo, error) {
	current, err := e.entries(ctx, f)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(current))
	src, dst := -1, -1
	for i, entry := range current {
		ids[i] = entry.ID
		if entry.ID == sourceID {
			src = i
		}
		if entry.ID == targetID {
			dst = i
		}
	}
	if src < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPhotoNotFound, sourceID)
	}
	if dst < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPhotoNotFound, targetID)
	}
	if src == dst {
		return toPhotos(current), nil
	}

	ids[src], ids[dst] = ids[dst], ids[src]
	return e.UpdateOrder(ctx, f, ids)
}

// AssignGroup sets an advisory group tag on photos. Positions are untouched
// and a photo may be re-tagged at any time.
func (e *Engine) AssignGroup(ctx context.Context, f folder.Folder, ids []string, group string) ([]Photo, error) {
	ids = dedupe(ids)
	if err := e.store.SetGroup(ctx, f, ids, group); err != nil {
		return nil, fmt.Errorf("assign group in %s: %w", f.Key, err)
	}
	log.Info().Str("folder", f.Key).Str("group", group).Int("count", len(ids)).Msg("Group assigned")
	return e.List(ctx, f)
}

// Purge removes every photo record of the folder. Errors propagate so that
// callers can refuse to delete the owning gallery.
func (e *Engine) Purge(ctx context.Context, f folder.Folder) error {
	n, err := e.store.Purge(ctx, f)
	if err != nil {
		return fmt.Errorf("purge %s: %w", f.Key, err)
	}
	log.Info().Str("folder", f.Key).Int("removed", n).Msg("Folder purged")
	return nil
}

// Clear purges the folder and returns its (now empty) list.
func (e *Engine) Clear(ctx context.Context, f folder.Folder) ([]Photo, error) {
	if err := e.Purge(ctx, f); err != nil {
		return nil, err
	}
	return e.List(ctx, f)
}

// dedupe drops empty and repeated ids, keeping first occurrences.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
