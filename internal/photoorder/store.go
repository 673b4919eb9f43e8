package photoorder

import (
	"context"

	"github.com/fpang/photo-portfolio/internal/folder"
)

// OrderStore persists the photos and ordering metadata of folders.
// Implementations hold no folder state between calls; every Load re-reads
// the backing store.
type OrderStore interface {
	// Load returns every entry of the folder as stored, in no particular order.
	Load(ctx context.Context, f folder.Folder) ([]PhotoEntry, error)

	// SavePositions rewrites the positions of all entries to match their
	// Position fields. Used to persist a renormalization.
	SavePositions(ctx context.Context, f folder.Folder, entries []PhotoEntry) error

	// Create registers one new entry at the given position.
	Create(ctx context.Context, f folder.Folder, p NewPhoto, position int) (PhotoEntry, error)

	// Delete removes one entry. It does not renumber the remaining entries.
	Delete(ctx context.Context, f folder.Folder, id string) error

	// Reorder writes position = index for each id, one write per id.
	Reorder(ctx context.Context, f folder.Folder, ids []string) error

	// SetGroup tags the given entries without touching their positions.
	SetGroup(ctx context.Context, f folder.Folder, ids []string, group string) error

	// Purge removes every entry of the folder and returns how many were removed.
	Purge(ctx context.Context, f folder.Folder) (int, error)
}
