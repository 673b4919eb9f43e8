package photoorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-portfolio/internal/folder"
	"github.com/fpang/photo-portfolio/internal/jsonutil"
)

// storedNameRegex matches names written by disk storage: <uuid>_<original>.
var storedNameRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}_(.+)$`)

// FileOrderStore keeps photos as files in the folder's directory and their
// order in one JSON document mapping order key to an ordered id list. The id
// of a photo is its file name.
//
// Older documents may map an order key to {id: weight}; such entries are
// migrated on read to an id list sorted by descending weight.
type FileOrderStore struct {
	orderPath  string
	groupsPath string

	// mu serializes read-modify-write cycles on the JSON documents.
	mu sync.Mutex
}

// Compile-time interface check.
var _ OrderStore = (*FileOrderStore)(nil)

// NewFileOrderStore creates a FileOrderStore whose documents live in dataDir.
func NewFileOrderStore(dataDir string) *FileOrderStore {
	return &FileOrderStore{
		orderPath:  filepath.Join(dataDir, "order.json"),
		groupsPath: filepath.Join(dataDir, "groups.json"),
	}
}

// orderDoc is the decoded order document. Legacy weight maps are migrated
// while decoding; migrated reports whether any key was.
type orderDoc struct {
	lists    map[string][]string
	migrated bool
}

func (s *FileOrderStore) readOrder() (*orderDoc, error) {
	doc := &orderDoc{lists: make(map[string][]string)}

	var raw map[string]json.RawMessage
	if _, err := jsonutil.ReadFile(s.orderPath, &raw); err != nil {
		return nil, fmt.Errorf("order document: %w", err)
	}

	for key, value := range raw {
		var ids []string
		if err := json.Unmarshal(value, &ids); err == nil {
			doc.lists[key] = ids
			continue
		}

		var weights map[string]float64
		if err := json.Unmarshal(value, &weights); err != nil {
			log.Warn().Err(err).Str("folder", key).Msg("Unrecognized order entry, resetting")
			doc.migrated = true
			continue
		}
		doc.lists[key] = migrateWeights(weights)
		doc.migrated = true
		log.Info().Str("folder", key).Int("entries", len(weights)).Msg("Migrated legacy weight order to id list")
	}
	return doc, nil
}

// migrateWeights orders ids by descending weight, ties by id.
func migrateWeights(weights map[string]float64) []string {
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if weights[ids[i]] != weights[ids[j]] {
			return weights[ids[i]] > weights[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

func (s *FileOrderStore) writeOrder(doc *orderDoc) error {
	return jsonutil.WriteFile(s.orderPath, doc.lists)
}

func (s *FileOrderStore) readGroups() (map[string]map[string]string, error) {
	groups := make(map[string]map[string]string)
	if _, err := jsonutil.ReadFile(s.groupsPath, &groups); err != nil {
		return nil, fmt.Errorf("groups document: %w", err)
	}
	return groups, nil
}

// diskFile is one photo file found in a folder directory.
type diskFile struct {
	name    string
	size    int64
	modTime time.Time
}

func listDir(dir string) ([]diskFile, error) {
	if dir == "" {
		return nil, fmt.Errorf("folder has no directory")
	}
	dirEntries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var files []diskFile
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, diskFile{name: de.Name(), size: info.Size(), modTime: info.ModTime()})
	}
	return files, nil
}

// reconcile merges the stored id list with the files on disk. Files missing
// from the list are prepended newest first; ids whose file is gone are
// dropped. changed reports whether the list differs from the stored one.
func reconcile(stored []string, files []diskFile) (ids []string, changed bool) {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f.name] = true
	}

	listed := make(map[string]bool, len(stored))
	kept := make([]string, 0, len(stored))
	for _, id := range stored {
		if !present[id] || listed[id] {
			changed = true
			continue
		}
		listed[id] = true
		kept = append(kept, id)
	}

	var untracked []diskFile
	for _, f := range files {
		if !listed[f.name] {
			untracked = append(untracked, f)
		}
	}
	sort.Slice(untracked, func(i, j int) bool {
		if !untracked[i].modTime.Equal(untracked[j].modTime) {
			return untracked[i].modTime.After(untracked[j].modTime)
		}
		return untracked[i].name < untracked[j].name
	})

	ids = make([]string, 0, len(untracked)+len(kept))
	for _, f := range untracked {
		ids = append(ids, f.name)
	}
	ids = append(ids, kept...)
	return ids, changed || len(untracked) > 0
}

// currentIDs returns the folder's ids reconciled with the files on disk.
func currentIDs(doc *orderDoc, f folder.Folder) ([]string, error) {
	files, err := listDir(f.Dir)
	if err != nil {
		return nil, err
	}
	ids, _ := reconcile(doc.lists[f.Key], files)
	return ids, nil
}

func (s *FileOrderStore) Load(ctx context.Context, f folder.Folder) ([]PhotoEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := listDir(f.Dir)
	if err != nil {
		return nil, err
	}
	doc, err := s.readOrder()
	if err != nil {
		return nil, err
	}
	groups, err := s.readGroups()
	if err != nil {
		return nil, err
	}

	ids, changed := reconcile(doc.lists[f.Key], files)
	if changed || doc.migrated {
		if len(ids) == 0 {
			delete(doc.lists, f.Key)
		} else {
			doc.lists[f.Key] = ids
		}
		if err := s.writeOrder(doc); err != nil {
			return nil, err
		}
		log.Debug().Str("folder", f.Key).Int("entries", len(ids)).Msg("Order document reconciled with disk")
	}

	byName := make(map[string]diskFile, len(files))
	for _, file := range files {
		byName[file.name] = file
	}

	entries := make([]PhotoEntry, len(ids))
	for i, id := range ids {
		file := byName[id]
		entries[i] = PhotoEntry{
			ID:           id,
			FolderKey:    f.Key,
			OriginalName: originalName(id),
			StorageRef:   id,
			URL:          f.URLPrefix + "/" + url.PathEscape(id),
			FileSize:     file.size,
			Position:     positionOf(i),
			CreatedAt:    file.modTime,
			Group:        groups[f.Key][id],
		}
	}
	return entries, nil
}

func (s *FileOrderStore) SavePositions(ctx context.Context, f folder.Folder, entries []PhotoEntry) error {
	sorted := make([]PhotoEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return validPosition(sorted[i].Position) && (!validPosition(sorted[j].Position) || *sorted[i].Position < *sorted[j].Position)
	})

	ids := make([]string, len(sorted))
	for i, e := range sorted {
		ids[i] = e.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readOrder()
	if err != nil {
		return err
	}
	doc.lists[f.Key] = ids
	return s.writeOrder(doc)
}

// Create expects the file to be in the folder directory already. The id is
// moved to position if a previous read listed it as untracked.
func (s *FileOrderStore) Create(ctx context.Context, f folder.Folder, p NewPhoto, position int) (PhotoEntry, error) {
	id := p.StorageRef
	if !safeFileName(id) {
		return PhotoEntry{}, fmt.Errorf("invalid storage reference %q", id)
	}
	info, err := os.Stat(filepath.Join(f.Dir, id))
	if err != nil {
		return PhotoEntry{}, fmt.Errorf("stat %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readOrder()
	if err != nil {
		return PhotoEntry{}, err
	}

	ids := removeID(doc.lists[f.Key], id)
	if position > len(ids) {
		position = len(ids)
	}
	if position < 0 {
		position = 0
	}
	ids = append(ids[:position], append([]string{id}, ids[position:]...)...)
	doc.lists[f.Key] = ids
	if err := s.writeOrder(doc); err != nil {
		return PhotoEntry{}, err
	}

	name := p.OriginalName
	if name == "" {
		name = originalName(id)
	}
	return PhotoEntry{
		ID:           id,
		FolderKey:    f.Key,
		OriginalName: name,
		StorageRef:   id,
		URL:          f.URLPrefix + "/" + url.PathEscape(id),
		FileSize:     info.Size(),
		Position:     positionOf(position),
		CreatedAt:    info.ModTime(),
	}, nil
}

func (s *FileOrderStore) Delete(ctx context.Context, f folder.Folder, id string) error {
	if !safeFileName(id) {
		return fmt.Errorf("%w: %q", ErrPhotoNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removeErr := os.Remove(filepath.Join(f.Dir, id))
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", id, removeErr)
	}

	doc, err := s.readOrder()
	if err != nil {
		return err
	}
	doc.lists[f.Key] = removeID(doc.lists[f.Key], id)
	if err := s.writeOrder(doc); err != nil {
		return err
	}

	if removeErr != nil {
		return fmt.Errorf("%w: %s", ErrPhotoNotFound, id)
	}
	return nil
}

// Reorder places the given ids first, in order, followed by any listed ids
// the caller left out.
func (s *FileOrderStore) Reorder(ctx context.Context, f folder.Folder, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readOrder()
	if err != nil {
		return err
	}
	current, err := currentIDs(doc, f)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(current))
	for _, id := range current {
		known[id] = true
	}

	next := make([]string, 0, len(current))
	placed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("%w: %s", ErrPhotoNotFound, id)
		}
		placed[id] = true
		next = append(next, id)
	}
	for _, id := range current {
		if !placed[id] {
			next = append(next, id)
		}
	}

	doc.lists[f.Key] = next
	return s.writeOrder(doc)
}

func (s *FileOrderStore) SetGroup(ctx context.Context, f folder.Folder, ids []string, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readOrder()
	if err != nil {
		return err
	}
	current, err := currentIDs(doc, f)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(current))
	for _, id := range current {
		known[id] = true
	}
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("%w: %s", ErrPhotoNotFound, id)
		}
	}

	groups, err := s.readGroups()
	if err != nil {
		return err
	}
	tags := groups[f.Key]
	if tags == nil {
		tags = make(map[string]string)
		groups[f.Key] = tags
	}
	for _, id := range ids {
		if group == "" {
			delete(tags, id)
		} else {
			tags[id] = group
		}
	}
	if len(tags) == 0 {
		delete(groups, f.Key)
	}
	return jsonutil.WriteFile(s.groupsPath, groups)
}

func (s *FileOrderStore) Purge(ctx context.Context, f folder.Folder) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := listDir(f.Dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, file := range files {
		if err := os.Remove(filepath.Join(f.Dir, file.name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", file.name, err)
		}
		removed++
	}

	doc, err := s.readOrder()
	if err != nil {
		return removed, err
	}
	delete(doc.lists, f.Key)
	if err := s.writeOrder(doc); err != nil {
		return removed, err
	}

	groups, err := s.readGroups()
	if err != nil {
		return removed, err
	}
	if _, ok := groups[f.Key]; ok {
		delete(groups, f.Key)
		if err := jsonutil.WriteFile(s.groupsPath, groups); err != nil {
			return removed, err
		}
	}

	// Best-effort: leaves the directory if anything else lives in it.
	os.Remove(f.Dir)
	return removed, nil
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// safeFileName rejects ids that could escape the folder directory.
func safeFileName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}

// originalName recovers the uploaded file name from a stored file name.
func originalName(stored string) string {
	if m := storedNameRegex.FindStringSubmatch(stored); m != nil {
		return m[1]
	}
	return stored
}
