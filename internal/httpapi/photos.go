package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/fpang/photo-portfolio/internal/apperr"
	"github.com/fpang/photo-portfolio/internal/folder"
	"github.com/fpang/photo-portfolio/internal/photoorder"
	"github.com/fpang/photo-portfolio/internal/upload"
)

const (
	// maxFilesPerUpload bounds the parts of one multipart upload.
	maxFilesPerUpload = 50
	// maxFormBytes bounds the non-file fields of an upload.
	maxFormBytes = 1 << 20
)

// resolveFolder validates a folder identifier. A missing identifier is an
// invalid folder.
func (s *server) resolveFolder(param string) (folder.Folder, error) {
	return s.folders.Resolve(param)
}

// GET    /api/photos?folder=<key>            list in display order
// POST   /api/photos?folder=<key>            multipart upload, appended at the end
// DELETE /api/photos?folder=<key>&id=<id>    best-effort delete
func (s *server) handlePhotos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		f, err := s.resolveFolder(r.URL.Query().Get("folder"))
		if err != nil {
			respondError(w, r, "list photos", err)
			return
		}
		photos, err := s.photos.List(r.Context(), f)
		if err != nil {
			respondError(w, r, "list photos", err)
			return
		}
		respondJSON(w, http.StatusOK, photos)

	case http.MethodPost:
		s.handleUpload(w, r)

	case http.MethodDelete:
		q := r.URL.Query()
		f, err := s.resolveFolder(q.Get("folder"))
		if err != nil {
			respondError(w, r, "delete photo", err)
			return
		}
		id := q.Get("id")
		if id == "" {
			respondError(w, r, "delete photo", apperr.Validation("id", "photo id is required"))
			return
		}
		res, err := s.uploads.Remove(r.Context(), f, id)
		if err != nil {
			respondError(w, r, "delete photo", err)
			return
		}
		respondJSON(w, http.StatusOK, res.Photos)

	default:
		methodNotAllowed(w)
	}
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes*maxFilesPerUpload+maxFormBytes)

	param := r.URL.Query().Get("folder")
	var files []upload.File
	mr, err := r.MultipartReader()
	switch {
	case errors.Is(err, http.ErrNotMultipart):
		// No parts: the upload degenerates to a list.
	case err != nil:
		respondError(w, r, "upload", apperr.Validation("files", "invalid multipart body: %v", err))
		return
	default:
		var formFolder string
		files, formFolder, err = s.readParts(mr)
		if err != nil {
			respondError(w, r, "upload", err)
			return
		}
		if param == "" {
			param = formFolder
		}
	}

	f, err := s.resolveFolder(param)
	if err != nil {
		respondError(w, r, "upload", err)
		return
	}

	photos, err := s.uploads.Upload(r.Context(), f, files)
	if err != nil {
		respondError(w, r, "upload", err)
		return
	}
	respondJSON(w, http.StatusOK, photos)
}

// readParts reads the multipart stream in order. Every part carrying a file
// name is an uploaded file, whatever its field name; a "folder" field may
// name the target folder. Files larger than the per-file limit are read one
// byte past it so the pipeline rejects them by size.
func (s *server) readParts(mr *multipart.Reader) ([]upload.File, string, error) {
	var (
		files       []upload.File
		folderParam string
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return files, folderParam, nil
		}
		if err != nil {
			return nil, "", apperr.Validation("files", "invalid multipart body: %v", err)
		}

		if part.FileName() == "" {
			if part.FormName() == "folder" {
				value, err := io.ReadAll(io.LimitReader(part, maxFormBytes))
				if err != nil {
					return nil, "", fmt.Errorf("read folder field: %w", err)
				}
				folderParam = string(value)
			}
			part.Close()
			continue
		}

		if len(files) == maxFilesPerUpload {
			return nil, "", apperr.Validation("files", "at most %d files per upload", maxFilesPerUpload)
		}
		data, err := io.ReadAll(io.LimitReader(part, s.maxUploadBytes+1))
		part.Close()
		if err != nil {
			return nil, "", fmt.Errorf("read part %s: %w", part.FileName(), err)
		}
		files = append(files, upload.File{
			Name:        part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
		})
	}
}

type orderRequest struct {
	Folder string   `json:"folder"`
	Order  []string `json:"order"`
}

// PUT /api/photos/order {folder, order}
func (s *server) handlePhotoOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, "reorder", err)
		return
	}
	if req.Order == nil {
		respondError(w, r, "reorder", apperr.Validation("order", "order is required"))
		return
	}
	f, err := s.resolveFolder(req.Folder)
	if err != nil {
		respondError(w, r, "reorder", err)
		return
	}
	photos, err := s.photos.UpdateOrder(r.Context(), f, req.Order)
	if err != nil {
		respondError(w, r, "reorder", err)
		return
	}
	respondJSON(w, http.StatusOK, photos)
}

type swapRequest struct {
	Folder   string `json:"folder"`
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
}

// PUT /api/photos/order/swap {folder, sourceId, targetId}
func (s *server) handlePhotoSwap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req swapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, "swap", err)
		return
	}
	if req.SourceID == "" || req.TargetID == "" {
		respondError(w, r, "swap", apperr.Validation("sourceId", "sourceId and targetId are required"))
		return
	}
	f, err := s.resolveFolder(req.Folder)
	if err != nil {
		respondError(w, r, "swap", err)
		return
	}
	photos, err := s.photos.Swap(r.Context(), f, req.SourceID, req.TargetID)
	if err != nil {
		respondError(w, r, "swap", err)
		return
	}
	respondJSON(w, http.StatusOK, photos)
}

type groupRequest struct {
	Folder string          `json:"folder"`
	Photos []string        `json:"photos"`
	Group  json.RawMessage `json:"group"`
}

// groupValue accepts the group tag as a string or a number. A missing or
// null group clears the tag.
func groupValue(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", apperr.Validation("group", "invalid group: %v", err)
	}
	switch g := v.(type) {
	case string:
		return g, nil
	case json.Number:
		n, err := g.Float64()
		if err != nil {
			return "", apperr.Validation("group", "invalid group number %s", g)
		}
		return fmt.Sprintf("%g", n), nil
	default:
		return "", apperr.Validation("group", "group must be a string or a number")
	}
}

// PUT /api/photos/group {folder, photos, group}
func (s *server) handlePhotoGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req groupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, "group", err)
		return
	}
	group, err := groupValue(req.Group)
	if err != nil {
		respondError(w, r, "group", err)
		return
	}
	f, err := s.resolveFolder(req.Folder)
	if err != nil {
		respondError(w, r, "group", err)
		return
	}
	photos, err := s.photos.AssignGroup(r.Context(), f, req.Photos, group)
	if err != nil {
		respondError(w, r, "group", err)
		return
	}
	respondJSON(w, http.StatusOK, photos)
}

// DELETE /api/photos/all?folder=<key>
func (s *server) handlePhotosAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	f, err := s.resolveFolder(r.URL.Query().Get("folder"))
	if err != nil {
		respondError(w, r, "clear photos", err)
		return
	}
	photos, err := s.photos.Clear(r.Context(), f)
	if err != nil {
		respondError(w, r, "clear photos", err)
		return
	}
	if photos == nil {
		photos = []photoorder.Photo{}
	}
	respondJSON(w, http.StatusOK, photos)
}
