package httpapi

import (
	"net/http"
	"strings"

	"github.com/fpang/photo-portfolio/internal/apperr"
	"github.com/fpang/photo-portfolio/internal/gallery"
)

type galleryRequest struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// GET    /api/galleries                 list
// POST   /api/galleries {name}          create
// PUT    /api/galleries {slug, name}    rename
// DELETE /api/galleries?slug=<slug>     delete with its photos
func (s *server) handleGalleries(w http.ResponseWriter, r *http.Request) {
	var (
		galleries []gallery.Gallery
		err       error
	)
	switch r.Method {
	case http.MethodGet:
		galleries, err = s.galleries.List(r.Context())

	case http.MethodPost:
		var req galleryRequest
		if err = decodeJSON(w, r, &req); err == nil {
			galleries, err = s.galleries.Create(r.Context(), req.Name)
		}

	case http.MethodPut:
		var req galleryRequest
		if err = decodeJSON(w, r, &req); err == nil {
			if req.Slug == "" {
				err = apperr.Validation("slug", "gallery slug is required")
			} else {
				galleries, err = s.galleries.Rename(r.Context(), req.Slug, req.Name)
			}
		}

	case http.MethodDelete:
		slug := r.URL.Query().Get("slug")
		if slug == "" {
			err = apperr.Validation("slug", "gallery slug is required")
		} else {
			galleries, err = s.galleries.Delete(r.Context(), slug)
		}

	default:
		methodNotAllowed(w)
		return
	}

	if err != nil {
		respondError(w, r, "galleries", err)
		return
	}
	if galleries == nil {
		galleries = []gallery.Gallery{}
	}
	respondJSON(w, http.StatusOK, galleries)
}

type positionsRequest struct {
	Positions []gallery.PositionUpdate `json:"positions"`
}

// PUT /api/galleries/order {positions: [{slug, position}]}
func (s *server) handleGalleryOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req positionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, "gallery order", err)
		return
	}
	galleries, err := s.galleries.UpdatePositions(r.Context(), req.Positions)
	if err != nil {
		respondError(w, r, "gallery order", err)
		return
	}
	if galleries == nil {
		galleries = []gallery.Gallery{}
	}
	respondJSON(w, http.StatusOK, galleries)
}

// GET /api/galleries/{slug}
func (s *server) handleGalleryRoutes(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimPrefix(r.URL.Path, "/api/galleries/")
	if slug == "" || strings.Contains(slug, "/") {
		httpError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	g, err := s.galleries.Find(r.Context(), slug)
	if err != nil {
		respondError(w, r, "gallery", err)
		return
	}
	respondJSON(w, http.StatusOK, g)
}
