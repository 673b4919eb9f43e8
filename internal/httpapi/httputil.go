package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/photo-portfolio/internal/apperr"
	"github.com/fpang/photo-portfolio/internal/folder"
	"github.com/fpang/photo-portfolio/internal/gallery"
	"github.com/fpang/photo-portfolio/internal/photoorder"
)

// maxJSONBody caps request bodies of the JSON endpoints.
const maxJSONBody = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// httpError sends a {"message": ...} error body. Optional internalDetails are
// logged server-side but never sent to the client.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]string{"message": clientMsg})
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	var (
		ve  *apperr.ValidationError
		mbe *http.MaxBytesError
	)
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, folder.ErrInvalidFolder), errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, gallery.ErrNotFound), errors.Is(err, photoorder.ErrPhotoNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Server errors get a
// generic message; the cause is only logged.
func respondError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		httpError(w, status, op+" failed", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		return
	}
	log.Debug().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("Request rejected")
	httpError(w, status, err.Error())
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("body", "invalid JSON body: %v", err)
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter) {
	httpError(w, http.StatusMethodNotAllowed, "method not allowed")
}
