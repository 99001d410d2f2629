package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/logging"
	"github.com/switchyard-project/switchyard/internal/merge"
	"github.com/switchyard-project/switchyard/internal/paths"
	"github.com/switchyard-project/switchyard/internal/profiles"
)

// writeJSON encodes v as the JSON response body.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeDomainError maps a domain error onto its HTTP status: missing
// resources 404, id collisions 409, validation and parse failures 400,
// anything else a sanitized 500. The raw error is logged server-side only
// for the 500 case.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := logging.RequestIDFrom(r.Context())

	var parseErr *merge.ParseError
	switch {
	case errors.Is(err, profiles.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		writeErrorResponse(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, profiles.ErrDuplicateID):
		writeErrorResponse(w, http.StatusConflict, "duplicate_id", err.Error(), requestID)
	case errors.Is(err, profiles.ErrInvalidID), errors.Is(err, paths.ErrInvalidPath), errors.As(err, &parseErr):
		writeErrorResponse(w, http.StatusBadRequest, "invalid_input", err.Error(), requestID)
	default:
		log.Error().Err(err).Str("request_id", requestID).Msg("Request handler failed")
		writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Operation failed", requestID)
	}
}
