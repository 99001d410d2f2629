package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/backup"
	"github.com/switchyard-project/switchyard/internal/events"
)

// BackupHandlers serves encrypted export and import of all profile data.
type BackupHandlers struct {
	backup *backup.Service
}

// NewBackupHandlers creates backup handlers backed by the service.
func NewBackupHandlers(service *backup.Service) *BackupHandlers {
	return &BackupHandlers{backup: service}
}

// exportRequest asks for an encrypted bundle, optionally filtered to profile
// ids matching the include patterns.
type exportRequest struct {
	Passphrase string   `json:"passphrase"`
	Include    []string `json:"include,omitempty"`
}

// importRequest carries an encrypted bundle back in.
type importRequest struct {
	Data       string `json:"data"`
	Passphrase string `json:"passphrase"`
}

// HandleExport returns all profile data as a passphrase-encrypted bundle.
func (h *BackupHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 8*1024)

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode export request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Passphrase == "" {
		log.Warn().Msg("Export rejected: passphrase is required")
		http.Error(w, "Passphrase is required", http.StatusBadRequest)
		return
	}

	data, err := h.backup.Export(r.Context(), req.Passphrase, req.Include)
	if err != nil {
		log.Error().Err(err).Msg("Failed to export profile data")
		http.Error(w, "Failed to export profile data", http.StatusInternalServerError)
		return
	}

	log.Info().Msg("Profile data exported")
	writeJSON(w, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}

// HandleImport restores profile data from an encrypted bundle. Decode and
// decrypt failures are client errors; the passphrase or the data is wrong.
func (h *BackupHandlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 4*1024*1024)

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode import request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Passphrase == "" {
		log.Warn().Msg("Import rejected: passphrase is required")
		http.Error(w, "Passphrase is required", http.StatusBadRequest)
		return
	}
	if req.Data == "" {
		log.Warn().Msg("Import rejected: bundle data is required")
		http.Error(w, "Import data is required", http.StatusBadRequest)
		return
	}

	if err := h.backup.Import(r.Context(), req.Data, req.Passphrase, events.OriginWindow); err != nil {
		log.Error().Err(err).Msg("Failed to import profile data")
		http.Error(w, "Failed to import profile data: "+err.Error(), http.StatusBadRequest)
		return
	}

	log.Info().Msg("Profile data imported")
	writeJSON(w, map[string]interface{}{"status": "success"})
}
