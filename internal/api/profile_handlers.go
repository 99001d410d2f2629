package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/events"
	"github.com/switchyard-project/switchyard/internal/paths"
	"github.com/switchyard-project/switchyard/internal/profiles"
	"github.com/switchyard-project/switchyard/internal/sysopen"
)

// ProfileHandlers serves everything under /api/families/.
type ProfileHandlers struct {
	profiles *profiles.Manager
}

// NewProfileHandlers creates profile handlers backed by the manager.
func NewProfileHandlers(manager *profiles.Manager) *ProfileHandlers {
	return &ProfileHandlers{profiles: manager}
}

// createProfileRequest is a profile create body. A non-empty preset id seeds
// the new profile from that preset's settings template.
type createProfileRequest struct {
	profiles.CreateInput
	PresetID string `json:"preset_id"`
}

// reorderRequest carries the full desired profile order.
type reorderRequest struct {
	IDs []string `json:"ids"`
}

// commonConfigBody is the shared config layer in transit, both directions.
type commonConfigBody struct {
	Content string `json:"content"`
}

// HandleFamilyRoutes dispatches /api/families/{family}/... by path shape.
func (h *ProfileHandlers) HandleFamilyRoutes(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/api/families/")
	parts := strings.Split(strings.TrimSuffix(trimmed, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Family required", http.StatusBadRequest)
		return
	}

	family, ok := profiles.FamilyByName(parts[0])
	if !ok {
		http.Error(w, "Unknown family", http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "profiles":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r, family)
		case http.MethodPost:
			h.handleCreate(w, r, family)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "common":
		switch r.Method {
		case http.MethodGet:
			h.handleGetCommon(w, r, family)
		case http.MethodPut:
			h.handleSaveCommon(w, r, family)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "reveal":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleReveal(w, r, family)
	case len(parts) == 3 && parts[1] == "profiles" && parts[2] == "order":
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleReorder(w, r, family)
	case len(parts) == 3 && parts[1] == "profiles":
		switch r.Method {
		case http.MethodPut:
			h.handleUpdate(w, r, family, parts[2])
		case http.MethodDelete:
			h.handleDelete(w, r, family, parts[2])
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 4 && parts[1] == "profiles" && parts[3] == "apply":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleApply(w, r, family, parts[2])
	case len(parts) == 4 && parts[1] == "profiles" && parts[3] == "select":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleSelect(w, r, family, parts[2])
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *ProfileHandlers) handleList(w http.ResponseWriter, r *http.Request, family profiles.Family) {
	writeJSON(w, h.profiles.List(r.Context(), family))
}

func (h *ProfileHandlers) handleCreate(w http.ResponseWriter, r *http.Request, family profiles.Family) {
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)

	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode create request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var (
		created profiles.Profile
		err     error
	)
	if req.PresetID != "" {
		created, err = h.profiles.CreateFromPreset(r.Context(), family, req.PresetID, req.CreateInput, events.OriginWindow)
	} else {
		created, err = h.profiles.Create(r.Context(), family, req.CreateInput, events.OriginWindow)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(created); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ProfileHandlers) handleUpdate(w http.ResponseWriter, r *http.Request, family profiles.Family, id string) {
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)

	var profile profiles.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		log.Warn().Err(err).Msg("Failed to decode update request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	// The path id names the profile being updated; the body cannot rename it.
	profile.ID = id

	updated, err := h.profiles.Update(r.Context(), family, profile, events.OriginWindow)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, updated)
}

func (h *ProfileHandlers) handleDelete(w http.ResponseWriter, r *http.Request, family profiles.Family, id string) {
	if err := h.profiles.Delete(r.Context(), family, id, events.OriginWindow); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"status": "success"})
}

func (h *ProfileHandlers) handleApply(w http.ResponseWriter, r *http.Request, family profiles.Family, id string) {
	if err := h.profiles.Apply(r.Context(), family, id, events.OriginWindow); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"status": "success"})
}

func (h *ProfileHandlers) handleSelect(w http.ResponseWriter, r *http.Request, family profiles.Family, id string) {
	if err := h.profiles.Select(r.Context(), family, id, events.OriginWindow); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"status": "success"})
}

func (h *ProfileHandlers) handleReorder(w http.ResponseWriter, r *http.Request, family profiles.Family) {
	r.Body = http.MaxBytesReader(w, r.Body, 256*1024)

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode reorder request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.profiles.Reorder(r.Context(), family, req.IDs, events.OriginWindow); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"status": "success"})
}

func (h *ProfileHandlers) handleGetCommon(w http.ResponseWriter, r *http.Request, family profiles.Family) {
	writeJSON(w, commonConfigBody{Content: h.profiles.CommonConfig(r.Context(), family)})
}

func (h *ProfileHandlers) handleSaveCommon(w http.ResponseWriter, r *http.Request, family profiles.Family) {
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)

	var body commonConfigBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Warn().Err(err).Msg("Failed to decode common config request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.profiles.SaveCommonConfig(r.Context(), family, body.Content, events.OriginWindow); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"status": "success"})
}

func (h *ProfileHandlers) handleReveal(w http.ResponseWriter, r *http.Request, family profiles.Family) {
	dir, err := paths.FamilyConfigDir(family.DirName)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := sysopen.RevealDir(dir); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, map[string]interface{}{"status": "success", "dir": dir})
}
