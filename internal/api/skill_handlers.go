package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/events"
	"github.com/switchyard-project/switchyard/internal/skills"
)

// SkillHandlers serves skill repository settings and listings.
type SkillHandlers struct {
	skills *skills.Manager
}

// NewSkillHandlers creates skill handlers backed by the manager.
func NewSkillHandlers(manager *skills.Manager) *SkillHandlers {
	return &SkillHandlers{skills: manager}
}

// skillSettingsBody carries the central repository path in transit. The
// response form adds the resolved absolute directory.
type skillSettingsBody struct {
	CentralRepoPath string `json:"central_repo_path"`
	ResolvedDir     string `json:"resolved_dir,omitempty"`
}

// HandleSettings serves GET and PUT for the skill repository settings.
func (h *SkillHandlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := h.skills.Settings(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, skillSettingsBody{
			CentralRepoPath: settings.CentralRepoPath,
			ResolvedDir:     h.skills.CentralDir(r.Context()),
		})
	case http.MethodPut:
		r.Body = http.MaxBytesReader(w, r.Body, 64*1024)

		var body skillSettingsBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			log.Warn().Err(err).Msg("Failed to decode skill settings request")
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		resolved, err := h.skills.SetCentralDir(r.Context(), body.CentralRepoPath, events.OriginWindow)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, skillSettingsBody{
			CentralRepoPath: body.CentralRepoPath,
			ResolvedDir:     resolved,
		})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleList returns the skills found in the central repository.
func (h *SkillHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list, err := h.skills.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, list)
}
