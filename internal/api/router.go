// Package api serves the localhost HTTP surface: profile CRUD, apply and
// select, common-layer editing, skills, encrypted backup transfer, and the
// websocket change feed. The window frontend and one-shot CLI verbs are both
// clients of this surface.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/backup"
	"github.com/switchyard-project/switchyard/internal/config"
	"github.com/switchyard-project/switchyard/internal/paths"
	"github.com/switchyard-project/switchyard/internal/profiles"
	"github.com/switchyard-project/switchyard/internal/skills"
	"github.com/switchyard-project/switchyard/internal/websocket"
)

// Router handles HTTP routing
type Router struct {
	mux       *http.ServeMux
	config    *config.Config
	profiles  *profiles.Manager
	wsHub     *websocket.Hub
	version   string
	startTime time.Time
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, profileManager *profiles.Manager, skillManager *skills.Manager, backupService *backup.Service, wsHub *websocket.Hub, version string) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		config:    cfg,
		profiles:  profileManager,
		wsHub:     wsHub,
		version:   version,
		startTime: time.Now(),
	}

	r.setupRoutes(skillManager, backupService)
	return r
}

// Handler returns the router wrapped in the error-handling middleware.
func (r *Router) Handler() http.Handler {
	return ErrorHandler(r)
}

// setupRoutes configures all routes
func (r *Router) setupRoutes(skillManager *skills.Manager, backupService *backup.Service) {
	profileHandlers := NewProfileHandlers(r.profiles)
	skillHandlers := NewSkillHandlers(skillManager)
	backupHandlers := NewBackupHandlers(backupService)

	r.mux.HandleFunc("/api/health", r.handleHealth)
	r.mux.HandleFunc("/api/version", r.handleVersion)
	r.mux.HandleFunc("/api/families", r.handleFamilies)
	r.mux.HandleFunc("/api/families/", profileHandlers.HandleFamilyRoutes)
	r.mux.HandleFunc("/api/presets", r.handlePresets)

	r.mux.HandleFunc("/api/skills", skillHandlers.HandleList)
	r.mux.HandleFunc("/api/skills/settings", skillHandlers.HandleSettings)

	r.mux.HandleFunc("/api/export", backupHandlers.HandleExport)
	r.mux.HandleFunc("/api/import", backupHandlers.HandleImport)

	// WebSocket endpoint
	r.mux.HandleFunc("/ws", r.wsHub.HandleWebSocket)

	r.mux.Handle("/metrics", promhttp.Handler())
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if strings.HasPrefix(req.URL.Path, "/api/") || strings.HasPrefix(req.URL.Path, "/ws") {
		r.addSecurityHeaders(w)
	}

	start := time.Now()
	r.mux.ServeHTTP(w, req)
	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Dur("duration", time.Since(start)).
		Msg("Request handled")
}

// addSecurityHeaders adds security headers to the response
func (r *Router) addSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; connect-src 'self' ws:")
}

// handleHealth handles health check requests
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(r.startTime).Seconds(),
		"clients":   r.wsHub.ClientCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleVersion handles version requests
func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	version := map[string]interface{}{
		"version": r.version,
		"runtime": "go",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(version)
}

// familyInfo is the wire form of a tool family descriptor.
type familyInfo struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	ConfigDir string `json:"config_dir"`
}

// handleFamilies returns the tool family registry with resolved config dirs.
func (r *Router) handleFamilies(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := profiles.Families()
	infos := make([]familyInfo, 0, len(all))
	for _, family := range all {
		dir, err := paths.FamilyConfigDir(family.DirName)
		if err != nil {
			log.Warn().Err(err).Str("family", family.Name).Msg("Failed to resolve family config dir")
		}
		infos = append(infos, familyInfo{
			Name:      family.Name,
			Label:     family.Label,
			ConfigDir: dir,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}

// handlePresets returns the built-in provider presets.
func (r *Router) handlePresets(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profiles.Presets())
}
