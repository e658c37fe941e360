package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	maintenanceCacheKey = "http:maintenance_report"

	defaultCacheTTL     = time.Minute
	defaultSSEKeepAlive = 20 * time.Second
)

// Server adapts the profile service onto the HTTP surface.
type Server struct {
	service   ProfileService
	feed      Subscriber
	cache     Cacher
	logger    *zap.Logger
	sf        singleflight.Group
	cacheTTL  time.Duration
	keepAlive time.Duration
}

func NewServer(svc ProfileService, feed Subscriber, cache Cacher, logger *zap.Logger, cacheTTL, keepAlive time.Duration) *Server {
	if svc == nil {
		panic("httpapi: profile service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	if keepAlive <= 0 {
		keepAlive = defaultSSEKeepAlive
	}
	return &Server{
		service:   svc,
		feed:      feed,
		cache:     cache,
		logger:    logger,
		cacheTTL:  cacheTTL,
		keepAlive: keepAlive,
	}
}

// Register wires every route onto the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/profiles", s.handleListProfiles)
	mux.HandleFunc("POST /api/profiles", s.handleSubmitRating)
	mux.HandleFunc("DELETE /api/profiles", s.handleClearAll)
	mux.HandleFunc("POST /api/profiles/create", s.handleCreateProfile)
	mux.HandleFunc("POST /api/profiles/merge", s.handleMergeProfiles)
	mux.HandleFunc("GET /api/profiles/{id}", s.handleGetProfile)
	mux.HandleFunc("PUT /api/profiles/{id}", s.handleUpdateProfile)
	mux.HandleFunc("DELETE /api/profiles/{id}", s.handleDeleteProfile)
	mux.HandleFunc("POST /api/profiles/{id}/ratings", s.handleAddRating)
	mux.HandleFunc("DELETE /api/profiles/{id}/ratings/{ratingId}", s.handleDeleteRating)
	mux.HandleFunc("DELETE /api/profiles/{id}/notes/{noteId}", s.handleDeleteNote)

	mux.HandleFunc("GET /api/admin/catalog", s.handleGetCatalog)
	mux.HandleFunc("POST /api/admin/catalog", s.handleSaveCatalog)
	mux.HandleFunc("GET /api/admin/settings", s.handleGetSetting)
	mux.HandleFunc("POST /api/admin/settings", s.handleSaveSetting)
	mux.HandleFunc("GET /api/admin/maintenance-report", s.handleMaintenanceReport)

	mux.HandleFunc("GET /api/events", s.handleEvents)
}

// decodeBody fills dst from the request body. Malformed or empty bodies are
// treated as an empty payload so the validation layer produces the
// field-level messages clients rely on.
func decodeBody(r *http.Request, dst any) {
	if r.Body == nil {
		return
	}
	_ = json.NewDecoder(r.Body).Decode(dst)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	views, err := s.service.ListProfiles(r.Context())
	if err != nil {
		s.writeServiceError(w, "list profiles", err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	var payload ratingPayload
	decodeBody(r, &payload)

	submission, msg := payload.toSubmission()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: msg})
		return
	}

	view, created, err := s.service.SubmitRating(r.Context(), submission)
	if err != nil {
		s.writeServiceError(w, "submit rating", err)
		return
	}
	s.invalidateMaintenanceCache(r.Context())
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, view)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var payload profilePayload
	decodeBody(r, &payload)

	input, msg := payload.toInput()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: msg})
		return
	}

	view, created, err := s.service.CreateOrUpdateProfile(r.Context(), input)
	if err != nil {
		s.writeServiceError(w, "create profile", err)
		return
	}
	s.invalidateMaintenanceCache(r.Context())
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, view)
}

func (s *Server) handleMergeProfiles(w http.ResponseWriter, r *http.Request) {
	var payload mergePayload
	decodeBody(r, &payload)

	view, err := s.service.MergeProfiles(r.Context(), parseID(payload.SourceProfileID), parseID(payload.TargetProfileID))
	if err != nil {
		s.writeServiceError(w, "merge profiles", err)
		return
	}
	s.invalidateMaintenanceCache(r.Context())
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Profile not found"})
		return
	}
	view, err := s.service.GetProfile(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Profile not found"})
		return
	}

	var payload updatePayload
	decodeBody(r, &payload)

	input, msg := payload.toInput()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: msg})
		return
	}

	view, err := s.service.UpdateProfile(r.Context(), id, input)
	if err != nil {
		s.writeServiceError(w, "update profile", err)
		return
	}
	s.invalidateMaintenanceCache(r.Context())
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Profile not found"})
		return
	}
	if err := s.service.DeleteProfile(r.Context(), id); err != nil {
		s.writeServiceError(w, "delete profile", err)
		return
	}
	s.invalidateMaintenanceCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddRating(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Profile not found"})
		return
	}

	var payload ratingPayload
	decodeBody(r, &payload)

	submission, msg := payload.toSubmission()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: msg})
		return
	}

	view, err := s.service.AddRating(r.Context(), id, submission)
	if err != nil {
		s.writeServiceError(w, "add rating", err)
		return
	}
	s.invalidateMaintenanceCache(r.Context())
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleDeleteRating(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Profile not found"})
		return
	}
	ratingID, ok := pathID(r, "ratingId")
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Rating not found"})
		return
	}
	view, err := s.service.DeleteRating(r.Context(), id, ratingID)
	if err != nil {
		s.writeServiceError(w, "delete rating", err)
		return
	}
	s.invalidateMaintenanceCache(r.Context())
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Profile not found"})
		return
	}
	noteID, ok := pathID(r, "noteId")
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Note not found"})
		return
	}
	view, err := s.service.DeleteNote(r.Context(), id, noteID)
	if err != nil {
		s.writeServiceError(w, "delete note", err)
		return
	}
	s.invalidateMaintenanceCache(r.Context())
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearAll(r.Context()); err != nil {
		s.writeServiceError(w, "clear all", err)
		return
	}
	s.invalidateMaintenanceCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.service.Catalog(r.Context())
	if err != nil {
		s.writeServiceError(w, "get catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (s *Server) handleSaveCatalog(w http.ResponseWriter, r *http.Request) {
	var payload catalogPayload
	decodeBody(r, &payload)

	jobTypes, okJobs := parseStringList(payload.JobTypes)
	criteria, okCriteria := parseStringList(payload.CriteriaNames)
	if !okJobs || !okCriteria {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "jobTypes and criteriaNames must be arrays"})
		return
	}

	catalog, err := s.service.SaveCatalog(r.Context(), jobTypes, criteria)
	if err != nil {
		s.writeServiceError(w, "save catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

// parseStringList treats an omitted or null field as an empty list and
// rejects only values that do not unmarshal as a string array.
func parseStringList(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, true
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "key query parameter is required"})
		return
	}
	value, err := s.service.GetSetting(r.Context(), key)
	if err != nil {
		s.writeServiceError(w, "get setting", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": value})
}

func (s *Server) handleSaveSetting(w http.ResponseWriter, r *http.Request) {
	var payload settingPayload
	decodeBody(r, &payload)

	if err := s.service.SaveSetting(r.Context(), payload.Key, payload.Value); err != nil {
		s.writeServiceError(w, "save setting", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": payload.Key, "value": payload.Value})
}

func (s *Server) handleMaintenanceReport(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		report, err := s.service.Maintenance(r.Context())
		if err != nil {
			s.writeServiceError(w, "maintenance report", err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	report, err := fetchCached(r.Context(), s.cache, &s.sf, maintenanceCacheKey, s.cacheTTL, s.logger, s.service.Maintenance)
	if err != nil {
		s.writeServiceError(w, "maintenance report", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
