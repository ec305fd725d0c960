package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"tagwatch/internal/models"
	"tagwatch/internal/monitor"
	"tagwatch/internal/registry"
)

// Coordinator is the registry surface the handlers need.
type Coordinator interface {
	Register(cfg models.MonitorConfig) (string, error)
	Unregister(uniqueKey string) (models.MonitorConfig, error)
	List() []models.MonitorSnapshot
	SetPaused(uniqueKey string, paused bool) error
	Trigger(ctx context.Context, uniqueKey string) error
}

// CreateProjectRequest is the register payload. Interval fields are optional
// and fall back to the configured defaults.
type CreateProjectRequest struct {
	UpstreamOwner string `json:"upstream_owner" validate:"required"`
	UpstreamRepo  string `json:"upstream_repo" validate:"required"`
	MyOwner       string `json:"my_owner" validate:"required"`
	MyRepo        string `json:"my_repo" validate:"required"`

	// DispatchTokenSecret names the secret holding the dispatch token for
	// this project; empty means use the global default.
	DispatchTokenSecret string `json:"dispatch_token_secret,omitempty"`
	ComparisonMode      string `json:"comparison_mode,omitempty" validate:"omitempty,oneof=published_at updated_at"`

	CheckIntervalSeconds int `json:"check_interval_seconds,omitempty" validate:"omitempty,min=1"`
	RetryIntervalSeconds int `json:"retry_interval_seconds,omitempty" validate:"omitempty,min=1"`
	InitialDelaySeconds  int `json:"initial_delay_seconds,omitempty" validate:"omitempty,min=0"`
}

// DeleteTarget identifies the project to remove by its unique key.
type DeleteTarget struct {
	ID string `json:"id" validate:"required"`
}

// SwitchMonitorRequest toggles the paused flag of one project.
type SwitchMonitorRequest struct {
	UniqueKey string `json:"unique_key" validate:"required"`
	Paused    bool   `json:"paused"`
}

// TriggerCheckRequest asks one project for an immediate check.
type TriggerCheckRequest struct {
	UniqueKey string `json:"unique_key" validate:"required"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, RequestID: requestIDFrom(r.Context())})
}

// decodeValid decodes the request body into v and runs struct validation.
func (s *Server) decodeValid(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return s.validate.Struct(v)
}

// writeRegistryError maps registry and monitor errors onto HTTP statuses.
func (s *Server) writeRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrConfigConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrMonitorNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, monitor.ErrCheckInProgress):
		// A check is already running; the caller's intent is satisfied.
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "check already in progress"})
	case errors.Is(err, registry.ErrRegistryClosed):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, r, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.List())
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := s.decodeValid(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	mode, err := models.ParseComparisonMode(req.ComparisonMode)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tc := models.TimeConfig{
		CheckIntervalSeconds: req.CheckIntervalSeconds,
		RetryIntervalSeconds: req.RetryIntervalSeconds,
		InitialDelaySeconds:  req.InitialDelaySeconds,
	}
	if tc.CheckIntervalSeconds == 0 {
		tc.CheckIntervalSeconds = s.defaults.CheckIntervalSeconds
	}
	if tc.RetryIntervalSeconds == 0 {
		tc.RetryIntervalSeconds = s.defaults.RetryIntervalSeconds
	}
	if req.InitialDelaySeconds == 0 {
		tc.InitialDelaySeconds = s.defaults.InitialDelaySeconds
	}

	cfg := models.NewMonitorConfig(models.BaseConfig{
		UpstreamOwner:       req.UpstreamOwner,
		UpstreamRepo:        req.UpstreamRepo,
		DownstreamOwner:     req.MyOwner,
		DownstreamRepo:      req.MyRepo,
		DispatchTokenSecret: req.DispatchTokenSecret,
	}, tc, mode)

	if _, err := s.coordinator.Register(cfg); err != nil {
		s.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	var target DeleteTarget
	if err := s.decodeValid(r, &target); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.coordinator.Unregister(target.ID); err != nil {
		s.writeRegistryError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePopProject(w http.ResponseWriter, r *http.Request) {
	var target DeleteTarget
	if err := s.decodeValid(r, &target); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := s.coordinator.Unregister(target.ID)
	if err != nil {
		s.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSwitchMonitor(w http.ResponseWriter, r *http.Request) {
	var req SwitchMonitorRequest
	if err := s.decodeValid(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.coordinator.SetPaused(req.UniqueKey, req.Paused); err != nil {
		s.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paused": req.Paused})
}

func (s *Server) handleTriggerCheck(w http.ResponseWriter, r *http.Request) {
	var req TriggerCheckRequest
	if err := s.decodeValid(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.coordinator.Trigger(r.Context(), req.UniqueKey); err != nil {
		s.writeRegistryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "check completed"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
