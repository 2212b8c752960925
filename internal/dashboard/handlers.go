package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/internal/feed/prefs"
	"github.com/afnaayusuf/kintsugi/internal/feed/state"
	"github.com/afnaayusuf/kintsugi/pkg/log"
)

type stateResponse struct {
	state.View
	Source    string `json:"source,omitempty"`
	Lifecycle string `json:"lifecycle"`
}

type sessionRequest struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	Mode      core.Mode  `json:"mode"`
	Subject   string     `json:"subject,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Selected  string     `json:"selected_vehicle_id,omitempty"`
}

type selectionRequest struct {
	VehicleID string `json:"vehicle_id"`
}

type intervalBody struct {
	IntervalMs int64 `json:"interval_ms"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	source, _ := s.feed.Coordinator().ActiveSource()
	writeJSON(w, http.StatusOK, stateResponse{
		View:      s.feed.Store().View(),
		Source:    source,
		Lifecycle: s.feed.Coordinator().State(),
	})
}

// getTelemetry answers 204 until the first snapshot for the selected
// vehicle has arrived.
func (s *Server) getTelemetry(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.feed.Store().Snapshot()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess, err := s.feed.Login(r.Context(), req.Token)
	switch {
	case errors.Is(err, core.ErrInvalidCredential), errors.Is(err, core.ErrCredentialExpired):
		writeError(w, http.StatusUnauthorized, err)
		return
	case err != nil:
		log.Error(err, "Login failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := sessionResponse{
		Mode:     sess.Mode,
		Subject:  sess.Subject,
		Selected: s.feed.Store().SelectedVehicle(),
	}
	if !sess.ExpiresAt.IsZero() {
		resp.ExpiresAt = &sess.ExpiresAt
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) deleteSession(w http.ResponseWriter, _ *http.Request) {
	s.feed.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch err := s.feed.Select(req.VehicleID); {
	case errors.Is(err, ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, ErrUnknownVehicle):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) getUpdateInterval(w http.ResponseWriter, r *http.Request) {
	d := prefs.UpdateInterval(r.Context(), s.cfg.Coordinator.Prefs)
	writeJSON(w, http.StatusOK, intervalBody{IntervalMs: d.Milliseconds()})
}

// putUpdateInterval stores a new polling interval. A running poller keeps
// its interval; the new one applies from the next connection.
func (s *Server) putUpdateInterval(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Coordinator.Prefs == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no preference store configured"))
		return
	}

	var body intervalBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	d := time.Duration(body.IntervalMs) * time.Millisecond
	err := prefs.SetUpdateInterval(r.Context(), s.cfg.Coordinator.Prefs, d)
	switch {
	case errors.Is(err, prefs.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		log.Error(err, "Failed to store update interval", "intervalMs", body.IntervalMs)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
