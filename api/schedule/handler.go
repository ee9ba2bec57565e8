// Package schedule exposes composite schedules, profile management and
// sessions over HTTP.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/smartcharging/core/composite"
	"github.com/kilianp07/smartcharging/core/model"
	"github.com/kilianp07/smartcharging/core/station"
	"github.com/kilianp07/smartcharging/core/store"
)

// Service is what the handlers need from the application.
type Service interface {
	Calculate(ctx context.Context, req composite.Request) (model.CompositeSchedule, error)
	CalculateAll(ctx context.Context, req composite.Request) ([]model.CompositeSchedule, error)
	Profiles(ctx context.Context, evseID int) ([]model.ChargingProfile, error)
	InstallProfile(ctx context.Context, p model.ChargingProfile) error
	DeleteProfile(ctx context.Context, id int) error
	ClearProfiles(ctx context.Context, f store.Filter) ([]model.ChargingProfile, error)
	StartSession(ctx context.Context, evseID int, transactionID string) error
	StopSession(ctx context.Context, evseID int) error
	Sessions() []station.Session
}

// DefaultDuration is used when a schedule request has no duration.
const DefaultDuration = 24 * time.Hour

// Handler serves the HTTP API.
type Handler struct {
	svc   Service
	token string
	now   func() time.Time
}

// NewHandler returns the API router. Requests below /api must carry
// "Authorization: Bearer <token>" when token is non-empty.
func NewHandler(svc Service, token string) http.Handler {
	h := &Handler{svc: svc, token: token, now: time.Now}
	return h.Routes()
}

// Routes builds the chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.requireBearer)
		r.Get("/composite-schedules", h.allSchedules)
		r.Route("/evses/{id}", func(r chi.Router) {
			r.Get("/composite-schedule", h.schedule)
			r.Get("/profiles", h.listProfiles)
			r.Put("/profiles", h.putProfile)
			r.Post("/session", h.startSession)
			r.Delete("/session", h.stopSession)
		})
		r.Get("/sessions", h.sessions)
		r.Delete("/profiles", h.clearProfiles)
		r.Delete("/profiles/{profileID}", h.deleteProfile)
	})
	return r
}

func (h *Handler) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	req, err := h.request(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	cs, err := h.svc.Calculate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *Handler) allSchedules(w http.ResponseWriter, r *http.Request) {
	req, err := h.request(r, model.StationWideID)
	if err != nil {
		writeError(w, err)
		return
	}
	all, err := h.svc.CalculateAll(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// request parses the query parameters of a schedule request.
func (h *Handler) request(r *http.Request, evseID int) (composite.Request, error) {
	q := r.URL.Query()
	req := composite.Request{EvseID: evseID, Unit: model.ChargingRateUnit(q.Get("unit"))}

	req.Start = h.now()
	if s := q.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return req, badRequest("start: %v", err)
		}
		req.Start = t
	}
	duration := DefaultDuration
	if s := q.Get("duration"); s != "" {
		secs, err := strconv.Atoi(s)
		if err != nil || secs <= 0 {
			return req, badRequest("duration must be a positive number of seconds")
		}
		duration = time.Duration(secs) * time.Second
	}
	req.End = req.Start.Add(duration)

	flags := []struct {
		name string
		dst  *bool
	}{
		{"discharge", &req.IncludeDischarge},
		{"exclude_external", &req.ExcludeExternalConstraints},
		{"simulate_session", &req.SimulateSession},
		{"offline", &req.Offline},
	}
	for _, f := range flags {
		s := q.Get(f.name)
		if s == "" {
			continue
		}
		v, err := strconv.ParseBool(s)
		if err != nil {
			return req, badRequest("%s: %v", f.name, err)
		}
		*f.dst = v
	}
	return req, nil
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	ps, err := h.svc.Profiles(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if ps == nil {
		ps = []model.ChargingProfile{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) putProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var p model.ChargingProfile
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		writeError(w, badRequest("decode profile: %v", err))
		return
	}
	if p.EvseID != 0 && p.EvseID != id {
		writeError(w, badRequest("profile evseId %d does not match path %d", p.EvseID, id))
		return
	}
	p.EvseID = id
	if err := h.svc.InstallProfile(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) deleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "profileID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.DeleteProfile(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.Filter
	for _, p := range []struct {
		name string
		dst  **int
	}{{"evse", &f.EvseID}, {"stack_level", &f.StackLevel}, {"id", &f.ProfileID}} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, badRequest("%s: %v", p.name, err))
			return
		}
		*p.dst = &v
	}
	f.Purpose = model.ProfilePurpose(q.Get("purpose"))
	removed, err := h.svc.ClearProfiles(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	ids := make([]int, 0, len(removed))
	for _, p := range removed {
		ids = append(ids, p.ID)
	}
	writeJSON(w, http.StatusOK, map[string][]int{"removed": ids})
}

type sessionRequest struct {
	TransactionID string `json:"transactionId"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req sessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, badRequest("decode session: %v", err))
			return
		}
	}
	if err := h.svc.StartSession(r.Context(), id, req.TransactionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) stopSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.StopSession(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sessions(w http.ResponseWriter, _ *http.Request) {
	s := h.svc.Sessions()
	if s == nil {
		s = []station.Session{}
	}
	writeJSON(w, http.StatusOK, s)
}

func pathInt(r *http.Request, key string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, key))
	if err != nil {
		return 0, badRequest("%s must be an integer", key)
	}
	return v, nil
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

type errorBody struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

// statusOf maps service errors onto HTTP status codes.
func statusOf(err error) int {
	var (
		re *requestError
		ve *model.ValidationError
	)
	switch {
	case errors.Is(err, composite.ErrUnknownOutlet):
		return http.StatusNotFound
	case errors.As(err, &re), composite.IsInputError(err):
		return http.StatusBadRequest
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound), errors.Is(err, station.ErrUnknownOutlet):
		return http.StatusNotFound
	case errors.Is(err, station.ErrSessionActive), errors.Is(err, station.ErrNoSession):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		body.Problems = ve.Problems
	}
	writeJSON(w, statusOf(err), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
