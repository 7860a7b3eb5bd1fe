package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plug-monitor/internal/autooff"
	"github.com/thatsimonsguy/plug-monitor/internal/history"
	"github.com/thatsimonsguy/plug-monitor/internal/metrics"
	"github.com/thatsimonsguy/plug-monitor/internal/model"
	"github.com/thatsimonsguy/plug-monitor/internal/session"
	"github.com/thatsimonsguy/plug-monitor/internal/store"
)

const dateLayout = "2006-01-02"

type Server struct {
	session  *session.Context
	currency string
	location *time.Location
}

type StatusResponse struct {
	Status      model.Status  `json:"status"`
	Currency    string        `json:"currency"`
	AutoOff     autooff.State `json:"auto_off"`
	OnSince     *time.Time    `json:"on_since,omitempty"`
	LastTick    time.Time     `json:"last_tick"`
	LastLogged  time.Time     `json:"last_logged"`
	HistoryRows int           `json:"history_rows"`
	Warnings    []string      `json:"warnings,omitempty"`
}

type SwitchRequest struct {
	On *bool `json:"on"`
}

type AutoOffRequest struct {
	Hours int `json:"hours"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(sess *session.Context, currency string) *Server {
	return &Server{
		session:  sess,
		currency: currency,
		location: time.Local,
	}
}

// Router returns the API routes wrapped with CORS and access logging.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/api/status", s.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/refresh", s.refresh).Methods(http.MethodPost)
	r.HandleFunc("/api/switch", s.setSwitch).Methods(http.MethodPut)
	r.HandleFunc("/api/auto-off", s.getAutoOff).Methods(http.MethodGet)
	r.HandleFunc("/api/auto-off", s.scheduleAutoOff).Methods(http.MethodPost)
	r.HandleFunc("/api/auto-off", s.cancelAutoOff).Methods(http.MethodDelete)
	r.HandleFunc("/api/history", s.getHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/history/export", s.exportHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/history/summary", s.getSummary).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return handlers.LoggingHandler(log.Logger, cors(r))
}

// HTTPServer returns an http.Server for the API on port.
func (s *Server) HTTPServer(port int) *http.Server {
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) Start(port int) error {
	srv := s.HTTPServer(port)
	log.Info().Str("address", srv.Addr).Msg("Starting REST API server")
	return srv.ListenAndServe()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.statusResponse(s.session.Snapshot()))
}

func (s *Server) statusResponse(snap session.Snapshot) StatusResponse {
	return StatusResponse{
		Status:      snap.Status,
		Currency:    s.currency,
		AutoOff:     snap.AutoOff,
		OnSince:     snap.OnSince,
		LastTick:    snap.LastTick,
		LastLogged:  snap.LastLogged,
		HistoryRows: snap.HistoryRows,
		Warnings:    snap.Warnings,
	}
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	res := s.session.Refresh(r.Context())
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) setSwitch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.On == nil {
		s.writeError(w, http.StatusBadRequest, `Invalid JSON payload, expected {"on": true|false}`)
		return
	}

	var err error
	if *req.On {
		err = s.session.SwitchOn(r.Context())
	} else {
		err = s.session.SwitchOff(r.Context())
	}
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	log.Info().Bool("on", *req.On).Msg("Switch updated via API")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getAutoOff(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Snapshot().AutoOff)
}

func (s *Server) scheduleAutoOff(w http.ResponseWriter, r *http.Request) {
	var req AutoOffRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}
	}

	deadline, err := s.session.ScheduleAutoOff(req.Hours)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Info().Int("hours", req.Hours).Time("deadline", deadline).Msg("Auto-off scheduled via API")
	s.writeJSON(w, http.StatusOK, autooff.State{Armed: true, Deadline: deadline})
}

func (s *Server) cancelAutoOff(w http.ResponseWriter, r *http.Request) {
	if !s.session.CancelAutoOff() {
		s.writeError(w, http.StatusNotFound, "No auto-off scheduled")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.parseRange(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.History(from, to))
}

func (s *Server) exportHistory(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.parseRange(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="energy_history.csv"`)
	if err := store.WriteHistoryCSV(csv.NewWriter(w), s.currency, s.session.History(from, to)); err != nil {
		log.Error().Err(err).Msg("Failed to write history export")
	}
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.parseRange(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.Summary(from, to))
}

// parseRange reads the optional from/to query values. Bare dates cover the
// whole day; missing values leave that side open.
func (s *Server) parseRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from, fromDate, err := s.parseBound(q.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from: %w", err)
	}
	to, toDate, err := s.parseBound(q.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to: %w", err)
	}

	if fromDate {
		from, _ = history.DayRange(from, from)
	}
	if toDate {
		_, to = history.DayRange(to, to)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to is before from")
	}
	return from, to, nil
}

func (s *Server) parseBound(v string) (time.Time, bool, error) {
	if v == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.ParseInLocation(dateLayout, v, s.location); err == nil {
		return t, true, nil
	}
	t, err := store.ParseTime(v)
	return t, false, err
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}
