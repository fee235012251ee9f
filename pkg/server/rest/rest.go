package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/pitwall-sim/pitwall/log"
	"github.com/pitwall-sim/pitwall/pkg/hub"
	"github.com/pitwall-sim/pitwall/pkg/model"
	"github.com/pitwall-sim/pitwall/pkg/service"
)

// Server is the HTTP surface of the hub process: the websocket endpoint,
// station commands and the session ingestion/analytics API.
type Server struct {
	svc *service.SessionService
	hub *hub.Hub
	l   *log.Logger
}

func NewServer(svc *service.SessionService, h *hub.Hub) *Server {
	return &Server{svc: svc, hub: h, l: log.Default().Named("rest")}
}

func (s *Server) Routes(ws http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", ws)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/stations", s.listStations)
	mux.HandleFunc("POST /api/stations/{id}/commands", s.sendCommand)
	mux.HandleFunc("GET /api/stations/{id}/sessions", s.stationSessions)
	mux.HandleFunc("POST /api/sessions", s.ingestSession)
	mux.HandleFunc("GET /api/sessions/{key}", s.loadSession)
	mux.HandleFunc("DELETE /api/sessions/{key}", s.deleteSession)
	mux.HandleFunc("GET /api/sessions/{key}/consistency", s.consistency)
	mux.HandleFunc("GET /api/sessions/{key}/ideal", s.idealLap)
	mux.HandleFunc("GET /api/laps/{id}/coach", s.coach)
	return mux
}

func (s *Server) listStations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"stations": s.hub.AgentIDs()})
}

// sendCommand forwards a command to the addressed station. An offline
// station and a failed write both answer as "station offline".
func (s *Server) sendCommand(w http.ResponseWriter, r *http.Request) {
	stationID := r.PathValue("id")
	var cmd model.CommandMsg
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil || cmd.Command == "" {
		writeError(w, http.StatusBadRequest, "invalid command")
		return
	}
	if !s.hub.SendToAgent(stationID, &cmd) {
		writeError(w, http.StatusNotFound, "station offline")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"delivered": true})
}

func (s *Server) stationSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.svc.SessionHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type ingestBody struct {
	Session service.IngestSessionRequest    `json:"session"`
	Traces  map[int][]model.TelemetrySample `json:"traces"`
}

func (s *Server) ingestSession(w http.ResponseWriter, r *http.Request) {
	var body ingestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := s.svc.Ingest(r.Context(), &body.Session, body.Traces)
	if err != nil {
		s.l.Error("ingest failed", log.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) {
	sess, laps, err := s.svc.LoadSession(r.Context(), r.PathValue("key"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "load failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess, "laps": laps})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSession(r.Context(), r.PathValue("key")); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) consistency(w http.ResponseWriter, r *http.Request) {
	sess, _, err := s.svc.LoadSession(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	score, err := s.svc.Consistency(r.Context(), sess.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"score": score})
}

func (s *Server) idealLap(w http.ResponseWriter, r *http.Request) {
	sess, _, err := s.svc.LoadSession(r.Context(), r.PathValue("key"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	ideal, err := s.svc.IdealLap(r.Context(), sess.ID)
	if err != nil {
		// not enough sector data is a well-defined empty answer
		writeJSON(w, http.StatusOK, map[string]any{"idealLapMs": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"idealLapMs": ideal})
}

func (s *Server) coach(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lap id")
		return
	}
	tips, err := s.svc.Coach(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNoComparison) {
			writeJSON(w, http.StatusOK, map[string]any{
				"tips": []model.CoachTip{}, "note": "no comparison possible",
			})
			return
		}
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "lap not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tips": tips})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // nothing left to do for the client here
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
