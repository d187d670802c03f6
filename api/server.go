package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gridrace/gridrace/race/config"
	"github.com/gridrace/gridrace/race/engine"
	"github.com/gridrace/gridrace/race/service"
	"github.com/gridrace/gridrace/store"
	"github.com/gridrace/gridrace/transport/websocket"
)

// Server is the REST API server.
type Server struct {
	service service.RaceService
	tracks  *config.Manager
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. The track config manager and the hub
// are both optional.
func NewServer(raceService service.RaceService, tracks *config.Manager, hub *websocket.Hub) *Server {
	s := &Server{
		service: raceService,
		tracks:  tracks,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Tracks
	api.HandleFunc("/tracks", s.handleCreateTrack).Methods("POST")
	api.HandleFunc("/tracks", s.handleListTracks).Methods("GET")
	api.HandleFunc("/tracks/{id}", s.handleGetTrack).Methods("GET")

	// Track configs on disk
	api.HandleFunc("/track-configs", s.handleListTrackConfigs).Methods("GET")

	// Races
	api.HandleFunc("/races", s.handleSimulateRace).Methods("POST")
	api.HandleFunc("/races", s.handleListRecentRaces).Methods("GET")
	api.HandleFunc("/races/{id}", s.handleGetRace).Methods("GET")

	// Cars
	api.HandleFunc("/cars/{id}/qtable", s.handleGetQTable).Methods("GET")
	api.HandleFunc("/cars/{id}/qtable", s.handleResetQTable).Methods("DELETE")
	api.HandleFunc("/cars/{id}/stats", s.handleGetCarStats).Methods("GET")
	api.HandleFunc("/cars/{id}/traits", s.handleGetCarTraits).Methods("GET")

	// Health and WebSocket
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrTrackNotFound),
		errors.Is(err, store.ErrRaceNotFound),
		errors.Is(err, config.ErrTrackConfigNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmptyTrackName),
		errors.Is(err, engine.ErrNoCars),
		errors.Is(err, engine.ErrTooManyCars),
		errors.Is(err, engine.ErrDuplicateCar),
		errors.Is(err, engine.ErrNoFinishTile),
		errors.Is(err, engine.ErrNoStartTile),
		isValidationError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	var sizeErr *engine.TrackSizeError
	var dimErr *engine.DimensionMismatchError
	var pathErr *engine.NoAccessiblePathError
	var finishErr *engine.BlockedFinishError
	return errors.As(err, &sizeErr) || errors.As(err, &dimErr) ||
		errors.As(err, &pathErr) || errors.As(err, &finishErr)
}

// Track Handlers

func (s *Server) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		service.CreateTrackRequest
		// ConfigID creates the track from an on-disk config instead of
		// an inline layout.
		ConfigID string `json:"config_id,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var rec *store.TrackRecord
	var err error
	if req.ConfigID != "" {
		rec, err = s.service.CreateTrackFromConfig(r.Context(), req.ConfigID)
	} else {
		rec, err = s.service.CreateTrack(r.Context(), &req.CreateTrackRequest)
	}
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.service.ListTracks(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tracks": tracks,
		"count":  len(tracks),
	})
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.GetTrack(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListTrackConfigs(w http.ResponseWriter, r *http.Request) {
	if s.tracks == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"configs": []interface{}{}})
		return
	}
	configs, err := s.tracks.ListConfigs()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"configs": configs,
		"count":   len(configs),
	})
}

// Race Handlers

func (s *Server) handleSimulateRace(w http.ResponseWriter, r *http.Request) {
	var req service.SimulateRaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, err := s.service.SimulateRace(r.Context(), &req)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleListRecentRaces(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	filter := store.RaceFilter{
		TrackID: r.URL.Query().Get("track_id"),
		CarID:   r.URL.Query().Get("car_id"),
	}

	races, err := s.service.ListRecentRaces(r.Context(), limit, filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"races": races,
		"count": len(races),
	})
}

func (s *Server) handleGetRace(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.GetRace(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// Car Handlers

func (s *Server) handleGetQTable(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetQTable(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// An explicit state narrows the view to that single row.
	if state := r.URL.Query().Get("state"); state != "" {
		row, ok := view.Rows[state]
		view.Rows = map[string][engine.ActionCount]int{}
		if ok {
			view.Rows[state] = row
		}
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleResetQTable(w http.ResponseWriter, r *http.Request) {
	carID := mux.Vars(r)["id"]
	if err := s.service.ResetQTable(r.Context(), carID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "q-table reset",
		"car_id":  carID,
	})
}

func (s *Server) handleGetCarStats(w http.ResponseWriter, r *http.Request) {
	carID := mux.Vars(r)["id"]
	stats, err := s.service.GetCarStats(r.Context(), carID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// An explicit track narrows the ledger to that track's rows.
	if trackID := r.URL.Query().Get("track_id"); trackID != "" {
		kept := stats[:0]
		for _, row := range stats {
			if row.TrackID == trackID {
				kept = append(kept, row)
			}
		}
		stats = kept
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"car_id": carID,
		"stats":  stats,
	})
}

func (s *Server) handleGetCarTraits(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.service.GetCarTraits(mux.Vars(r)["id"]))
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket disabled", http.StatusNotImplemented)
		return
	}

	trackID := r.URL.Query().Get("track_id")
	if trackID != "" {
		// Verify the track exists before holding a subscription open.
		if _, err := s.service.GetTrack(r.Context(), trackID); err != nil {
			http.Error(w, "unknown track", http.StatusNotFound)
			return
		}
	}

	s.hub.ServeWS(w, r, trackID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
