package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/lucasreb/chessduel/game/engine"
	"github.com/lucasreb/chessduel/game/service"
	"github.com/lucasreb/chessduel/transport/websocket"
)

// Server represents the HTTP server
type Server struct {
	auth   service.Authority
	hub    *websocket.Hub
	router *mux.Router
}

// NewServer creates a new API server and wires the hub's event dispatch
// table to the authority.
func NewServer(auth service.Authority, hub *websocket.Hub) *Server {
	s := &Server{
		auth:   auth,
		hub:    hub,
		router: mux.NewRouter(),
	}

	s.setupEvents()
	s.setupRoutes()
	return s
}

// setupEvents maps connection lifecycle and inbound player events onto the
// authority. Rejections for well-formed but invalid events come from the
// authority itself; only malformed payloads are rejected here.
func (s *Server) setupEvents() {
	s.hub.OnConnect(s.auth.HandleConnect)
	s.hub.OnDisconnect(s.auth.HandleDisconnect)

	s.hub.Handle(service.EventMove, func(connID string, data json.RawMessage) {
		var mv engine.Move
		if err := json.Unmarshal(data, &mv); err != nil {
			log.Printf("Malformed move payload from %s: %v", connID, err)
			s.hub.Send(connID, service.EventInvalidMove, service.Rejection{Message: "malformed move payload"})
			return
		}
		s.auth.SubmitMove(connID, mv)
	})

	s.hub.Handle(service.EventResign, func(connID string, data json.RawMessage) {
		s.auth.Resign(connID)
	})

	s.hub.Handle(service.EventGetState, func(connID string, data json.RawMessage) {
		s.auth.QueryState(connID)
	})
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Read-only inspection
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.hub.ServeWS)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Static files (if needed)
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir("./static/")))
}

// ServeHTTP implements http.Handler
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

// Inspection Handlers

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.auth.Sessions()

	order := r.URL.Query().Get("order") // "asc", "desc" (default: "desc")
	if order == "" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		if order == "asc" {
			return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"sessions": sessions,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	info, err := s.auth.Session(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.auth.Stats()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"active_sessions": stats.ActiveSessions,
		"waiting_players": stats.WaitingPlayers,
		"connections":     s.hub.Count(),
	})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
