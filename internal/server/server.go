package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/w-h-a/gateway/internal/service/chat"
	"github.com/w-h-a/gateway/internal/service/rag"
	"github.com/w-h-a/gateway/store"
	"github.com/w-h-a/gateway/upstream"
)

// Config carries the boundary concerns the handlers need: how to verify
// callers, how much error detail to expose, and what to report from the
// health endpoints.
type Config struct {
	Secret           string
	Hardened         bool
	UpstreamLocation string
	Model            string
}

type Server struct {
	config  Config
	chat    *chat.Service
	rag     *rag.Service
	up      upstream.Upstream
	store   store.Store
	started time.Time
	handler http.Handler
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()

	// health endpoints skip authentication
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLive).Methods(http.MethodGet)

	chatRoutes := r.PathPrefix("/chat").Subrouter()
	chatRoutes.Use(s.authenticate)
	chatRoutes.HandleFunc("", s.handleChat).Methods(http.MethodPost)
	chatRoutes.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)

	ragRoutes := r.PathPrefix("/rag").Subrouter()
	ragRoutes.Use(s.authenticate)
	ragRoutes.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)
	ragRoutes.HandleFunc("/documents", s.handleIngest).Methods(http.MethodPost)
	ragRoutes.HandleFunc("/documents/{id}", s.handleGetDocument).Methods(http.MethodGet)
	ragRoutes.HandleFunc("/documents/{id}", s.handleDeleteDocument).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	return r
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":   "Route not found",
		"message": fmt.Sprintf("%s %s is not a valid endpoint", r.Method, r.URL.Path),
	})
}

func New(config Config, chatService *chat.Service, ragService *rag.Service, up upstream.Upstream, st store.Store) *Server {
	s := &Server{
		config:  config,
		chat:    chatService,
		rag:     ragService,
		up:      up,
		store:   st,
		started: time.Now(),
	}

	// cross-cutting middleware wraps the router so it also covers 404s
	// and preflight requests
	s.handler = s.secureHeaders(s.logRequests(s.router()))

	return s
}
