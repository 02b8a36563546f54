// ABOUTME: HTTP server for makearjowork web pages and JSON API
// ABOUTME: Wires auth, store, assistant, and calendar behind one mux

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/banrovegrie/makearjowork/internal/assistant"
	"github.com/banrovegrie/makearjowork/internal/auth"
	"github.com/banrovegrie/makearjowork/internal/calendar"
	"github.com/banrovegrie/makearjowork/internal/store"
)

// Chatter runs one assistant turn. Satisfied by assistant.Service.
type Chatter interface {
	Chat(ctx context.Context, userEmail, message string) (*assistant.Reply, error)
}

// EventSource lists upcoming calendar events. Satisfied by calendar.Client.
type EventSource interface {
	UpcomingEvents(ctx context.Context) []calendar.Event
}

// Config holds server-level settings.
type Config struct {
	// MaintenanceToken guards internal maintenance endpoints. Empty
	// disables them.
	MaintenanceToken string
}

// Server serves the login flow, the dashboard, and the JSON API.
type Server struct {
	store    store.Store
	login    *auth.Service
	sessions *auth.Sessions
	chat     Chatter
	events   EventSource
	config   Config
	markdown goldmark.Markdown
	logger   *slog.Logger
}

// New creates a server. events may be nil when the calendar integration
// is disabled.
func New(s store.Store, login *auth.Service, chat Chatter, events EventSource, cfg Config) *Server {
	return &Server{
		store:    s,
		login:    login,
		sessions: login.Sessions(),
		chat:     chat,
		events:   events,
		config:   cfg,
		markdown: goldmark.New(),
		logger:   slog.Default().With("component", "server"),
	}
}

// Handler returns the full route table wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.withRequestLog(mux)
}

// RegisterRoutes registers all routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Pages
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /auth/{token}", s.handleAuth)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("GET /dashboard", s.requireWeb(s.handleDashboard))

	// Tasks API
	mux.HandleFunc("GET /api/tasks", s.requireAPI(s.handleListTasks))
	mux.HandleFunc("POST /api/tasks", s.requireAPI(s.handleCreateTask))
	mux.HandleFunc("PUT /api/tasks/{id}", s.requireAPI(s.handleUpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.requireAPI(s.handleDeleteTask))

	// Reads API
	mux.HandleFunc("GET /api/reads", s.requireAPI(s.handleListReads))
	mux.HandleFunc("POST /api/reads", s.requireAPI(s.handleCreateRead))
	mux.HandleFunc("PUT /api/reads/{id}", s.requireAPI(s.handleUpdateRead))
	mux.HandleFunc("DELETE /api/reads/{id}", s.requireAPI(s.handleDeleteRead))

	// Chat API
	mux.HandleFunc("POST /api/chat", s.requireAPI(s.handleChat))
	mux.HandleFunc("GET /api/chat/history", s.requireAPI(s.handleChatHistory))
	mux.HandleFunc("POST /api/chat/clear", s.requireAPI(s.handleChatClear))

	// Unauthenticated operational endpoints
	mux.HandleFunc("GET /api/debug/reads-status", s.handleReadsStatus)
	mux.HandleFunc("POST /api/internal/clear-all-chats/{token}", s.handleClearAllChats)
	mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Server) requireWeb(next http.HandlerFunc) http.HandlerFunc {
	return auth.RequireUserWeb(s.store, s.sessions, next)
}

func (s *Server) requireAPI(next http.HandlerFunc) http.HandlerFunc {
	return auth.RequireUserAPI(s.store, s.sessions, next)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
