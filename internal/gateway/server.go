// Package gateway is the HTTP and WebSocket surface: REST endpoints for
// sessions, settings, todos, and the virtual filesystem, plus the
// per-session WebSocket that streams run events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/ochre/internal/config"
	"github.com/soyeahso/ochre/internal/conversation"
	"github.com/soyeahso/ochre/internal/hooks"
	"github.com/soyeahso/ochre/internal/logging"
	"github.com/soyeahso/ochre/internal/store"
	"github.com/soyeahso/ochre/internal/todos"
	"github.com/soyeahso/ochre/internal/version"
	"github.com/soyeahso/ochre/internal/vfs"
)

// ErrConnClosed is returned when writing to a closed WebSocket connection.
var ErrConnClosed = errors.New("websocket connection closed")

const maxWSPayload = 1 << 20 // 1MB

// Deps are the collaborators the server exposes over HTTP.
type Deps struct {
	Config   config.Config
	Log      *logging.Logger
	Sessions store.SessionStore
	Settings *store.SettingsStore
	Todos    *todos.Store
	Router   *vfs.Router
	Convs    *conversation.Hub
	Hub      *SessionHub
	Hooks    *hooks.Manager
}

// Server is the Ochre HTTP + WebSocket server.
type Server struct {
	cfg      config.ServerConfig
	log      *logging.Logger
	sessions store.SessionStore
	settings *store.SettingsStore
	todos    *todos.Store
	router   *vfs.Router
	convs    *conversation.Hub
	hub      *SessionHub
	hooks    *hooks.Manager

	upgrader   websocket.Upgrader
	httpServer *http.Server

	mu   sync.Mutex
	addr string
}

// New creates the server.
func New(deps Deps) *Server {
	return &Server{
		cfg:      deps.Config.Server,
		log:      deps.Log.Sub("gateway"),
		sessions: deps.Sessions,
		settings: deps.Settings,
		todos:    deps.Todos,
		router:   deps.Router,
		convs:    deps.Convs,
		hub:      deps.Hub,
		hooks:    deps.Hooks,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(deps.Config.Server.AllowedOrigins),
		},
	}
}

// checkWebSocketOrigin validates WebSocket Origin headers. Requests without
// an Origin header (non-browser clients) are always allowed; browser
// requests must match a configured origin.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default: // "loopback" and anything unrecognized
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start listens for HTTP and WebSocket connections. It blocks until the
// context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	bind := resolveBindAddr(s.cfg)

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	handler := withMiddleware(mux, s.log, s.cfg.AllowedOrigins)

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", bind, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("version", version.Version).
		Msg("server ready")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.EventServerStart, map[string]any{
			"addr": ln.Addr().String(),
		})
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down server")
		if s.hooks != nil {
			s.hooks.Emit(context.Background(), hooks.EventServerStop, nil)
		}
		if s.convs != nil {
			s.convs.Shutdown()
		}
		s.hub.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound listen address, or empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)

	mux.HandleFunc("GET /api/todos/today", s.handleTodosToday)
	mux.HandleFunc("POST /api/todos/today/add", s.handleTodosAdd)
	mux.HandleFunc("PATCH /api/todos/today/set_done", s.handleTodosSetDone)
	mux.HandleFunc("DELETE /api/todos/today/delete", s.handleTodosDelete)

	mux.HandleFunc("GET /api/fs/list", s.handleFsList)
	mux.HandleFunc("GET /api/fs/read", s.handleFsRead)
	mux.HandleFunc("GET /api/fs/tree", s.handleFsTree)
	mux.HandleFunc("PUT /api/fs/write", s.handleFsWrite)
	mux.HandleFunc("POST /api/fs/move", s.handleFsMove)

	mux.HandleFunc("GET /ws/sessions/{id}", s.handleSessionWS)

	mux.HandleFunc("/", handleNotFound)
}
