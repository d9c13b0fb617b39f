// Package server is the research journal backend: password login, the
// single-document store, an event stream of stored documents and a proxy
// to the Anthropic API that keeps the key on the server.
//
// Routes:
//
//	POST /api/login        bcrypt password check, sets the rj-session cookie
//	POST /api/logout       clears the cookie
//	GET  /api/data         the stored document, 404 before the first PUT
//	PUT  /api/data         replace the stored document
//	GET  /api/events       websocket stream of stored documents
//	POST /api/anthropic/*  forwarded to the Anthropic API with the key attached
//	GET  /health           liveness
//
// Everything except /login, /api/login and /health requires a session.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/researchjournal/rj/internal/remote"
)

const (
	// DefaultAnthropicURL is where /api/anthropic/* is forwarded.
	DefaultAnthropicURL = "https://api.anthropic.com"

	// AnthropicVersion is sent on every proxied request.
	AnthropicVersion = "2023-06-01"

	maxBodySize = 32 << 20
)

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default: ":8080").
	Addr string

	// PasswordHash is the bcrypt hash of the login password.
	PasswordHash string

	// SessionSecret signs session tokens.
	SessionSecret string

	// AnthropicAPIKey is attached to proxied requests.
	AnthropicAPIKey string

	// AnthropicBaseURL overrides DefaultAnthropicURL.
	AnthropicBaseURL string

	// Verbose enables request logging.
	Verbose bool

	// Logger for server activity (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:             ":8080",
		AnthropicBaseURL: DefaultAnthropicURL,
	}
}

// Server serves the API over a DocumentStore.
type Server struct {
	cfg      Config
	store    DocumentStore
	sessions *Sessions
	hub      *Hub
	http     *http.Client
	logger   *log.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New creates a server. The store is owned by the caller.
func New(cfg Config, store DocumentStore) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.AnthropicBaseURL == "" {
		cfg.AnthropicBaseURL = DefaultAnthropicURL
	}
	cfg.AnthropicBaseURL = strings.TrimRight(cfg.AnthropicBaseURL, "/")
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[server] ", log.LstdFlags)
	}
	return &Server{
		cfg:      cfg,
		store:    store,
		sessions: NewSessions(cfg.SessionSecret),
		hub:      NewHub(cfg.Logger),
		http:     &http.Client{Timeout: 2 * time.Minute},
		logger:   cfg.Logger,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.cfg.Verbose {
		r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.logger, NoColor: true}))
	}
	r.Use(s.requireSession)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/login", s.handleLoginPage)
	r.Get("/", s.handleRoot)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Get("/data", s.handleGetData)
		r.Put("/data", s.handlePutData)
		r.Get("/events", s.hub.ServeHTTP)
		r.Post("/anthropic/*", s.handleAnthropic)
	})
	return r
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	go func() {
		s.logger.Printf("Listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server error: %v", err)
		}
	}()
	return nil
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// Stop disconnects event subscribers and shuts the listener down.
func (s *Server) Stop() error {
	s.logger.Println("Stopping server")
	s.hub.Close()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	data, _, err := s.store.Get(r.Context())
	if errors.Is(err, ErrNoDocument) {
		writeError(w, http.StatusNotFound, "No data found")
		return
	}
	if err != nil {
		s.logger.Printf("Data API error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handlePutData(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid data")
		return
	}
	stamped, err := s.store.Put(r.Context(), compact.Bytes())
	if err != nil {
		s.logger.Printf("Data API error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.hub.Broadcast(remote.Event{Type: remote.EventDocument, Timestamp: stamped, Data: compact.Bytes()})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAnthropic(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AnthropicAPIKey == "" {
		writeError(w, http.StatusInternalServerError, "Anthropic API key not configured")
		return
	}

	path := strings.TrimPrefix(chi.URLParam(r, "*"), "v1/")
	if path == "" {
		path = "messages"
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.cfg.AnthropicBaseURL+"/v1/"+path, bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.cfg.AnthropicAPIKey)
	req.Header.Set("anthropic-version", AnthropicVersion)

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Printf("Anthropic proxy error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Research Journal</title></head>
<body>
    <h1>Research Journal</h1>
    <p>Signed in. Document endpoint: <code>/api/data</code></p>
    <form method="post" action="/api/logout"><button>Sign out</button></form>
</body>
</html>`)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Research Journal</title></head>
<body>
    <h1>Research Journal</h1>
    <form id="login">
        <input type="password" name="password" autofocus>
        <button>Sign in</button>
        <p id="error"></p>
    </form>
    <script>
    document.getElementById('login').onsubmit = async (e) => {
        e.preventDefault();
        const res = await fetch('/api/login', {
            method: 'POST',
            headers: {'Content-Type': 'application/json'},
            body: JSON.stringify({password: e.target.password.value}),
        });
        if (res.ok) { location.href = '/'; return; }
        document.getElementById('error').textContent = (await res.json()).error;
    };
    </script>
</body>
</html>`)
}

func (s *Server) debugf(format string, args ...any) {
	if s.cfg.Verbose {
		s.logger.Printf(format, args...)
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
