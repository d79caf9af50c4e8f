package roster

import (
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
)

// SessionCookie carries the session ID between requests
const SessionCookie = "roster_session"

// Server handles HTTP requests for extractions
type Server struct {
	service   *Service
	sessions  *Sessions
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, sessions *Sessions, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, sessions, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, sessions *Sessions, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		sessions:  sessions,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1 &&
		subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Roster Scan"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// session resolves the caller's cache from the session cookie, issuing a
// new session when the cookie is missing or malformed
func (s *Server) session(w http.ResponseWriter, r *http.Request) *Cache {
	if c, err := r.Cookie(SessionCookie); err == nil && s.sessions.Valid(c.Value) {
		return s.sessions.Lookup(c.Value)
	}

	id, cache := s.sessions.New()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Info("Session started", "session", id)
	return cache
}

// withSession passes the caller's cache to a handler
func (s *Server) withSession(next func(http.ResponseWriter, *http.Request, *Cache)) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		next(w, r, s.session(w, r))
	})
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/status", s.requireAuth(s.handleStatus))

	s.mux.HandleFunc("GET /api/extractions/{identity}/export.csv", s.withSession(s.handleExport("csv")))
	s.mux.HandleFunc("GET /api/extractions/{identity}/export.xlsx", s.withSession(s.handleExport("xlsx")))
	s.mux.HandleFunc("POST /api/extractions/{identity}/rows", s.withSession(s.handleAddRow))
	s.mux.HandleFunc("PATCH /api/extractions/{identity}/rows/{row}", s.withSession(s.handleUpdateField))
	s.mux.HandleFunc("DELETE /api/extractions/{identity}/rows/{row}", s.withSession(s.handleDeleteRow))
	s.mux.HandleFunc("GET /api/extractions/{identity}", s.withSession(s.handleGetExtraction))
	s.mux.HandleFunc("DELETE /api/extractions/{identity}", s.withSession(s.handleClearExtraction))
	s.mux.HandleFunc("GET /api/extractions", s.withSession(s.handleListExtractions))
	s.mux.HandleFunc("POST /api/extractions", s.withSession(s.handleUpload))

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /{$}", s.requireAuth(s.handleIndex))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.mux)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
