package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/researchjournal/rj/internal/remote"
)

// SessionTTL is how long a login lasts.
const SessionTTL = 30 * 24 * time.Hour

// sessionSubject is the single user the server knows.
const sessionSubject = "owner"

var (
	ErrAuthNotConfigured = errors.New("auth not configured")
	ErrInvalidSession    = errors.New("invalid session")
)

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	now    func() time.Time
}

// NewSessions creates a token issuer for secret. An empty secret rejects
// every token.
func NewSessions(secret string) *Sessions {
	return &Sessions{secret: []byte(secret), now: time.Now}
}

// Issue signs a new session token.
func (s *Sessions) Issue() (string, error) {
	if len(s.secret) == 0 {
		return "", ErrAuthNotConfigured
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return token, nil
}

// Verify checks the signature and expiry of token.
func (s *Sessions) Verify(token string) error {
	if len(s.secret) == 0 {
		return ErrAuthNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidSession
	}
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return nil
}

// CheckPassword compares password with a bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// publicPaths are reachable without a session. Matching is exact.
var publicPaths = map[string]bool{"/login": true, "/api/login": true, "/health": true}

func isPublic(path string) bool {
	return publicPaths[path]
}

// requireSession gates everything except publicPaths. API requests without
// a valid session get 401; page requests are redirected to /login.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		var token string
		if ck, err := r.Cookie(remote.SessionName); err == nil {
			token = ck.Value
		}
		if err := s.sessions.Verify(token); err != nil {
			s.debugf("Rejected %s %s: %v", r.Method, r.URL.Path, err)
			if strings.HasPrefix(r.URL.Path, "/api/") {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = decodeJSON(r, &body)
	password, _ := body["password"].(string)
	if password == "" {
		writeError(w, http.StatusBadRequest, "Password required")
		return
	}
	if s.cfg.PasswordHash == "" || s.cfg.SessionSecret == "" {
		writeError(w, http.StatusInternalServerError, "Auth not configured")
		return
	}
	if !CheckPassword(s.cfg.PasswordHash, password) {
		s.logger.Printf("Failed login from %s", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "Wrong password")
		return
	}

	token, err := s.sessions.Issue()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     remote.SessionName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL / time.Second),
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     remote.SessionName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
