package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/org/dusseldorf/internal/session"
)

// InfoHandler handles GET / — public API information.
func (s *Server) InfoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "Dusseldorf API",
		"version": Version,
		"status":  "operational",
	})
}

// HealthHandler handles GET /health.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PingHandler handles GET /ping — authenticated liveness probe.
func (s *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	actor := actorFromCtx(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"pong": time.Now().Unix(),
		"user": actor.Username,
	})
}

// LoginHandler handles POST /auth/login. Credentials arrive as a
// form-encoded username/password pair; the reply is a bearer token.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := s.sessions.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, session.ErrBadCredentials) {
			writeError(w, http.StatusUnauthorized, "incorrect username or password")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// LogoutHandler handles POST /auth/logout — deletes exactly the
// presented session.
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), bearerToken(r)); err != nil {
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
