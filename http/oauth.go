package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"sociapi/errs"
)

const oauthStateCookie = "oauth_state"

func (s *Server) registerOAuthRoutes(r *mux.Router) {
	if s.oas == nil {
		return
	}
	r.HandleFunc("/oauth/github/login", s.handleGithubLogin).Methods("GET")
	r.HandleFunc("/oauth/github/callback", s.handleGithubCallback).Methods("GET")
}

// handleGithubLogin handles the route "GET /oauth/github/login".
// It remembers a random state in a cookie and redirects to GitHub.
func (s *Server) handleGithubLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/oauth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.oas.AuthCodeURL(state), http.StatusFound)
}

// handleGithubCallback handles the route "GET /oauth/github/callback".
// GitHub sends the user back here with a code, which signs them in.
func (s *Server) handleGithubCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(oauthStateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		errs.ReturnError(w, r, errs.Errorf(errs.EUNAUTHORIZED, "Invalid OAuth state."))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Path:     "/oauth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
	})

	session, err := s.oas.SignIn(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, session)
}
