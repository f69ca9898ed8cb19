package http

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"

	"sociapi/auth"
	"sociapi/domain"
	"sociapi/errs"
)

func (s *Server) registerAuthRoutes(r *mux.Router) {
	ar := r.PathPrefix("/auth").Subrouter()
	// Credentials are guessable; throttle them harder than the rest.
	if limit := s.cfg.RateLimit / 10; limit > 0 {
		ar.Use(httprate.LimitByIP(limit, time.Minute))
	}
	ar.HandleFunc("/register", s.handleRegister).Methods("POST")
	ar.HandleFunc("/login", s.handleLogin).Methods("POST")
	ar.HandleFunc("/refresh", s.handleRefresh).Methods("POST")
	ar.HandleFunc("/logout", s.handleLogout).Methods("POST")
	ar.HandleFunc("/forgot-password", s.handleForgotPassword).Methods("POST")
	ar.HandleFunc("/reset-password/{token}", s.handleResetPassword).Methods("POST")
	ar.HandleFunc("/me", s.requireAuth(s.handleMe)).Methods("GET")
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotPasswordRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type meResponse struct {
	User    *domain.User    `json:"user"`
	Profile *domain.Profile `json:"profile"`
}

// handleRegister handles the route "POST /auth/register".
// It creates a user with an empty public profile and signs them in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	session, err := s.us.Register(r.Context(), &domain.User{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, session)
}

// handleLogin handles the route "POST /auth/login".
// The identifier is either the email address or the username.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	session, err := s.us.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, session)
}

// handleRefresh handles the route "POST /auth/refresh".
// It trades a refresh token for a new token pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		errs.ReturnError(w, r, errs.ErrTokenInvalid)
		return
	}
	session, err := s.us.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, session)
}

// handleLogout handles the route "POST /auth/logout".
// Logging out twice, or with a dead token, still succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	// A missing body is a missing token.
	_ = s.decodeJSON(w, r, &req)
	if err := s.us.Logout(r.Context(), req.RefreshToken); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleForgotPassword handles the route "POST /auth/forgot-password".
// It mails a reset link to the user with the given email address or username.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if err := s.us.ForgotPassword(r.Context(), req.Identifier); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, &messageResponse{Message: "Password reset link sent to email"})
}

// handleResetPassword handles the route "POST /auth/reset-password/{token}".
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if err := s.us.ResetPassword(r.Context(), mux.Vars(r)["token"], req.NewPassword); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, &messageResponse{Message: "Password reset successful"})
}

// handleMe handles the route "GET /auth/me".
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	viewerID := auth.ViewerID(r.Context())
	user, err := s.us.ByID(r.Context(), viewerID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	profile, err := s.ps.Get(r.Context(), viewerID, viewerID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, &meResponse{User: user, Profile: profile})
}
