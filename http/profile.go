package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"sociapi/auth"
	"sociapi/domain"
	"sociapi/errs"
)

func (s *Server) registerProfileRoutes(r *mux.Router) {
	// Own profile. Registered before the {userId} routes so that "me" is not taken for an id.
	r.HandleFunc("/profiles/me", s.requireAuth(s.handleGetOwnProfile)).Methods("GET")
	r.HandleFunc("/profiles/me", s.requireAuth(s.handleUpdateProfile)).Methods("PUT")
	r.HandleFunc("/profiles/me/avatar", s.requireAuth(s.handleUpdateAvatar)).Methods("PUT")

	// Profiles of others. Anonymous viewers see public profiles only.
	r.HandleFunc("/profiles/{userId}", s.handleGetProfile).Methods("GET")
	r.HandleFunc("/profiles/{userId}/followers", s.handleFollowers).Methods("GET")
	r.HandleFunc("/profiles/{userId}/following", s.handleFollowing).Methods("GET")

	// Blocking.
	r.HandleFunc("/profiles/{userId}/block", s.requireAuth(s.handleBlock)).Methods("POST")
	r.HandleFunc("/profiles/{userId}/block", s.requireAuth(s.handleUnblock)).Methods("DELETE")
}

// handleGetOwnProfile handles the route "GET /profiles/me".
func (s *Server) handleGetOwnProfile(w http.ResponseWriter, r *http.Request) {
	viewerID := auth.ViewerID(r.Context())
	profile, err := s.ps.Get(r.Context(), viewerID, viewerID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// handleGetProfile handles the route "GET /profiles/{userId}".
// The follower lists of a private profile are hidden from non-followers.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.ps.Get(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "userId"))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// handleUpdateProfile handles the route "PUT /profiles/me".
// Only the fields present in the body change.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd domain.ProfileUpdate
	if err := s.decodeJSON(w, r, &upd); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	profile, err := s.ps.Update(r.Context(), auth.ViewerID(r.Context()), &upd)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// handleUpdateAvatar handles the route "PUT /profiles/me/avatar".
// It expects a multipart form with the image in the field "avatar".
func (s *Server) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	uploads, cleanup, err := s.parseUploads(w, r, "avatar", 1)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	defer cleanup()
	if len(uploads) == 0 {
		errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "No avatar uploaded."))
		return
	}
	profile, err := s.ps.UpdateAvatar(r.Context(), auth.ViewerID(r.Context()), uploads[0])
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// handleFollowers handles the route "GET /profiles/{userId}/followers".
func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request) {
	s.handleUserList(w, r, s.ps.Followers)
}

// handleFollowing handles the route "GET /profiles/{userId}/following".
func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request) {
	s.handleUserList(w, r, s.ps.Following)
}

type userListFn func(ctx context.Context, viewerID, userID string, page domain.PageRequest) (*domain.Page[string], error)

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request, list userListFn) {
	page, err := pageRequest(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	ids, err := list(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "userId"), page)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, ids)
}

// handleBlock handles the route "POST /profiles/{userId}/block".
// Blocking removes the follow edges between both users.
func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	profile, err := s.ps.Block(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "userId"))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// handleUnblock handles the route "DELETE /profiles/{userId}/block".
func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	profile, err := s.ps.Unblock(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "userId"))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}
