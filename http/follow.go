package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"sociapi/auth"
	"sociapi/errs"
)

// registerFollowRoutes is a helper for registering all follow routes.
func (s *Server) registerFollowRoutes(r *mux.Router) {
	// Follow requests. Registered before /follow/{userId}.
	r.HandleFunc("/follow/requests", s.requireAuth(s.handlePendingRequests)).Methods("GET")
	r.HandleFunc("/follow/requests/{requestId}", s.requireAuth(s.handleRespond)).Methods("POST")

	// Follow or unfollow a user.
	r.HandleFunc("/follow/{userId}", s.requireAuth(s.handleFollow)).Methods("POST")
	r.HandleFunc("/follow/{userId}", s.requireAuth(s.handleUnfollow)).Methods("DELETE")
}

type respondRequest struct {
	Action string `json:"action"`
}

// handleFollow handles the route "POST /follow/{userId}".
// Following a private account creates a pending follow request instead.
func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.fs.Follow(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "userId"))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, outcome)
}

// handleUnfollow handles the route "DELETE /follow/{userId}".
func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	if err := s.fs.Unfollow(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "userId")); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePendingRequests handles the route "GET /follow/requests".
// It lists the requests waiting for the authed user's answer.
func (s *Server) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	reqs, err := s.frs.Pending(r.Context(), auth.ViewerID(r.Context()), page)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, reqs)
}

// handleRespond handles the route "POST /follow/requests/{requestId}".
// The body names the action, "accept" or "decline".
func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var body respondRequest
	if err := s.decodeJSON(w, r, &body); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	req, err := s.frs.Respond(r.Context(), pathVar(r, "requestId"), auth.ViewerID(r.Context()), body.Action)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, req)
}
