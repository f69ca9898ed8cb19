package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"sociapi/auth"
	"sociapi/errs"
)

// registerLikeRoutes is a helper for registering all like routes.
func (s *Server) registerLikeRoutes(r *mux.Router) {
	// Like or unlike a post.
	r.HandleFunc("/posts/{postId}/like", s.requireAuth(s.handleLikePost)).Methods("POST")
	r.HandleFunc("/posts/{postId}/like", s.requireAuth(s.handleUnlikePost)).Methods("DELETE")

	// Like or unlike a comment.
	r.HandleFunc("/comments/{commentId}/like", s.requireAuth(s.handleLikeComment)).Methods("POST")
	r.HandleFunc("/comments/{commentId}/like", s.requireAuth(s.handleUnlikeComment)).Methods("DELETE")
}

// handleLikePost handles the route "POST /posts/{postId}/like".
// It returns the post with its updated like count.
func (s *Server) handleLikePost(w http.ResponseWriter, r *http.Request) {
	post, err := s.pts.Like(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "postId"))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, post)
}

// handleUnlikePost handles the route "DELETE /posts/{postId}/like".
func (s *Server) handleUnlikePost(w http.ResponseWriter, r *http.Request) {
	post, err := s.pts.Unlike(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "postId"))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, post)
}

// handleLikeComment handles the route "POST /comments/{commentId}/like".
func (s *Server) handleLikeComment(w http.ResponseWriter, r *http.Request) {
	comment, err := s.cs.Like(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "commentId"))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, comment)
}

// handleUnlikeComment handles the route "DELETE /comments/{commentId}/like".
func (s *Server) handleUnlikeComment(w http.ResponseWriter, r *http.Request) {
	comment, err := s.cs.Unlike(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "commentId"))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, comment)
}
