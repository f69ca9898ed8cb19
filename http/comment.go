package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"sociapi/auth"
	"sociapi/errs"
)

// registerCommentRoutes is a helper for registering all comment routes.
func (s *Server) registerCommentRoutes(r *mux.Router) {
	r.HandleFunc("/posts/{postId}/comments", s.requireAuth(s.handleCreateComment)).Methods("POST")
	r.HandleFunc("/posts/{postId}/comments", s.handleComments).Methods("GET")
	r.HandleFunc("/comments/{commentId}/replies", s.handleReplies).Methods("GET")
	r.HandleFunc("/comments/{commentId}", s.requireAuth(s.handleEditComment)).Methods("PUT")
	r.HandleFunc("/comments/{commentId}", s.requireAuth(s.handleDeleteComment)).Methods("DELETE")
}

type commentRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
}

// handleCreateComment handles the route "POST /posts/{postId}/comments".
// A parent_id turns the comment into a reply.
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	comment, err := s.cs.Create(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "postId"), req.Content, req.ParentID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, comment)
}

// handleComments handles the route "GET /posts/{postId}/comments".
// It lists the top-level comments, newest first.
func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	comments, err := s.cs.ByPost(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "postId"), page)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, comments)
}

// handleReplies handles the route "GET /comments/{commentId}/replies".
// Replies come oldest first.
func (s *Server) handleReplies(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	replies, err := s.cs.Replies(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "commentId"), page)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, replies)
}

// handleEditComment handles the route "PUT /comments/{commentId}".
func (s *Server) handleEditComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	comment, err := s.cs.Edit(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "commentId"), req.Content)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, comment)
}

// handleDeleteComment handles the route "DELETE /comments/{commentId}".
// Deleting a top-level comment deletes its replies.
func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.cs.Delete(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "commentId")); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
