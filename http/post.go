package http

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"sociapi/auth"
	"sociapi/domain"
	"sociapi/errs"
)

// maxPostMedia is the number of files one post may carry.
const maxPostMedia = 10

// registerPostRoutes is a helper for registering all post routes.
func (s *Server) registerPostRoutes(r *mux.Router) {
	r.HandleFunc("/posts", s.requireAuth(s.handleCreatePost)).Methods("POST")

	// Listings. Registered before /posts/{postId}.
	r.HandleFunc("/posts/feed", s.requireAuth(s.handleFeed)).Methods("GET")
	r.HandleFunc("/posts/saved", s.requireAuth(s.handleSaved)).Methods("GET")
	r.HandleFunc("/users/{userId}/posts", s.handleUserPosts).Methods("GET")
	r.HandleFunc("/hashtags/trending", s.handleTrending).Methods("GET")
	r.HandleFunc("/hashtags/{tag}/posts", s.handleHashtagPosts).Methods("GET")

	// Single posts.
	r.HandleFunc("/posts/{postId}", s.handleGetPost).Methods("GET")
	r.HandleFunc("/posts/{postId}", s.requireAuth(s.handleEditPost)).Methods("PUT")
	r.HandleFunc("/posts/{postId}", s.requireAuth(s.handleDeletePost)).Methods("DELETE")

	// Saving to the viewer's profile.
	r.HandleFunc("/posts/{postId}/save", s.requireAuth(s.handleSavePost)).Methods("POST")
	r.HandleFunc("/posts/{postId}/save", s.requireAuth(s.handleUnsavePost)).Methods("DELETE")
}

// handleCreatePost handles the route "POST /posts".
// A JSON body creates a text post. A multipart form may add up to ten
// files in the field "media"; its text fields mirror the JSON ones.
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var np domain.NewPost
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		uploads, cleanup, err := s.parseUploads(w, r, "media", maxPostMedia)
		if err != nil {
			errs.ReturnError(w, r, err)
			return
		}
		defer cleanup()
		form := r.MultipartForm.Value
		np = domain.NewPost{
			Content:  r.FormValue("content"),
			Hashtags: form["hashtags"],
			Tags:     form["tags"],
			Location: r.FormValue("location"),
			Uploads:  uploads,
		}
	} else if err := s.decodeJSON(w, r, &np); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	post, err := s.pts.Create(r.Context(), auth.ViewerID(r.Context()), &np)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, post)
}

// handleGetPost handles the route "GET /posts/{postId}".
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.pts.Get(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "postId"))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, post)
}

// handleEditPost handles the route "PUT /posts/{postId}".
func (s *Server) handleEditPost(w http.ResponseWriter, r *http.Request) {
	var upd domain.PostUpdate
	if err := s.decodeJSON(w, r, &upd); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	post, err := s.pts.Edit(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "postId"), &upd)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, post)
}

// handleDeletePost handles the route "DELETE /posts/{postId}".
// The comments and files of the post go with it.
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.pts.Delete(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "postId")); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFeed handles the route "GET /posts/feed".
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	posts, err := s.pts.Feed(r.Context(), auth.ViewerID(r.Context()), page)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, posts)
}

// handleSaved handles the route "GET /posts/saved".
func (s *Server) handleSaved(w http.ResponseWriter, r *http.Request) {
	posts, err := s.pts.Saved(r.Context(), auth.ViewerID(r.Context()))
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, posts)
}

// handleUserPosts handles the route "GET /users/{userId}/posts".
func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	posts, err := s.pts.ByUser(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "userId"), page)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, posts)
}

// handleHashtagPosts handles the route "GET /hashtags/{tag}/posts".
func (s *Server) handleHashtagPosts(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	posts, err := s.pts.ByHashtag(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "tag"), page)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, posts)
}

// handleTrending handles the route "GET /hashtags/trending".
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	tags, err := s.pts.Trending(r.Context(), limit)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, tags)
}

// handleSavePost handles the route "POST /posts/{postId}/save".
func (s *Server) handleSavePost(w http.ResponseWriter, r *http.Request) {
	if err := s.pts.Save(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "postId")); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUnsavePost handles the route "DELETE /posts/{postId}/save".
func (s *Server) handleUnsavePost(w http.ResponseWriter, r *http.Request) {
	if err := s.pts.Unsave(r.Context(), auth.ViewerID(r.Context()), pathVar(r, "postId")); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
