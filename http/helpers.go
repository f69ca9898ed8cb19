package http

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"sociapi/domain"
	"sociapi/errs"
)

const maxJSONBody = 1 << 20

// decodeJSON reads the request body into dst and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		return errs.Errorf(errs.EINVALID, "Invalid request body.")
	}
	if err := s.validate.Struct(dst); err != nil {
		return errs.Errorf(errs.EINVALID, "Invalid request body: %s", err.Error())
	}
	return nil
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		errs.LogError(r, err)
	}
}

// pageRequest reads the cursor and limit query parameters.
func pageRequest(r *http.Request) (domain.PageRequest, error) {
	q := r.URL.Query()
	page := domain.PageRequest{Cursor: q.Get("cursor")}
	if page.Cursor != "" && !validID(page.Cursor) {
		return page, errs.Errorf(errs.EINVALID, "Invalid cursor.")
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return page, errs.Errorf(errs.EINVALID, "Invalid limit.")
		}
		page.Limit = limit
	}
	return page, nil
}

// pathVar returns the route variable name.
func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
