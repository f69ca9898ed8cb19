package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"sociapi/auth"
	"sociapi/errs"
	"sociapi/logging"
	"sociapi/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestID tags the request context, and so every log line of the
// request, with an id. A client supplied id is kept.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = logging.NewRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// instrument logs every routed request and records it in the metrics,
// labelled with the route template rather than the raw path.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.ObserveRequest(r.Method, route, rec.status, elapsed)
		logging.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("request")
	})
}

// checkUser authenticates requests carrying a bearer token. Requests
// without one continue anonymously; a bad token is rejected.
func (s *Server) checkUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := auth.BearerToken(header)
		if !ok {
			errs.ReturnError(w, r, errs.ErrTokenInvalid)
			return
		}
		claims, err := s.tokens.ParseAccess(token)
		if err != nil {
			errs.ReturnError(w, r, errs.ErrTokenInvalid)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.SetViewer(r.Context(), claims.UserID)))
	})
}

// checkIDs rejects requests whose id route variables are not UUIDs. All
// ids are UUIDs, so anything else could only ever be not found.
func (s *Server) checkIDs(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, value := range mux.Vars(r) {
			if strings.HasSuffix(name, "Id") && !validID(value) {
				errs.ReturnError(w, r, errs.Errorf(errs.EINVALID, "Invalid %s.", name))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// validID reports whether s is a UUID in its canonical, hyphenated form.
func validID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// requireAuth lets only authenticated requests through.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.ViewerID(r.Context()) == "" {
			errs.ReturnError(w, r, errs.ErrUnauthenticated)
			return
		}
		next(w, r)
	}
}
