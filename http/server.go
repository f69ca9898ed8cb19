// Package http serves the REST API of sociapi.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/openzipkin/zipkin-go"
	zipkinhttp "github.com/openzipkin/zipkin-go/middleware/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sociapi/auth"
	"sociapi/crud"
	"sociapi/domain"
	"sociapi/errs"
	"sociapi/logging"
	"sociapi/metrics"
	"sociapi/storage"
)

// Config holds the settings of the http layer.
type Config struct {
	Addr           string
	AllowedOrigins []string
	// RateLimit is the number of requests per minute one IP may send. The
	// auth routes allow a tenth of it. Zero disables limiting.
	RateLimit      int
	UploadsDir     string
	MaxUploadBytes int64
	SecureCookies  bool
	// Tracer enables zipkin spans for every request when set.
	Tracer          *zipkin.Tracer
	ShutdownTimeout time.Duration
}

// Server provides the http functionality of this app, namely routing,
// request handling, and middleware. It authenticates requests before
// handing them over to one of the crud services.
type Server struct {
	router   *mux.Router
	handler  http.Handler
	cfg      Config
	tokens   *auth.Tokens
	validate *validator.Validate

	us  domain.UserService
	oas domain.OAuthService
	fs  domain.FollowService
	frs domain.FollowRequestService
	ps  domain.ProfileService
	pts domain.PostService
	cs  domain.CommentService
}

// NewServer returns a new instance of the server, registers all routes and
// gives their handlers access to the services passed in.
func NewServer(services *crud.Services, tokens *auth.Tokens, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = storage.DefaultMaxUploadSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		router:   mux.NewRouter(),
		cfg:      cfg,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		us:       services.User,
		fs:       services.Follow,
		frs:      services.FollowRequest,
		ps:       services.Profile,
		pts:      services.Post,
		cs:       services.Comment,
	}
	if services.OAuth != nil {
		s.oas = services.OAuth
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errs.ReturnError(w, r, errs.Errorf(errs.ENOTFOUND, "Route not found."))
	})
	s.router.Use(s.instrument, s.checkUser, s.checkIDs)

	s.registerAuthRoutes(s.router)
	s.registerOAuthRoutes(s.router)
	s.registerProfileRoutes(s.router)
	s.registerFollowRoutes(s.router)
	s.registerPostRoutes(s.router)
	s.registerCommentRoutes(s.router)
	s.registerLikeRoutes(s.router)
	s.registerOpsRoutes(s.router)

	var h http.Handler = s.router
	if cfg.RateLimit > 0 {
		h = httprate.LimitByIP(cfg.RateLimit, time.Minute)(h)
	}
	h = cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})(h)
	h = requestID(h)
	if cfg.Tracer != nil {
		h = zipkinhttp.NewServerMiddleware(cfg.Tracer, zipkinhttp.TagResponseSize(true))(h)
	}
	s.handler = h
	return s
}

// ServeHTTP makes the Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Serve listens on the configured address until ctx is done. It satisfies
// suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *Server) String() string { return "http-server" }

func (s *Server) registerOpsRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})).Methods("GET")
	if s.cfg.UploadsDir != "" {
		r.PathPrefix(storage.URLPrefix).Handler(
			http.StripPrefix(storage.URLPrefix, http.FileServer(http.Dir(s.cfg.UploadsDir))),
		).Methods("GET")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
