package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/openzipkin/zipkin-go"
	httpreporter "github.com/openzipkin/zipkin-go/reporter/http"
	"github.com/thejerf/suture/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"sociapi/auth"
	"sociapi/cache"
	"sociapi/crud"
	"sociapi/domain"
	"sociapi/events"
	"sociapi/http"
	"sociapi/jobs"
	"sociapi/logging"
	"sociapi/mail"
	"sociapi/storage"
)

// main is the app's entry point.
func main() {
	// In production a config file and real secrets are required.
	prod := flag.Bool("prod", false, "Provide this flag in production to require a config file and non-default secrets.")
	configPath := flag.String("config", ".config.yaml", "Path to the YAML config file.")
	flag.Parse()

	config, err := LoadConfig(*configPath, *prod)
	must(err)
	logging.Init(logging.Config{Level: config.Log.Level, Format: config.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the database and execute migrations.
	stores, closeStores, err := openStores(config)
	must(err)
	defer closeStores()

	profileCache, closeCache, err := openProfileCache(ctx, config, stores.Profiles)
	must(err)
	defer closeCache()

	publisher, closeEvents, err := openEvents(config)
	must(err)
	defer closeEvents()

	tokens := auth.NewTokens(config.Auth.AccessSecret, config.Auth.RefreshSecret, config.Auth.AccessTTL, config.Auth.RefreshTTL)

	// Start the crud services.
	opts := []crud.ServicesConfig{
		crud.WithProfileCache(profileCache),
		crud.WithEvents(publisher),
		crud.WithMedia(storage.NewMediaService(config.Uploads.Dir, config.Uploads.MaxBytes)),
		crud.WithMailer(openMailer(config), config.ClientURL+"/reset-password/"),
		crud.WithUser(tokens, config.Auth.Pepper, config.Auth.HMACKey),
		crud.WithFollow(),
		crud.WithProfile(),
		crud.WithPost(),
		crud.WithComment(),
	}
	if config.Github.Enabled() {
		opts = append(opts, crud.WithOAuth(&oauth2.Config{
			ClientID:     config.Github.ID,
			ClientSecret: config.Github.Secret,
			RedirectURL:  config.Github.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}))
	}
	services, err := crud.NewServices(stores, opts...)
	must(err)

	tracer, closeTracer, err := openTracer(config)
	must(err)
	defer closeTracer()

	// Set up a webserver.
	server := http.NewServer(services, tokens, http.Config{
		Addr:            fmt.Sprintf(":%d", config.Port),
		AllowedOrigins:  []string{config.ClientURL},
		RateLimit:       config.RateLimit.RequestsPerMinute,
		UploadsDir:      config.Uploads.Dir,
		MaxUploadBytes:  config.Uploads.MaxBytes,
		SecureCookies:   config.IsProd(),
		Tracer:          tracer,
		ShutdownTimeout: 10 * time.Second,
	})

	reconciler, err := jobs.NewReconciler(stores.Requests, stores.Profiles, services.FollowRequest, config.Jobs.ReconcileSchedule)
	must(err)

	sup := suture.New("sociapi", suture.Spec{
		EventHook: func(e suture.Event) {
			logging.Warn().Fields(e.Map()).Msg(e.String())
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   5 * time.Second,
		Timeout:          15 * time.Second,
	})
	sup.Add(server)
	sup.Add(reconciler)

	logging.Info().Int("port", config.Port).Str("env", config.Env).Msg("starting")
	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor stopped")
	}
	logging.Info().Msg("stopped")
}

// openProfileCache puts the configured cache backend behind a circuit
// breaker and in front of the profile store.
func openProfileCache(ctx context.Context, config *Config, profiles domain.ProfileStore) (*cache.ProfileCache, func() error, error) {
	var store cache.Store
	switch config.Cache.Backend {
	case "redis":
		r, err := cache.NewRedis(ctx, config.Cache.Addr, config.Cache.Password, config.Cache.DB)
		if err != nil {
			return nil, nil, err
		}
		store = cache.NewBreaker(r, config.Cache.Breaker.Failures, config.Cache.Breaker.Timeout)
	case "memcache":
		servers := strings.Split(config.Cache.Addr, ",")
		store = cache.NewBreaker(cache.NewMemcache(servers...), config.Cache.Breaker.Failures, config.Cache.Breaker.Timeout)
	default:
		store = cache.Noop{}
	}
	return cache.NewProfileCache(store, profiles, config.Cache.TTL), store.Close, nil
}

// openMailer sends mail through the configured SMTP relay, or logs it when
// there is none.
func openMailer(config *Config) domain.Mailer {
	if config.Mail.Host == "" {
		return mail.Log{}
	}
	return &mail.SMTP{
		Host:     config.Mail.Host,
		Port:     config.Mail.Port,
		User:     config.Mail.User,
		Password: config.Mail.Password,
		From:     config.Mail.From,
		StartTLS: config.Mail.StartTLS,
	}
}

// openEvents connects to NATS when a url is configured. Without one,
// events are dropped.
func openEvents(config *Config) (domain.EventPublisher, func() error, error) {
	if config.NATS.URL == "" {
		return events.Noop{}, func() error { return nil }, nil
	}
	n, err := events.Connect(config.NATS.URL, config.NATS.Prefix)
	if err != nil {
		return nil, nil, err
	}
	return n, n.Close, nil
}

// openTracer reports request spans to zipkin when a url is configured.
func openTracer(config *Config) (*zipkin.Tracer, func() error, error) {
	if config.Zipkin.URL == "" {
		return nil, func() error { return nil }, nil
	}
	reporter := httpreporter.NewReporter(config.Zipkin.URL)
	endpoint, err := zipkin.NewEndpoint(config.Zipkin.ServiceName, fmt.Sprintf("localhost:%d", config.Port))
	if err != nil {
		reporter.Close()
		return nil, nil, fmt.Errorf("err creating zipkin endpoint: %w", err)
	}
	tracer, err := zipkin.NewTracer(reporter, zipkin.WithLocalEndpoint(endpoint))
	if err != nil {
		reporter.Close()
		return nil, nil, fmt.Errorf("err creating zipkin tracer: %w", err)
	}
	return tracer, reporter.Close, nil
}

// must is a little helper for shortening the panic instruction.
func must(err error) {
	if err != nil {
		panic(err)
	}
}
