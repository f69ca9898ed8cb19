package crud

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"

	"sociapi/auth"
	"sociapi/cache"
	"sociapi/domain"
	"sociapi/events"
	"sociapi/mail"
)

// Stores bundles the persistence the crud services are built on.
type Stores struct {
	Users    domain.UserStore
	Profiles domain.ProfileStore
	Graph    domain.GraphStore
	Requests domain.FollowRequestStore
	Posts    domain.PostStore
	Comments domain.CommentStore
	Hashtags domain.HashtagStore
	OAuths   domain.OAuthStore
}

// A ServicesConfig is any function that takes in a pointer to a Services
// object and returns an error. It wraps the constructor of a crud service,
// so that main.go can pick the services it needs as functional options.
// Options run in order; a service depending on another one must come after it.
type ServicesConfig func(*Services) error

// Services is a container object holding pointers to all the crud services.
// The crud services all share the stores, the profile cache, the event
// publisher and the media store held by Services.
type Services struct {
	stores   Stores
	cache    domain.ProfileCache
	events   domain.EventPublisher
	media    domain.MediaStore
	mailer   domain.Mailer
	resetURL string
	validate *validator.Validate

	User          *UserService
	OAuth         *OAuthService
	Follow        *FollowService
	FollowRequest *FollowRequestService
	Access        *AccessGateway
	Profile       *ProfileService
	Post          *PostService
	Comment       *CommentService
}

// NewServices returns a new Services object, containing any crud services
// it's told to create by one of the passed in ServicesConfig functions.
// Without WithProfileCache profiles are read straight from the store, and
// without WithEvents events are dropped.
func NewServices(stores Stores, cfgs ...ServicesConfig) (*Services, error) {
	s := Services{
		stores:   stores,
		events:   events.Noop{},
		mailer:   mail.Log{},
		resetURL: "/reset-password/",
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	s.cache = cache.NewProfileCache(cache.Noop{}, stores.Profiles, 0)
	s.Access = NewAccessGateway(s.cache)
	for _, cfg := range cfgs {
		if err := cfg(&s); err != nil {
			return nil, err
		}
	}
	return &s, nil
}

// WithProfileCache puts c in front of the profile store.
func WithProfileCache(c domain.ProfileCache) ServicesConfig {
	return func(s *Services) error {
		s.cache = c
		s.Access = NewAccessGateway(c)
		return nil
	}
}

// WithEvents publishes follow graph events to p.
func WithEvents(p domain.EventPublisher) ServicesConfig {
	return func(s *Services) error {
		s.events = p
		return nil
	}
}

// WithMedia stores uploads in m.
func WithMedia(m domain.MediaStore) ServicesConfig {
	return func(s *Services) error {
		s.media = m
		return nil
	}
}

// WithMailer sends password reset links, which start with resetURL, through m.
// It has to come before WithUser.
func WithMailer(m domain.Mailer, resetURL string) ServicesConfig {
	return func(s *Services) error {
		s.mailer = m
		s.resetURL = resetURL
		return nil
	}
}

// WithUser wraps the constructor of UserService, NewUserService.
func WithUser(tokens *auth.Tokens, pepper, hmacKey string) ServicesConfig {
	return func(s *Services) error {
		s.User = NewUserService(s.stores.Users, tokens, s.mailer, s.resetURL, pepper, hmacKey)
		return nil
	}
}

// WithOAuth wraps the constructor of OAuthService, NewOAuthService.
func WithOAuth(config *oauth2.Config) ServicesConfig {
	return func(s *Services) error {
		if s.User == nil {
			return errors.New("crud: WithOAuth requires WithUser")
		}
		s.OAuth = NewOAuthService(s.stores.OAuths, s.User, config)
		return nil
	}
}

// WithFollow wraps the constructors of FollowRequestService and FollowService.
func WithFollow() ServicesConfig {
	return func(s *Services) error {
		s.FollowRequest = NewFollowRequestService(s.stores, s.cache, s.events)
		s.Follow = NewFollowService(s.stores, s.cache, s.events, s.FollowRequest)
		return nil
	}
}

// WithProfile wraps the constructor of ProfileService, NewProfileService.
func WithProfile() ServicesConfig {
	return func(s *Services) error {
		if s.FollowRequest == nil {
			return errors.New("crud: WithProfile requires WithFollow")
		}
		s.Profile = NewProfileService(s.stores, s.cache, s.media, s.validate, s.FollowRequest)
		return nil
	}
}

// WithPost wraps the constructor of PostService, NewPostService.
func WithPost() ServicesConfig {
	return func(s *Services) error {
		s.Post = NewPostService(s.stores, s.cache, s.media, s.validate, s.Access)
		return nil
	}
}

// WithComment wraps the constructor of CommentService, NewCommentService.
func WithComment() ServicesConfig {
	return func(s *Services) error {
		s.Comment = NewCommentService(s.stores, s.Access)
		return nil
	}
}
