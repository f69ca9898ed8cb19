package crud

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"sociapi/domain"
	"sociapi/errs"
	"sociapi/logging"
)

// GithubAPI is the base url of the GitHub REST api.
const GithubAPI = "https://api.github.com"

// OAuthService signs users in with their GitHub account.
// It implements the domain.OAuthService interface.
type OAuthService struct {
	oauthValidator
}

// oauthValidator checks the identity reported by the provider before an
// account is looked up or created for it.
type oauthValidator struct {
	store  domain.OAuthStore
	users  *UserService
	config *oauth2.Config
	apiURL string
}

// NewOAuthService returns an instance of OAuthService.
func NewOAuthService(store domain.OAuthStore, users *UserService, config *oauth2.Config) *OAuthService {
	return &OAuthService{
		oauthValidator{
			store:  store,
			users:  users,
			config: config,
			apiURL: GithubAPI,
		},
	}
}

var _ domain.OAuthService = &OAuthService{}

// AuthCodeURL returns the url of GitHub's consent page.
func (ov *oauthValidator) AuthCodeURL(state string) string {
	return ov.config.AuthCodeURL(state)
}

// SignIn exchanges code for a GitHub token, then signs in the user linked
// to the GitHub account. Unknown accounts get a new user and profile.
func (ov *oauthValidator) SignIn(ctx context.Context, code string) (*domain.Session, error) {
	if code == "" {
		return nil, errs.Errorf(errs.EINVALID, "The authorization code is missing.")
	}
	token, err := ov.config.Exchange(ctx, code)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("github code exchange failed")
		return nil, errs.Errorf(errs.EUNAUTHORIZED, "GitHub did not accept the authorization code.")
	}
	client := ov.config.Client(ctx, token)
	pu, err := ov.fetchUser(ctx, client)
	if err != nil {
		return nil, err
	}
	err = runOAuthValFns(pu,
		ov.providerUserIDRequired,
		ov.loginRequired,
		ov.emailRequired)
	if err != nil {
		return nil, err
	}

	link, err := ov.store.ByProviderUserID(ctx, domain.OAuthGithub, pu.ID)
	switch {
	case err == nil:
		link.AccessToken = token.AccessToken
		link.RefreshToken = token.RefreshToken
		link.Expiry = token.Expiry
		if err := ov.store.Update(ctx, link); err != nil {
			return nil, err
		}
	case errs.ErrorCode(err) == errs.ENOTFOUND:
		user, err := ov.users.createOAuthUser(ctx, pu)
		if err != nil {
			return nil, err
		}
		link = &domain.OAuth{
			ID:             domain.NewID(),
			UserID:         user.ID,
			Provider:       domain.OAuthGithub,
			ProviderUserID: pu.ID,
			AccessToken:    token.AccessToken,
			RefreshToken:   token.RefreshToken,
			Expiry:         token.Expiry,
		}
		if err := ov.store.Create(ctx, link); err != nil {
			return nil, err
		}
		logging.Ctx(ctx).Info().Str("user_id", user.ID).Str("provider", domain.OAuthGithub).Msg("user registered through oauth")
	default:
		return nil, err
	}

	user, err := ov.users.ByID(ctx, link.UserID)
	if err != nil {
		return nil, err
	}
	return ov.users.signIn(ctx, user)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// fetchUser asks GitHub who the token belongs to. Users hiding their email
// address have it looked up among their verified addresses.
func (ov *oauthValidator) fetchUser(ctx context.Context, client *http.Client) (*domain.ProviderUser, error) {
	var gu githubUser
	if err := ov.get(ctx, client, "/user", &gu); err != nil {
		return nil, err
	}
	pu := &domain.ProviderUser{Login: gu.Login, Email: gu.Email}
	if gu.ID != 0 {
		pu.ID = strconv.FormatInt(gu.ID, 10)
	}
	if pu.Email == "" {
		var emails []githubEmail
		if err := ov.get(ctx, client, "/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				pu.Email = e.Email
				break
			}
		}
	}
	return pu, nil
}

func (ov *oauthValidator) get(ctx context.Context, client *http.Client, path string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ov.apiURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("github %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("github %s: decoding: %w", path, err)
	}
	return nil
}

// runOAuthValFns runs any number of functions of type oauthValFn on the passed in ProviderUser.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runOAuthValFns(pu *domain.ProviderUser, fns ...oauthValFn) error {
	for _, fn := range fns {
		if err := fn(pu); err != nil {
			return err
		}
	}
	return nil
}

// A oauthValFn is any function that takes in a pointer to a domain.ProviderUser and returns an error.
type oauthValFn = func(pu *domain.ProviderUser) error

func (ov *oauthValidator) providerUserIDRequired(pu *domain.ProviderUser) error {
	if pu.ID == "" {
		return errs.Errorf(errs.EINVALID, "GitHub did not report a user id.")
	}
	return nil
}

func (ov *oauthValidator) loginRequired(pu *domain.ProviderUser) error {
	if pu.Login == "" {
		return errs.Errorf(errs.EINVALID, "GitHub did not report a login.")
	}
	return nil
}

func (ov *oauthValidator) emailRequired(pu *domain.ProviderUser) error {
	if pu.Email == "" {
		return errs.Errorf(errs.EINVALID, "Your GitHub account has no verified email address.")
	}
	return nil
}
