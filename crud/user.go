package crud

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"sociapi/auth"
	"sociapi/domain"
	"sociapi/errs"
	"sociapi/logging"
)

// UserService manages Users. It is the part of the auth system that checks
// credentials and hands out token pairs, with http/auth.go dealing with
// requests and the bearer middleware being the "frontend".
// It implements the domain.UserService interface.
type UserService struct {
	userValidator
}

// userValidator runs validations on incoming User data.
// On success, it passes the data on to the user store.
// Otherwise, it returns the error of the validation that has failed.
type userValidator struct {
	hmac          HMAC
	pepper        string
	emailRegex    *regexp.Regexp
	usernameRegex *regexp.Regexp
	tokens        *auth.Tokens
	users         domain.UserStore
	mailer        domain.Mailer
	// resetURL is the link mailed for a password reset, minus the token.
	resetURL string
}

// ResetTokenTTL is how long a password reset link stays valid.
const ResetTokenTTL = 15 * time.Minute

// NewUserService returns an instance of UserService. Password reset links
// are resetURL followed by the token and are sent through mailer.
func NewUserService(users domain.UserStore, tokens *auth.Tokens, mailer domain.Mailer, resetURL, pepper, hmacKey string) *UserService {
	return &UserService{
		userValidator{
			hmac:          newHMAC(hmacKey),
			pepper:        pepper,
			emailRegex:    regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,16}$`),
			usernameRegex: regexp.MustCompile(`^[a-z0-9_.]{3,30}$`),
			tokens:        tokens,
			users:         users,
			mailer:        mailer,
			resetURL:      resetURL,
		},
	}
}

// Ensure the UserService struct properly implements the domain.UserService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.UserService = &UserService{}

// Register creates a new account together with its public profile and
// signs it in.
func (uv *userValidator) Register(ctx context.Context, user *domain.User) (*domain.Session, error) {
	err := runUserValFns(ctx, user,
		uv.usernameNormalize,
		uv.usernameFormat,
		uv.usernameIsAvail,
		uv.emailNormalize,
		uv.emailRequired,
		uv.emailFormat,
		uv.emailIsAvail,
		uv.passwordRequired,
		uv.passwordMinLength,
		uv.passwordBcrypt,
		uv.passwordHashRequired)
	if err != nil {
		return nil, err
	}
	user.ID = domain.NewID()
	user.Role = domain.RoleUser
	profile := &domain.Profile{ID: domain.NewID(), UserID: user.ID}
	if err := uv.users.Create(ctx, user, profile); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().Str("user_id", user.ID).Msg("user registered")
	return uv.signIn(ctx, user)
}

// Login checks the password of the account identified by an email address
// or a username. Any mismatch yields the same error.
func (uv *userValidator) Login(ctx context.Context, identifier, password string) (*domain.Session, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" || password == "" {
		return nil, errs.ErrBadCredentials
	}
	found, err := uv.byIdentifier(ctx, identifier)
	if err != nil {
		return nil, notFoundAs(err, errs.ErrBadCredentials)
	}
	if found.PasswordHash == "" {
		// Accounts created through OAuth have no password.
		return nil, errs.ErrBadCredentials
	}

	// Append the pepper to the submitted password, then compare it to the stored hash.
	err = bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password+uv.pepper))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errs.ErrBadCredentials
		}
		return nil, err
	}
	return uv.signIn(ctx, found)
}

// Refresh trades a refresh token for a new token pair. Only the most
// recently issued refresh token of a user is accepted. Presenting an older
// one ends every session of the user.
func (uv *userValidator) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	claims, err := uv.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := uv.users.ByID(ctx, claims.UserID)
	if err != nil {
		return nil, notFoundAs(err, errs.ErrTokenInvalid)
	}
	if user.RefreshHash == "" || !hmac.Equal([]byte(user.RefreshHash), []byte(uv.hmac.hash(claims.ID))) {
		if user.RefreshHash != "" {
			user.RefreshHash = ""
			if err := uv.users.Update(ctx, user); err != nil {
				return nil, err
			}
			logging.Ctx(ctx).Warn().Str("user_id", user.ID).Msg("refresh token reused, sessions revoked")
		}
		return nil, errs.ErrTokenReused
	}
	return uv.signIn(ctx, user)
}

// Logout ends the session a refresh token belongs to. Unknown or invalid
// tokens are ignored.
func (uv *userValidator) Logout(ctx context.Context, refreshToken string) error {
	claims, err := uv.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil
	}
	user, err := uv.users.ByID(ctx, claims.UserID)
	if err != nil {
		if errs.ErrorCode(err) == errs.ENOTFOUND {
			return nil
		}
		return err
	}
	if user.RefreshHash != uv.hmac.hash(claims.ID) {
		return nil
	}
	user.RefreshHash = ""
	return uv.users.Update(ctx, user)
}

// ForgotPassword mails a password reset link to the account identified by
// an email address or a username. Only the hash of the token is stored,
// and asking again replaces the previous link.
func (uv *userValidator) ForgotPassword(ctx context.Context, identifier string) error {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return errs.Errorf(errs.EINVALID, "An email address or username is required.")
	}
	user, err := uv.byIdentifier(ctx, identifier)
	if err != nil {
		return notFoundAs(err, errs.NotFound("User"))
	}
	token, err := randomToken(32)
	if err != nil {
		return err
	}
	expires := time.Now().Add(ResetTokenTTL).UTC()
	user.ResetHash = uv.hmac.hash(token)
	user.ResetExpires = &expires
	if err := uv.users.Update(ctx, user); err != nil {
		return err
	}
	body := fmt.Sprintf("Click this link to reset your password:\n\n%s%s\n\nThis link is valid for %d minutes.",
		uv.resetURL, token, int(ResetTokenTTL.Minutes()))
	if err := uv.mailer.Send(ctx, user.Email, "Password Reset", body); err != nil {
		return fmt.Errorf("sending password reset mail: %w", err)
	}
	logging.Ctx(ctx).Info().Str("user_id", user.ID).Msg("password reset requested")
	return nil
}

// ResetPassword sets a new password for the holder of a valid reset token.
// The token is used up, and every session of the user ends.
func (uv *userValidator) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return errs.Errorf(errs.EINVALID, "A reset token is required.")
	}
	if err := runUserValFns(ctx, &domain.User{Password: password},
		uv.passwordRequired,
		uv.passwordMinLength); err != nil {
		return err
	}
	user, err := uv.users.ByResetHash(ctx, uv.hmac.hash(token))
	if err != nil {
		return notFoundAs(err, errs.ErrResetInvalid)
	}
	if user.ResetExpires == nil || !time.Now().Before(*user.ResetExpires) {
		return errs.ErrResetInvalid
	}
	user.Password = password
	if err := runUserValFns(ctx, user,
		uv.passwordBcrypt,
		uv.passwordHashRequired); err != nil {
		return err
	}
	user.ResetHash = ""
	user.ResetExpires = nil
	user.RefreshHash = ""
	if err := uv.users.Update(ctx, user); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

// byIdentifier finds a user by email address when identifier looks like
// one, and by username otherwise.
func (uv *userValidator) byIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if strings.Contains(identifier, "@") {
		return uv.users.ByEmail(ctx, identifier)
	}
	return uv.users.ByUsername(ctx, identifier)
}

// ByID returns the user with the given id.
func (uv *userValidator) ByID(ctx context.Context, id string) (*domain.User, error) {
	return uv.users.ByID(ctx, id)
}

// signIn issues a token pair and remembers the hash of the refresh token's id.
func (uv *userValidator) signIn(ctx context.Context, user *domain.User) (*domain.Session, error) {
	pair, refreshID, err := uv.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	user.RefreshHash = uv.hmac.hash(refreshID)
	if err := uv.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return &domain.Session{User: user, Tokens: pair}, nil
}

// createOAuthUser creates a passwordless account for a provider identity.
// The username is derived from the provider login and made unique.
func (uv *userValidator) createOAuthUser(ctx context.Context, pu *domain.ProviderUser) (*domain.User, error) {
	user := &domain.User{Email: pu.Email}
	err := runUserValFns(ctx, user,
		uv.emailNormalize,
		uv.emailRequired,
		uv.emailFormat,
		uv.emailIsAvail)
	if err != nil {
		return nil, err
	}
	username, err := uv.freeUsername(ctx, pu.Login)
	if err != nil {
		return nil, err
	}
	user.ID = domain.NewID()
	user.Username = username
	user.Role = domain.RoleUser
	profile := &domain.Profile{ID: domain.NewID(), UserID: user.ID, Name: pu.Login}
	if err := uv.users.Create(ctx, user, profile); err != nil {
		return nil, err
	}
	return user, nil
}

var usernameStrip = regexp.MustCompile(`[^a-z0-9_.]`)

// freeUsername turns login into a valid username that nobody uses yet.
func (uv *userValidator) freeUsername(ctx context.Context, login string) (string, error) {
	base := usernameStrip.ReplaceAllString(strings.ToLower(login), "")
	if len(base) > 24 {
		base = base[:24]
	}
	for len(base) < 3 {
		base += "_"
	}
	candidate := base
	for i := 0; i < 5; i++ {
		_, err := uv.users.ByUsername(ctx, candidate)
		if errs.ErrorCode(err) == errs.ENOTFOUND {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = base + "_" + domain.NewID()[30:]
	}
	return "", errs.Errorf(errs.ECONFLICT, "No free username could be derived from %q.", login)
}

// runUserValFns runs any number of functions of type userValFn on the passed in User object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runUserValFns(ctx context.Context, user *domain.User, fns ...userValFn) error {
	for _, fn := range fns {
		if err := fn(ctx, user); err != nil {
			return err
		}
	}
	return nil
}

// A userValFn is any function that takes in a pointer to a domain.User object and returns an error.
type userValFn func(ctx context.Context, user *domain.User) error

// usernameNormalize converts the username to all lowercase and trims its whitespaces.
func (uv *userValidator) usernameNormalize(ctx context.Context, user *domain.User) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	return nil
}

// usernameFormat makes sure that the username has 3 to 30 allowed characters.
func (uv *userValidator) usernameFormat(ctx context.Context, user *domain.User) error {
	if user.Username == "" {
		return errs.Errorf(errs.EINVALID, "A username is required.")
	}
	if !uv.usernameRegex.MatchString(user.Username) {
		return errs.Errorf(errs.EINVALID, "The username must have 3 to 30 characters: letters, digits, dots and underscores.")
	}
	return nil
}

// usernameIsAvail makes sure that the username is not yet taken.
func (uv *userValidator) usernameIsAvail(ctx context.Context, user *domain.User) error {
	existing, err := uv.users.ByUsername(ctx, user.Username)
	if errs.ErrorCode(err) == errs.ENOTFOUND {
		return nil
	}
	if err != nil {
		return err
	}
	if user.ID != existing.ID {
		return errs.Errorf(errs.ECONFLICT, "This username is already taken.")
	}
	return nil
}

// emailFormat makes sure that a provided email address matches a predefined regex pattern.
func (uv *userValidator) emailFormat(ctx context.Context, user *domain.User) error {
	if !uv.emailRegex.MatchString(user.Email) {
		return errs.Errorf(errs.EINVALID, "The email address is invalid.")
	}
	return nil
}

// emailIsAvail makes sure that a provided email address is not yet taken.
func (uv *userValidator) emailIsAvail(ctx context.Context, user *domain.User) error {
	existing, err := uv.users.ByEmail(ctx, user.Email)
	if errs.ErrorCode(err) == errs.ENOTFOUND {
		// Address is not taken.
		return nil
	}
	if err != nil {
		return err
	}
	if user.ID != existing.ID {
		return errs.Errorf(errs.ECONFLICT, "This email address is already taken.")
	}
	return nil
}

// emailNormalize converts the email to all lowercase and trims its whitespaces.
func (uv *userValidator) emailNormalize(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return nil
}

// emailRequired makes sure that the email is not the empty string.
func (uv *userValidator) emailRequired(ctx context.Context, user *domain.User) error {
	if user.Email == "" {
		return errs.Errorf(errs.EINVALID, "An email address is required.")
	}
	return nil
}

// passwordBcrypt hashes a user's password with a predefined pepper.
// It then clears the password on the user object in memory.
func (uv *userValidator) passwordBcrypt(ctx context.Context, user *domain.User) error {
	pwBytes := []byte(user.Password + uv.pepper)
	hashedBytes, err := bcrypt.GenerateFromPassword(pwBytes, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashedBytes)
	user.Password = ""
	return nil
}

// passwordHashRequired makes sure that the user's password hash is not the empty string.
func (uv *userValidator) passwordHashRequired(ctx context.Context, user *domain.User) error {
	if user.PasswordHash == "" {
		return errs.Errorf(errs.EINVALID, "A password is required.")
	}
	return nil
}

// passwordMinLength makes sure that the user's password is at least 6 characters long.
func (uv *userValidator) passwordMinLength(ctx context.Context, user *domain.User) error {
	if utf8.RuneCountInString(user.Password) < 6 {
		return errs.Errorf(errs.EINVALID, "The password must have at least 6 characters.")
	}
	return nil
}

// passwordRequired makes sure that the user's password is not the empty string.
func (uv *userValidator) passwordRequired(ctx context.Context, user *domain.User) error {
	if user.Password == "" {
		return errs.Errorf(errs.EINVALID, "A password is required.")
	}
	return nil
}

// HMAC hashes refresh token ids with a secret key.
type HMAC struct {
	key []byte
}

// newHMAC creates and returns a new HMAC object.
func newHMAC(key string) HMAC {
	return HMAC{key: []byte(key)}
}

// hash hashes an input string using HMAC with the secret key
// provided when the HMAC object was created in NewUserService.
func (h HMAC) hash(input string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(input))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// randomToken returns n random bytes, hex encoded.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
