package crud

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"sociapi/domain"
	"sociapi/errs"
)

func register(t *testing.T, f *fixture, username, email, password string) *domain.Session {
	t.Helper()
	s, err := f.svc.User.Register(context.Background(), &domain.User{Username: username, Email: email, Password: password})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return s
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := register(t, f, " Alice ", "Alice@Example.com", "secret1")
	if s.User.Username != "alice" || s.User.Email != "alice@example.com" {
		t.Fatalf("user not normalized: %+v", s.User)
	}
	if s.User.PasswordHash == "" || s.User.Password != "" {
		t.Fatalf("password not hashed")
	}
	if s.Tokens.AccessToken == "" || s.Tokens.RefreshToken == "" {
		t.Fatalf("tokens missing: %+v", s.Tokens)
	}
	p := f.profile(t, s.User.ID)
	if p.IsPrivate {
		t.Fatalf("new profiles are public")
	}

	for _, id := range []string{"alice", "ALICE@example.com"} {
		if _, err := f.svc.User.Login(ctx, id, "secret1"); err != nil {
			t.Fatalf("Login(%s): %v", id, err)
		}
	}
	for _, tc := range [][2]string{{"alice", "wrong!!"}, {"nobody", "secret1"}, {"", ""}} {
		if _, err := f.svc.User.Login(ctx, tc[0], tc[1]); !errors.Is(err, errs.ErrBadCredentials) {
			t.Fatalf("Login(%q) err = %v, want ErrBadCredentials", tc[0], err)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	register(t, f, "alice", "alice@example.com", "secret1")

	tests := []struct {
		name string
		user domain.User
		code string
	}{
		{"short username", domain.User{Username: "al", Email: "x@example.com", Password: "secret1"}, errs.EINVALID},
		{"bad username", domain.User{Username: "al ice!", Email: "x@example.com", Password: "secret1"}, errs.EINVALID},
		{"bad email", domain.User{Username: "xavier", Email: "nope", Password: "secret1"}, errs.EINVALID},
		{"short password", domain.User{Username: "xavier", Email: "x@example.com", Password: "12345"}, errs.EINVALID},
		{"taken username", domain.User{Username: "Alice", Email: "x@example.com", Password: "secret1"}, errs.ECONFLICT},
		{"taken email", domain.User{Username: "xavier", Email: "alice@example.com", Password: "secret1"}, errs.ECONFLICT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := tt.user
			if _, err := f.svc.User.Register(ctx, &u); errs.ErrorCode(err) != tt.code {
				t.Fatalf("err = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestRefreshRotationDetectsReuse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := register(t, f, "alice", "alice@example.com", "secret1")

	next, err := f.svc.User.Refresh(ctx, s.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.Tokens.RefreshToken == s.Tokens.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	// The old token again: every session ends.
	if _, err := f.svc.User.Refresh(ctx, s.Tokens.RefreshToken); !errors.Is(err, errs.ErrTokenReused) {
		t.Fatalf("reuse err = %v, want ErrTokenReused", err)
	}
	if _, err := f.svc.User.Refresh(ctx, next.Tokens.RefreshToken); !errors.Is(err, errs.ErrTokenReused) {
		t.Fatalf("refresh after reuse err = %v, want ErrTokenReused", err)
	}
	if _, err := f.svc.User.Refresh(ctx, "garbage"); !errors.Is(err, errs.ErrTokenInvalid) {
		t.Fatalf("garbage err = %v, want ErrTokenInvalid", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := register(t, f, "alice", "alice@example.com", "secret1")

	if err := f.svc.User.Logout(ctx, s.Tokens.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := f.svc.User.Logout(ctx, s.Tokens.RefreshToken); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if err := f.svc.User.Logout(ctx, "garbage"); err != nil {
		t.Fatalf("Logout with garbage: %v", err)
	}
	if _, err := f.svc.User.Refresh(ctx, s.Tokens.RefreshToken); errs.ErrorCode(err) != errs.EUNAUTHORIZED {
		t.Fatalf("Refresh after logout err = %v", err)
	}
}

// fakeGithub serves the token endpoint and the user api of GitHub.
func fakeGithub(t *testing.T, userJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(userJSON))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"email":"old@example.com","primary":false,"verified":true},{"email":"octo@example.com","primary":true,"verified":true}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func oauthFixture(t *testing.T, srv *httptest.Server) *fixture {
	t.Helper()
	f := newFixture(t)
	f.svc.OAuth = NewOAuthService(f.st.OAuths(), f.svc.User, &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/login/oauth/authorize",
			TokenURL: srv.URL + "/login/oauth/access_token",
		},
	})
	f.svc.OAuth.apiURL = srv.URL
	return f
}

func TestOAuthSignInCreatesThenReusesAccount(t *testing.T) {
	ctx := context.Background()
	srv := fakeGithub(t, `{"id":42,"login":"Octo-Cat","email":null}`)
	f := oauthFixture(t, srv)

	first, err := f.svc.OAuth.SignIn(ctx, "code")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if first.User.Email != "octo@example.com" || first.User.Username != "octocat" {
		t.Fatalf("user = %+v", first.User)
	}
	if first.Tokens.AccessToken == "" {
		t.Fatalf("no tokens issued")
	}
	second, err := f.svc.OAuth.SignIn(ctx, "code")
	if err != nil {
		t.Fatalf("second SignIn: %v", err)
	}
	if second.User.ID != first.User.ID {
		t.Fatalf("second sign in created another user")
	}
	if _, err := f.svc.User.Login(ctx, "octocat", ""); !errors.Is(err, errs.ErrBadCredentials) {
		t.Fatalf("password login of oauth account err = %v", err)
	}
}

func TestOAuthSignInRejectsTakenEmail(t *testing.T) {
	srv := fakeGithub(t, `{"id":7,"login":"alice","email":"alice@example.com"}`)
	f := oauthFixture(t, srv)
	register(t, f, "alice", "alice@example.com", "secret1")

	if _, err := f.svc.OAuth.SignIn(context.Background(), "code"); errs.ErrorCode(err) != errs.ECONFLICT {
		t.Fatalf("err = %v, want conflict", err)
	}
	if _, err := f.svc.OAuth.SignIn(context.Background(), ""); errs.ErrorCode(err) != errs.EINVALID {
		t.Fatalf("missing code err = %v", err)
	}
}

// mailbox records sent mail.
type mailbox struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct{ to, subject, body string }

func (m *mailbox) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

// resetToken returns the token from the last reset link that was sent.
func (m *mailbox) resetToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("no mail sent")
	}
	body := m.sent[len(m.sent)-1].body
	i := strings.Index(body, "/reset-password/")
	if i < 0 {
		t.Fatalf("no reset link in %q", body)
	}
	token := body[i+len("/reset-password/"):]
	if j := strings.IndexAny(token, "\n "); j >= 0 {
		token = token[:j]
	}
	return token
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	box := &mailbox{}
	f := newFixture(t, WithMailer(box, "https://app.example/reset-password/"))
	register(t, f, "alice", "alice@example.com", "secret1")

	if err := f.svc.User.ForgotPassword(ctx, " Alice "); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if len(box.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(box.sent))
	}
	m := box.sent[0]
	if m.to != "alice@example.com" || m.subject != "Password Reset" {
		t.Fatalf("mail to=%q subject=%q", m.to, m.subject)
	}
	if !strings.HasPrefix(m.body, "Click this link to reset your password:\n\nhttps://app.example/reset-password/") ||
		!strings.HasSuffix(m.body, "\n\nThis link is valid for 15 minutes.") {
		t.Fatalf("body = %q", m.body)
	}
	token := box.resetToken(t)
	if len(token) != 64 {
		t.Fatalf("token %q, want 64 hex chars", token)
	}
	user, err := f.st.Users().ByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("ByUsername: %v", err)
	}
	if user.ResetHash == "" || user.ResetHash == token || user.ResetExpires == nil {
		t.Fatalf("reset hash=%q expires=%v", user.ResetHash, user.ResetExpires)
	}

	if err := f.svc.User.ResetPassword(ctx, token, "short"); errs.ErrorCode(err) != errs.EINVALID {
		t.Fatalf("short password err = %v, want EINVALID", err)
	}
	if err := f.svc.User.ResetPassword(ctx, token, "newsecret"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := f.svc.User.Login(ctx, "alice", "newsecret"); err != nil {
		t.Fatalf("Login with the new password: %v", err)
	}
	if _, err := f.svc.User.Login(ctx, "alice", "secret1"); !errors.Is(err, errs.ErrBadCredentials) {
		t.Fatalf("Login with the old password err = %v", err)
	}
	if err := f.svc.User.ResetPassword(ctx, token, "another1"); !errors.Is(err, errs.ErrResetInvalid) {
		t.Fatalf("reused token err = %v, want ErrResetInvalid", err)
	}
	user, _ = f.st.Users().ByUsername(ctx, "alice")
	if user.ResetHash != "" || user.ResetExpires != nil {
		t.Fatalf("reset fields kept: hash=%q expires=%v", user.ResetHash, user.ResetExpires)
	}
}

func TestPasswordResetRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	box := &mailbox{}
	f := newFixture(t, WithMailer(box, "/reset-password/"))
	s := register(t, f, "alice", "alice@example.com", "secret1")

	if err := f.svc.User.ForgotPassword(ctx, "nobody@example.com"); errs.ErrorCode(err) != errs.ENOTFOUND {
		t.Fatalf("unknown user err = %v, want ENOTFOUND", err)
	}
	if err := f.svc.User.ForgotPassword(ctx, "  "); errs.ErrorCode(err) != errs.EINVALID {
		t.Fatalf("empty identifier err = %v, want EINVALID", err)
	}
	if err := f.svc.User.ResetPassword(ctx, "", "newsecret"); errs.ErrorCode(err) != errs.EINVALID {
		t.Fatalf("empty token err = %v", err)
	}
	if err := f.svc.User.ResetPassword(ctx, "garbage", "newsecret"); !errors.Is(err, errs.ErrResetInvalid) {
		t.Fatalf("garbage token err = %v, want ErrResetInvalid", err)
	}

	// A second request replaces the first link.
	if err := f.svc.User.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	first := box.resetToken(t)
	if err := f.svc.User.ForgotPassword(ctx, "alice"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	second := box.resetToken(t)
	if err := f.svc.User.ResetPassword(ctx, first, "newsecret"); !errors.Is(err, errs.ErrResetInvalid) {
		t.Fatalf("replaced token err = %v, want ErrResetInvalid", err)
	}

	user, err := f.st.Users().ByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("ByUsername: %v", err)
	}
	past := time.Now().Add(-time.Minute)
	user.ResetExpires = &past
	if err := f.st.Users().Update(ctx, user); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := f.svc.User.ResetPassword(ctx, second, "newsecret"); !errors.Is(err, errs.ErrResetInvalid) {
		t.Fatalf("expired token err = %v, want ErrResetInvalid", err)
	}
	// Sessions survive until a reset goes through.
	if _, err := f.svc.User.Refresh(ctx, s.Tokens.RefreshToken); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, err := f.svc.User.Login(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("password changed by a rejected reset: %v", err)
	}
}

func TestPasswordResetEndsSessions(t *testing.T) {
	ctx := context.Background()
	box := &mailbox{}
	f := newFixture(t, WithMailer(box, "/reset-password/"))
	s := register(t, f, "alice", "alice@example.com", "secret1")

	if err := f.svc.User.ForgotPassword(ctx, "alice"); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if err := f.svc.User.ResetPassword(ctx, box.resetToken(t), "newsecret"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := f.svc.User.Refresh(ctx, s.Tokens.RefreshToken); errs.ErrorCode(err) != errs.EUNAUTHORIZED {
		t.Fatalf("Refresh after reset err = %v, want EUNAUTHORIZED", err)
	}
}
