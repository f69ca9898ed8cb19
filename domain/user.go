package domain

import (
	"context"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the identity record of an account. Everything social about
// the account lives in its Profile.
type User struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	Username string `json:"username" gorm:"uniqueIndex;size:30;not null"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Role     string `json:"role" gorm:"size:16;not null;default:user"`

	// Password is only set on incoming register data and is never stored.
	Password     string `json:"-" gorm:"-"`
	PasswordHash string `json:"-"`
	// RefreshHash references the one refresh token that is currently valid.
	RefreshHash string `json:"-"`
	// ResetHash references the one password reset token that is currently
	// valid, until ResetExpires.
	ResetHash    string     `json:"-" gorm:"index"`
	ResetExpires *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserStore persists Users.
type UserStore interface {
	ByID(ctx context.Context, id string) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	ByUsername(ctx context.Context, username string) (*User, error)
	ByResetHash(ctx context.Context, hash string) (*User, error)
	// Create stores the user together with its initial profile.
	Create(ctx context.Context, user *User, profile *Profile) error
	Update(ctx context.Context, user *User) error
}

// TokenPair is returned by every successful sign in.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Session bundles a signed in user and their tokens.
type Session struct {
	User   *User      `json:"user"`
	Tokens *TokenPair `json:"tokens"`
}

// UserService is the set of methods of the auth system.
type UserService interface {
	Register(ctx context.Context, user *User) (*Session, error)
	Login(ctx context.Context, identifier, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Logout(ctx context.Context, refreshToken string) error
	ForgotPassword(ctx context.Context, identifier string) error
	ResetPassword(ctx context.Context, token, password string) error
	ByID(ctx context.Context, id string) (*User, error)
}

// Mailer delivers mail to users.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
