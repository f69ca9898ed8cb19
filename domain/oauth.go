package domain

import (
	"context"
	"time"
)

// OAuthGithub is the only provider so far.
const OAuthGithub = "github"

// OAuth links an account of an external provider to a User.
type OAuth struct {
	ID             string `json:"id" gorm:"primaryKey;type:uuid"`
	UserID         string `json:"user_id" gorm:"type:uuid;not null;index"`
	Provider       string `json:"provider" gorm:"uniqueIndex:idx_oauth_provider_user;size:32;not null"`
	ProviderUserID string `json:"provider_user_id" gorm:"uniqueIndex:idx_oauth_provider_user;not null"`
	AccessToken    string `json:"-"`
	RefreshToken   string `json:"-"`
	Expiry         time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProviderUser is the identity reported by an OAuth provider.
type ProviderUser struct {
	ID    string
	Login string
	Email string
}

// OAuthStore persists OAuth links.
type OAuthStore interface {
	ByProviderUserID(ctx context.Context, provider, providerUserID string) (*OAuth, error)
	Create(ctx context.Context, oauth *OAuth) error
	Update(ctx context.Context, oauth *OAuth) error
}

// OAuthService signs users in through an external provider.
type OAuthService interface {
	AuthCodeURL(state string) string
	SignIn(ctx context.Context, code string) (*Session, error)
}
