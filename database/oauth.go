package database

import (
	"context"

	"gorm.io/gorm"

	"sociapi/domain"
)

// oauthGorm runs CRUD operations on the oauths table.
type oauthGorm struct {
	db *gorm.DB
}

var _ domain.OAuthStore = &oauthGorm{}

// ByProviderUserID retrieves the link of a provider account.
func (og *oauthGorm) ByProviderUserID(ctx context.Context, provider, providerUserID string) (*domain.OAuth, error) {
	var oauth domain.OAuth
	err := og.db.WithContext(ctx).
		Where("provider = ? AND provider_user_id = ?", provider, providerUserID).
		First(&oauth).Error
	if err != nil {
		return nil, translate(err, "OAuth")
	}
	return &oauth, nil
}

// Create stores a new link.
func (og *oauthGorm) Create(ctx context.Context, oauth *domain.OAuth) error {
	if oauth.ID == "" {
		oauth.ID = domain.NewID()
	}
	return translate(og.db.WithContext(ctx).Create(oauth).Error, "OAuth")
}

// Update saves the refreshed provider tokens.
func (og *oauthGorm) Update(ctx context.Context, oauth *domain.OAuth) error {
	return og.db.WithContext(ctx).Save(oauth).Error
}
