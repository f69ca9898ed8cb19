package database

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"sociapi/domain"
	"sociapi/errs"
)

// userGorm runs CRUD operations on the users table.
type userGorm struct {
	db *gorm.DB
}

var _ domain.UserStore = &userGorm{}

// ByID retrieves a User database record by ID.
func (ug *userGorm) ByID(ctx context.Context, id string) (*domain.User, error) {
	return ug.first(ug.db.WithContext(ctx).Where("id = ?", id))
}

// ByEmail retrieves a User database record by Email.
func (ug *userGorm) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	return ug.first(ug.db.WithContext(ctx).Where("email = ?", email))
}

// ByUsername retrieves a User database record by Username.
func (ug *userGorm) ByUsername(ctx context.Context, username string) (*domain.User, error) {
	return ug.first(ug.db.WithContext(ctx).Where("username = ?", username))
}

// ByResetHash retrieves the User a password reset token was issued to.
func (ug *userGorm) ByResetHash(ctx context.Context, hash string) (*domain.User, error) {
	return ug.first(ug.db.WithContext(ctx).Where("reset_hash = ? AND reset_hash <> ''", hash))
}

// Create stores the user and its initial profile in one transaction.
func (ug *userGorm) Create(ctx context.Context, user *domain.User, profile *domain.Profile) error {
	if user.ID == "" {
		user.ID = domain.NewID()
	}
	if profile.ID == "" {
		profile.ID = domain.NewID()
	}
	profile.UserID = user.ID
	fillProfileArrays(profile)
	return ug.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return userConflict(err)
		}
		return tx.Create(profile).Error
	})
}

// Update saves changes to an existing user record in the database.
func (ug *userGorm) Update(ctx context.Context, user *domain.User) error {
	return userConflict(ug.db.WithContext(ctx).Save(user).Error)
}

// userConflict reports a write that lost a race for a unique username or
// email address. The validators catch the common case earlier.
func userConflict(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errs.Errorf(errs.ECONFLICT, "This username or email address is already taken.")
	}
	return err
}

// first is a helper for getting the first user that matches a given query.
func (ug *userGorm) first(db *gorm.DB) (*domain.User, error) {
	var user domain.User
	if err := db.First(&user).Error; err != nil {
		return nil, translate(err, "User")
	}
	return &user, nil
}
