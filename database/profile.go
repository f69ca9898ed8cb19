package database

import (
	"context"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"sociapi/domain"
	"sociapi/errs"
)

// ProfileGorm stores profiles. Every write is conditional on the version
// the caller read, so concurrent writers of one profile cannot both win.
// It implements domain.ProfileStore and domain.GraphStore.
type ProfileGorm struct {
	db *gorm.DB
}

var (
	_ domain.ProfileStore = &ProfileGorm{}
	_ domain.GraphStore   = &ProfileGorm{}
)

// ByUserID retrieves the profile of a user.
func (pg *ProfileGorm) ByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := pg.db.WithContext(ctx).First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err, "Profile")
	}
	return &p, nil
}

// Update saves p if nobody else saved it since it was read.
func (pg *ProfileGorm) Update(ctx context.Context, p *domain.Profile) error {
	now := time.Now().UTC()
	if err := saveVersioned(pg.db.WithContext(ctx), p, now); err != nil {
		return err
	}
	bump(p, now)
	return nil
}

// SaveEdge saves both profiles, and the answered request if any, in one
// transaction.
func (pg *ProfileGorm) SaveEdge(ctx context.Context, follower, followee *domain.Profile, req *domain.FollowRequest) error {
	now := time.Now().UTC()
	err := pg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveVersioned(tx, follower, now); err != nil {
			return err
		}
		if err := saveVersioned(tx, followee, now); err != nil {
			return err
		}
		if req != nil {
			return resolvePending(tx, req, now)
		}
		return nil
	})
	if err != nil {
		return err
	}
	bump(follower, now)
	bump(followee, now)
	if req != nil {
		req.UpdatedAt = now
	}
	return nil
}

// saveVersioned writes every mutable column of p where the stored version
// still equals p.Version.
func saveVersioned(tx *gorm.DB, p *domain.Profile, now time.Time) error {
	fillProfileArrays(p)
	res := tx.Model(&domain.Profile{}).
		Where("user_id = ? AND version = ?", p.UserID, p.Version).
		Updates(map[string]interface{}{
			"is_private":      p.IsPrivate,
			"followers":       p.Followers,
			"following":       p.Following,
			"followers_count": len(p.Followers),
			"following_count": len(p.Following),
			"saved_posts":     p.SavedPosts,
			"blocked_users":   p.BlockedUsers,
			"name":            p.Name,
			"bio":             p.Bio,
			"location":        p.Location,
			"avatar":          p.Avatar,
			"interests":       p.Interests,
			"gender":          p.Gender,
			"date_of_birth":   p.DateOfBirth,
			"version":         p.Version + 1,
			"updated_at":      now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&domain.Profile{}).Where("user_id = ?", p.UserID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return errs.NotFound("Profile")
		}
		return errs.ErrConcurrentUpdate
	}
	return nil
}

func bump(p *domain.Profile, now time.Time) {
	p.Version++
	p.UpdatedAt = now
	p.FollowersCount = len(p.Followers)
	p.FollowingCount = len(p.Following)
}

// fillProfileArrays replaces nil lists, which would be stored as NULL.
func fillProfileArrays(p *domain.Profile) {
	for _, list := range []*pq.StringArray{&p.Followers, &p.Following, &p.SavedPosts, &p.BlockedUsers, &p.Interests} {
		if *list == nil {
			*list = pq.StringArray{}
		}
	}
}
