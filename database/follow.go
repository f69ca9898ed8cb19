package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"sociapi/domain"
	"sociapi/errs"
)

// requestGorm stores follow requests. A partial unique index allows one
// pending request per pair of users.
type requestGorm struct {
	db *gorm.DB
}

var _ domain.FollowRequestStore = &requestGorm{}

func (rg *requestGorm) ByID(ctx context.Context, id string) (*domain.FollowRequest, error) {
	var req domain.FollowRequest
	if err := rg.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err, "Follow request")
	}
	return &req, nil
}

func (rg *requestGorm) Pending(ctx context.Context, fromID, toID string) (*domain.FollowRequest, error) {
	var req domain.FollowRequest
	err := rg.db.WithContext(ctx).
		Where("from_id = ? AND to_id = ? AND status = ?", fromID, toID, domain.RequestPending).
		First(&req).Error
	if err != nil {
		return nil, translate(err, "Follow request")
	}
	return &req, nil
}

func (rg *requestGorm) Create(ctx context.Context, req *domain.FollowRequest) error {
	if req.ID == "" {
		req.ID = domain.NewID()
	}
	err := rg.db.WithContext(ctx).Create(req).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errs.ErrDuplicateRequest
	}
	return err
}

func (rg *requestGorm) Resolve(ctx context.Context, req *domain.FollowRequest) error {
	now := time.Now().UTC()
	if err := resolvePending(rg.db.WithContext(ctx), req, now); err != nil {
		return err
	}
	req.UpdatedAt = now
	return nil
}

// resolvePending stores the status of req if the stored request is still pending.
func resolvePending(tx *gorm.DB, req *domain.FollowRequest, now time.Time) error {
	res := tx.Model(&domain.FollowRequest{}).
		Where("id = ? AND status = ?", req.ID, domain.RequestPending).
		Updates(map[string]interface{}{"status": req.Status, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&domain.FollowRequest{}).Where("id = ?", req.ID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return errs.NotFound("Follow request")
		}
		return errs.ErrInvalidState
	}
	return nil
}

func (rg *requestGorm) PendingTo(ctx context.Context, toID string, page domain.PageRequest) ([]domain.FollowRequest, error) {
	reqs := []domain.FollowRequest{}
	db := rg.db.WithContext(ctx).Where("to_id = ? AND status = ?", toID, domain.RequestPending)
	err := paginate(db, page, true).Find(&reqs).Error
	return reqs, err
}

func (rg *requestGorm) PendingTargets(ctx context.Context) ([]string, error) {
	var ids []string
	err := rg.db.WithContext(ctx).Model(&domain.FollowRequest{}).
		Where("status = ?", domain.RequestPending).
		Distinct().Order("to_id").Pluck("to_id", &ids).Error
	return ids, err
}

// paginate applies a cursor page. Newest first walks ids downwards.
func paginate(db *gorm.DB, page domain.PageRequest, newestFirst bool) *gorm.DB {
	if newestFirst {
		if page.Cursor != "" {
			db = db.Where("id < ?", page.Cursor)
		}
		db = db.Order("id desc")
	} else {
		if page.Cursor != "" {
			db = db.Where("id > ?", page.Cursor)
		}
		db = db.Order("id asc")
	}
	if page.Limit > 0 {
		db = db.Limit(page.Limit)
	}
	return db
}
