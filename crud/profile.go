package crud

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"sociapi/domain"
	"sociapi/errs"
	"sociapi/logging"
)

// ProfileService reads and changes Profiles.
// It implements the domain.ProfileService interface.
type ProfileService struct {
	profiles domain.ProfileStore
	graph    domain.GraphStore
	cache    domain.ProfileCache
	media    domain.MediaStore
	validate *validator.Validate
	requests *FollowRequestService
}

// NewProfileService returns an instance of ProfileService.
func NewProfileService(stores Stores, cache domain.ProfileCache, media domain.MediaStore, validate *validator.Validate, requests *FollowRequestService) *ProfileService {
	return &ProfileService{
		profiles: stores.Profiles,
		graph:    stores.Graph,
		cache:    cache,
		media:    media,
		validate: validate,
		requests: requests,
	}
}

// Ensure the ProfileService struct properly implements the domain.ProfileService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.ProfileService = &ProfileService{}

// Get returns the profile of userID as viewerID may see it.
func (ps *ProfileService) Get(ctx context.Context, viewerID, userID string) (*domain.Profile, error) {
	p, err := ps.cache.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if viewerID != "" && viewerID != userID && p.HasBlocked(viewerID) {
		return nil, errs.NotFound("Profile")
	}
	return p.ViewFor(viewerID), nil
}

// Update applies upd to the profile of userID. A profile going public
// accepts all of its pending follow requests.
func (ps *ProfileService) Update(ctx context.Context, userID string, upd *domain.ProfileUpdate) (*domain.Profile, error) {
	if err := validateStruct(ps.validate, upd); err != nil {
		return nil, err
	}
	if upd.DateOfBirth != nil && upd.DateOfBirth.After(time.Now()) {
		return nil, errs.Errorf(errs.EINVALID, "The date of birth must not be in the future.")
	}

	var p *domain.Profile
	var wasPrivate bool
	err := retryOnConflict(ctx, func() error {
		var err error
		if p, err = ps.profiles.ByUserID(ctx, userID); err != nil {
			return err
		}
		wasPrivate = p.IsPrivate
		applyProfileUpdate(p, upd)
		return ps.profiles.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	ps.cache.Set(ctx, p)

	if wasPrivate && !p.IsPrivate {
		result, err := ps.requests.BulkAcceptOnPublicize(ctx, userID)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("accepting pending follow requests failed")
		} else if result.Accepted > 0 {
			// The followers changed behind our back.
			if p, err = ps.cache.Get(ctx, userID); err != nil {
				return nil, err
			}
		}
	}
	return p.ViewFor(userID), nil
}

func applyProfileUpdate(p *domain.Profile, upd *domain.ProfileUpdate) {
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Bio != nil {
		p.Bio = *upd.Bio
	}
	if upd.Location != nil {
		p.Location = *upd.Location
	}
	if upd.IsPrivate != nil {
		p.IsPrivate = *upd.IsPrivate
	}
	if upd.Interests != nil {
		p.Interests = append(p.Interests[:0:0], upd.Interests...)
	}
	if upd.Gender != nil {
		p.Gender = *upd.Gender
	}
	if upd.DateOfBirth != nil {
		dob := upd.DateOfBirth.UTC()
		p.DateOfBirth = &dob
	}
}

// UpdateAvatar stores upload as the new avatar of userID.
func (ps *ProfileService) UpdateAvatar(ctx context.Context, userID string, upload *domain.Upload) (*domain.Profile, error) {
	if ps.media == nil {
		return nil, errs.Errorf(errs.EINTERNAL, "media storage is not configured")
	}
	if upload == nil || upload.File == nil {
		return nil, errs.Errorf(errs.EINVALID, "An image is required.")
	}
	url, err := ps.media.SaveAvatar(ctx, userID, upload)
	if err != nil {
		return nil, err
	}
	var p *domain.Profile
	err = retryOnConflict(ctx, func() error {
		if p, err = ps.profiles.ByUserID(ctx, userID); err != nil {
			return err
		}
		p.Avatar = url
		return ps.profiles.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	ps.cache.Set(ctx, p)
	return p.ViewFor(userID), nil
}

// Block makes targetID unable to follow or see userID. Edges between the
// two are removed in both directions and pending requests are declined.
func (ps *ProfileService) Block(ctx context.Context, userID, targetID string) (*domain.Profile, error) {
	if userID == targetID {
		return nil, errs.Errorf(errs.EINVALID, "You cannot block yourself.")
	}
	var p, target *domain.Profile
	err := retryOnConflict(ctx, func() error {
		var err error
		if p, err = ps.profiles.ByUserID(ctx, userID); err != nil {
			return err
		}
		if target, err = ps.profiles.ByUserID(ctx, targetID); err != nil {
			return notFoundAs(err, errs.Errorf(errs.ENOTFOUND, "The user to be blocked does not exist."))
		}
		if p.HasBlocked(targetID) {
			return errs.Errorf(errs.ECONFLICT, "You already blocked this user.")
		}
		p.Block(targetID)
		unlink(p, target)
		unlink(target, p)
		return ps.graph.SaveEdge(ctx, p, target, nil)
	})
	if err != nil {
		return nil, err
	}
	ps.cache.Set(ctx, p)
	ps.cache.Set(ctx, target)
	if err := ps.requests.declineBetween(ctx, userID, targetID); err != nil {
		// accept refuses blocked pairs, so a leftover request cannot turn into an edge.
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Str("target_id", targetID).Msg("declining pending requests after block failed")
	}
	return p.ViewFor(userID), nil
}

// Unblock lifts a block. Removed edges are not restored.
func (ps *ProfileService) Unblock(ctx context.Context, userID, targetID string) (*domain.Profile, error) {
	var p *domain.Profile
	err := retryOnConflict(ctx, func() error {
		var err error
		if p, err = ps.profiles.ByUserID(ctx, userID); err != nil {
			return err
		}
		if !p.Unblock(targetID) {
			return errs.Errorf(errs.ECONFLICT, "This user is not blocked.")
		}
		return ps.profiles.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	ps.cache.Set(ctx, p)
	return p.ViewFor(userID), nil
}

// Followers lists the followers of userID, most recent first.
func (ps *ProfileService) Followers(ctx context.Context, viewerID, userID string, page domain.PageRequest) (*domain.Page[string], error) {
	p, err := ps.visibleProfile(ctx, viewerID, userID)
	if err != nil {
		return nil, err
	}
	return pageList(p.Followers, page), nil
}

// Following lists the users userID follows, most recent first.
func (ps *ProfileService) Following(ctx context.Context, viewerID, userID string, page domain.PageRequest) (*domain.Page[string], error) {
	p, err := ps.visibleProfile(ctx, viewerID, userID)
	if err != nil {
		return nil, err
	}
	return pageList(p.Following, page), nil
}

func (ps *ProfileService) visibleProfile(ctx context.Context, viewerID, userID string) (*domain.Profile, error) {
	p, err := ps.cache.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if viewerID != "" && viewerID != userID && p.HasBlocked(viewerID) {
		return nil, errs.ErrBlocked
	}
	if !domain.CanView(p, viewerID) {
		return nil, errs.ErrPrivateContent
	}
	return p, nil
}

// pageList pages through a follow list. Ids are appended as edges are
// created, so the list is walked backwards. The cursor is the last id of
// the previous page.
func pageList(list []string, page domain.PageRequest) *domain.Page[string] {
	page = page.Normalize(domain.DefaultPageSize)
	start := len(list) - 1
	if page.Cursor != "" {
		start = -1
		for i := len(list) - 1; i >= 0; i-- {
			if list[i] == page.Cursor {
				start = i - 1
				break
			}
		}
	}
	probe := page.Probe().Limit
	items := make([]string, 0, probe)
	for i := start; i >= 0 && len(items) < probe; i-- {
		items = append(items, list[i])
	}
	return domain.NewPage(items, page.Limit, func(id string) string { return id })
}
