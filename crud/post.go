package crud

import (
	"context"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"sociapi/domain"
	"sociapi/errs"
	"sociapi/logging"
)

// PostService manages Posts and the likes and saves they receive.
// It implements the domain.PostService interface.
type PostService struct {
	posts    domain.PostStore
	comments domain.CommentStore
	hashtags domain.HashtagStore
	profiles domain.ProfileStore
	cache    domain.ProfileCache
	media    domain.MediaStore
	validate *validator.Validate
	access   *AccessGateway
}

// NewPostService returns an instance of PostService.
func NewPostService(stores Stores, cache domain.ProfileCache, media domain.MediaStore, validate *validator.Validate, access *AccessGateway) *PostService {
	return &PostService{
		posts:    stores.Posts,
		comments: stores.Comments,
		hashtags: stores.Hashtags,
		profiles: stores.Profiles,
		cache:    cache,
		media:    media,
		validate: validate,
		access:   access,
	}
}

// Ensure the PostService struct properly implements the domain.PostService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.PostService = &PostService{}

var errPostNotFound = errs.NotFound("Post")

// Create stores a new post of userID, with its attachments.
func (ps *PostService) Create(ctx context.Context, userID string, np *domain.NewPost) (*domain.Post, error) {
	np.Content = strings.TrimSpace(np.Content)
	if err := validateStruct(ps.validate, np); err != nil {
		return nil, err
	}
	if np.Content == "" && len(np.Uploads) == 0 {
		return nil, errs.Errorf(errs.EINVALID, "A post needs content or media.")
	}
	post := &domain.Post{
		ID:       domain.NewID(),
		UserID:   userID,
		Content:  np.Content,
		Hashtags: normalizeHashtags(np.Hashtags, np.Content),
		Tags:     append(np.Tags[:0:0], np.Tags...),
		Location: strings.TrimSpace(np.Location),
	}
	if len(np.Uploads) > 0 {
		if ps.media == nil {
			return nil, errs.Errorf(errs.EINTERNAL, "media storage is not configured")
		}
		media, err := ps.media.SavePostMedia(ctx, post.ID, np.Uploads)
		if err != nil {
			return nil, err
		}
		post.Media = media
	}
	if err := ps.posts.Create(ctx, post); err != nil {
		ps.dropMedia(ctx, post)
		return nil, err
	}
	if len(post.Hashtags) > 0 {
		if err := ps.hashtags.Use(ctx, post.Hashtags); err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("post_id", post.ID).Msg("counting hashtags failed")
		}
	}
	return post, nil
}

// Get returns a post if viewerID may see its owner's content.
func (ps *PostService) Get(ctx context.Context, viewerID, postID string) (*domain.Post, error) {
	post, err := ps.visiblePost(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// ByUser lists the posts of userID, newest first.
func (ps *PostService) ByUser(ctx context.Context, viewerID, userID string, page domain.PageRequest) (*domain.Page[domain.Post], error) {
	if _, err := ps.access.RequireView(ctx, userID, viewerID); err != nil {
		return nil, err
	}
	page = page.Normalize(domain.DefaultPageSize)
	posts, err := ps.posts.ByUsers(ctx, []string{userID}, page.Probe())
	if err != nil {
		return nil, err
	}
	return domain.NewPage(posts, page.Limit, domain.PostID), nil
}

// Feed lists the posts of the users viewerID follows and of viewerID, newest first.
func (ps *PostService) Feed(ctx context.Context, viewerID string, page domain.PageRequest) (*domain.Page[domain.Post], error) {
	viewer, err := ps.cache.Get(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	authors := append([]string{viewerID}, viewer.Following...)
	page = page.Normalize(domain.DefaultPageSize)
	posts, err := ps.posts.ByUsers(ctx, authors, page.Probe())
	if err != nil {
		return nil, err
	}
	return domain.NewPage(posts, page.Limit, domain.PostID), nil
}

// ByHashtag lists the posts carrying tag whose owners viewerID may see.
// Hidden posts are left out, so a page may hold fewer items than asked for.
func (ps *PostService) ByHashtag(ctx context.Context, viewerID, tag string, page domain.PageRequest) (*domain.Page[domain.Post], error) {
	tags := normalizeHashtags([]string{tag}, "")
	if len(tags) == 0 {
		return nil, errs.Errorf(errs.EINVALID, "A hashtag is required.")
	}
	page = page.Normalize(domain.DefaultPageSize)
	raw, err := ps.posts.ByHashtag(ctx, tags[0], page.Probe())
	if err != nil {
		return nil, err
	}
	more := len(raw) > page.Limit
	if more {
		raw = raw[:page.Limit]
	}
	out := &domain.Page[domain.Post]{Items: ps.filterVisible(ctx, viewerID, raw)}
	if more {
		next := raw[len(raw)-1].ID
		out.NextCursor = &next
	}
	return out, nil
}

// Saved returns the posts viewerID saved that are still visible to them.
func (ps *PostService) Saved(ctx context.Context, viewerID string) ([]domain.Post, error) {
	viewer, err := ps.cache.Get(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if len(viewer.SavedPosts) == 0 {
		return []domain.Post{}, nil
	}
	posts, err := ps.posts.ByIDs(ctx, viewer.SavedPosts)
	if err != nil {
		return nil, err
	}
	return ps.filterVisible(ctx, viewerID, posts), nil
}

// Trending returns the most used hashtags.
func (ps *PostService) Trending(ctx context.Context, limit int) ([]domain.Hashtag, error) {
	if limit <= 0 || limit > domain.MaxPageSize {
		limit = domain.DefaultPageSize
	}
	return ps.hashtags.Trending(ctx, limit)
}

// Edit changes a post of viewerID. Posts of others are reported as missing.
func (ps *PostService) Edit(ctx context.Context, viewerID, postID string, upd *domain.PostUpdate) (*domain.Post, error) {
	if err := validateStruct(ps.validate, upd); err != nil {
		return nil, err
	}
	post, err := ps.ownPost(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}
	oldContent := post.Content
	if upd.Content != nil {
		content := strings.TrimSpace(*upd.Content)
		if content == "" && len(post.Media) == 0 {
			return nil, errs.Errorf(errs.EINVALID, "A post needs content or media.")
		}
		post.Content = content
	}
	before := append([]string(nil), post.Hashtags...)
	if upd.Hashtags != nil || upd.Content != nil {
		explicit := upd.Hashtags
		if explicit == nil {
			explicit = without(before, normalizeHashtags(nil, oldContent))
		}
		post.Hashtags = normalizeHashtags(explicit, post.Content)
	}
	if upd.Location != nil {
		post.Location = strings.TrimSpace(*upd.Location)
	}
	if err := ps.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	ps.recountHashtags(ctx, post.ID, without(post.Hashtags, before), without(before, post.Hashtags))
	return post, nil
}

// recountHashtags moves usage counts after the tags of a post changed.
func (ps *PostService) recountHashtags(ctx context.Context, postID string, added, removed []string) {
	if err := ps.hashtags.Use(ctx, added); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("post_id", postID).Msg("counting hashtags failed")
	}
	if err := ps.hashtags.Release(ctx, removed); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("post_id", postID).Msg("releasing hashtags failed")
	}
}

// Delete removes a post of viewerID together with its comments and media.
func (ps *PostService) Delete(ctx context.Context, viewerID, postID string) error {
	post, err := ps.ownPost(ctx, viewerID, postID)
	if err != nil {
		return err
	}
	if err := ps.comments.DeleteByPost(ctx, post.ID); err != nil {
		return err
	}
	if err := ps.posts.Delete(ctx, post.ID); err != nil {
		return err
	}
	ps.recountHashtags(ctx, post.ID, nil, post.Hashtags)
	ps.dropMedia(ctx, post)
	return nil
}

// Like adds viewerID to the likes of a visible post.
func (ps *PostService) Like(ctx context.Context, viewerID, postID string) (*domain.Post, error) {
	if _, err := ps.visiblePost(ctx, viewerID, postID); err != nil {
		return nil, err
	}
	changed, err := ps.posts.Like(ctx, postID, viewerID)
	if err != nil {
		return nil, notFoundAs(err, errPostNotFound)
	}
	if !changed {
		return nil, errs.ErrAlreadyLiked
	}
	return ps.posts.ByID(ctx, postID)
}

// Unlike removes viewerID from the likes of a visible post.
func (ps *PostService) Unlike(ctx context.Context, viewerID, postID string) (*domain.Post, error) {
	if _, err := ps.visiblePost(ctx, viewerID, postID); err != nil {
		return nil, err
	}
	changed, err := ps.posts.Unlike(ctx, postID, viewerID)
	if err != nil {
		return nil, notFoundAs(err, errPostNotFound)
	}
	if !changed {
		return nil, errs.ErrNotLiked
	}
	return ps.posts.ByID(ctx, postID)
}

// Save bookmarks a visible post in viewerID's profile.
func (ps *PostService) Save(ctx context.Context, viewerID, postID string) error {
	if _, err := ps.visiblePost(ctx, viewerID, postID); err != nil {
		return err
	}
	return ps.updateSaved(ctx, viewerID, func(p *domain.Profile) error {
		if !p.SavePost(postID) {
			return errs.ErrAlreadySaved
		}
		return nil
	})
}

// Unsave removes a bookmark. The post need not be visible or exist anymore.
func (ps *PostService) Unsave(ctx context.Context, viewerID, postID string) error {
	return ps.updateSaved(ctx, viewerID, func(p *domain.Profile) error {
		if !p.UnsavePost(postID) {
			return errs.ErrNotSaved
		}
		return nil
	})
}

func (ps *PostService) updateSaved(ctx context.Context, viewerID string, change func(*domain.Profile) error) error {
	var p *domain.Profile
	err := retryOnConflict(ctx, func() error {
		var err error
		if p, err = ps.profiles.ByUserID(ctx, viewerID); err != nil {
			return err
		}
		if err := change(p); err != nil {
			return err
		}
		return ps.profiles.Update(ctx, p)
	})
	if err != nil {
		return err
	}
	ps.cache.Set(ctx, p)
	return nil
}

// visiblePost loads a post and checks that viewerID may see it.
func (ps *PostService) visiblePost(ctx context.Context, viewerID, postID string) (*domain.Post, error) {
	post, err := ps.posts.ByID(ctx, postID)
	if err != nil {
		return nil, notFoundAs(err, errPostNotFound)
	}
	if _, err := ps.access.RequireView(ctx, post.UserID, viewerID); err != nil {
		return nil, err
	}
	return post, nil
}

// ownPost loads a post of viewerID. Posts of other users are not found.
func (ps *PostService) ownPost(ctx context.Context, viewerID, postID string) (*domain.Post, error) {
	post, err := ps.posts.ByID(ctx, postID)
	if err != nil {
		return nil, notFoundAs(err, errPostNotFound)
	}
	if err := RequireOwner(post.UserID, viewerID, errPostNotFound); err != nil {
		return nil, err
	}
	return post, nil
}

func (ps *PostService) filterVisible(ctx context.Context, viewerID string, posts []domain.Post) []domain.Post {
	visible := make(map[string]bool)
	out := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		ok, seen := visible[p.UserID]
		if !seen {
			ok = ps.access.Visible(ctx, p.UserID, viewerID)
			visible[p.UserID] = ok
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}

func (ps *PostService) dropMedia(ctx context.Context, post *domain.Post) {
	if ps.media == nil || len(post.Media) == 0 {
		return
	}
	if err := ps.media.DeletePostMedia(ctx, post.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("post_id", post.ID).Msg("deleting post media failed")
	}
}

var hashtagRegex = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// normalizeHashtags merges the given tags with the ones written in content.
// Tags are lowercased, stripped of "#" and deduplicated, in order of appearance.
func normalizeHashtags(tags []string, content string) []string {
	for _, m := range hashtagRegex.FindAllStringSubmatch(content, -1) {
		tags = append(tags, m[1])
	}
	seen := make(map[string]bool, len(tags))
	out := []string{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(t), "#")))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// without returns the items of list that are not in drop.
func without(list, drop []string) []string {
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	out := []string{}
	for _, item := range list {
		if !skip[item] {
			out = append(out, item)
		}
	}
	return out
}
