package crud

import (
	"context"
	"strings"
	"unicode/utf8"

	"sociapi/domain"
	"sociapi/errs"
	"sociapi/logging"
)

// maxCommentLength is the maximum number of characters of a comment.
const maxCommentLength = 500

// CommentService manages Comments and replies.
// It implements the domain.CommentService interface.
type CommentService struct {
	commentValidator
}

// commentValidator runs validations on incoming Comment data.
// On success, it passes the data on to the comment store.
type commentValidator struct {
	comments domain.CommentStore
	posts    domain.PostStore
	access   *AccessGateway
}

// NewCommentService returns an instance of CommentService.
func NewCommentService(stores Stores, access *AccessGateway) *CommentService {
	return &CommentService{
		commentValidator{
			comments: stores.Comments,
			posts:    stores.Posts,
			access:   access,
		},
	}
}

// Ensure the CommentService struct properly implements the domain.CommentService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.CommentService = &CommentService{}

var (
	errCommentNotFound  = errs.NotFound("Comment")
	errCommentForbidden = errs.Errorf(errs.EFORBIDDEN, "You can only change your own comments.")
)

// commentOp carries a comment to be created through the validators.
type commentOp struct {
	viewerID string
	comment  *domain.Comment
	post     *domain.Post
}

// Create adds a comment to a visible post. A reply may answer any comment
// of the same post, replies included; it keeps the parent it was given.
func (cv *commentValidator) Create(ctx context.Context, viewerID, postID, content string, parentID *string) (*domain.Comment, error) {
	op := &commentOp{
		viewerID: viewerID,
		comment: &domain.Comment{
			PostID:   postID,
			UserID:   viewerID,
			Content:  content,
			ParentID: parentID,
		},
	}
	err := runCommentValFns(ctx, op,
		cv.contentNormalize,
		cv.contentRequired,
		cv.contentMaxLength,
		cv.postExists,
		cv.postVisible,
		cv.parentValid)
	if err != nil {
		return nil, err
	}
	op.comment.ID = domain.NewID()
	if err := cv.comments.Create(ctx, op.comment); err != nil {
		return nil, err
	}
	if err := cv.posts.AddComments(ctx, postID, 1); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("post_id", postID).Msg("counting comment failed")
	}
	return op.comment, nil
}

// ByPost lists the top-level comments of a visible post, newest first.
func (cv *commentValidator) ByPost(ctx context.Context, viewerID, postID string, page domain.PageRequest) (*domain.Page[domain.Comment], error) {
	post, err := cv.posts.ByID(ctx, postID)
	if err != nil {
		return nil, notFoundAs(err, errPostNotFound)
	}
	if _, err := cv.access.RequireView(ctx, post.UserID, viewerID); err != nil {
		return nil, err
	}
	page.Limit = domain.CommentPageSize
	comments, err := cv.comments.TopLevel(ctx, postID, page.Probe())
	if err != nil {
		return nil, err
	}
	return domain.NewPage(comments, page.Limit, domain.CommentID), nil
}

// Replies lists the replies of a comment, oldest first.
func (cv *commentValidator) Replies(ctx context.Context, viewerID, commentID string, page domain.PageRequest) (*domain.Page[domain.Comment], error) {
	parent, err := cv.visibleComment(ctx, viewerID, commentID)
	if err != nil {
		return nil, err
	}
	page.Limit = domain.CommentPageSize
	replies, err := cv.comments.Replies(ctx, parent.ID, page.Probe())
	if err != nil {
		return nil, err
	}
	return domain.NewPage(replies, page.Limit, domain.CommentID), nil
}

// Edit changes the content of a comment of viewerID.
func (cv *commentValidator) Edit(ctx context.Context, viewerID, commentID, content string) (*domain.Comment, error) {
	c, err := cv.ownComment(ctx, viewerID, commentID)
	if err != nil {
		return nil, err
	}
	op := &commentOp{viewerID: viewerID, comment: c}
	c.Content = content
	err = runCommentValFns(ctx, op,
		cv.contentNormalize,
		cv.contentRequired,
		cv.contentMaxLength)
	if err != nil {
		return nil, err
	}
	if err := cv.comments.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a comment of viewerID together with every reply below it.
func (cv *commentValidator) Delete(ctx context.Context, viewerID, commentID string) error {
	c, err := cv.ownComment(ctx, viewerID, commentID)
	if err != nil {
		return err
	}
	n, err := cv.comments.Delete(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := cv.posts.AddComments(ctx, c.PostID, -n); err != nil && errs.ErrorCode(err) != errs.ENOTFOUND {
		logging.Ctx(ctx).Error().Err(err).Str("post_id", c.PostID).Msg("counting deleted comments failed")
	}
	return nil
}

// Like adds viewerID to the likes of a visible comment.
func (cv *commentValidator) Like(ctx context.Context, viewerID, commentID string) (*domain.Comment, error) {
	if _, err := cv.visibleComment(ctx, viewerID, commentID); err != nil {
		return nil, err
	}
	changed, err := cv.comments.Like(ctx, commentID, viewerID)
	if err != nil {
		return nil, notFoundAs(err, errCommentNotFound)
	}
	if !changed {
		return nil, errs.ErrAlreadyLiked
	}
	return cv.comments.ByID(ctx, commentID)
}

// Unlike removes viewerID from the likes of a visible comment.
func (cv *commentValidator) Unlike(ctx context.Context, viewerID, commentID string) (*domain.Comment, error) {
	if _, err := cv.visibleComment(ctx, viewerID, commentID); err != nil {
		return nil, err
	}
	changed, err := cv.comments.Unlike(ctx, commentID, viewerID)
	if err != nil {
		return nil, notFoundAs(err, errCommentNotFound)
	}
	if !changed {
		return nil, errs.ErrNotLiked
	}
	return cv.comments.ByID(ctx, commentID)
}

// visibleComment loads a comment whose post's owner viewerID may see.
func (cv *commentValidator) visibleComment(ctx context.Context, viewerID, commentID string) (*domain.Comment, error) {
	c, err := cv.comments.ByID(ctx, commentID)
	if err != nil {
		return nil, notFoundAs(err, errCommentNotFound)
	}
	post, err := cv.posts.ByID(ctx, c.PostID)
	if err != nil {
		return nil, notFoundAs(err, errPostNotFound)
	}
	if _, err := cv.access.RequireView(ctx, post.UserID, viewerID); err != nil {
		return nil, err
	}
	return c, nil
}

func (cv *commentValidator) ownComment(ctx context.Context, viewerID, commentID string) (*domain.Comment, error) {
	c, err := cv.comments.ByID(ctx, commentID)
	if err != nil {
		return nil, notFoundAs(err, errCommentNotFound)
	}
	if err := RequireOwner(c.UserID, viewerID, errCommentForbidden); err != nil {
		return nil, err
	}
	return c, nil
}

// runCommentValFns runs any number of functions of type commentValFn on the passed in commentOp.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runCommentValFns(ctx context.Context, op *commentOp, fns ...commentValFn) error {
	for _, fn := range fns {
		if err := fn(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

// A commentValFn is any function that takes in a pointer to a commentOp and returns an error.
type commentValFn func(ctx context.Context, op *commentOp) error

// contentNormalize trims the whitespaces of the comment's content.
func (cv *commentValidator) contentNormalize(ctx context.Context, op *commentOp) error {
	op.comment.Content = strings.TrimSpace(op.comment.Content)
	return nil
}

func (cv *commentValidator) contentRequired(ctx context.Context, op *commentOp) error {
	if op.comment.Content == "" {
		return errs.Errorf(errs.EINVALID, "The comment must not be empty.")
	}
	return nil
}

func (cv *commentValidator) contentMaxLength(ctx context.Context, op *commentOp) error {
	if utf8.RuneCountInString(op.comment.Content) > maxCommentLength {
		return errs.Errorf(errs.EINVALID, "The comment must not have more than %d characters.", maxCommentLength)
	}
	return nil
}

func (cv *commentValidator) postExists(ctx context.Context, op *commentOp) error {
	post, err := cv.posts.ByID(ctx, op.comment.PostID)
	if err != nil {
		return notFoundAs(err, errPostNotFound)
	}
	op.post = post
	return nil
}

// postVisible makes sure the commenter may see the post's owner.
func (cv *commentValidator) postVisible(ctx context.Context, op *commentOp) error {
	_, err := cv.access.RequireView(ctx, op.post.UserID, op.viewerID)
	return err
}

// parentValid makes sure a parent comment exists on the same post.
func (cv *commentValidator) parentValid(ctx context.Context, op *commentOp) error {
	if op.comment.ParentID == nil {
		return nil
	}
	if *op.comment.ParentID == "" {
		op.comment.ParentID = nil
		return nil
	}
	parent, err := cv.comments.ByID(ctx, *op.comment.ParentID)
	if err != nil {
		return notFoundAs(err, errs.ErrInvalidParent)
	}
	if parent.PostID != op.comment.PostID {
		return errs.ErrInvalidParent
	}
	return nil
}
