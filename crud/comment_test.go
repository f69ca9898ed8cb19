package crud

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sociapi/domain"
	"sociapi/errs"
)

func TestCommentThreads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice", false)
	b := f.user(t, "bob", false)
	post := f.post(t, a, "hello")

	top, err := f.svc.Comment.Create(ctx, b, post.ID, "  first!  ", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if top.Content != "first!" || top.IsReply() {
		t.Fatalf("top = %+v", top)
	}
	reply, err := f.svc.Comment.Create(ctx, a, post.ID, "thanks", &top.ID)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	nested, err := f.svc.Comment.Create(ctx, b, post.ID, "welcome", &reply.ID)
	if err != nil {
		t.Fatalf("nested reply: %v", err)
	}
	if nested.ParentID == nil || *nested.ParentID != reply.ID {
		t.Fatalf("nested reply parent = %v, want %s", nested.ParentID, reply.ID)
	}

	page, err := f.svc.Comment.ByPost(ctx, b, post.ID, domain.PageRequest{})
	if err != nil {
		t.Fatalf("ByPost: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != top.ID {
		t.Fatalf("top-level = %+v", page.Items)
	}
	replies, err := f.svc.Comment.Replies(ctx, b, top.ID, domain.PageRequest{})
	if err != nil {
		t.Fatalf("Replies: %v", err)
	}
	if len(replies.Items) != 1 || replies.Items[0].ID != reply.ID {
		t.Fatalf("replies of the top-level comment = %+v", replies.Items)
	}
	replies, err = f.svc.Comment.Replies(ctx, b, reply.ID, domain.PageRequest{})
	if err != nil {
		t.Fatalf("Replies: %v", err)
	}
	if len(replies.Items) != 1 || replies.Items[0].ID != nested.ID {
		t.Fatalf("replies of the reply = %+v", replies.Items)
	}
	if p, _ := f.st.Posts().ByID(ctx, post.ID); p.CommentsCount != 3 {
		t.Fatalf("comments_count = %d, want 3", p.CommentsCount)
	}

	if err := f.svc.Comment.Delete(ctx, a, top.ID); errs.ErrorCode(err) != errs.EFORBIDDEN {
		t.Fatalf("stranger Delete err = %v, want forbidden", err)
	}
	if err := f.svc.Comment.Delete(ctx, b, top.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if p, _ := f.st.Posts().ByID(ctx, post.ID); p.CommentsCount != 0 {
		t.Fatalf("comments_count after cascade = %d, want 0", p.CommentsCount)
	}
	if _, err := f.st.Comments().ByID(ctx, nested.ID); errs.ErrorCode(err) != errs.ENOTFOUND {
		t.Fatalf("nested reply survived the cascade: %v", err)
	}
}

func TestCommentReplyOrderAndPartialDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice", false)
	post := f.post(t, a, "hello")

	top, err := f.svc.Comment.Create(ctx, a, post.ID, "top", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	var replies []*domain.Comment
	for _, text := range []string{"one", "two", "three"} {
		r, err := f.svc.Comment.Create(ctx, a, post.ID, text, &top.ID)
		if err != nil {
			t.Fatalf("reply %s: %v", text, err)
		}
		replies = append(replies, r)
	}
	deep, err := f.svc.Comment.Create(ctx, a, post.ID, "deep", &replies[1].ID)
	if err != nil {
		t.Fatalf("deep reply: %v", err)
	}

	page, err := f.svc.Comment.Replies(ctx, a, top.ID, domain.PageRequest{})
	if err != nil {
		t.Fatalf("Replies: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("got %d replies, want 3", len(page.Items))
	}
	for i, r := range replies {
		if page.Items[i].ID != r.ID {
			t.Fatalf("reply %d = %s, want %s oldest first", i, page.Items[i].ID, r.ID)
		}
	}

	// Deleting a reply takes its own replies along, not its siblings.
	if err := f.svc.Comment.Delete(ctx, a, replies[1].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if p, _ := f.st.Posts().ByID(ctx, post.ID); p.CommentsCount != 3 {
		t.Fatalf("comments_count = %d, want 3", p.CommentsCount)
	}
	if _, err := f.st.Comments().ByID(ctx, deep.ID); errs.ErrorCode(err) != errs.ENOTFOUND {
		t.Fatalf("deep reply survived: %v", err)
	}
	for _, id := range []string{top.ID, replies[0].ID, replies[2].ID} {
		if _, err := f.st.Comments().ByID(ctx, id); err != nil {
			t.Fatalf("comment %s lost: %v", id, err)
		}
	}
}

func TestCommentValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice", false)
	c := f.user(t, "carol", true)
	post := f.post(t, a, "hello")
	other := f.post(t, a, "another")
	foreign, err := f.svc.Comment.Create(ctx, a, other.ID, "elsewhere", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	private := f.post(t, c, "secret")
	missing := domain.NewID()

	tests := []struct {
		name    string
		postID  string
		content string
		parent  *string
		code    string
	}{
		{"empty", post.ID, "   ", nil, errs.EINVALID},
		{"too long", post.ID, strings.Repeat("x", 501), nil, errs.EINVALID},
		{"missing post", missing, "hi", nil, errs.ENOTFOUND},
		{"private post", private.ID, "hi", nil, errs.EFORBIDDEN},
		{"missing parent", post.ID, "hi", &missing, errs.EPARENT},
		{"parent on other post", post.ID, "hi", &foreign.ID, errs.EPARENT},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Comment.Create(ctx, a, tt.postID, tt.content, tt.parent)
			if errs.ErrorCode(err) != tt.code {
				t.Fatalf("err = %v, want code %s", err, tt.code)
			}
		})
	}
	if _, err := f.svc.Comment.Create(ctx, a, post.ID, strings.Repeat("x", 500), nil); err != nil {
		t.Fatalf("500 characters: %v", err)
	}
}

func TestCommentEditAndLike(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.user(t, "alice", false)
	b := f.user(t, "bob", false)
	post := f.post(t, a, "hello")
	cm, err := f.svc.Comment.Create(ctx, b, post.ID, "typo", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := f.svc.Comment.Edit(ctx, a, cm.ID, "hijacked"); errs.ErrorCode(err) != errs.EFORBIDDEN {
		t.Fatalf("stranger Edit err = %v", err)
	}
	edited, err := f.svc.Comment.Edit(ctx, b, cm.ID, " fixed ")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.Content != "fixed" {
		t.Fatalf("content = %q", edited.Content)
	}

	liked, err := f.svc.Comment.Like(ctx, a, cm.ID)
	if err != nil {
		t.Fatalf("Like: %v", err)
	}
	if liked.LikesCount != 1 {
		t.Fatalf("likes_count = %d", liked.LikesCount)
	}
	if _, err := f.svc.Comment.Like(ctx, a, cm.ID); !errors.Is(err, errs.ErrAlreadyLiked) {
		t.Fatalf("second Like err = %v", err)
	}
	if _, err := f.svc.Comment.Unlike(ctx, a, cm.ID); err != nil {
		t.Fatalf("Unlike: %v", err)
	}
	if _, err := f.svc.Comment.Unlike(ctx, a, cm.ID); !errors.Is(err, errs.ErrNotLiked) {
		t.Fatalf("second Unlike err = %v", err)
	}
}
