package crud

import (
	"context"
	"errors"
	"testing"

	"sociapi/errs"
)

func TestAccessGateway(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, "owner", true)
	follower := f.user(t, "follower", false)
	stranger := f.user(t, "stranger", false)

	out, err := f.svc.Follow.Follow(ctx, follower, owner)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if _, err := f.svc.FollowRequest.Respond(ctx, out.Request.ID, owner, "accept"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	g := f.svc.Access
	if _, err := g.RequireView(ctx, owner, owner); err != nil {
		t.Fatalf("owner should see own content: %v", err)
	}
	if _, err := g.RequireView(ctx, owner, follower); err != nil {
		t.Fatalf("accepted follower should see content: %v", err)
	}
	if _, err := g.RequireView(ctx, owner, stranger); !errors.Is(err, errs.ErrPrivateContent) {
		t.Fatalf("stranger: got %v, want ErrPrivateContent", err)
	}
	if g.Visible(ctx, owner, "") {
		t.Fatalf("anonymous viewers must not see private content")
	}
	if !g.Visible(ctx, stranger, "") {
		t.Fatalf("anonymous viewers see public content")
	}
	if _, err := g.RequireView(ctx, "missing", follower); errs.ErrorCode(err) != errs.ENOTFOUND {
		t.Fatalf("missing owner: got %v, want not found", err)
	}

	if _, err := f.svc.Profile.Block(ctx, stranger, follower); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if _, err := g.RequireView(ctx, stranger, follower); !errors.Is(err, errs.ErrBlocked) {
		t.Fatalf("blocked viewer: got %v, want ErrBlocked", err)
	}
}

func TestRequireOwner(t *testing.T) {
	denied := errs.Errorf(errs.EFORBIDDEN, "no")
	if err := RequireOwner("a", "a", denied); err != nil {
		t.Fatalf("owner denied: %v", err)
	}
	if err := RequireOwner("a", "b", denied); err != denied {
		t.Fatalf("non-owner: got %v", err)
	}
	if err := RequireOwner("a", "", denied); err != denied {
		t.Fatalf("anonymous: got %v", err)
	}
}
