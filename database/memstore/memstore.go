// Package memstore keeps every entity in process memory. It backs the
// "memory" database driver and the service tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"sociapi/domain"
	"sociapi/errs"
)

// Store holds all entities behind one lock. Values are copied on the way
// in and out so callers never share memory with the store.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*domain.User
	profiles map[string]*domain.Profile
	requests map[string]*domain.FollowRequest
	posts    map[string]*domain.Post
	comments map[string]*domain.Comment
	hashtags map[string]*domain.Hashtag
	oauths   map[string]*domain.OAuth
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]*domain.User),
		profiles: make(map[string]*domain.Profile),
		requests: make(map[string]*domain.FollowRequest),
		posts:    make(map[string]*domain.Post),
		comments: make(map[string]*domain.Comment),
		hashtags: make(map[string]*domain.Hashtag),
		oauths:   make(map[string]*domain.OAuth),
	}
}

func (s *Store) Users() domain.UserStore                  { return userStore{s} }
func (s *Store) Profiles() *ProfileStore                  { return &ProfileStore{s} }
func (s *Store) FollowRequests() domain.FollowRequestStore { return requestStore{s} }
func (s *Store) Posts() domain.PostStore                  { return postStore{s} }
func (s *Store) Comments() domain.CommentStore            { return commentStore{s} }
func (s *Store) Hashtags() domain.HashtagStore            { return hashtagStore{s} }
func (s *Store) OAuths() domain.OAuthStore                { return oauthStore{s} }

func now() time.Time {
	return time.Now().UTC()
}

// pageDesc returns up to page.Limit ids below page.Cursor, newest first.
func pageDesc(ids []string, page domain.PageRequest) []string {
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if page.Cursor != "" && id >= page.Cursor {
			continue
		}
		out = append(out, id)
		if page.Limit > 0 && len(out) == page.Limit {
			break
		}
	}
	return out
}

// pageAsc returns up to page.Limit ids above page.Cursor, oldest first.
func pageAsc(ids []string, page domain.PageRequest) []string {
	sort.Strings(ids)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if page.Cursor != "" && id <= page.Cursor {
			continue
		}
		out = append(out, id)
		if page.Limit > 0 && len(out) == page.Limit {
			break
		}
	}
	return out
}

type userStore struct{ s *Store }

func (us userStore) ByID(ctx context.Context, id string) (*domain.User, error) {
	us.s.mu.RLock()
	defer us.s.mu.RUnlock()
	u, ok := us.s.users[id]
	if !ok {
		return nil, errs.NotFound("User")
	}
	c := *u
	return &c, nil
}

func (us userStore) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	return us.find(func(u *domain.User) bool { return u.Email == email })
}

func (us userStore) ByUsername(ctx context.Context, username string) (*domain.User, error) {
	return us.find(func(u *domain.User) bool { return u.Username == username })
}

func (us userStore) ByResetHash(ctx context.Context, hash string) (*domain.User, error) {
	return us.find(func(u *domain.User) bool { return hash != "" && u.ResetHash == hash })
}

func (us userStore) find(match func(*domain.User) bool) (*domain.User, error) {
	us.s.mu.RLock()
	defer us.s.mu.RUnlock()
	for _, u := range us.s.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.NotFound("User")
}

func (us userStore) Create(ctx context.Context, user *domain.User, profile *domain.Profile) error {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()
	for _, u := range us.s.users {
		if u.Username == user.Username {
			return errs.Errorf(errs.ECONFLICT, "This username is already taken.")
		}
		if u.Email == user.Email {
			return errs.Errorf(errs.ECONFLICT, "This email address is already taken.")
		}
	}
	if user.ID == "" {
		user.ID = domain.NewID()
	}
	if profile.ID == "" {
		profile.ID = domain.NewID()
	}
	user.CreatedAt, user.UpdatedAt = now(), now()
	profile.UserID = user.ID
	profile.CreatedAt, profile.UpdatedAt = now(), now()
	u := *user
	us.s.users[u.ID] = &u
	us.s.profiles[profile.UserID] = profile.Clone()
	return nil
}

func (us userStore) Update(ctx context.Context, user *domain.User) error {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()
	if _, ok := us.s.users[user.ID]; !ok {
		return errs.NotFound("User")
	}
	user.UpdatedAt = now()
	u := *user
	us.s.users[u.ID] = &u
	return nil
}

// ProfileStore implements domain.ProfileStore and domain.GraphStore.
type ProfileStore struct{ s *Store }

var (
	_ domain.ProfileStore = &ProfileStore{}
	_ domain.GraphStore   = &ProfileStore{}
)

func (ps *ProfileStore) ByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()
	p, ok := ps.s.profiles[userID]
	if !ok {
		return nil, errs.NotFound("Profile")
	}
	return p.Clone(), nil
}

func (ps *ProfileStore) Update(ctx context.Context, p *domain.Profile) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	if err := ps.checkVersion(p); err != nil {
		return err
	}
	ps.put(p)
	return nil
}

func (ps *ProfileStore) SaveEdge(ctx context.Context, follower, followee *domain.Profile, req *domain.FollowRequest) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	if err := ps.checkVersion(follower); err != nil {
		return err
	}
	if err := ps.checkVersion(followee); err != nil {
		return err
	}
	rs := requestStore{ps.s}
	if req != nil {
		if err := rs.checkPending(req); err != nil {
			return err
		}
	}
	ps.put(follower)
	ps.put(followee)
	if req != nil {
		rs.put(req)
	}
	return nil
}

func (ps *ProfileStore) checkVersion(p *domain.Profile) error {
	stored, ok := ps.s.profiles[p.UserID]
	if !ok {
		return errs.NotFound("Profile")
	}
	if stored.Version != p.Version {
		return errs.ErrConcurrentUpdate
	}
	return nil
}

// put stores p with a bumped version. The caller holds the lock.
func (ps *ProfileStore) put(p *domain.Profile) {
	p.Version++
	p.UpdatedAt = now()
	ps.s.profiles[p.UserID] = p.Clone()
}

type requestStore struct{ s *Store }

func (rs requestStore) ByID(ctx context.Context, id string) (*domain.FollowRequest, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()
	r, ok := rs.s.requests[id]
	if !ok {
		return nil, errs.NotFound("Follow request")
	}
	c := *r
	return &c, nil
}

func (rs requestStore) Pending(ctx context.Context, fromID, toID string) (*domain.FollowRequest, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()
	if r := rs.pending(fromID, toID); r != nil {
		c := *r
		return &c, nil
	}
	return nil, errs.NotFound("Follow request")
}

func (rs requestStore) pending(fromID, toID string) *domain.FollowRequest {
	for _, r := range rs.s.requests {
		if r.FromID == fromID && r.ToID == toID && r.IsPending() {
			return r
		}
	}
	return nil
}

func (rs requestStore) Create(ctx context.Context, req *domain.FollowRequest) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	if req.IsPending() && rs.pending(req.FromID, req.ToID) != nil {
		return errs.ErrDuplicateRequest
	}
	if req.ID == "" {
		req.ID = domain.NewID()
	}
	req.CreatedAt, req.UpdatedAt = now(), now()
	c := *req
	rs.s.requests[c.ID] = &c
	return nil
}

func (rs requestStore) Resolve(ctx context.Context, req *domain.FollowRequest) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()
	if err := rs.checkPending(req); err != nil {
		return err
	}
	rs.put(req)
	return nil
}

func (rs requestStore) checkPending(req *domain.FollowRequest) error {
	stored, ok := rs.s.requests[req.ID]
	if !ok {
		return errs.NotFound("Follow request")
	}
	if !stored.IsPending() {
		return errs.ErrInvalidState
	}
	return nil
}

func (rs requestStore) put(req *domain.FollowRequest) {
	req.UpdatedAt = now()
	r := *req
	rs.s.requests[r.ID] = &r
}

func (rs requestStore) PendingTo(ctx context.Context, toID string, page domain.PageRequest) ([]domain.FollowRequest, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()
	var ids []string
	for id, r := range rs.s.requests {
		if r.ToID == toID && r.IsPending() {
			ids = append(ids, id)
		}
	}
	out := []domain.FollowRequest{}
	for _, id := range pageDesc(ids, page) {
		out = append(out, *rs.s.requests[id])
	}
	return out, nil
}

func (rs requestStore) PendingTargets(ctx context.Context) ([]string, error) {
	rs.s.mu.RLock()
	defer rs.s.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for _, r := range rs.s.requests {
		if r.IsPending() && !seen[r.ToID] {
			seen[r.ToID] = true
			ids = append(ids, r.ToID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type postStore struct{ s *Store }

func clonePost(p *domain.Post) domain.Post {
	c := *p
	c.Media = append([]domain.Media(nil), p.Media...)
	c.Hashtags = append(c.Hashtags[:0:0], p.Hashtags...)
	c.Tags = append(c.Tags[:0:0], p.Tags...)
	c.Likes = append(c.Likes[:0:0], p.Likes...)
	return c
}

func (ps postStore) ByID(ctx context.Context, id string) (*domain.Post, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()
	p, ok := ps.s.posts[id]
	if !ok {
		return nil, errs.NotFound("Post")
	}
	c := clonePost(p)
	return &c, nil
}

func (ps postStore) ByIDs(ctx context.Context, ids []string) ([]domain.Post, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()
	out := []domain.Post{}
	for _, id := range pageDesc(append([]string(nil), ids...), domain.PageRequest{}) {
		if p, ok := ps.s.posts[id]; ok {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (ps postStore) Create(ctx context.Context, post *domain.Post) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	if post.ID == "" {
		post.ID = domain.NewID()
	}
	post.CreatedAt, post.UpdatedAt = now(), now()
	c := clonePost(post)
	ps.s.posts[c.ID] = &c
	return nil
}

func (ps postStore) Update(ctx context.Context, post *domain.Post) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	if _, ok := ps.s.posts[post.ID]; !ok {
		return errs.NotFound("Post")
	}
	post.UpdatedAt = now()
	c := clonePost(post)
	ps.s.posts[c.ID] = &c
	return nil
}

func (ps postStore) Delete(ctx context.Context, id string) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	delete(ps.s.posts, id)
	return nil
}

func (ps postStore) ByUsers(ctx context.Context, userIDs []string, page domain.PageRequest) ([]domain.Post, error) {
	owners := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		owners[id] = true
	}
	return ps.list(page, func(p *domain.Post) bool { return owners[p.UserID] })
}

func (ps postStore) ByHashtag(ctx context.Context, tag string, page domain.PageRequest) ([]domain.Post, error) {
	tag = strings.ToLower(tag)
	return ps.list(page, func(p *domain.Post) bool {
		for _, h := range p.Hashtags {
			if h == tag {
				return true
			}
		}
		return false
	})
}

func (ps postStore) list(page domain.PageRequest, match func(*domain.Post) bool) ([]domain.Post, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()
	var ids []string
	for id, p := range ps.s.posts {
		if match(p) {
			ids = append(ids, id)
		}
	}
	out := []domain.Post{}
	for _, id := range pageDesc(ids, page) {
		out = append(out, clonePost(ps.s.posts[id]))
	}
	return out, nil
}

func (ps postStore) Like(ctx context.Context, postID, userID string) (bool, error) {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	p, ok := ps.s.posts[postID]
	if !ok {
		return false, errs.NotFound("Post")
	}
	if p.LikedBy(userID) {
		return false, nil
	}
	p.Likes = append(p.Likes, userID)
	p.LikesCount = len(p.Likes)
	return true, nil
}

func (ps postStore) Unlike(ctx context.Context, postID, userID string) (bool, error) {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	p, ok := ps.s.posts[postID]
	if !ok {
		return false, errs.NotFound("Post")
	}
	if !p.LikedBy(userID) {
		return false, nil
	}
	likes := p.Likes[:0:0]
	for _, id := range p.Likes {
		if id != userID {
			likes = append(likes, id)
		}
	}
	p.Likes = likes
	p.LikesCount = len(likes)
	return true, nil
}

func (ps postStore) AddComments(ctx context.Context, postID string, delta int) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	p, ok := ps.s.posts[postID]
	if !ok {
		return errs.NotFound("Post")
	}
	p.CommentsCount += delta
	if p.CommentsCount < 0 {
		p.CommentsCount = 0
	}
	return nil
}

type commentStore struct{ s *Store }

func cloneComment(c *domain.Comment) domain.Comment {
	out := *c
	out.Likes = append(c.Likes[:0:0], c.Likes...)
	if c.ParentID != nil {
		parent := *c.ParentID
		out.ParentID = &parent
	}
	return out
}

func (cs commentStore) ByID(ctx context.Context, id string) (*domain.Comment, error) {
	cs.s.mu.RLock()
	defer cs.s.mu.RUnlock()
	c, ok := cs.s.comments[id]
	if !ok {
		return nil, errs.NotFound("Comment")
	}
	out := cloneComment(c)
	return &out, nil
}

func (cs commentStore) Create(ctx context.Context, c *domain.Comment) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	if c.ID == "" {
		c.ID = domain.NewID()
	}
	c.CreatedAt, c.UpdatedAt = now(), now()
	stored := cloneComment(c)
	cs.s.comments[c.ID] = &stored
	return nil
}

func (cs commentStore) Update(ctx context.Context, c *domain.Comment) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	if _, ok := cs.s.comments[c.ID]; !ok {
		return errs.NotFound("Comment")
	}
	c.UpdatedAt = now()
	stored := cloneComment(c)
	cs.s.comments[c.ID] = &stored
	return nil
}

func (cs commentStore) Delete(ctx context.Context, id string) (int, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	if _, ok := cs.s.comments[id]; !ok {
		return 0, errs.NotFound("Comment")
	}
	n := 0
	queue := []string{id}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		delete(cs.s.comments, parent)
		n++
		for cid, c := range cs.s.comments {
			if c.ParentID != nil && *c.ParentID == parent {
				queue = append(queue, cid)
			}
		}
	}
	return n, nil
}

func (cs commentStore) DeleteByPost(ctx context.Context, postID string) error {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	for id, c := range cs.s.comments {
		if c.PostID == postID {
			delete(cs.s.comments, id)
		}
	}
	return nil
}

func (cs commentStore) TopLevel(ctx context.Context, postID string, page domain.PageRequest) ([]domain.Comment, error) {
	cs.s.mu.RLock()
	defer cs.s.mu.RUnlock()
	var ids []string
	for id, c := range cs.s.comments {
		if c.PostID == postID && c.ParentID == nil {
			ids = append(ids, id)
		}
	}
	out := []domain.Comment{}
	for _, id := range pageDesc(ids, page) {
		out = append(out, cloneComment(cs.s.comments[id]))
	}
	return out, nil
}

func (cs commentStore) Replies(ctx context.Context, parentID string, page domain.PageRequest) ([]domain.Comment, error) {
	cs.s.mu.RLock()
	defer cs.s.mu.RUnlock()
	var ids []string
	for id, c := range cs.s.comments {
		if c.ParentID != nil && *c.ParentID == parentID {
			ids = append(ids, id)
		}
	}
	out := []domain.Comment{}
	for _, id := range pageAsc(ids, page) {
		out = append(out, cloneComment(cs.s.comments[id]))
	}
	return out, nil
}

func (cs commentStore) Like(ctx context.Context, commentID, userID string) (bool, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	c, ok := cs.s.comments[commentID]
	if !ok {
		return false, errs.NotFound("Comment")
	}
	for _, id := range c.Likes {
		if id == userID {
			return false, nil
		}
	}
	c.Likes = append(c.Likes, userID)
	c.LikesCount = len(c.Likes)
	return true, nil
}

func (cs commentStore) Unlike(ctx context.Context, commentID, userID string) (bool, error) {
	cs.s.mu.Lock()
	defer cs.s.mu.Unlock()
	c, ok := cs.s.comments[commentID]
	if !ok {
		return false, errs.NotFound("Comment")
	}
	likes := c.Likes[:0:0]
	for _, id := range c.Likes {
		if id != userID {
			likes = append(likes, id)
		}
	}
	if len(likes) == len(c.Likes) {
		return false, nil
	}
	c.Likes = likes
	c.LikesCount = len(likes)
	return true, nil
}

type hashtagStore struct{ s *Store }

func (hs hashtagStore) Use(ctx context.Context, names []string) error {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	for _, name := range names {
		h, ok := hs.s.hashtags[name]
		if !ok {
			h = &domain.Hashtag{Name: name}
			hs.s.hashtags[name] = h
		}
		h.UsageCount++
	}
	return nil
}

func (hs hashtagStore) Release(ctx context.Context, names []string) error {
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	for _, name := range names {
		if h, ok := hs.s.hashtags[name]; ok && h.UsageCount > 0 {
			h.UsageCount--
		}
	}
	return nil
}

func (hs hashtagStore) Trending(ctx context.Context, limit int) ([]domain.Hashtag, error) {
	hs.s.mu.RLock()
	defer hs.s.mu.RUnlock()
	out := make([]domain.Hashtag, 0, len(hs.s.hashtags))
	for _, h := range hs.s.hashtags {
		if h.UsageCount > 0 {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type oauthStore struct{ s *Store }

func (oa oauthStore) ByProviderUserID(ctx context.Context, provider, providerUserID string) (*domain.OAuth, error) {
	oa.s.mu.RLock()
	defer oa.s.mu.RUnlock()
	for _, o := range oa.s.oauths {
		if o.Provider == provider && o.ProviderUserID == providerUserID {
			c := *o
			return &c, nil
		}
	}
	return nil, errs.NotFound("OAuth link")
}

func (oa oauthStore) Create(ctx context.Context, oauth *domain.OAuth) error {
	oa.s.mu.Lock()
	defer oa.s.mu.Unlock()
	for _, o := range oa.s.oauths {
		if o.Provider == oauth.Provider && o.ProviderUserID == oauth.ProviderUserID {
			return errs.Errorf(errs.ECONFLICT, "This %s account is already linked.", oauth.Provider)
		}
	}
	if oauth.ID == "" {
		oauth.ID = domain.NewID()
	}
	oauth.CreatedAt, oauth.UpdatedAt = now(), now()
	c := *oauth
	oa.s.oauths[c.ID] = &c
	return nil
}

func (oa oauthStore) Update(ctx context.Context, oauth *domain.OAuth) error {
	oa.s.mu.Lock()
	defer oa.s.mu.Unlock()
	if _, ok := oa.s.oauths[oauth.ID]; !ok {
		return errs.NotFound("OAuth link")
	}
	oauth.UpdatedAt = now()
	c := *oauth
	oa.s.oauths[c.ID] = &c
	return nil
}
