package worker

import (
	"context"

	"github.com/xxxsen/persona/internal/model"
	"github.com/xxxsen/persona/internal/session"
)

// PlatformAPI is the token-explicit platform surface the worker drives.
// *api.Client satisfies it; tests substitute a fake.
type PlatformAPI interface {
	ListUsers(ctx context.Context, token string, offset, limit int) ([]model.User, error)
	GetUser(ctx context.Context, token, userID string) (*model.User, error)
	GetInterest(ctx context.Context, token, userID string) (*model.Interest, error)
	SaveInterest(ctx context.Context, token string, interest *model.Interest) error
	TimelinePosts(ctx context.Context, token string, limit int) ([]model.Post, error)
	LatestPosts(ctx context.Context, token string, limit int) ([]model.Post, error)
	ListNotifications(ctx context.Context, token string, limit int) ([]model.Notification, error)
	ListFollowers(ctx context.Context, token, userID string, limit int) ([]model.User, error)
	ListUserPosts(ctx context.Context, token, userID string, limit int) ([]model.Post, error)
	GetPost(ctx context.Context, token, postID string) (*model.Post, error)
	GetPostSummary(ctx context.Context, token, postID string) (*model.PostSummary, error)
	HasPostImpression(ctx context.Context, token, userID, postID string) (bool, error)
	SavePostImpression(ctx context.Context, token string, imp *model.Impression) error
	GetPeerImpression(ctx context.Context, token, userID, peerID string) (*model.Impression, error)
	SavePeerImpression(ctx context.Context, token string, imp *model.Impression) error
	ListOwnImpressions(ctx context.Context, token, userID string, limit int) ([]model.Impression, error)
	LikePost(ctx context.Context, token, postID string) error
	CreatePost(ctx context.Context, token string, post *model.Post) (*model.Post, error)
}

// boundAPI routes every platform call through a session handle, so token
// renewal and the retry-once rule apply uniformly. It also satisfies
// ranker.ContentAPI for the impersonated user.
type boundAPI struct {
	api  PlatformAPI
	sess *session.Bound
}

func newBoundAPI(api PlatformAPI, sess *session.Bound) *boundAPI {
	return &boundAPI{api: api, sess: sess}
}

func (b *boundAPI) TimelinePosts(ctx context.Context, limit int) (posts []model.Post, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		posts, ierr = b.api.TimelinePosts(ctx, token, limit)
		return
	})
	return
}

func (b *boundAPI) LatestPosts(ctx context.Context, limit int) (posts []model.Post, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		posts, ierr = b.api.LatestPosts(ctx, token, limit)
		return
	})
	return
}

func (b *boundAPI) ListNotifications(ctx context.Context, limit int) (items []model.Notification, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		items, ierr = b.api.ListNotifications(ctx, token, limit)
		return
	})
	return
}

func (b *boundAPI) ListFollowers(ctx context.Context, userID string, limit int) (items []model.User, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		items, ierr = b.api.ListFollowers(ctx, token, userID, limit)
		return
	})
	return
}

func (b *boundAPI) ListUserPosts(ctx context.Context, userID string, limit int) (posts []model.Post, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		posts, ierr = b.api.ListUserPosts(ctx, token, userID, limit)
		return
	})
	return
}

func (b *boundAPI) GetPost(ctx context.Context, postID string) (post *model.Post, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		post, ierr = b.api.GetPost(ctx, token, postID)
		return
	})
	return
}

func (b *boundAPI) GetPostSummary(ctx context.Context, postID string) (summary *model.PostSummary, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		summary, ierr = b.api.GetPostSummary(ctx, token, postID)
		return
	})
	return
}

func (b *boundAPI) HasPostImpression(ctx context.Context, postID string) (exists bool, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		exists, ierr = b.api.HasPostImpression(ctx, token, b.sess.UserID(), postID)
		return
	})
	return
}

func (b *boundAPI) GetUser(ctx context.Context, userID string) (user *model.User, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		user, ierr = b.api.GetUser(ctx, token, userID)
		return
	})
	return
}

func (b *boundAPI) GetInterest(ctx context.Context, userID string) (interest *model.Interest, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		interest, ierr = b.api.GetInterest(ctx, token, userID)
		return
	})
	return
}

func (b *boundAPI) SaveInterest(ctx context.Context, interest *model.Interest) error {
	return b.sess.Do(ctx, func(ctx context.Context, token string) error {
		return b.api.SaveInterest(ctx, token, interest)
	})
}

func (b *boundAPI) SavePostImpression(ctx context.Context, imp *model.Impression) error {
	return b.sess.Do(ctx, func(ctx context.Context, token string) error {
		return b.api.SavePostImpression(ctx, token, imp)
	})
}

func (b *boundAPI) GetPeerImpression(ctx context.Context, userID, peerID string) (imp *model.Impression, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		imp, ierr = b.api.GetPeerImpression(ctx, token, userID, peerID)
		return
	})
	return
}

func (b *boundAPI) SavePeerImpression(ctx context.Context, imp *model.Impression) error {
	return b.sess.Do(ctx, func(ctx context.Context, token string) error {
		return b.api.SavePeerImpression(ctx, token, imp)
	})
}

func (b *boundAPI) ListOwnImpressions(ctx context.Context, userID string, limit int) (items []model.Impression, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		items, ierr = b.api.ListOwnImpressions(ctx, token, userID, limit)
		return
	})
	return
}

func (b *boundAPI) LikePost(ctx context.Context, postID string) error {
	return b.sess.Do(ctx, func(ctx context.Context, token string) error {
		return b.api.LikePost(ctx, token, postID)
	})
}

func (b *boundAPI) CreatePost(ctx context.Context, post *model.Post) (created *model.Post, err error) {
	err = b.sess.Do(ctx, func(ctx context.Context, token string) (ierr error) {
		created, ierr = b.api.CreatePost(ctx, token, post)
		return
	})
	return
}
