package ranker

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/persona/internal/model"
	"github.com/xxxsen/persona/internal/vector"
)

type constRand struct{}

func (constRand) Float64() float64 { return 0.5 }
func (constRand) Intn(n int) int   { return 0 }

type fakeContentAPI struct {
	timeline      []model.Post
	latest        []model.Post
	notifications []model.Notification
	followers     []model.User
	userPosts     map[string][]model.Post
	posts         map[string]*model.Post
	summaries     map[string]*model.PostSummary
	seen          map[string]bool

	followersErr error
	probeErr     map[string]error
}

func (f *fakeContentAPI) TimelinePosts(ctx context.Context, limit int) ([]model.Post, error) {
	return f.timeline, nil
}

func (f *fakeContentAPI) LatestPosts(ctx context.Context, limit int) ([]model.Post, error) {
	return f.latest, nil
}

func (f *fakeContentAPI) ListNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	return f.notifications, nil
}

func (f *fakeContentAPI) ListFollowers(ctx context.Context, userID string, limit int) ([]model.User, error) {
	if f.followersErr != nil {
		return nil, f.followersErr
	}
	return f.followers, nil
}

func (f *fakeContentAPI) ListUserPosts(ctx context.Context, userID string, limit int) ([]model.Post, error) {
	return f.userPosts[userID], nil
}

func (f *fakeContentAPI) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	p, ok := f.posts[postID]
	if !ok {
		return nil, fmt.Errorf("post not found: %s", postID)
	}
	return p, nil
}

func (f *fakeContentAPI) GetPostSummary(ctx context.Context, postID string) (*model.PostSummary, error) {
	s, ok := f.summaries[postID]
	if !ok {
		return nil, fmt.Errorf("summary not found: %s", postID)
	}
	return s, nil
}

func (f *fakeContentAPI) HasPostImpression(ctx context.Context, postID string) (bool, error) {
	if err := f.probeErr[postID]; err != nil {
		return false, err
	}
	return f.seen[postID], nil
}

func newFakeAPI() *fakeContentAPI {
	return &fakeContentAPI{
		userPosts: map[string][]model.Post{},
		posts:     map[string]*model.Post{},
		summaries: map[string]*model.PostSummary{},
		seen:      map[string]bool{},
		probeErr:  map[string]error{},
	}
}

func (f *fakeContentAPI) addPost(p model.Post) {
	cp := p
	f.posts[p.ID] = &cp
	f.summaries[p.ID] = &model.PostSummary{PostID: p.ID, Summary: "s"}
}

func testUser() *model.User {
	return &model.User{ID: "u1", Nickname: "alice", Language: "ja"}
}

func newTestRanker(t *testing.T, cfg Config) *Ranker {
	codec, err := vector.NewCodec(vector.DefaultGamma)
	require.NoError(t, err)
	return New(codec, constRand{}, cfg)
}

func TestLocaleWeight(t *testing.T) {
	require.Equal(t, 1.0, localeWeight("ja", "ja"))
	require.Equal(t, 1.0, localeWeight("en-US", "en-GB"))
	require.Equal(t, localeWeightEnglish, localeWeight("en", "ja"))
	require.Equal(t, localeWeightOther, localeWeight("fr", "ja"))
	require.Equal(t, localeWeightOther, localeWeight("", "ja"))
}

func TestBuildReadingListExcludesOwnAndSeen(t *testing.T) {
	api := newFakeAPI()
	api.addPost(model.Post{ID: "p-own", UserID: "u1", Language: "ja"})
	api.addPost(model.Post{ID: "p-seen", UserID: "u2", Language: "ja"})
	api.addPost(model.Post{ID: "p-new", UserID: "u3", Language: "ja"})
	api.timeline = []model.Post{*api.posts["p-own"], *api.posts["p-seen"], *api.posts["p-new"]}
	api.seen["p-seen"] = true

	r := newTestRanker(t, Config{})
	items, err := r.BuildReadingList(context.Background(), api, testUser(), nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "p-new", items[0].Post.ID)
	require.Zero(t, items[0].Similarity)
}

func TestDedupKeepsMaxWeight(t *testing.T) {
	api := newFakeAPI()
	// p-both sits in timeline (weight 1.0) and latest (0.5); the merged
	// weight must be the max, so it outranks a latest-only sibling under
	// a constant random draw.
	api.addPost(model.Post{ID: "p-both", UserID: "u2", Language: "ja"})
	api.addPost(model.Post{ID: "p-late", UserID: "u3", Language: "ja"})
	api.timeline = []model.Post{*api.posts["p-both"]}
	api.latest = []model.Post{*api.posts["p-both"], *api.posts["p-late"]}

	r := newTestRanker(t, Config{ReadLimit: 1})
	items, err := r.BuildReadingList(context.Background(), api, testUser(), nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "p-both", items[0].Post.ID)
}

func TestReplyPenaltyAndLocaleBias(t *testing.T) {
	api := newFakeAPI()
	api.addPost(model.Post{ID: "p-plain", UserID: "u2", Language: "ja"})
	api.addPost(model.Post{ID: "p-reply", UserID: "u3", Language: "ja", ReplyToPostID: "x", ReplyToUserID: "u9"})
	api.addPost(model.Post{ID: "p-forme", UserID: "u4", Language: "ja", ReplyToPostID: "y", ReplyToUserID: "u1"})
	api.addPost(model.Post{ID: "p-other", UserID: "u5", Language: "fr"})
	api.timeline = []model.Post{*api.posts["p-plain"], *api.posts["p-reply"], *api.posts["p-forme"], *api.posts["p-other"]}

	r := newTestRanker(t, Config{})
	items, err := r.BuildReadingList(context.Background(), api, testUser(), nil)
	require.NoError(t, err)
	require.Len(t, items, 4)
	// Constant draw makes score proportional to weight: full-weight posts
	// first, then the penalized stranger reply, then the foreign-locale one.
	require.Equal(t, "p-reply", items[2].Post.ID)
	require.Equal(t, "p-other", items[3].Post.ID)
	first := map[string]bool{items[0].Post.ID: true, items[1].Post.ID: true}
	require.True(t, first["p-plain"])
	require.True(t, first["p-forme"])
}

func TestNotificationSourcesSkipOwnActivity(t *testing.T) {
	api := newFakeAPI()
	api.addPost(model.Post{ID: "p-reply", UserID: "u2", Language: "ja"})
	api.addPost(model.Post{ID: "p-ment", UserID: "u3", Language: "ja"})
	api.notifications = []model.Notification{
		{ID: "n1", UserID: "u1", ActorID: "u2", PostID: "p-reply", Type: model.NotificationTypeReply},
		{ID: "n2", UserID: "u1", ActorID: "u3", PostID: "p-ment", Type: model.NotificationTypeMention},
		{ID: "n3", UserID: "u1", ActorID: "u1", PostID: "p-self", Type: model.NotificationTypeReply},
		{ID: "n4", UserID: "u1", ActorID: "u4", PostID: "", Type: model.NotificationTypeReply},
	}

	r := newTestRanker(t, Config{})
	items, err := r.BuildReadingList(context.Background(), api, testUser(), nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "p-reply", items[0].Post.ID)
	require.Equal(t, "p-ment", items[1].Post.ID)
}

func TestDiversityCapPerAuthor(t *testing.T) {
	api := newFakeAPI()
	for a := 0; a < 4; a++ {
		for i := 0; i < 3; i++ {
			id := fmt.Sprintf("p-%d-%d", a, i)
			api.addPost(model.Post{ID: id, UserID: fmt.Sprintf("author-%d", a), Language: "ja"})
			api.timeline = append(api.timeline, *api.posts[id])
		}
	}

	r := newTestRanker(t, Config{})
	items, err := r.BuildReadingList(context.Background(), api, testUser(), nil)
	require.NoError(t, err)
	require.Len(t, items, 8)
	counts := map[string]int{}
	for _, it := range items {
		counts[it.Post.UserID]++
	}
	for author, n := range counts {
		require.LessOrEqual(t, n, 2, "author %s over the cap", author)
	}
}

func TestCandidateCapAndReadLimit(t *testing.T) {
	api := newFakeAPI()
	for i := 0; i < 20; i++ {
		api.addPost(model.Post{ID: fmt.Sprintf("p-%02d", i), UserID: fmt.Sprintf("u-%02d", i+2), Language: "ja"})
		api.timeline = append(api.timeline, *api.posts[fmt.Sprintf("p-%02d", i)])
	}

	r := newTestRanker(t, Config{CandidateCap: 5, ReadLimit: 3})
	items, err := r.BuildReadingList(context.Background(), api, testUser(), nil)
	require.NoError(t, err)
	require.Len(t, items, 3)
}

func TestSimilarityReranking(t *testing.T) {
	codec, err := vector.NewCodec(vector.DefaultGamma)
	require.NoError(t, err)
	userVec, err := codec.Encode([]float32{1, 0}, vector.DefaultPercentile)
	require.NoError(t, err)
	alignedVec, err := codec.Encode([]float32{1, 0}, vector.DefaultPercentile)
	require.NoError(t, err)
	opposedVec, err := codec.Encode([]float32{-1, 0}, vector.DefaultPercentile)
	require.NoError(t, err)

	api := newFakeAPI()
	// p-opposed carries the heavier source weight; the similarity boost
	// (sim+1) must still let the aligned post win: 0.5*2 > 1.0*~0.
	api.addPost(model.Post{ID: "p-opposed", UserID: "u2", Language: "ja"})
	api.addPost(model.Post{ID: "p-aligned", UserID: "u3", Language: "ja"})
	api.timeline = []model.Post{*api.posts["p-opposed"]}
	api.latest = []model.Post{*api.posts["p-aligned"]}
	api.summaries["p-opposed"].Vector = opposedVec
	api.summaries["p-aligned"].Vector = alignedVec

	r := New(codec, constRand{}, Config{})
	interest := &model.Interest{UserID: "u1", Vector: userVec}
	items, err := r.BuildReadingList(context.Background(), api, testUser(), interest)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "p-aligned", items[0].Post.ID)
	require.InDelta(t, 1.0, items[0].Similarity, 0.05)
	require.InDelta(t, -1.0, items[1].Similarity, 0.05)
}

func TestMissingSummarySkipsCandidate(t *testing.T) {
	api := newFakeAPI()
	api.addPost(model.Post{ID: "p-ok", UserID: "u2", Language: "ja"})
	api.addPost(model.Post{ID: "p-bare", UserID: "u3", Language: "ja"})
	delete(api.summaries, "p-bare")
	api.timeline = []model.Post{*api.posts["p-ok"], *api.posts["p-bare"]}

	r := newTestRanker(t, Config{})
	items, err := r.BuildReadingList(context.Background(), api, testUser(), nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "p-ok", items[0].Post.ID)
}

func TestFollowerSourceFailureIsNonFatal(t *testing.T) {
	api := newFakeAPI()
	api.addPost(model.Post{ID: "p-tl", UserID: "u2", Language: "ja"})
	api.timeline = []model.Post{*api.posts["p-tl"]}
	api.followersErr = fmt.Errorf("backend down")

	r := newTestRanker(t, Config{})
	items, err := r.BuildReadingList(context.Background(), api, testUser(), nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestFollowerSampleContributes(t *testing.T) {
	api := newFakeAPI()
	api.followers = []model.User{{ID: "f1"}}
	api.addPost(model.Post{ID: "p-f", UserID: "f1", Language: "ja"})
	api.userPosts["f1"] = []model.Post{*api.posts["p-f"]}

	r := newTestRanker(t, Config{})
	items, err := r.BuildReadingList(context.Background(), api, testUser(), nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "p-f", items[0].Post.ID)
}

func TestProbeErrorSkipsCandidate(t *testing.T) {
	api := newFakeAPI()
	api.addPost(model.Post{ID: "p-bad", UserID: "u2", Language: "ja"})
	api.addPost(model.Post{ID: "p-ok", UserID: "u3", Language: "ja"})
	api.timeline = []model.Post{*api.posts["p-bad"], *api.posts["p-ok"]}
	api.probeErr["p-bad"] = fmt.Errorf("timeout")

	r := newTestRanker(t, Config{})
	items, err := r.BuildReadingList(context.Background(), api, testUser(), nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "p-ok", items[0].Post.ID)
}
