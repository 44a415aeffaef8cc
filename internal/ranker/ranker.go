package ranker

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/persona/internal/model"
	appErr "github.com/xxxsen/persona/internal/pkg/errors"
	"github.com/xxxsen/persona/internal/vector"
)

const (
	weightFollowee      = 1.0
	weightGlobal        = 0.5
	weightReplyNotice   = 0.8
	weightMentionNotice = 0.6
	weightFriendSample  = 0.5

	replyContextPenalty = 0.5
	localeWeightEnglish = 0.5
	localeWeightOther   = 0.3

	maxFollowerSample    = 5
	followerPostsPerUser = 3
	maxPostsPerAuthor    = 2
)

// ContentAPI is the slice of the platform API the ranker needs, already
// bound to the acting user's session.
type ContentAPI interface {
	TimelinePosts(ctx context.Context, limit int) ([]model.Post, error)
	LatestPosts(ctx context.Context, limit int) ([]model.Post, error)
	ListNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	ListFollowers(ctx context.Context, userID string, limit int) ([]model.User, error)
	ListUserPosts(ctx context.Context, userID string, limit int) ([]model.Post, error)
	GetPost(ctx context.Context, postID string) (*model.Post, error)
	GetPostSummary(ctx context.Context, postID string) (*model.PostSummary, error)
	HasPostImpression(ctx context.Context, postID string) (bool, error)
}

type ReadingListItem struct {
	Post *model.Post
	// Similarity is cosine similarity against the user's interest vector,
	// 0 when the user has no interest vector yet.
	Similarity float32
}

type Config struct {
	CandidateCap    int
	ReadLimit       int
	HarvestLimit    int
	SummaryCacheCap int
	SummaryCacheTTL time.Duration
}

type Ranker struct {
	codec     *vector.Codec
	rng       Rand
	cfg       Config
	summaries *expirable.LRU[string, *model.PostSummary]
}

func New(codec *vector.Codec, rng Rand, cfg Config) *Ranker {
	if cfg.CandidateCap <= 0 {
		cfg.CandidateCap = 30
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 10
	}
	if cfg.HarvestLimit <= 0 {
		cfg.HarvestLimit = 50
	}
	if cfg.SummaryCacheCap <= 0 {
		cfg.SummaryCacheCap = 2000
	}
	if cfg.SummaryCacheTTL <= 0 {
		cfg.SummaryCacheTTL = 30 * time.Minute
	}
	return &Ranker{
		codec:     codec,
		rng:       rng,
		cfg:       cfg,
		summaries: expirable.NewLRU[string, *model.PostSummary](cfg.SummaryCacheCap, nil, cfg.SummaryCacheTTL),
	}
}

type candidate struct {
	postID     string
	score      float64
	similarity float32
}

// BuildReadingList assembles the diversity-capped, similarity-ranked list
// of posts the user should read this run. An empty list is a valid
// outcome, not an error.
func (r *Ranker) BuildReadingList(ctx context.Context, api ContentAPI, user *model.User, interest *model.Interest) ([]ReadingListItem, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", user.ID))

	weights, err := r.harvest(ctx, api, user)
	if err != nil {
		return nil, err
	}
	selected := r.preselect(ctx, api, weights)
	ranked := r.rank(ctx, api, selected, interest)
	items := r.materialize(ctx, api, ranked)
	if len(items) == 0 {
		logger.Info("nothing to read")
	}
	return items, nil
}

// harvest queries the weighted sources and keeps the maximum weight per
// post. Only the follower-friends sample is best-effort; the primary
// sources propagate their failures.
func (r *Ranker) harvest(ctx context.Context, api ContentAPI, user *model.User) (map[string]float64, error) {
	weights := map[string]float64{}
	merge := func(postID string, w float64) {
		if postID == "" || w <= 0 {
			return
		}
		if w > weights[postID] {
			weights[postID] = w
		}
	}

	timeline, err := api.TimelinePosts(ctx, r.cfg.HarvestLimit)
	if err != nil {
		return nil, err
	}
	for i := range timeline {
		p := &timeline[i]
		if p.UserID == user.ID {
			continue
		}
		merge(p.ID, weightFollowee*biasFactors(p, user))
	}

	latest, err := api.LatestPosts(ctx, r.cfg.HarvestLimit)
	if err != nil {
		return nil, err
	}
	for i := range latest {
		p := &latest[i]
		if p.UserID == user.ID {
			continue
		}
		merge(p.ID, weightGlobal*biasFactors(p, user))
	}

	notices, err := api.ListNotifications(ctx, r.cfg.HarvestLimit)
	if err != nil {
		return nil, err
	}
	for _, n := range notices {
		if n.ActorID == user.ID {
			continue
		}
		switch n.Type {
		case model.NotificationTypeReply:
			merge(n.PostID, weightReplyNotice)
		case model.NotificationTypeMention:
			merge(n.PostID, weightMentionNotice)
		}
	}

	r.harvestFollowerFriends(ctx, api, user, merge)
	return weights, nil
}

// harvestFollowerFriends samples a few random followers and takes their
// most recent posts. This source is best-effort: any failure is logged and
// the harvest goes on without it.
func (r *Ranker) harvestFollowerFriends(ctx context.Context, api ContentAPI, user *model.User, merge func(string, float64)) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", user.ID))
	followers, err := api.ListFollowers(ctx, user.ID, r.cfg.HarvestLimit)
	if err != nil {
		logger.Warn("follower sample source failed", zap.Error(err))
		return
	}
	for i := len(followers) - 1; i > 0; i-- {
		j := r.rng.Intn(i + 1)
		followers[i], followers[j] = followers[j], followers[i]
	}
	if len(followers) > maxFollowerSample {
		followers = followers[:maxFollowerSample]
	}
	for _, f := range followers {
		posts, err := api.ListUserPosts(ctx, f.ID, followerPostsPerUser)
		if err != nil {
			logger.Warn("follower posts fetch failed", zap.String("follower_id", f.ID), zap.Error(err))
			continue
		}
		for i := range posts {
			if posts[i].UserID == user.ID {
				continue
			}
			merge(posts[i].ID, weightFriendSample)
		}
	}
}

func biasFactors(p *model.Post, user *model.User) float64 {
	factor := 1.0
	if p.IsReply() && p.ReplyToUserID != user.ID {
		factor *= replyContextPenalty
	}
	return factor * localeWeight(p.Language, user.Language)
}

// localeWeight compares only the primary subtags, so en-US matches en-GB.
func localeWeight(postLang, userLang string) float64 {
	post := primarySubtag(postLang)
	mine := primarySubtag(userLang)
	switch {
	case post == mine:
		return 1.0
	case post == "en":
		return localeWeightEnglish
	default:
		return localeWeightOther
	}
}

func primarySubtag(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	return lang
}

// preselect draws uniform_random()*weight per candidate, walks the result
// in descending order and keeps unseen posts up to the candidate cap. The
// impression probe failing is a per-item failure: logged, skipped.
func (r *Ranker) preselect(ctx context.Context, api ContentAPI, weights map[string]float64) []candidate {
	logger := logutil.GetLogger(ctx)
	drawn := make([]candidate, 0, len(weights))
	for postID, w := range weights {
		drawn = append(drawn, candidate{postID: postID, score: r.rng.Float64() * w})
	}
	sort.Slice(drawn, func(i, j int) bool {
		if drawn[i].score != drawn[j].score {
			return drawn[i].score > drawn[j].score
		}
		return drawn[i].postID < drawn[j].postID
	})
	kept := make([]candidate, 0, r.cfg.CandidateCap)
	for _, c := range drawn {
		if len(kept) >= r.cfg.CandidateCap {
			break
		}
		seen, err := api.HasPostImpression(ctx, c.postID)
		if err != nil {
			logger.Warn("impression probe failed", zap.String("post_id", c.postID), zap.Error(err))
			continue
		}
		if seen {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// rank re-orders candidates by similarity against the user's interest
// vector. The (similarity + 1) shift keeps the multiplier non-negative so
// a strongly-weighted source is not zeroed out by a negative similarity.
// Without an interest vector the pre-selection order stands and similarity
// reads 0; either way a candidate without a stored summary is skipped.
func (r *Ranker) rank(ctx context.Context, api ContentAPI, cands []candidate, interest *model.Interest) []candidate {
	logger := logutil.GetLogger(ctx)
	var userVec []float32
	if interest != nil && len(interest.Vector) > 0 {
		userVec = r.codec.Decode(interest.Vector)
	}

	ranked := make([]candidate, 0, len(cands))
	for _, c := range cands {
		summary, err := r.fetchSummary(ctx, api, c.postID)
		if err != nil {
			if !appErr.IsNotFound(err) {
				logger.Warn("summary fetch failed", zap.String("post_id", c.postID), zap.Error(err))
			}
			continue
		}
		if userVec == nil {
			ranked = append(ranked, c)
			continue
		}
		if len(summary.Vector) == 0 {
			continue
		}
		sim, err := vector.CosineSimilarity(userVec, r.codec.Decode(summary.Vector))
		if err != nil {
			logger.Warn("similarity failed", zap.String("post_id", c.postID), zap.Error(err))
			continue
		}
		c.similarity = sim
		c.score *= float64(sim) + 1
		ranked = append(ranked, c)
	}
	if userVec != nil {
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].score != ranked[j].score {
				return ranked[i].score > ranked[j].score
			}
			return ranked[i].postID < ranked[j].postID
		})
	}
	return ranked
}

func (r *Ranker) fetchSummary(ctx context.Context, api ContentAPI, postID string) (*model.PostSummary, error) {
	if cached, ok := r.summaries.Get(postID); ok {
		return cached, nil
	}
	summary, err := api.GetPostSummary(ctx, postID)
	if err != nil {
		return nil, err
	}
	r.summaries.Add(postID, summary)
	return summary, nil
}

// materialize fetches post detail in ranked order, enforcing the
// per-author diversity cap up to the read limit.
func (r *Ranker) materialize(ctx context.Context, api ContentAPI, ranked []candidate) []ReadingListItem {
	logger := logutil.GetLogger(ctx)
	perAuthor := map[string]int{}
	items := make([]ReadingListItem, 0, r.cfg.ReadLimit)
	for _, c := range ranked {
		if len(items) >= r.cfg.ReadLimit {
			break
		}
		post, err := api.GetPost(ctx, c.postID)
		if err != nil {
			logger.Warn("post fetch failed", zap.String("post_id", c.postID), zap.Error(err))
			continue
		}
		if perAuthor[post.UserID] >= maxPostsPerAuthor {
			continue
		}
		perAuthor[post.UserID]++
		items = append(items, ReadingListItem{Post: post, Similarity: c.similarity})
	}
	return items
}
