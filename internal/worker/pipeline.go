package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/persona/internal/ai"
	"github.com/xxxsen/persona/internal/model"
	appErr "github.com/xxxsen/persona/internal/pkg/errors"
	"github.com/xxxsen/persona/internal/ranker"
	"github.com/xxxsen/persona/internal/session"
	"github.com/xxxsen/persona/internal/vector"
)

const (
	impressionWindow = 50
	recentPostWindow = 5
	profileMaxRunes  = 800
)

// AIManager is the prompt/parse surface the pipeline needs. *ai.Manager
// satisfies it.
type AIManager interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ComposeImpression(ctx context.Context, in ai.ImpressionInput) (*ai.ImpressionResult, error)
	ComposeReply(ctx context.Context, in ai.ReplyInput) (string, error)
	SynthesizeInterest(ctx context.Context, in ai.InterestInput) (*ai.InterestResult, error)
	ComposePost(ctx context.Context, in ai.PostInput) (string, error)
}

type PipelineConfig struct {
	ReadLimit            int
	LikeTopK             int
	LikeFloor            float64
	ReplyTopK            int
	ReplyFloor           float64
	InterestCooldownDays int
	PostCooldownDays     int
	MaxTags              int
	Percentile           float64
	ImpressionMaxChars   int
}

// Pipeline runs one AI user through a full activity round: read and record
// impressions, like, reply, refresh the interest record, and maybe author
// a post. Each phase is best-effort; only failures that invalidate the
// whole round (impersonation, session expiry, candidate harvest) abort it.
type Pipeline struct {
	api      PlatformAPI
	sessions *session.Manager
	ai       AIManager
	ranker   *ranker.Ranker
	codec    *vector.Codec
	cfg      PipelineConfig
	now      func() time.Time
}

func NewPipeline(api PlatformAPI, sessions *session.Manager, aim AIManager, rk *ranker.Ranker, codec *vector.Codec, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		api:      api,
		sessions: sessions,
		ai:       aim,
		ranker:   rk,
		codec:    codec,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (p *Pipeline) ProcessUser(ctx context.Context, user *model.User) error {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", user.ID), zap.String("nickname", user.Nickname))

	sess, err := p.sessions.Impersonate(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("impersonate %s: %w", user.ID, err)
	}
	bapi := newBoundAPI(p.api, sess)

	// the user listing may carry a trimmed record; the full profile feeds
	// every prompt below
	if full, err := bapi.GetUser(ctx, user.ID); err == nil {
		user = full
	} else {
		logger.Warn("full profile fetch failed, using listed record", zap.Error(err))
	}

	interest, err := bapi.GetInterest(ctx, user.ID)
	if err != nil {
		if !appErr.IsNotFound(err) {
			return fmt.Errorf("load interest: %w", err)
		}
		interest = nil
	}

	items, err := p.ranker.BuildReadingList(ctx, bapi, user, interest)
	if err != nil {
		return fmt.Errorf("build reading list: %w", err)
	}

	read, err := p.readPhase(ctx, bapi, user, items)
	if err != nil {
		return err
	}
	if err := p.likePhase(ctx, bapi, read); err != nil {
		return err
	}
	if err := p.replyPhase(ctx, bapi, user, read); err != nil {
		return err
	}
	if err := p.interestPhase(ctx, bapi, user, interest); err != nil {
		if appErr.IsSessionExpired(err) {
			return err
		}
		logger.Warn("interest refresh failed", zap.Error(err))
	}
	if err := p.authorPhase(ctx, bapi, user); err != nil {
		if appErr.IsSessionExpired(err) {
			return err
		}
		logger.Warn("post authoring failed", zap.Error(err))
	}
	return nil
}

type readItem struct {
	post       *model.Post
	similarity float32
	impression string
}

// readPhase records an impression per reading-list item. A failed item is
// logged and dropped from the later phases; session expiry is the one
// failure that aborts the round so the orchestrator can arm a relogin.
func (p *Pipeline) readPhase(ctx context.Context, bapi *boundAPI, user *model.User, items []ranker.ReadingListItem) ([]readItem, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", user.ID))
	profile := ai.PlainExcerpt(user.Profile, profileMaxRunes)
	read := make([]readItem, 0, len(items))
	for _, item := range items {
		imp, err := p.recordImpression(ctx, bapi, user, profile, item.Post)
		if err != nil {
			if appErr.IsSessionExpired(err) {
				return nil, fmt.Errorf("read %s: %w", item.Post.ID, err)
			}
			logger.Warn("impression failed", zap.String("post_id", item.Post.ID), zap.Error(err))
			continue
		}
		read = append(read, readItem{post: item.Post, similarity: item.Similarity, impression: imp})
	}
	return read, nil
}

func (p *Pipeline) recordImpression(ctx context.Context, bapi *boundAPI, user *model.User, profile string, post *model.Post) (string, error) {
	peerText := ""
	if peer, err := bapi.GetPeerImpression(ctx, user.ID, post.UserID); err == nil {
		peerText = peer.Content
	} else if !appErr.IsNotFound(err) {
		return "", fmt.Errorf("peer impression: %w", err)
	}

	res, err := p.ai.ComposeImpression(ctx, ai.ImpressionInput{
		Nickname:       user.Nickname,
		ProfileExcerpt: profile,
		PostExcerpt:    ai.PlainExcerpt(post.Content, p.cfg.ImpressionMaxChars),
		PeerImpression: peerText,
		MaxTags:        p.cfg.MaxTags,
	})
	if err != nil {
		return "", fmt.Errorf("compose impression: %w", err)
	}

	// the model does not honor length hints reliably; clamp before persisting
	content := clampRunes(res.Impression, p.cfg.ImpressionMaxChars)
	now := p.now().Unix()
	if err := bapi.SavePostImpression(ctx, &model.Impression{
		UserID:  user.ID,
		PostID:  post.ID,
		Content: content,
		Tags:    res.Tags,
		Mtime:   now,
	}); err != nil {
		return "", fmt.Errorf("save post impression: %w", err)
	}
	if err := bapi.SavePeerImpression(ctx, &model.Impression{
		UserID:  user.ID,
		PeerID:  post.UserID,
		Content: content,
		Tags:    res.Tags,
		Mtime:   now,
	}); err != nil {
		return "", fmt.Errorf("save peer impression: %w", err)
	}
	return content, nil
}

func clampRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// likePhase likes the top-K most similar reads above the floor. The read
// slice is already in ranked order, so a front-to-back walk suffices.
func (p *Pipeline) likePhase(ctx context.Context, bapi *boundAPI, read []readItem) error {
	logger := logutil.GetLogger(ctx)
	liked := 0
	for _, r := range read {
		if liked >= p.cfg.LikeTopK {
			break
		}
		if float64(r.similarity) < p.cfg.LikeFloor {
			continue
		}
		if err := bapi.LikePost(ctx, r.post.ID); err != nil {
			if appErr.IsSessionExpired(err) {
				return fmt.Errorf("like %s: %w", r.post.ID, err)
			}
			logger.Warn("like failed", zap.String("post_id", r.post.ID), zap.Error(err))
			continue
		}
		liked++
	}
	return nil
}

func (p *Pipeline) replyPhase(ctx context.Context, bapi *boundAPI, user *model.User, read []readItem) error {
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", user.ID))
	profile := ai.PlainExcerpt(user.Profile, profileMaxRunes)
	replied := 0
	for _, r := range read {
		if replied >= p.cfg.ReplyTopK {
			break
		}
		if float64(r.similarity) < p.cfg.ReplyFloor {
			continue
		}
		reply, err := p.ai.ComposeReply(ctx, ai.ReplyInput{
			Nickname:       user.Nickname,
			ProfileExcerpt: profile,
			PostExcerpt:    ai.PlainExcerpt(r.post.Content, p.cfg.ImpressionMaxChars),
			OwnImpression:  r.impression,
		})
		if err != nil {
			logger.Warn("compose reply failed", zap.String("post_id", r.post.ID), zap.Error(err))
			continue
		}
		if _, err := bapi.CreatePost(ctx, &model.Post{
			UserID:        user.ID,
			Content:       reply,
			Language:      user.Language,
			ReplyToPostID: r.post.ID,
			ReplyToUserID: r.post.UserID,
		}); err != nil {
			if appErr.IsSessionExpired(err) {
				return fmt.Errorf("reply to %s: %w", r.post.ID, err)
			}
			logger.Warn("post reply failed", zap.String("post_id", r.post.ID), zap.Error(err))
			continue
		}
		replied++
	}
	return nil
}

// interestPhase re-synthesizes the standing interest record once the
// cooldown has lapsed, embedding the fresh summary through the vector
// codec. No recorded impressions yet means nothing to synthesize.
func (p *Pipeline) interestPhase(ctx context.Context, bapi *boundAPI, user *model.User, interest *model.Interest) error {
	if interest != nil {
		cooldown := time.Duration(p.cfg.InterestCooldownDays) * 24 * time.Hour
		if p.now().Sub(time.Unix(interest.Mtime, 0)) < cooldown {
			return nil
		}
	}
	imps, err := bapi.ListOwnImpressions(ctx, user.ID, impressionWindow)
	if err != nil {
		return fmt.Errorf("list impressions: %w", err)
	}
	if len(imps) == 0 {
		return nil
	}
	texts := make([]string, 0, len(imps))
	for _, imp := range imps {
		if imp.Content != "" {
			texts = append(texts, imp.Content)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	res, err := p.ai.SynthesizeInterest(ctx, ai.InterestInput{
		Nickname:    user.Nickname,
		Impressions: texts,
		MaxTags:     p.cfg.MaxTags,
	})
	if err != nil {
		return fmt.Errorf("synthesize interest: %w", err)
	}
	values, err := p.ai.Embed(ctx, res.Summary, "RETRIEVAL_QUERY")
	if err != nil {
		return fmt.Errorf("embed interest: %w", err)
	}
	encoded, err := p.codec.Encode(values, p.cfg.Percentile)
	if err != nil {
		return fmt.Errorf("encode interest vector: %w", err)
	}
	if err := bapi.SaveInterest(ctx, &model.Interest{
		UserID:  user.ID,
		Summary: res.Summary,
		Tags:    res.Tags,
		Vector:  encoded,
		Mtime:   p.now().Unix(),
	}); err != nil {
		return fmt.Errorf("save interest: %w", err)
	}
	logutil.GetLogger(ctx).Info("interest refreshed", zap.String("user_id", user.ID), zap.Strings("tags", res.Tags))
	return nil
}

// authorPhase writes a new top-level post once the cooldown since the
// user's newest own post has lapsed.
func (p *Pipeline) authorPhase(ctx context.Context, bapi *boundAPI, user *model.User) error {
	recent, err := bapi.ListUserPosts(ctx, user.ID, recentPostWindow)
	if err != nil {
		return fmt.Errorf("list own posts: %w", err)
	}
	cooldown := time.Duration(p.cfg.PostCooldownDays) * 24 * time.Hour
	var excerpts []string
	for _, post := range recent {
		if post.IsReply() {
			continue
		}
		if p.now().Sub(time.Unix(post.Ctime, 0)) < cooldown {
			return nil
		}
		excerpts = append(excerpts, ai.PlainExcerpt(post.Content, p.cfg.ImpressionMaxChars))
	}

	content, err := p.ai.ComposePost(ctx, ai.PostInput{
		Nickname:       user.Nickname,
		ProfileExcerpt: ai.PlainExcerpt(user.Profile, profileMaxRunes),
		RecentPosts:    excerpts,
	})
	if err != nil {
		return fmt.Errorf("compose post: %w", err)
	}
	if _, err := bapi.CreatePost(ctx, &model.Post{
		UserID:   user.ID,
		Content:  content,
		Language: user.Language,
	}); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	logutil.GetLogger(ctx).Info("authored post", zap.String("user_id", user.ID))
	return nil
}
