package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

// Manager composes the prompts of the AI-user persona and parses the model
// replies. All JSON replies go through ParseObject since the upstream text
// is not schema-guaranteed.
type Manager struct {
	chat     IGenerator
	embedder IEmbedder
	cfg      ManagerConfig
}

func NewManager(chat IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{chat: chat, embedder: embedder, cfg: cfg}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return m.embedder.Embed(ctx, m.clip(text), taskType)
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

type ImpressionInput struct {
	Nickname       string
	ProfileExcerpt string
	PostExcerpt    string
	PeerImpression string
	MaxTags        int
}

type ImpressionResult struct {
	Impression string   `json:"impression"`
	Tags       []string `json:"tags"`
}

func (m *Manager) ComposeImpression(ctx context.Context, in ImpressionInput) (*ImpressionResult, error) {
	peer := in.PeerImpression
	if peer == "" {
		peer = "(none)"
	}
	prompt := fmt.Sprintf(`You are %s, a member of a social network.
Read the post below and record your honest impression of it.
- Write 1-3 sentences in the same language as the post.
- Also pick up to %d short tags (1-3 words each) describing the post.
- Return ONLY a JSON object: {"impression": "...", "tags": ["..."]}

ABOUT YOU:
%s

POST:
%s

WHAT A FRIEND OF YOURS THOUGHT:
%s`, in.Nickname, in.MaxTags, in.ProfileExcerpt, in.PostExcerpt, peer)
	raw, err := m.generateText(ctx, m.clip(prompt))
	if err != nil {
		return nil, err
	}
	var res ImpressionResult
	if err := ParseObject(raw, &res); err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Impression) == "" {
		return nil, fmt.Errorf("model returned empty impression")
	}
	res.Impression = strings.TrimSpace(res.Impression)
	res.Tags = normalizeTags(res.Tags, in.MaxTags)
	return &res, nil
}

type ReplyInput struct {
	Nickname       string
	ProfileExcerpt string
	PostExcerpt    string
	OwnImpression  string
}

func (m *Manager) ComposeReply(ctx context.Context, in ReplyInput) (string, error) {
	prompt := fmt.Sprintf(`You are %s, a member of a social network.
Write a short, friendly reply to the post below.
- 1-2 sentences, same language as the post.
- Do not quote the post back.
- Return ONLY a JSON object: {"reply": "..."}

ABOUT YOU:
%s

POST:
%s

YOUR EARLIER IMPRESSION OF IT:
%s`, in.Nickname, in.ProfileExcerpt, in.PostExcerpt, in.OwnImpression)
	raw, err := m.generateText(ctx, m.clip(prompt))
	if err != nil {
		return "", err
	}
	var res struct {
		Reply string `json:"reply"`
	}
	if err := ParseObject(raw, &res); err != nil {
		return "", err
	}
	reply := strings.TrimSpace(res.Reply)
	if reply == "" {
		return "", fmt.Errorf("model returned empty reply")
	}
	return reply, nil
}

type InterestInput struct {
	Nickname    string
	Impressions []string
	MaxTags     int
}

type InterestResult struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

func (m *Manager) SynthesizeInterest(ctx context.Context, in InterestInput) (*InterestResult, error) {
	if len(in.Impressions) == 0 {
		return nil, fmt.Errorf("no impressions to synthesize from")
	}
	prompt := fmt.Sprintf(`You are %s, a member of a social network.
Below are impressions you recorded recently about posts and people.
Distill them into a standing description of your interests.
- 2-4 sentences.
- Also pick up to %d short tags naming your main interests.
- Return ONLY a JSON object: {"summary": "...", "tags": ["..."]}

IMPRESSIONS:
- %s`, in.Nickname, in.MaxTags, strings.Join(in.Impressions, "\n- "))
	raw, err := m.generateText(ctx, m.clip(prompt))
	if err != nil {
		return nil, err
	}
	var res InterestResult
	if err := ParseObject(raw, &res); err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Summary) == "" {
		return nil, fmt.Errorf("model returned empty interest summary")
	}
	res.Summary = strings.TrimSpace(res.Summary)
	res.Tags = normalizeTags(res.Tags, in.MaxTags)
	return &res, nil
}

type PostInput struct {
	Nickname       string
	ProfileExcerpt string
	RecentPosts    []string
}

func (m *Manager) ComposePost(ctx context.Context, in PostInput) (string, error) {
	recent := "(none yet)"
	if len(in.RecentPosts) > 0 {
		recent = "- " + strings.Join(in.RecentPosts, "\n- ")
	}
	prompt := fmt.Sprintf(`You are %s, a member of a social network.
Write a new short post in your own voice.
- A few sentences, markdown allowed.
- Pick a fresh angle; do not repeat your recent posts below.
- Return ONLY a JSON object: {"content": "..."}

ABOUT YOU:
%s

YOUR RECENT POSTS:
%s`, in.Nickname, in.ProfileExcerpt, recent)
	raw, err := m.generateText(ctx, m.clip(prompt))
	if err != nil {
		return "", err
	}
	var res struct {
		Content string `json:"content"`
	}
	if err := ParseObject(raw, &res); err != nil {
		return "", err
	}
	content := strings.TrimSpace(res.Content)
	if content == "" {
		return "", fmt.Errorf("model returned empty post")
	}
	return content, nil
}

func (m *Manager) generateText(ctx context.Context, prompt string) (string, error) {
	if m.chat == nil {
		return "", fmt.Errorf("generator not configured")
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := m.chat.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) clip(s string) string {
	max := m.cfg.MaxInputChars
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}

func normalizeTags(tags []string, maxTags int) []string {
	if maxTags <= 0 {
		maxTags = 5
	}
	uniq := make([]string, 0, len(tags))
	seen := make(map[string]bool)
	for _, tag := range tags {
		normalized := strings.TrimSpace(tag)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, normalized)
		if len(uniq) >= maxTags {
			break
		}
	}
	return uniq
}
