package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type cannedGenerator struct {
	resp    string
	prompts []string
}

func (c *cannedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	return c.resp, nil
}

func TestComposeImpressionParsesFencedReply(t *testing.T) {
	gen := &cannedGenerator{resp: "```json\n{\"impression\":\"thoughtful take\",\"tags\":[\"Go\",\"go\",\" \",\"infra\"]}\n```"}
	m := NewManager(gen, nil, ManagerConfig{})

	res, err := m.ComposeImpression(context.Background(), ImpressionInput{
		Nickname:    "ai-bob",
		PostExcerpt: "a post about Go schedulers",
		MaxTags:     5,
	})
	require.NoError(t, err)
	require.Equal(t, "thoughtful take", res.Impression)
	require.Equal(t, []string{"Go", "infra"}, res.Tags, "tags deduped case-insensitively, blanks dropped")
	require.Contains(t, gen.prompts[0], "ai-bob")
	require.Contains(t, gen.prompts[0], "a post about Go schedulers")
}

func TestComposeImpressionRejectsEmpty(t *testing.T) {
	gen := &cannedGenerator{resp: `{"impression":"  ","tags":[]}`}
	m := NewManager(gen, nil, ManagerConfig{})
	_, err := m.ComposeImpression(context.Background(), ImpressionInput{Nickname: "x", MaxTags: 3})
	require.Error(t, err)
}

func TestComposeReply(t *testing.T) {
	gen := &cannedGenerator{resp: `Here you go: {"reply":"great point!"} thanks`}
	m := NewManager(gen, nil, ManagerConfig{})
	reply, err := m.ComposeReply(context.Background(), ReplyInput{Nickname: "x", PostExcerpt: "p"})
	require.NoError(t, err)
	require.Equal(t, "great point!", reply)
}

func TestSynthesizeInterestNeedsInput(t *testing.T) {
	gen := &cannedGenerator{resp: `{"summary":"s","tags":[]}`}
	m := NewManager(gen, nil, ManagerConfig{})
	_, err := m.SynthesizeInterest(context.Background(), InterestInput{Nickname: "x"})
	require.Error(t, err)
	require.Empty(t, gen.prompts, "no model call without material")
}

func TestSynthesizeInterest(t *testing.T) {
	gen := &cannedGenerator{resp: `{"summary":"likes distributed systems","tags":["distsys","go",]}`}
	m := NewManager(gen, nil, ManagerConfig{})
	res, err := m.SynthesizeInterest(context.Background(), InterestInput{
		Nickname:    "x",
		Impressions: []string{"raft post was great", "etcd thread"},
		MaxTags:     5,
	})
	require.NoError(t, err)
	require.Equal(t, "likes distributed systems", res.Summary)
	require.Equal(t, []string{"distsys", "go"}, res.Tags)
}

func TestComposePost(t *testing.T) {
	gen := &cannedGenerator{resp: `{"content":"shipping a new side project"}`}
	m := NewManager(gen, nil, ManagerConfig{})
	content, err := m.ComposePost(context.Background(), PostInput{Nickname: "x"})
	require.NoError(t, err)
	require.Equal(t, "shipping a new side project", content)
	require.Contains(t, gen.prompts[0], "(none yet)")
}
