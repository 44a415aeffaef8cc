package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Speaks the OpenAI REST dialect, which most self-hosted inference
// gateways also expose; base_url points it at any of them.

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	openAICallTimeout    = 120 * time.Second
)

type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type openAIClient struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

func newOpenAIClient(args interface{}) (*openAIClient, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &openAIClient{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: openAICallTimeout},
	}, nil
}

func (c *openAIClient) post(ctx context.Context, path string, in, out interface{}) error {
	if c.apiKey == "" {
		return ErrUnavailable
	}
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai %s failed: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type openAIProvider struct {
	client *openAIClient
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	in := map[string]interface{}{
		"model":    model,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
		"stream":   false,
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := p.client.post(ctx, "/chat/completions", in, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

type openAIEmbedProvider struct {
	client *openAIClient
}

func (p *openAIEmbedProvider) Name() string {
	return "openai"
}

// Embed ignores taskType: the OpenAI dialect has no task-specific
// embedding spaces, unlike Gemini.
func (p *openAIEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	in := map[string]interface{}{
		"model": model,
		"input": text,
	}
	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := p.client.post(ctx, "/embeddings", in, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("openai response has no embeddings")
	}
	return out.Data[0].Embedding, nil
}

func init() {
	Register("openai", func(args interface{}) (IAIProvider, error) {
		client, err := newOpenAIClient(args)
		if err != nil {
			return nil, err
		}
		return &openAIProvider{client: client}, nil
	})
	RegisterEmbed("openai", func(args interface{}) (IEmbedProvider, error) {
		client, err := newOpenAIClient(args)
		if err != nil {
			return nil, err
		}
		return &openAIEmbedProvider{client: client}, nil
	})
}
