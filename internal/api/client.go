package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xxxsen/persona/internal/model"
	appErr "github.com/xxxsen/persona/internal/pkg/errors"
)

// Client is a thin typed wrapper over the platform's content/auth REST API.
// It holds no session state; the token is passed per call so the session
// layer can swap it on renewal.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, token, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s %s: %w", method, path, appErr.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, appErr.ErrNotFound)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s failed: %s: %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func limitQuery(limit int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	return q
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	in := map[string]string{"email": email, "password": password}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, "", http.MethodPost, "/auth/login", nil, in, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("login returned empty token")
	}
	return out.Token, nil
}

func (c *Client) ActAs(ctx context.Context, adminToken, userID string) (string, error) {
	in := map[string]string{"user_id": userID}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, adminToken, http.MethodPost, "/auth/act-as", nil, in, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("act-as returned empty token")
	}
	return out.Token, nil
}

func (c *Client) ListUsers(ctx context.Context, token string, offset, limit int) ([]model.User, error) {
	q := limitQuery(limit)
	q.Set("offset", strconv.Itoa(offset))
	var out struct {
		Items []model.User `json:"items"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/users", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) GetUser(ctx context.Context, token, userID string) (*model.User, error) {
	var out model.User
	if err := c.do(ctx, token, http.MethodGet, "/users/"+userID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetInterest(ctx context.Context, token, userID string) (*model.Interest, error) {
	var out model.Interest
	if err := c.do(ctx, token, http.MethodGet, "/users/"+userID+"/interest", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SaveInterest(ctx context.Context, token string, interest *model.Interest) error {
	return c.do(ctx, token, http.MethodPut, "/users/"+interest.UserID+"/interest", nil, interest, nil)
}

// TimelinePosts returns recent posts, replies included, by users the acting
// session's user follows.
func (c *Client) TimelinePosts(ctx context.Context, token string, limit int) ([]model.Post, error) {
	var out struct {
		Items []model.Post `json:"items"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/posts/timeline", limitQuery(limit), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) LatestPosts(ctx context.Context, token string, limit int) ([]model.Post, error) {
	var out struct {
		Items []model.Post `json:"items"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/posts/latest", limitQuery(limit), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) ListNotifications(ctx context.Context, token string, limit int) ([]model.Notification, error) {
	var out struct {
		Items []model.Notification `json:"items"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/notifications", limitQuery(limit), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) ListFollowers(ctx context.Context, token, userID string, limit int) ([]model.User, error) {
	var out struct {
		Items []model.User `json:"items"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/users/"+userID+"/followers", limitQuery(limit), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) ListUserPosts(ctx context.Context, token, userID string, limit int) ([]model.Post, error) {
	var out struct {
		Items []model.Post `json:"items"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/users/"+userID+"/posts", limitQuery(limit), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) GetPost(ctx context.Context, token, postID string) (*model.Post, error) {
	var out model.Post
	if err := c.do(ctx, token, http.MethodGet, "/posts/"+postID, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPostSummary(ctx context.Context, token, postID string) (*model.PostSummary, error) {
	var out model.PostSummary
	if err := c.do(ctx, token, http.MethodGet, "/posts/"+postID+"/summary", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HasPostImpression is the lightweight existence probe, distinct from a
// full impression fetch.
func (c *Client) HasPostImpression(ctx context.Context, token, userID, postID string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	path := "/users/" + userID + "/impressions/posts/" + postID + "/exists"
	if err := c.do(ctx, token, http.MethodGet, path, nil, nil, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

func (c *Client) SavePostImpression(ctx context.Context, token string, imp *model.Impression) error {
	path := "/users/" + imp.UserID + "/impressions/posts/" + imp.PostID
	return c.do(ctx, token, http.MethodPut, path, nil, imp, nil)
}

func (c *Client) GetPeerImpression(ctx context.Context, token, userID, peerID string) (*model.Impression, error) {
	var out model.Impression
	path := "/users/" + userID + "/impressions/peers/" + peerID
	if err := c.do(ctx, token, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SavePeerImpression(ctx context.Context, token string, imp *model.Impression) error {
	path := "/users/" + imp.UserID + "/impressions/peers/" + imp.PeerID
	return c.do(ctx, token, http.MethodPut, path, nil, imp, nil)
}

func (c *Client) ListOwnImpressions(ctx context.Context, token, userID string, limit int) ([]model.Impression, error) {
	var out struct {
		Items []model.Impression `json:"items"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/users/"+userID+"/impressions", limitQuery(limit), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) LikePost(ctx context.Context, token, postID string) error {
	return c.do(ctx, token, http.MethodPost, "/posts/"+postID+"/like", nil, nil, nil)
}

func (c *Client) CreatePost(ctx context.Context, token string, post *model.Post) (*model.Post, error) {
	var out model.Post
	if err := c.do(ctx, token, http.MethodPost, "/posts", nil, post, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
