// Package forum is a small REST client for the Discourse-compatible
// forum API the bridge proxies to.
package forum

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/forumgram/forumgram/internal/config"
)

var (
	// ErrUpstream is returned when the forum API answers with a non-2xx
	// status or cannot be reached.
	ErrUpstream = errors.New("forum upstream error")
	// ErrAccountExists is returned when account creation is rejected
	// because the username or email is already taken.
	ErrAccountExists = errors.New("forum account already exists")
	// ErrNotFound is returned when the forum answers 404 for the
	// requested resource (user, category, topic or post).
	ErrNotFound = errors.New("forum resource not found")
	// ErrNotConfigured is returned when no forum base URL is set.
	ErrNotConfigured = errors.New("forum api not configured")
)

const likeActionTypeID = 2

// Client talks to the forum with an admin API key. Per-user operations
// are performed on behalf of a forum username via the Api-Username header.
type Client struct {
	baseURL  string
	apiKey   string
	username string
	client   *http.Client
	logger   *slog.Logger
}

func NewClient(log *slog.Logger, cfg config.ForumConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultForumTimeoutSecs) * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		username: strings.TrimSpace(cfg.APIUsername),
		client:   &http.Client{Timeout: timeout},
		logger:   log.With(slog.String("component", "forum")),
	}
}

// Category is one forum category.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Topic is one topic inside a category.
type Topic struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// SearchResult is one post matched by a search.
type SearchResult struct {
	ID      int64  `json:"id"`
	TopicID int64  `json:"topic_id"`
	Excerpt string `json:"excerpt"`
}

// CreateAccount registers a new forum user and returns its local id.
func (c *Client) CreateAccount(ctx context.Context, username, email, password string) (string, error) {
	payload := map[string]any{
		"name":     username,
		"username": username,
		"email":    email,
		"password": password,
		"active":   true,
	}
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		UserID  int64  `json:"user_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/users.json", "", nil, payload, &out); err != nil {
		return "", err
	}
	if !out.Success {
		if strings.Contains(strings.ToLower(out.Message), "taken") {
			return "", fmt.Errorf("%w: %s", ErrAccountExists, out.Message)
		}
		return "", fmt.Errorf("%w: account creation rejected: %s", ErrUpstream, out.Message)
	}
	return fmt.Sprintf("%d", out.UserID), nil
}

// Username resolves a local user id to the forum username via the admin
// API. Per-user proxy operations accept the bound user id and go through
// this lookup before impersonating.
func (c *Client) Username(ctx context.Context, userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrNotFound)
	}
	var out struct {
		Username string `json:"username"`
	}
	path := "/admin/users/" + url.PathEscape(userID) + ".json"
	if err := c.do(ctx, http.MethodGet, path, "", nil, nil, &out); err != nil {
		return "", err
	}
	if out.Username == "" {
		return "", fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return out.Username, nil
}

// CreateTopic opens a new topic as the given forum user and returns the
// topic id.
func (c *Client) CreateTopic(ctx context.Context, asUser, title, raw string, categoryID int64) (int64, error) {
	payload := map[string]any{
		"title":    title,
		"raw":      raw,
		"category": categoryID,
	}
	var out struct {
		TopicID int64 `json:"topic_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/posts.json", asUser, nil, payload, &out); err != nil {
		return 0, err
	}
	return out.TopicID, nil
}

// Reply adds a post to an existing topic as the given forum user and
// returns the post id.
func (c *Client) Reply(ctx context.Context, asUser string, topicID int64, raw string) (int64, error) {
	payload := map[string]any{
		"topic_id": topicID,
		"raw":      raw,
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/posts.json", asUser, nil, payload, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// Categories lists all forum categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out struct {
		CategoryList struct {
			Categories []Category `json:"categories"`
		} `json:"category_list"`
	}
	if err := c.do(ctx, http.MethodGet, "/categories.json", "", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.CategoryList.Categories, nil
}

// Topics lists the visible topics of one category.
func (c *Client) Topics(ctx context.Context, categoryID int64) ([]Topic, error) {
	var out struct {
		TopicList struct {
			Topics []Topic `json:"topics"`
		} `json:"topic_list"`
	}
	path := fmt.Sprintf("/c/%d.json", categoryID)
	if err := c.do(ctx, http.MethodGet, path, "", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.TopicList.Topics, nil
}

// Search runs a full-text search and returns the matched posts.
func (c *Client) Search(ctx context.Context, term string) ([]SearchResult, error) {
	var out struct {
		Posts []struct {
			ID      int64  `json:"id"`
			TopicID int64  `json:"topic_id"`
			Blurb   string `json:"blurb"`
		} `json:"posts"`
	}
	query := url.Values{"q": {term}}
	if err := c.do(ctx, http.MethodGet, "/search.json", "", query, nil, &out); err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(out.Posts))
	for _, p := range out.Posts {
		results = append(results, SearchResult{ID: p.ID, TopicID: p.TopicID, Excerpt: p.Blurb})
	}
	return results, nil
}

// Like records a like on a post as the given forum user.
func (c *Client) Like(ctx context.Context, asUser string, postID int64) error {
	payload := map[string]any{
		"id":                  postID,
		"post_action_type_id": likeActionTypeID,
	}
	return c.do(ctx, http.MethodPost, "/post_actions.json", asUser, nil, payload, nil)
}

func (c *Client) do(ctx context.Context, method, path, asUser string, query url.Values, payload, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Api-Key", c.apiKey)
	username := c.username
	if asUser != "" {
		username = asUser
	}
	req.Header.Set("Api-Username", username)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("forum request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("forum request rejected",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if resp.StatusCode == http.StatusUnprocessableEntity && bytes.Contains(raw, []byte("taken")) {
			return fmt.Errorf("%w: %s", ErrAccountExists, summarize(raw))
		}
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return nil
}

func summarize(raw []byte) string {
	var out struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(raw, &out); err == nil && len(out.Errors) > 0 {
		return strings.Join(out.Errors, "; ")
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
