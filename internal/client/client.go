// Package client talks to the drift HTTP API and keeps the state of one
// scrolling session within a bounded memory budget.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/drift/internal/logger"
)

const (
	DefaultServerURL = "http://127.0.0.1:37778"
	httpTimeout      = 10 * time.Second
)

// Post is a feed item as served by the API.
type Post struct {
	ID            int64      `json:"id"`
	GeneratorID   int64      `json:"generator_id"`
	GeneratorName string     `json:"generator_name"`
	ImageURL      *string    `json:"image_url"`
	MoreLink      *string    `json:"more_link"`
	Body          *string    `json:"body"`
	Timestamp     time.Time  `json:"timestamp"`
	SeenCount     int        `json:"seen_count"`
	LastSeenTs    *time.Time `json:"last_seen_ts"`
	Reaction      string     `json:"reaction"`
	ReactionTs    *time.Time `json:"reaction_ts"`
}

// Batch is one page of the feed. Next is nil once the view is exhausted.
type Batch struct {
	Page []Post  `json:"page"`
	Next *string `json:"next"`
}

// SavedPage is one page of the saved list. Next is the offset of the
// following page, nil when this page was empty.
type SavedPage struct {
	Page []Post `json:"page"`
	Next *int   `json:"next"`
}

// FeedRequest selects one feed page.
type FeedRequest struct {
	Limit  int
	Cursor string
	Epoch  *int64
}

// NewPost is the body of a create post call.
type NewPost struct {
	GeneratorID int64      `json:"generator_id"`
	ImageURL    *string    `json:"image_url,omitempty"`
	MoreLink    *string    `json:"more_link,omitempty"`
	Body        *string    `json:"body,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// Generator is a registered post producer.
type Generator struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// generatorBody is the writable part of a Generator.
type generatorBody struct {
	Name   string          `json:"name,omitempty"`
	Type   string          `json:"type,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Method    string
	Path      string
	Status    int
	Message   string
	Retryable bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// IsRetryable reports whether err is a failure worth retrying: a transport
// error or a server response flagged retryable.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return err != nil && !errors.Is(err, context.Canceled)
}

// Client talks to the drift server.
type Client struct {
	http      *http.Client
	serverURL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at serverURL, falling back to
// DefaultServerURL when empty.
func New(serverURL string, opts ...Option) *Client {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	c := &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: strings.TrimRight(serverURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, rd)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	logger.C(ctx).Debug().
		Str("request_id", reqID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("client: request done")

	if resp.StatusCode >= 400 {
		var e struct {
			Error     string `json:"error"`
			Retryable bool   `json:"retryable"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &StatusError{
			Method:    method,
			Path:      path,
			Status:    resp.StatusCode,
			Message:   msg,
			Retryable: e.Retryable || resp.StatusCode >= 500,
		}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}

// Feed fetches one feed page.
func (c *Client) Feed(ctx context.Context, fr FeedRequest) (Batch, error) {
	q := url.Values{}
	if fr.Limit > 0 {
		q.Set("limit", strconv.Itoa(fr.Limit))
	}
	if fr.Cursor != "" {
		q.Set("cursor", fr.Cursor)
	}
	if fr.Epoch != nil {
		q.Set("epoch", strconv.FormatInt(*fr.Epoch, 10))
	}
	path := "/api/feed"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var b Batch
	if err := c.do(ctx, http.MethodGet, path, nil, &b); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// MarkSeen records that the viewer saw post id.
func (c *Client) MarkSeen(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/seen", id), nil, nil)
}

// React sets the viewer's reaction on post id; "none" clears it.
func (c *Client) React(ctx context.Context, id int64, reaction string) error {
	body := map[string]string{"reaction": reaction}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/react", id), body, nil)
}

// GetPost fetches a single post.
func (c *Client) GetPost(ctx context.Context, id int64) (*Post, error) {
	var p Post
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/posts/%d", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePost creates a post and returns its id.
func (c *Client) CreatePost(ctx context.Context, np NewPost) (int64, error) {
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/posts", np, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Saved lists reacted posts, offset paginated. Empty reactions means every
// saved reaction.
func (c *Client) Saved(ctx context.Context, reactions []string, limit, offset int) (SavedPage, error) {
	q := url.Values{}
	if len(reactions) > 0 {
		q.Set("reactions", strings.Join(reactions, ","))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/saved"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var sp SavedPage
	if err := c.do(ctx, http.MethodGet, path, nil, &sp); err != nil {
		return SavedPage{}, err
	}
	return sp, nil
}

// CreateGenerator registers a generator and returns it with its id set.
func (c *Client) CreateGenerator(ctx context.Context, g Generator) (Generator, error) {
	body := generatorBody{Name: g.Name, Type: g.Type, Config: g.Config}
	var out Generator
	if err := c.do(ctx, http.MethodPost, "/api/generators", body, &out); err != nil {
		return Generator{}, err
	}
	return out, nil
}

// UpdateGenerator renames generator id and, when config is set, replaces
// its config.
func (c *Client) UpdateGenerator(ctx context.Context, id int64, name string, config json.RawMessage) (Generator, error) {
	body := generatorBody{Name: name, Config: config}
	var out Generator
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/generators/%d", id), body, &out); err != nil {
		return Generator{}, err
	}
	return out, nil
}

// DeleteGenerator removes a generator that has produced no posts.
func (c *Client) DeleteGenerator(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/generators/%d", id), nil, nil)
}

// Generators lists every registered generator.
func (c *Client) Generators(ctx context.Context) ([]Generator, error) {
	var resp struct {
		Generators []Generator `json:"generators"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/generators", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Generators, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil) == nil
}
