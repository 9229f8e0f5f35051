package client

import (
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

	"github.com/goliatone/go-clinic-notifications/pkg/notifications"
)

// QueryService is the pull side of the feed as the store consumes it.
type QueryService interface {
	List(ctx context.Context, q ListQuery) (notifications.ListResponse, error)
	Latest(ctx context.Context, limit int) (notifications.FeedResponse, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	DeleteRead(ctx context.Context) error
}

// ListQuery mirrors the GET /notifications parameters.
type ListQuery struct {
	Page       int
	PerPage    int
	UnreadOnly bool
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: %s %s returned %d", e.Method, e.Path, e.Status)
}

var errBaseURLRequired = errors.New("client: base url is required")

// APIClient calls the notification query API with a bearer token.
type APIClient struct {
	base    *url.URL
	token   string
	timeout time.Duration
	client  *http.Client
}

var _ QueryService = (*APIClient)(nil)

// APIOption customises an APIClient.
type APIOption func(*APIClient)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) APIOption {
	return func(c *APIClient) {
		c.token = strings.TrimSpace(token)
	}
}

// WithHTTPClient allows injecting a custom HTTP client.
func WithHTTPClient(hc *http.Client) APIOption {
	return func(c *APIClient) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client. It is ignored
// when WithHTTPClient supplies one.
func WithTimeout(d time.Duration) APIOption {
	return func(c *APIClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewAPIClient builds a client rooted at baseURL.
func NewAPIClient(baseURL string, opts ...APIOption) (*APIClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errBaseURLRequired
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	c := &APIClient{base: base, timeout: 10 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

func (c *APIClient) List(ctx context.Context, q ListQuery) (notifications.ListResponse, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.UnreadOnly {
		params.Set("unread_only", "true")
	}
	var out notifications.ListResponse
	err := c.do(ctx, http.MethodGet, "/notifications", params, &out)
	return out, err
}

func (c *APIClient) Latest(ctx context.Context, limit int) (notifications.FeedResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var out notifications.FeedResponse
	err := c.do(ctx, http.MethodGet, "/notifications/latest", params, &out)
	return out, err
}

func (c *APIClient) UnreadCount(ctx context.Context) (int, error) {
	var out notifications.CountResponse
	if err := c.do(ctx, http.MethodGet, "/notifications/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *APIClient) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *APIClient) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/notifications/mark-all-read", nil, nil)
}

func (c *APIClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), nil, nil)
}

func (c *APIClient) DeleteRead(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/notifications/read/all", nil, nil)
}

// AuthorizeChannel requests a subscription grant for channel.
func (c *APIClient) AuthorizeChannel(ctx context.Context, channel, socketID string) (string, error) {
	body, _ := json.Marshal(map[string]string{"channel_name": channel, "socket_id": socketID})
	var out struct {
		Auth string `json:"auth"`
	}
	if err := c.send(ctx, http.MethodPost, "/broadcasting/auth", nil, strings.NewReader(string(body)), &out); err != nil {
		return "", err
	}
	return out.Auth, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, params url.Values, out any) error {
	return c.send(ctx, method, path, params, nil, out)
}

func (c *APIClient) send(ctx context.Context, method, path string, params url.Values, body io.Reader, out any) error {
	target := *c.base
	target.Path = c.base.Path + path
	if len(params) > 0 {
		target.RawQuery = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("client: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
