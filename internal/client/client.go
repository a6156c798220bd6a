// Package client is a typed Go client for the staffdesk REST API. It keeps a
// response cache that mutations invalidate, and tracks form signing status
// optimistically between authoritative refreshes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"staffdesk/internal/models"
)

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Problem models.Problem
}

func (e *Error) Error() string {
	if e.Problem.Detail != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Problem.Title, e.Problem.Detail)
	}
	return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

type Client struct {
	base  string
	http  *http.Client
	cache *Cache
	now   func() time.Time

	Forms *Forms
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithCacheTTL bounds how long GET responses are served from the cache.
func WithCacheTTL(ttl time.Duration) Option { return func(c *Client) { c.cache.ttl = ttl } }

// WithWatch sets the signing watcher cadence (interval × ticks).
func WithWatch(interval time.Duration, ticks int) Option {
	return func(c *Client) { c.Forms.watchInterval, c.Forms.watchTicks = interval, ticks }
}

// New returns a client for baseURL, e.g. "https://hr.example.com/api".
// Session cookies are kept in a jar so Login carries over to later calls.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:  u.String(),
		http:  &http.Client{Timeout: 30 * time.Second, Jar: jar},
		cache: NewCache(0),
		now:   time.Now,
	}
	c.Forms = &Forms{c: c, states: make(map[uint]formState), watching: make(map[uint]bool),
		watchInterval: 10 * time.Second, watchTicks: 12}
	for _, o := range opts {
		o(c)
	}
	if c.http.Jar == nil {
		c.http.Jar = jar
	}
	return c, nil
}

func (c *Client) Cache() *Cache { return c.cache }

func (c *Client) request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.send(req)
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		e := &Error{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e.Problem)
		return nil, e
	}
	return resp, nil
}

// do sends a JSON request and decodes the response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.request(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

// cached serves GET path from the cache under key, fetching on a miss.
func cached[T any](ctx context.Context, c *Client, key, path string) (T, error) {
	if v, ok := c.cache.Get(key); ok {
		if t, ok := v.(T); ok {
			return clone(t)
		}
	}
	var out T
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return out, err
	}
	stored, err := clone(out)
	if err != nil {
		return out, err
	}
	c.cache.Set(key, stored)
	return out, nil
}

// clone deep-copies a decoded API value so callers never share memory with the cache.
func clone[T any](v T) (T, error) {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("client: copy cached value: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("client: copy cached value: %w", err)
	}
	return out, nil
}

// mutated drops everything m makes stale.
func (c *Client) mutated(m Mutation, employeeID uint) {
	c.cache.Invalidate(Invalidations(m, employeeID)...)
}

// Session is the signed-in user with the linked employee record, if any.
type Session struct {
	models.User
	Employee *models.Employee `json:"employee,omitempty"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var s Session
	err := c.do(ctx, http.MethodPost, "/login", map[string]string{"username": username, "password": password}, &s)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate("*")
	return &s, nil
}

func (c *Client) Logout(ctx context.Context) error {
	c.cache.Invalidate("*")
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodGet, "/user", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func decode(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", resp.Request.URL.Path, err)
	}
	return nil
}
