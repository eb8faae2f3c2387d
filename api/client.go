package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"moob/logger"
	"moob/nav"
)

const (
	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 16 * 1024 * 1024

	pathRegister = "/auth/register"
	pathLogin    = "/auth/login"
	pathProfile  = "/auth/profile"
	pathSend     = "/messages/send"
	pathSent     = "/messages/sent"
	pathStats    = "/messages/stats"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenStore
	Navigator  nav.Navigator
	Logger     *logrus.Entry
	Metrics    *Metrics
}

// Client is the backend HTTP wrapper. Every request carries the persisted
// bearer token; a 401 on anything but login/register clears the token,
// forces navigation to the login view and notifies unauthorized listeners.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	tokens    TokenStore
	navigator nav.Navigator
	log       *logrus.Entry

	mu                    sync.RWMutex
	unauthorizedListeners []func()
}

// NewClient validates options and builds a Client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("api base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api base URL must be http or https, got %q", opts.BaseURL)
	}
	if opts.Tokens == nil {
		return nil, errors.New("token store is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Metrics != nil {
		instrumented := *httpClient
		instrumented.Transport = opts.Metrics.InstrumentTransport(httpClient.Transport)
		httpClient = &instrumented
	}

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		baseURL:   base,
		http:      httpClient,
		tokens:    opts.Tokens,
		navigator: opts.Navigator,
		log:       log,
	}, nil
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// OnUnauthorized registers fn to run after the global 401 handling.
func (c *Client) OnUnauthorized(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.unauthorizedListeners = append(c.unauthorizedListeners, fn)
	c.mu.Unlock()
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(raw), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token, err := c.tokens.Token()
	if err != nil {
		c.log.WithError(err).Warn("read persisted token; sending request without credentials")
	} else if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	entry := c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		entry.WithError(err).Debug("backend request failed")
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	entry.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("backend request completed")

	if resp.StatusCode == http.StatusUnauthorized && !isAuthEndpoint(path) {
		c.handleUnauthorized(entry)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) handleUnauthorized(entry *logrus.Entry) {
	entry.Info("session expired; clearing persisted token")

	if err := c.tokens.ClearToken(); err != nil {
		entry.WithError(err).Error("clear persisted token after 401")
	}
	if c.navigator != nil {
		c.navigator.Navigate(nav.RouteLogin)
	}

	c.mu.RLock()
	listeners := append([]func(){}, c.unauthorizedListeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

func isAuthEndpoint(path string) bool {
	return strings.Contains(path, pathLogin) || strings.Contains(path, pathRegister)
}
