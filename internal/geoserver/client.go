// Package geoserver is a client for the map server's REST catalog: store
// creation and deletion, projection and style management, and bounding-box
// readback for published layers.
package geoserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrStoreConflict is the named "already exists" condition. Publish
	// paths keep the existing resource and carry it in the result message;
	// everything else treats it as fatal.
	ErrStoreConflict = errors.New("store already exists")

	ErrNotFound = errors.New("not found")
)

const (
	// KindFeatureType marks a published vector resource.
	KindFeatureType = "featureType"
	// KindCoverage marks a published raster resource.
	KindCoverage = "coverage"
)

type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// Client talks to one GeoServer instance, scoped to a single workspace.
type Client struct {
	baseURL   string
	workspace string
	username  string
	password  string

	httpClient *http.Client
	logger     *zap.Logger
}

func New(baseURL, workspace string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		workspace:  workspace,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Workspace() string {
	return c.workspace
}

// BaseURL returns the server root, for building WFS/WMS endpoint URLs.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do issues an authenticated request and returns the response body.
// Non-2xx statuses are errors carrying the body; 404 maps to ErrNotFound.
func (c *Client) do(ctx context.Context, method, url, contentType string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	c.logger.Debug("geoserver request",
		zap.String("method", method),
		zap.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, url)
	}
	if resp.StatusCode >= 400 {
		if bytes.Contains(bs, []byte("already exists")) {
			return nil, fmt.Errorf("%w: %s", ErrStoreConflict, bytes.TrimSpace(bs))
		}
		return nil, fmt.Errorf("geoserver %s %s: status %d: %s",
			method, url, resp.StatusCode, bytes.TrimSpace(bs))
	}
	return bs, nil
}
