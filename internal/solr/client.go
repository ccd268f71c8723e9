// Package solr submits finalized catalog records to the search index.
package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
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

// Client talks to one Solr core.
type Client struct {
	baseURL string
	core    string

	httpClient *http.Client
	logger     *zap.Logger
}

func New(baseURL, core string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		core:       core,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Index upserts documents and commits.
func (c *Client) Index(ctx context.Context, documents any) error {
	bs, err := json.Marshal(documents)
	if err != nil {
		return err
	}

	updateURL := fmt.Sprintf("%s/%s/update?commit=true", c.baseURL, c.core)
	if err := c.post(ctx, updateURL, "application/json", bs); err != nil {
		return err
	}
	c.logger.Info("documents indexed", zap.String("core", c.core))
	return nil
}

// DeleteAll removes every document from the core and commits.
func (c *Client) DeleteAll(ctx context.Context) error {
	updateURL := fmt.Sprintf("%s/%s/update?commit=true", c.baseURL, c.core)
	body := []byte("<delete><query>*:*</query></delete>")
	if err := c.post(ctx, updateURL, "text/xml", body); err != nil {
		return err
	}
	c.logger.Info("index cleared", zap.String("core", c.core))
	return nil
}

// Search proxies a query and returns the raw response document.
func (c *Client) Search(ctx context.Context, query string) (map[string]any, error) {
	selectURL := fmt.Sprintf("%s/%s/select?q=%s", c.baseURL, c.core, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, selectURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("solr search: status %d: %s", resp.StatusCode, bytes.TrimSpace(bs))
	}

	var result map[string]any
	if err := json.Unmarshal(bs, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, postURL, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("solr update: status %d: %s", resp.StatusCode, bytes.TrimSpace(bs))
	}
	return nil
}
