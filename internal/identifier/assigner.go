// Package identifier mints persistent ARK identifiers for catalog records
// and derives their URL-safe slugs.
package identifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ErrMintingFailed wraps the minting service's error body on any
// non-success response. It is surfaced, not retried.
var ErrMintingFailed = errors.New("identifier minting failed")

type Option func(*Assigner)

func WithLogger(logger *zap.Logger) Option {
	return func(a *Assigner) {
		a.logger = logger
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(a *Assigner) {
		a.httpClient = httpClient
	}
}

// Assigner talks to the ARK minting service.
type Assigner struct {
	serviceURL string
	token      string
	resolveURL string

	httpClient *http.Client
	logger     *zap.Logger
}

// New builds an Assigner. serviceURL is the minting endpoint (also the
// public identifier prefix), resolveURL the catalog base registered as the
// identifier's resolve target.
func New(serviceURL, token, resolveURL string, opts ...Option) *Assigner {
	a := &Assigner{
		serviceURL: strings.TrimSuffix(serviceURL, "/") + "/",
		token:      token,
		resolveURL: strings.TrimSuffix(resolveURL, "/") + "/",
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assignment carries the persistent identifier in its three shapes: the
// bare identifier, the resolvable display URL, and the URL-safe slug.
type Assignment struct {
	Identifier string
	UUID       string
	Slug       string
}

type mintResponse struct {
	Results []map[string]any `json:"results"`
}

// Assign reuses an existing identifier when one is supplied (re-ingestion)
// and otherwise mints a new one, registering the record's resolve URL
// against it.
func (a *Assigner) Assign(ctx context.Context, title, existing string) (*Assignment, error) {
	if existing != "" {
		return a.assignment(existing), nil
	}

	payload := map[string]any{
		"resolve_url": a.resolveURL,
		"metadata": map[string]any{
			"mods": map[string]any{
				"titleInfo":       []map[string]any{{"title": title}},
				"typeOfResource":  "",
				"identifier":      "",
				"accessCondition": "",
			},
		},
	}

	body, err := a.request(ctx, http.MethodPost, a.serviceURL+"?format=json", payload)
	if err != nil {
		return nil, err
	}

	var minted mintResponse
	if err := json.Unmarshal(body, &minted); err != nil {
		return nil, fmt.Errorf("decoding mint response: %w", err)
	}
	if len(minted.Results) == 0 {
		return nil, fmt.Errorf("%w: empty result set", ErrMintingFailed)
	}

	result := minted.Results[0]
	ark, _ := result["ark"].(string)
	detailURL, _ := result["ark-detail"].(string)
	if ark == "" || detailURL == "" {
		return nil, fmt.Errorf("%w: response missing ark or detail url", ErrMintingFailed)
	}
	delete(result, "ark-detail")

	assignment := a.assignment(ark)
	a.logger.Info("identifier minted",
		zap.String("identifier", ark),
		zap.String("slug", assignment.Slug))

	// register the final resolve target against the minted identifier
	result["resolve_url"] = a.resolveURL + assignment.Slug
	if metadata, ok := result["metadata"].(map[string]any); ok {
		if mods, ok := metadata["mods"].(map[string]any); ok {
			mods["identifier"] = assignment.UUID
		}
	}
	if _, err := a.request(ctx, http.MethodPut, detailURL, result); err != nil {
		return nil, err
	}

	return assignment, nil
}

func (a *Assigner) assignment(ark string) *Assignment {
	return &Assignment{
		Identifier: ark,
		UUID:       a.serviceURL + ark,
		Slug:       strings.ReplaceAll(ark, "/", "-"),
	}
}

func (a *Assigner) request(ctx context.Context, method, url string, payload any) ([]byte, error) {
	bs, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+a.token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d: %s",
			ErrMintingFailed, resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}
