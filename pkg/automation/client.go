// Package automation is the client for the automation backend that hosts
// the business-search, ads-detection, AI-scoring and deep-diagnostic
// workflows.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultTimeout = 15 * time.Minute
	maxBodyBytes   = 10 << 20
)

// Paths are the endpoint paths relative to the base URL.
type Paths struct {
	Search     string `yaml:"search" mapstructure:"search"`
	Ads        string `yaml:"ads" mapstructure:"ads"`
	Scoring    string `yaml:"scoring" mapstructure:"scoring"`
	Diagnostic string `yaml:"diagnostic" mapstructure:"diagnostic"`
}

// DefaultPaths returns the stock webhook paths.
func DefaultPaths() Paths {
	return Paths{
		Search:     "/webhook/prospect-search",
		Ads:        "/webhook/ads-check",
		Scoring:    "/webhook/lead-score",
		Diagnostic: "/webhook/lead-diagnostic",
	}
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithPaths overrides endpoint paths. Empty fields keep their defaults.
func WithPaths(p Paths) Option {
	return func(c *Client) {
		if p.Search != "" {
			c.paths.Search = p.Search
		}
		if p.Ads != "" {
			c.paths.Ads = p.Ads
		}
		if p.Scoring != "" {
			c.paths.Scoring = p.Scoring
		}
		if p.Diagnostic != "" {
			c.paths.Diagnostic = p.Diagnostic
		}
	}
}

// Client calls the automation backend. The http.Client timeout is only a
// backstop; callers bound each call with a context deadline.
type Client struct {
	baseURL string
	token   string
	paths   Paths
	http    *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		paths:   DefaultPaths(),
		http: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// post sends body as JSON and returns the raw response body of a 2xx reply.
func (c *Client) post(ctx context.Context, endpoint, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrapf(err, "automation: %s: marshal request", endpoint)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrapf(err, "automation: %s: create request", endpoint)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, endpoint, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(ctx, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(endpoint, resp.StatusCode, respBody)
	}
	return respBody, nil
}

// envelope is the success flag every workflow returns.
type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// decode unmarshals a structured reply and rejects explicit failures.
func decode(endpoint string, body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &Error{Kind: ErrMalformedResponse, Endpoint: endpoint, Message: excerpt(body), Cause: err}
	}
	if env.Success != nil && !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = "success=false"
		}
		return &Error{Kind: ErrProviderError, Endpoint: endpoint, Message: msg}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: ErrMalformedResponse, Endpoint: endpoint, Message: excerpt(body), Cause: err}
	}
	return nil
}
