// Package github implements the release source and dispatch clients against
// the GitHub REST API.
package github

import (
	"net/http"
	"time"

	"tagwatch/internal/secrets"

	"github.com/rs/zerolog"
)

const (
	apiVersion   = "2022-11-28"
	userAgent    = "tagwatch"
	acceptHeader = "application/vnd.github+json"

	defaultTimeout = 20 * time.Second
)

// ClientConfig configures the GitHub client
type ClientConfig struct {
	BaseURL string

	// ReadTokenSecret names the secret used to authenticate release fetches.
	// Fetches run tokenless when the secret is absent.
	ReadTokenSecret string

	// DispatchTokenSecret names the default secret for dispatch credentials
	DispatchTokenSecret string

	Timeout time.Duration
}

// Client talks to the GitHub REST API. It serves both capability roles of a
// monitor: fetching the latest upstream release and delivering the one-shot
// repository_dispatch notification downstream.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	secrets    secrets.Provider
	logger     zerolog.Logger
}

// NewClient creates a GitHub client. A nil httpClient gets a default with a
// bounded timeout.
func NewClient(cfg ClientConfig, provider secrets.Provider, httpClient *http.Client, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		secrets:    provider,
		logger:     logger.With().Str("component", "GitHubClient").Logger(),
	}
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
}
