package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tagwatch/internal/models"
)

// ErrReleaseNotFound indicates the upstream repository has no published release
var ErrReleaseNotFound = errors.New("release not found")

type latestReleaseResponse struct {
	TagName     string    `json:"tag_name"`
	PublishedAt time.Time `json:"published_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FetchLatest returns the latest published release of owner/repo.
func (c *Client) FetchLatest(ctx context.Context, owner, repo string) (*models.ReleaseRecord, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.cfg.BaseURL, owner, repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create release request: %w", err)
	}
	c.setCommonHeaders(req)
	if token, ok := c.secrets.Secret(c.cfg.ReadTokenSecret); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("release fetch for %s/%s failed: %w", owner, repo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no release for %s/%s: %w", owner, repo, ErrReleaseNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream API error %d for %s/%s", resp.StatusCode, owner, repo)
	}

	var release latestReleaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to decode release response for %s/%s: %w", owner, repo, err)
	}
	if release.TagName == "" {
		return nil, fmt.Errorf("release response for %s/%s missing tag_name", owner, repo)
	}

	c.logger.Debug().
		Str("repo", owner+"/"+repo).
		Str("tag", release.TagName).
		Msg("Fetched latest release")

	return &models.ReleaseRecord{
		TagName:     release.TagName,
		PublishedAt: release.PublishedAt,
		UpdatedAt:   release.UpdatedAt,
	}, nil
}
