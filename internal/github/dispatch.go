package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tagwatch/internal/models"
)

// dispatchEventType is the repository_dispatch event name received downstream
const dispatchEventType = "upstream_update"

type dispatchRequest struct {
	EventType     string                 `json:"event_type"`
	ClientPayload models.DispatchPayload `json:"client_payload"`
}

// Send delivers the one-shot release notification to owner/repo as a
// repository_dispatch event. tokenSecret names the credential to use; empty
// falls back to the client's configured default.
func (c *Client) Send(ctx context.Context, owner, repo, tokenSecret string, payload models.DispatchPayload) error {
	secretName := tokenSecret
	if secretName == "" {
		secretName = c.cfg.DispatchTokenSecret
	}
	token, ok := c.secrets.Secret(secretName)
	if !ok {
		return fmt.Errorf("dispatch secret %q missing", secretName)
	}

	body, err := json.Marshal(dispatchRequest{
		EventType:     dispatchEventType,
		ClientPayload: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch payload: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/dispatches", c.cfg.BaseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create dispatch request: %w", err)
	}
	c.setCommonHeaders(req)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch to %s/%s failed: %w", owner, repo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("dispatch to %s/%s failed with status %d: %s", owner, repo, resp.StatusCode, string(respBody))
	}

	c.logger.Info().
		Str("repo", owner+"/"+repo).
		Str("version", payload.Version).
		Msg("Dispatch notification sent")
	return nil
}
