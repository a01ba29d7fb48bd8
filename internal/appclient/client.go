// Package appclient talks to the application that owns the media records:
// it fetches metadata for a job and posts the job outcome back.
package appclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/your-org/facerec/internal/config"
	"github.com/your-org/facerec/internal/models"
	"github.com/your-org/facerec/pkg/dto"
)

// maxErrorBody caps how much of a failed response is copied into the error.
const maxErrorBody = 4 << 10

type Client struct {
	baseURL      string
	token        string
	client       *http.Client
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func New(cfg config.AppConfig) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		token:        cfg.Token,
		client:       &http.Client{},
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
	}
}

// FetchMedia loads GET {base}/media/{id}. Every failure wraps
// models.ErrMetadataFetch.
func (c *Client) FetchMedia(ctx context.Context, mediaID int64) (*dto.Media, error) {
	ctx, cancel := withTimeout(ctx, c.readTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/media/%d", c.baseURL, mediaID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", models.ErrMetadataFetch, err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: media %d: %w", models.ErrMetadataFetch, mediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: media %d: %s", models.ErrMetadataFetch, mediaID, statusError(resp))
	}

	var media dto.Media
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return nil, fmt.Errorf("%w: media %d: decode response: %w", models.ErrMetadataFetch, mediaID, err)
	}
	return &media, nil
}

// PostProcessed sends payload to POST {base}/media/{id}/processed after
// passing it through Sanitize. A transport failure or a status >= 400
// wraps models.ErrCallback.
func (c *Client) PostProcessed(ctx context.Context, mediaID int64, payload any) error {
	body, err := json.Marshal(Sanitize(payload))
	if err != nil {
		return fmt.Errorf("%w: encode payload: %w", models.ErrCallback, err)
	}

	ctx, cancel := withTimeout(ctx, c.writeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/media/%d/processed", c.baseURL, mediaID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %w", models.ErrCallback, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: media %d: %w", models.ErrCallback, mediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: media %d: %s", models.ErrCallback, mediaID, statusError(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func statusError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
