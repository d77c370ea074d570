package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autoquote/internal/config"
)

// FeedClient pages through a supplier's JSON product feed.
type FeedClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
}

type feedResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type feedPage struct {
	Products   []FeedProduct `json:"products"`
	NextCursor *string       `json:"nextCursor"`
}

// FeedProduct is one product as published by the feed.
type FeedProduct struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	HSNCode     string   `json:"hsnCode"`
	BasePrice   float64  `json:"basePrice"`
	MinPrice    *float64 `json:"minPrice"`
	MaxPrice    *float64 `json:"maxPrice"`
	Unit        string   `json:"unit"`
}

func NewFeedClient(cfg config.Config) (*FeedClient, error) {
	if err := cfg.Require("CATALOG_FEED_URL", cfg.CatalogFeedURL); err != nil {
		return nil, err
	}
	return &FeedClient{
		baseURL:    strings.TrimRight(cfg.CatalogFeedURL, "/"),
		token:      cfg.CatalogFeedToken,
		httpClient: &http.Client{Timeout: cfg.CatalogFeedTimeout},
		maxRetries: 5,
	}, nil
}

// Products follows nextCursor until the feed is exhausted. A cursor seen
// twice ends the walk.
func (c *FeedClient) Products(ctx context.Context) ([]FeedProduct, error) {
	all := []FeedProduct{}
	seen := map[string]struct{}{}
	cursor := ""

	for {
		query := url.Values{}
		if cursor != "" {
			query.Set("cursor", cursor)
		}
		body, err := c.fetchJSON(ctx, "products", query)
		if err != nil {
			return nil, err
		}

		var page feedPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode feed page: %w", err)
		}
		all = append(all, page.Products...)

		if page.NextCursor == nil || *page.NextCursor == "" || len(page.Products) == 0 {
			break
		}
		if _, ok := seen[*page.NextCursor]; ok {
			break
		}
		seen[*page.NextCursor] = struct{}{}
		cursor = *page.NextCursor
	}
	return all, nil
}

func (c *FeedClient) fetchJSON(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL + "/" + endpoint)
	if err != nil {
		return nil, err
	}
	u.RawQuery = query.Encode()

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < c.maxRetries {
				lastErr = fmt.Errorf("catalog feed status %d", resp.StatusCode)
				if err := sleepBackoff(ctx, attempt); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("catalog feed error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var feedResp feedResponse
		if err := json.Unmarshal(body, &feedResp); err != nil {
			return nil, err
		}
		if !feedResp.Success {
			return nil, fmt.Errorf("catalog feed unsuccessful: %s %s", feedResp.Message, string(feedResp.Errors))
		}
		return feedResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("catalog feed request failed")
	}
	return nil, lastErr
}

func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
