// Package search proxies the icon-search upstream: a query in, icon
// metadata out. The pipeline never depends on this package; it exists for
// the discovery endpoint only.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Icon is one search hit as served back to clients.
type Icon struct {
	ID         string   `json:"id"`
	Tags       []string `json:"tags,omitempty"`
	PreviewURL string   `json:"preview_url"`
	DownloadURL string  `json:"download_url,omitempty"`
	IsPremium  bool     `json:"is_premium"`
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}
}

// Search queries the upstream for icons matching q. A non-2xx upstream
// answer surfaces with its status so the API layer can propagate it.
func (c *Client) Search(ctx context.Context, q string, limit int) ([]Icon, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	endpoint := c.baseURL + "/icons/search?" + url.Values{
		"query": []string{q},
		"count": []string{strconv.Itoa(limit)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search upstream returned status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	var parsed struct {
		Icons []struct {
			IconID  json.Number `json:"icon_id"`
			Tags    []string    `json:"tags"`
			IsPremium bool      `json:"is_premium"`
			Rasters []struct {
				Formats []struct {
					PreviewURL  string `json:"preview_url"`
					DownloadURL string `json:"download_url"`
				} `json:"formats"`
			} `json:"raster_sizes"`
		} `json:"icons"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	icons := make([]Icon, 0, len(parsed.Icons))
	for _, raw := range parsed.Icons {
		icon := Icon{
			ID:        raw.IconID.String(),
			Tags:      raw.Tags,
			IsPremium: raw.IsPremium,
		}
		// The upstream lists raster renditions smallest first; take the
		// largest available preview.
		for i := len(raw.Rasters) - 1; i >= 0 && icon.PreviewURL == ""; i-- {
			for _, format := range raw.Rasters[i].Formats {
				if format.PreviewURL != "" {
					icon.PreviewURL = format.PreviewURL
					icon.DownloadURL = format.DownloadURL
					break
				}
			}
		}
		icons = append(icons, icon)
	}
	return icons, nil
}
