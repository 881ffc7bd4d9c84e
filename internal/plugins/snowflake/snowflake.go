package snowflake

import (
	"context"
	"courier/internal/config"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client calls the remote unique-id service for message primary keys.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.SnowflakeConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) NextID(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/snowflake", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("snowflake request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("snowflake service returned %d", resp.StatusCode)
	}
	var result struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("snowflake response malformed: %w", err)
	}
	if result.ID == 0 {
		return 0, fmt.Errorf("snowflake service returned an empty id")
	}
	return result.ID, nil
}
