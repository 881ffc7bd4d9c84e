package translate

import (
	"bytes"
	"context"
	"courier/internal/config"
	"encoding/json"
	"net/http"
)

// Client is a best-effort bridge to the text translation service. Any
// failure returns the original text untouched; translation never blocks or
// breaks a query.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.TranslateConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) TranslateIfPossible(ctx context.Context, text, lang string) (string, bool) {
	if c.baseURL == "" || lang == "" || text == "" {
		return text, false
	}
	payload, _ := json.Marshal(struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}{Text: text, Language: lang})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return text, false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return text, false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return text, false
	}
	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.Text == "" {
		return text, false
	}
	return result.Text, true
}
