// Package transliterate looks up Devanagari spellings for roman words on the
// public Google Input Tools endpoint.
package transliterate

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

	"deshhindi/pkg/logger"
)

const statusSuccess = "SUCCESS"

type Config struct {
	BaseURL    string
	InputTool  string
	Candidates int
	Timeout    time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.InputTool == "" {
		cfg.InputTool = "hi-t-i0-und"
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Transliterate returns ranked candidates for word. Any failure degrades to a
// single candidate holding the word itself.
func (c *Client) Transliterate(ctx context.Context, word string) []string {
	candidates, err := c.lookup(ctx, word)
	if err != nil {
		logger.Sugar.Warnf("Transliteration of %q failed: %v", word, err)
		return []string{word}
	}
	return candidates
}

func (c *Client) requestURL(word string) string {
	q := url.Values{}
	q.Set("text", word)
	q.Set("itc", c.cfg.InputTool)
	q.Set("num", strconv.Itoa(c.cfg.Candidates))
	q.Set("cp", "0")
	q.Set("cs", "1")
	q.Set("ie", "utf-8")
	q.Set("oe", "utf-8")
	q.Set("app", "demopage")
	return c.cfg.BaseURL + "/request?" + q.Encode()
}

func (c *Client) lookup(ctx context.Context, word string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(word), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var payload []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return parseResponse(payload)
}

// parseResponse reads ["SUCCESS", [[word, [candidates...], ...], ...]].
func parseResponse(payload []json.RawMessage) ([]string, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("short response of %d elements", len(payload))
	}
	var status string
	if err := json.Unmarshal(payload[0], &status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if status != statusSuccess {
		return nil, fmt.Errorf("status %q", status)
	}

	var results [][]json.RawMessage
	if err := json.Unmarshal(payload[1], &results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	if len(results) == 0 || len(results[0]) < 2 {
		return nil, fmt.Errorf("no result entries")
	}

	var candidates []string
	if err := json.Unmarshal(results[0][1], &candidates); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("empty candidate list")
	}
	return candidates, nil
}
