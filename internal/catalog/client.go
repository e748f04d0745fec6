// Package catalog reads content records from the upstream catalog REST API.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when the catalog has no record for an ID.
var ErrNotFound = errors.New("content not found")

// Content is the subset of a catalog record needed for playback.
type Content struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	MediaType string `json:"media_type"`
	VideoURL  string `json:"video_url"`
}

// Source looks up content by ID.
type Source interface {
	Get(ctx context.Context, id string) (*Content, error)
}

// Client is an HTTP client for GET {base}/content/{id}.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a catalog client. timeout <= 0 means 10 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Get fetches one content record.
func (c *Client) Get(ctx context.Context, id string) (*Content, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("catalog base url not set")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}

	reqURL := c.baseURL + "/content/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog request build: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("catalog read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	content, err := decodeContent(body)
	if err != nil {
		return nil, err
	}
	if content.ID == "" {
		content.ID = id
	}
	return content, nil
}

// decodeContent accepts a bare record or one wrapped as {"data": {...}}. Numeric IDs and
// camelCase field names are tolerated.
func decodeContent(body []byte) (*Content, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("catalog decode: %w", err)
	}
	if len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
		body = envelope.Data
	}

	var raw struct {
		ID           json.RawMessage `json:"id"`
		Title        string          `json:"title"`
		MediaType    string          `json:"media_type"`
		MediaTypeAlt string          `json:"mediaType"`
		VideoURL     string          `json:"video_url"`
		VideoURLAlt  string          `json:"videoUrl"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("catalog decode: %w", err)
	}

	c := &Content{Title: raw.Title, MediaType: raw.MediaType, VideoURL: raw.VideoURL}
	if len(raw.ID) > 0 && !bytes.Equal(raw.ID, []byte("null")) {
		var s string
		if err := json.Unmarshal(raw.ID, &s); err == nil {
			c.ID = s
		} else {
			c.ID = string(raw.ID)
		}
	}
	if c.VideoURL == "" {
		c.VideoURL = raw.VideoURLAlt
	}
	if c.MediaType == "" {
		c.MediaType = raw.MediaTypeAlt
	}
	return c, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
