// Package push delivers new-item notifications to a Bark-compatible
// endpoint. Delivery is best effort: any failure degrades to a console
// preview and never propagates to the caller.
package push

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yichya/rss-pipe/app/extract"
)

const (
	// DefaultGroup is used when the caller does not assign a notification group
	DefaultGroup = "rss_pipe"

	bodyMaxSize    = 250
	requestTimeout = 10 * time.Second
)

// Request is the JSON payload accepted by the Bark push endpoint
type Request struct {
	Title string `json:"title"`
	Group string `json:"group"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Image string `json:"image,omitempty"`
}

// Client posts notifications to a fixed destination URL
type Client struct {
	destination string
	httpClient  *http.Client
}

// NewClient creates a push client for the given destination. An empty
// destination is valid; every notification then falls back to the preview.
func NewClient(destination string) *Client {
	return &Client{
		destination: destination,
		httpClient:  &http.Client{Timeout: requestTimeout},
	}
}

// Send builds and delivers one notification. The body is the extracted
// plain text of the item content, deduplicated against the item title.
func (c *Client) Send(feedTitle, itemTitle, content, group, link, image string) {
	if group == "" {
		group = DefaultGroup
	}

	request := Request{
		Title: feedTitle,
		Group: group,
		Body:  extract.Run(itemTitle, content, bodyMaxSize),
		URL:   link,
		Image: image,
	}

	payload, err := json.Marshal(request)
	if err != nil {
		c.preview(request)
		return
	}

	slog.Debug("Sending bark push request", "title", request.Title, "group", request.Group)

	resp, err := c.post(payload)
	if err != nil {
		slog.Warn("Bark push failed, falling back to preview", "error", err)
		c.preview(request)
		return
	}
	defer resp.Body.Close()

	// Any HTTP status from the destination counts as delivery attempted
	slog.Info("Bark push completed", "status", resp.StatusCode)
}

func (c *Client) post(payload []byte) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, c.destination, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to deliver push request: %w", err)
	}
	return resp, nil
}

// preview writes a bordered plain-text rendition of the notification to the
// operational log so nothing is lost when the transport is unavailable
func (c *Client) preview(request Request) {
	fmt.Printf("======== Bark Preview ========\n%s\n%s\n==============================\n",
		request.Title, strings.TrimRight(request.Body, "\n"))
}
