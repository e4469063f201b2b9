package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/devdash/internal/apperr"
	"github.com/starford/devdash/internal/models"
)

// Client is the HTTP implementation of RemoteAPI.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the notification API rooted at baseURL
// (for example http://localhost:8080/api). token, if set, is sent as a
// Bearer credential.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type listResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

// List fetches every notification of userID.
func (c *Client) List(ctx context.Context, userID string) ([]models.Notification, error) {
	q := url.Values{"user_id": {userID}}
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/notifications?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// MarkRead marks one notification read.
func (c *Client) MarkRead(ctx context.Context, notificationID string) error {
	return c.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(notificationID)+"/read", nil, nil)
}

// MarkAllRead marks every notification of userID read.
func (c *Client) MarkAllRead(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/notifications/read-all", map[string]string{"user_id": userID}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("notify client: encode: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("notify client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("notify client: %s %s: %w", method, path, apperr.ErrNotFound)
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify client: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("notify client: decode: %w", err)
	}
	return nil
}
