// Package homeassistant forwards assistant notices to a Home Assistant
// notification service.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"speaksmart/internal/infra"
)

const defaultService = "persistent_notification.create"

type Client struct {
	baseURL    string
	token      string
	service    string
	title      string
	httpClient *http.Client
}

// NewClient targets a Home Assistant instance. service is a "domain.name"
// pair such as "notify.mobile_app_phone"; empty means a persistent
// notification in the HA UI.
func NewClient(baseURL, token, service, title string) *Client {
	// Remove trailing slash if present
	baseURL = strings.TrimSuffix(baseURL, "/")
	if service == "" {
		service = defaultService
	}
	if title == "" {
		title = "SpeakSmart"
	}

	return &Client{
		baseURL:    baseURL,
		token:      token,
		service:    service,
		title:      title,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type notification struct {
	Message string `json:"message"`
	Title   string `json:"title,omitempty"`
}

func (c *Client) Notify(ctx context.Context, message string) error {
	// Split service into domain and service name (e.g., "notify.mobile_app" -> "notify", "mobile_app")
	parts := strings.SplitN(c.service, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid service format: %s", c.service)
	}

	body, err := json.Marshal(notification{Message: message, Title: c.title})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	path := fmt.Sprintf("/api/services/%s/%s", parts[0], parts[1])
	if err := c.doRequest(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) error {
	return infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return infra.Permanent(errors.New("unauthorized: check your Home Assistant token"))
		}

		if resp.StatusCode >= 400 {
			return infra.StatusError("home assistant", resp.StatusCode, respBody)
		}

		return nil
	})
}
