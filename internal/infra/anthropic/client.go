package anthropic

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

	"speaksmart/internal/domain"
	"speaksmart/internal/infra"
)

type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	model      string
}

func NewClient(apiKey, model string, timeout time.Duration) *Client {
	return NewClientWithURL(apiKey, model, timeout, "https://api.anthropic.com/v1")
}

func NewClientWithURL(apiKey, model string, timeout time.Duration, baseURL string) *Client {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		model:      model,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model       string    `json:"model"`
	MaxTokens   int32     `json:"max_tokens"`
	Messages    []message `json:"messages"`
	Temperature *float32  `json:"temperature,omitempty"`
	TopP        *float32  `json:"top_p,omitempty"`
	TopK        *int      `json:"top_k,omitempty"`
}

type response struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *Client) Reply(ctx context.Context, history []domain.Message, text string, cfg domain.GenerationConfig) (string, error) {
	bodyBytes, err := json.Marshal(c.buildRequest(history, text, cfg))
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var result response
	retryErr := infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(bodyBytes))
		if err != nil {
			return infra.Permanent(fmt.Errorf("creating request: %w", err))
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("%w: sending request: %v", domain.ErrServiceUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return infra.StatusError("claude", resp.StatusCode, respBody)
		}

		if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return infra.Permanent(fmt.Errorf("decoding response: %w", err))
		}

		return nil
	})
	if retryErr != nil {
		return "", retryErr
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	reply := sb.String()

	switch result.StopReason {
	case "refusal", "pause_turn":
		return "", &domain.EarlyStopError{Reason: result.StopReason, Partial: reply}
	}

	if reply == "" {
		return "", fmt.Errorf("empty response from claude")
	}
	return reply, nil
}

func (c *Client) buildRequest(history []domain.Message, text string, cfg domain.GenerationConfig) request {
	msgs := make([]message, 0, len(history)+1)
	for _, m := range domain.Preceding(history, text) {
		role := "user"
		if m.Role == domain.RoleModel {
			role = "assistant"
		}
		msgs = append(msgs, message{Role: role, Content: m.Text})
	}
	msgs = append(msgs, message{Role: "user", Content: text})

	maxTokens := cfg.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	req := request{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Messages:    msgs,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}
	if cfg.TopK != nil {
		k := int(*cfg.TopK)
		req.TopK = &k
	}
	return req
}
