package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"speaksmart/internal/domain"
	"speaksmart/internal/infra"
)

// Client is a dialogue service backed by the Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*Client, error) {
	return NewClientWithURL(ctx, apiKey, model, timeout, "")
}

func NewClientWithURL(ctx context.Context, apiKey, model string, timeout time.Duration, baseURL string) (*Client, error) {
	if model == "" {
		model = "gemini-1.5-pro"
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Client{client: client, model: model}, nil
}

func (c *Client) Reply(ctx context.Context, history []domain.Message, message string, cfg domain.GenerationConfig) (string, error) {
	contents := buildContents(history, message)
	genCfg := buildConfig(cfg)

	var resp *genai.GenerateContentResponse
	retryErr := infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		var err error
		resp, err = c.client.Models.GenerateContent(ctx, c.model, contents, genCfg)
		if err != nil {
			return classify(err)
		}
		return nil
	})
	if retryErr != nil {
		return "", retryErr
	}

	return replyText(resp)
}

func buildContents(history []domain.Message, message string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range domain.Preceding(history, message) {
		role := genai.Role(genai.RoleUser)
		if m.Role == domain.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	return append(contents, genai.NewContentFromText(message, genai.RoleUser))
}

func buildConfig(cfg domain.GenerationConfig) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      cfg.Temperature,
		TopP:             cfg.TopP,
		TopK:             cfg.TopK,
		MaxOutputTokens:  cfg.MaxOutputTokens,
		ResponseMIMEType: cfg.ResponseMIMEType,
	}
}

// replyText extracts the first candidate's text. A candidate that finished
// for any reason other than a natural stop or the token limit is reported
// as an early stop carrying whatever text it produced.
func replyText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("empty response from gemini")
	}

	candidate := resp.Candidates[0]

	var sb strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}
	text := sb.String()

	switch candidate.FinishReason {
	case "", genai.FinishReasonUnspecified, genai.FinishReasonStop, genai.FinishReasonMaxTokens:
		if text == "" {
			return "", fmt.Errorf("gemini returned empty text")
		}
		return text, nil
	default:
		return "", &domain.EarlyStopError{Reason: string(candidate.FinishReason), Partial: text}
	}
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: gemini: %v", domain.ErrServiceUnavailable, err)
	}

	code, ok := apiErrorCode(err)
	if !ok || infra.IsRetryableHTTPStatus(code) {
		return fmt.Errorf("%w: gemini: %v", domain.ErrServiceUnavailable, err)
	}
	return infra.Permanent(fmt.Errorf("gemini request failed: %w", err))
}

func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code, true
	}
	return 0, false
}
