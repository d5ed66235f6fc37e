package openai

import (
	"context"
	"fmt"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"speaksmart/internal/domain"
	"speaksmart/internal/infra"
)

// ChatClient is a dialogue service backed by the chat completions API.
type ChatClient struct {
	client *goopenai.Client
	model  string
}

func NewChatClient(apiKey, model string, timeout time.Duration) *ChatClient {
	return NewChatClientWithURL(apiKey, model, timeout, defaultBaseURL)
}

func NewChatClientWithURL(apiKey, model string, timeout time.Duration, baseURL string) *ChatClient {
	if model == "" {
		model = goopenai.GPT4oMini
	}
	return &ChatClient{
		client: newClient(apiKey, baseURL, timeout),
		model:  model,
	}
}

func (c *ChatClient) Reply(ctx context.Context, history []domain.Message, message string, cfg domain.GenerationConfig) (string, error) {
	req := c.buildRequest(history, message, cfg)

	var resp goopenai.ChatCompletionResponse
	retryErr := infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return classify("openai", err)
		}
		return nil
	})
	if retryErr != nil {
		return "", retryErr
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}

	choice := resp.Choices[0]
	text := choice.Message.Content

	switch choice.FinishReason {
	case goopenai.FinishReasonContentFilter:
		return "", &domain.EarlyStopError{Reason: string(choice.FinishReason), Partial: text}
	default:
		if text == "" {
			return "", fmt.Errorf("openai returned empty text (finish reason %q)", choice.FinishReason)
		}
		return text, nil
	}
}

// buildRequest maps the generation knobs the chat API understands; top_k
// has no equivalent there and is not sent.
func (c *ChatClient) buildRequest(history []domain.Message, message string, cfg domain.GenerationConfig) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range domain.Preceding(history, message) {
		role := goopenai.ChatMessageRoleUser
		if m.Role == domain.RoleModel {
			role = goopenai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: role, Content: m.Text})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: message})

	req := goopenai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: int(cfg.MaxOutputTokens),
	}
	if cfg.Temperature != nil {
		req.Temperature = *cfg.Temperature
	}
	if cfg.TopP != nil {
		req.TopP = *cfg.TopP
	}
	if cfg.ResponseMIMEType == "application/json" {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{Type: goopenai.ChatCompletionResponseFormatTypeJSONObject}
	}
	return req
}
