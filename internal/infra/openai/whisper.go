package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"speaksmart/internal/domain"
	"speaksmart/internal/infra"
	"speaksmart/internal/infra/audio"
)

const defaultBaseURL = "https://api.openai.com/v1"

// WhisperClient transcribes audio with the OpenAI transcription endpoint.
type WhisperClient struct {
	client   *goopenai.Client
	model    string
	language string
}

func NewWhisperClient(apiKey, model, language string, timeout time.Duration) *WhisperClient {
	return NewWhisperClientWithURL(apiKey, model, language, timeout, defaultBaseURL)
}

func NewWhisperClientWithURL(apiKey, model, language string, timeout time.Duration, baseURL string) *WhisperClient {
	if model == "" {
		model = goopenai.Whisper1
	}
	return &WhisperClient{
		client:   newClient(apiKey, baseURL, timeout),
		model:    model,
		language: language,
	}
}

func newClient(apiKey, baseURL string, timeout time.Duration) *goopenai.Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return goopenai.NewClientWithConfig(cfg)
}

func (c *WhisperClient) Transcribe(ctx context.Context, clip domain.AudioClip) (string, error) {
	path, cleanup, err := audio.Stage(clip)
	if err != nil {
		return "", fmt.Errorf("%w: staging audio: %v", domain.ErrServiceUnavailable, err)
	}
	defer cleanup()

	var text string
	retryErr := infra.WithRetry(ctx, infra.DefaultRetryConfig(), func() error {
		resp, err := c.client.CreateTranscription(ctx, goopenai.AudioRequest{
			Model:    c.model,
			FilePath: path,
			Language: c.language,
		})
		if err != nil {
			return classify("whisper", err)
		}
		text = resp.Text
		return nil
	})
	if retryErr != nil {
		if !errors.Is(retryErr, domain.ErrUnintelligibleAudio) && !errors.Is(retryErr, domain.ErrServiceUnavailable) {
			retryErr = fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, retryErr)
		}
		return "", retryErr
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrUnintelligibleAudio
	}
	return text, nil
}

// classify maps go-openai errors onto the error taxonomy. A 400 from the
// transcription endpoint means the audio itself was rejected.
func classify(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, provider, err)
	}

	status := 0
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusBadRequest && provider == "whisper":
		return infra.Permanent(fmt.Errorf("%w: %v", domain.ErrUnintelligibleAudio, err))
	case status == 0 || infra.IsRetryableHTTPStatus(status):
		return fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, provider, err)
	default:
		return infra.Permanent(fmt.Errorf("%s request failed: %w", provider, err))
	}
}
