// Package deepgram streams audio to Deepgram's live transcription endpoint.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"speaksmart/internal/domain"
	"speaksmart/internal/infra/audio"
)

const (
	defaultURL = "wss://api.deepgram.com/v1/listen"
	chunkSize  = 8192
)

type Client struct {
	apiKey   string
	endpoint string
	model    string
	language string
	timeout  time.Duration
	dialer   *websocket.Dialer
}

func NewClient(apiKey, model, language string, timeout time.Duration) *Client {
	return NewClientWithURL(apiKey, model, language, timeout, defaultURL)
}

func NewClientWithURL(apiKey, model, language string, timeout time.Duration, endpoint string) *Client {
	if model == "" {
		model = "nova-2"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: endpoint,
		model:    model,
		language: language,
		timeout:  timeout,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

type resultMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// Transcribe streams the clip over a single live connection and joins the
// final transcript segments.
func (c *Client) Transcribe(ctx context.Context, clip domain.AudioClip) (string, error) {
	pcm, err := audio.ToPCM(clip)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnintelligibleAudio, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	header := http.Header{"Authorization": {"Token " + c.apiKey}}
	conn, resp, err := c.dialer.DialContext(ctx, c.listenURL(pcm), header)
	if err != nil {
		if resp != nil {
			return "", fmt.Errorf("%w: deepgram dial: %v (status %d)", domain.ErrServiceUnavailable, err, resp.StatusCode)
		}
		return "", fmt.Errorf("%w: deepgram dial: %v", domain.ErrServiceUnavailable, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	writeErr := make(chan error, 1)
	go func() {
		writeErr <- sendAudio(conn, pcm.Data)
	}()

	var segments []string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: deepgram: %v", domain.ErrServiceUnavailable, ctx.Err())
			}
			return "", fmt.Errorf("%w: deepgram read: %v", domain.ErrServiceUnavailable, err)
		}

		var result resultMessage
		if err := json.Unmarshal(msg, &result); err != nil {
			continue
		}
		if result.Type != "Results" || !result.IsFinal || len(result.Channel.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(result.Channel.Alternatives[0].Transcript); text != "" {
			segments = append(segments, text)
		}
	}

	if err := <-writeErr; err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return "", fmt.Errorf("%w: deepgram write: %v", domain.ErrServiceUnavailable, err)
	}

	if len(segments) == 0 {
		return "", domain.ErrUnintelligibleAudio
	}
	return strings.Join(segments, " "), nil
}

func (c *Client) listenURL(clip domain.AudioClip) string {
	q := url.Values{}
	q.Set("model", c.model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(clip.SampleRate))
	q.Set("channels", strconv.Itoa(clip.Channels))
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	if c.language != "" {
		q.Set("language", c.language)
	}
	return c.endpoint + "?" + q.Encode()
}

func sendAudio(conn *websocket.Conn, pcm []byte) error {
	for start := 0; start < len(pcm); start += chunkSize {
		end := min(start+chunkSize, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			return err
		}
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
}
