package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"speaksmart/internal/application"
	"speaksmart/internal/domain"
	"speaksmart/internal/infra/audio"
)

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

type turnJSON struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type noticeJSON struct {
	Kind    domain.NoticeKind `json:"kind"`
	Message string            `json:"message"`
}

type sessionResponse struct {
	ID      string       `json:"id"`
	State   string       `json:"state"`
	Pending bool         `json:"pending"`
	Turns   []turnJSON   `json:"turns"`
	Notices []noticeJSON `json:"notices"`
}

type exchangeResponse struct {
	User      *turnJSON   `json:"user,omitempty"`
	Assistant *turnJSON   `json:"assistant,omitempty"`
	Notice    *noticeJSON `json:"notice,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type messageRequest struct {
	Text string `json:"text"`
}

func toTurnJSON(t *domain.Turn) *turnJSON {
	if t == nil {
		return nil
	}
	return &turnJSON{Type: t.Label(), Content: t.Text}
}

func toNoticeJSON(n *domain.Notice) *noticeJSON {
	if n == nil {
		return nil
	}
	return &noticeJSON{Kind: n.Kind, Message: n.Message}
}

func toSessionResponse(snap application.Snapshot) sessionResponse {
	resp := sessionResponse{
		ID:      snap.ID,
		State:   snap.State.String(),
		Pending: snap.Pending,
		Turns:   make([]turnJSON, 0, len(snap.Turns)),
		Notices: make([]noticeJSON, 0, len(snap.Notices)),
	}
	for _, t := range snap.Turns {
		resp.Turns = append(resp.Turns, turnJSON{Type: t.Label(), Content: t.Text})
	}
	for _, n := range snap.Notices {
		resp.Notices = append(resp.Notices, noticeJSON{Kind: n.Kind, Message: n.Message})
	}
	return resp
}

func (s *Server) handleCreate(c *fiber.Ctx) error {
	id := s.assistant.StartSession()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (s *Server) handleGet(c *fiber.Ctx) error {
	snap, err := s.assistant.Sessions().Snapshot(c.Params("id"))
	if err != nil {
		return c.Status(statusFor(err)).JSON(errorResponse{Error: err.Error()})
	}
	return c.JSON(toSessionResponse(snap))
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	if err := s.assistant.EndSession(c.Params("id")); err != nil {
		return c.Status(statusFor(err)).JSON(errorResponse{Error: err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleMessage(c *fiber.Ctx) error {
	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid JSON"})
	}

	ex, err := s.assistant.SubmitText(c.UserContext(), c.Params("id"), req.Text)
	return s.writeExchange(c, ex, err)
}

func (s *Server) handleAudio(c *fiber.Ctx) error {
	// fasthttp reuses the request body buffer once the handler returns.
	data := bytes.Clone(c.Body())
	if len(data) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "empty audio"})
	}

	clip, err := s.clipFromRequest(c, data)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}

	s.logger.Info("received audio via HTTP", "session_id", c.Params("id"), "bytes", len(data), "encoding", clip.Encoding)

	ex, err := s.assistant.SubmitAudio(c.UserContext(), c.Params("id"), clip)
	return s.writeExchange(c, ex, err)
}

func (s *Server) handleReply(c *fiber.Ctx) error {
	ex, err := s.assistant.Retry(c.UserContext(), c.Params("id"))
	return s.writeExchange(c, ex, err)
}

func (s *Server) handleDiscard(c *fiber.Ctx) error {
	dropped, err := s.assistant.Discard(c.Params("id"))
	if err != nil {
		return c.Status(statusFor(err)).JSON(errorResponse{Error: err.Error()})
	}
	return c.JSON(fiber.Map{"discarded": dropped})
}

// clipFromRequest accepts a RIFF/WAVE body as is and treats anything else as
// raw 16-bit PCM described by the sample_rate and channels query parameters.
func (s *Server) clipFromRequest(c *fiber.Ctx, data []byte) (domain.AudioClip, error) {
	if isWAV(c, data) {
		clip, err := audio.ClipFromWAV(data)
		if err != nil {
			return domain.AudioClip{}, fmt.Errorf("decoding wav: %w", err)
		}
		return clip, nil
	}

	rate := c.QueryInt("sample_rate", s.cfg.Format.SampleRate)
	channels := c.QueryInt("channels", s.cfg.Format.Channels)
	if rate <= 0 || channels <= 0 {
		return domain.AudioClip{}, errors.New("sample_rate and channels must be positive")
	}

	return domain.AudioClip{
		Data:       data,
		SampleRate: rate,
		Channels:   channels,
		Encoding:   domain.EncodingPCM16,
	}, nil
}

func isWAV(c *fiber.Ctx, data []byte) bool {
	ct := strings.ToLower(c.Get(fiber.HeaderContentType))
	if strings.Contains(ct, "wav") {
		return true
	}
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func (s *Server) writeExchange(c *fiber.Ctx, ex application.Exchange, err error) error {
	resp := exchangeResponse{
		User:      toTurnJSON(ex.User),
		Assistant: toTurnJSON(ex.Assistant),
		Notice:    toNoticeJSON(ex.Notice),
	}
	if err != nil {
		resp.Error = err.Error()
		return c.Status(statusFor(err)).JSON(resp)
	}
	return c.JSON(resp)
}
