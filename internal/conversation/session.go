// Package conversation holds the transcript model and its turn-taking
// protocol.
//
// A Session is not safe for concurrent use. Callers that share one across
// goroutines must serialise access themselves.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"speaksmart/internal/domain"
)

type Session struct {
	id    string
	turns []domain.Turn
}

func NewSession(id string) *Session {
	return &Session{id: id}
}

func (s *Session) ID() string {
	return s.id
}

// Turns returns a copy of the transcript in chronological order.
func (s *Session) Turns() []domain.Turn {
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Session) Len() int {
	return len(s.turns)
}

// Pending reports whether the transcript ends on a user turn that has not
// been answered yet.
func (s *Session) Pending() bool {
	return len(s.turns) > 0 && s.turns[len(s.turns)-1].Speaker == domain.SpeakerUser
}

// AppendUserTurn appends a user turn. Only blank text is rejected; an
// earlier unanswered turn is left in place.
func (s *Session) AppendUserTurn(text string) (domain.Turn, error) {
	if err := ValidateText(text); err != nil {
		return domain.Turn{}, err
	}

	turn := domain.Turn{Speaker: domain.SpeakerUser, Text: text}
	s.turns = append(s.turns, turn)
	return turn, nil
}

// RequestReply sends the whole transcript and the latest user turn's text to
// svc and appends the reply as an assistant turn. On failure the transcript
// is left as it was.
func (s *Session) RequestReply(ctx context.Context, svc domain.DialogueService, cfg domain.GenerationConfig) (domain.Turn, error) {
	if !s.Pending() {
		return domain.Turn{}, fmt.Errorf("%w: no message awaiting a reply", domain.ErrInvalidInput)
	}

	last := s.turns[len(s.turns)-1]

	text, err := svc.Reply(ctx, toMessages(s.turns), last.Text, cfg)
	if err != nil {
		var early *domain.EarlyStopError
		if !errors.As(err, &early) || strings.TrimSpace(early.Partial) == "" {
			return domain.Turn{}, &domain.GenerationError{Cause: err}
		}
		text = early.Partial
	}

	turn := domain.Turn{Speaker: domain.SpeakerAssistant, Text: text}
	s.turns = append(s.turns, turn)
	return turn, nil
}

// DiscardPending drops an unanswered trailing user turn so the user can
// rephrase. Answered turns are never removed.
func (s *Session) DiscardPending() bool {
	if !s.Pending() {
		return false
	}
	s.turns = s.turns[:len(s.turns)-1]
	return true
}

// ValidateText rejects empty and whitespace-only messages.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty message", domain.ErrInvalidInput)
	}
	return nil
}

// History returns the whole transcript mapped to dialogue roles.
func (s *Session) History() []domain.Message {
	return toMessages(s.turns)
}

func toMessages(turns []domain.Turn) []domain.Message {
	msgs := make([]domain.Message, 0, len(turns))
	for _, t := range turns {
		role := domain.RoleUser
		if t.Speaker == domain.SpeakerAssistant {
			role = domain.RoleModel
		}
		msgs = append(msgs, domain.Message{Role: role, Text: t.Text})
	}
	return msgs
}
