package conversation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speaksmart/internal/conversation"
	"speaksmart/internal/domain"
)

type stubDialogue struct {
	reply func(history []domain.Message, message string) (string, error)
	calls int
}

func (s *stubDialogue) Reply(_ context.Context, history []domain.Message, message string, _ domain.GenerationConfig) (string, error) {
	s.calls++
	return s.reply(history, message)
}

func fixedReply(text string) *stubDialogue {
	return &stubDialogue{reply: func([]domain.Message, string) (string, error) { return text, nil }}
}

func TestAppendUserTurn_RejectsBlankText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		t.Run(fmt.Sprintf("%q", text), func(t *testing.T) {
			s := conversation.NewSession("s1")

			_, err := s.AppendUserTurn(text)

			require.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestAppendUserTurn_AfterUnansweredTurn(t *testing.T) {
	s := conversation.NewSession("s1")
	_, err := s.AppendUserTurn("Hi")
	require.NoError(t, err)

	turn, err := s.AppendUserTurn("Anyone there?")

	require.NoError(t, err)
	assert.Equal(t, "Anyone there?", turn.Text)
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Pending())
}

func TestRequestReply_RoundTrip(t *testing.T) {
	s := conversation.NewSession("s1")
	_, err := s.AppendUserTurn("Hi")
	require.NoError(t, err)

	turn, err := s.RequestReply(context.Background(), fixedReply("Hello!"), domain.GenerationConfig{})
	require.NoError(t, err)

	assert.Equal(t, domain.Turn{Speaker: domain.SpeakerAssistant, Text: "Hello!"}, turn)
	assert.Equal(t, []domain.Turn{
		{Speaker: domain.SpeakerUser, Text: "Hi"},
		{Speaker: domain.SpeakerAssistant, Text: "Hello!"},
	}, s.Turns())
}

func TestRequestReply_SendsWholeTranscriptAndNewMessage(t *testing.T) {
	var gotHistory []domain.Message
	var gotMessage string
	svc := &stubDialogue{reply: func(h []domain.Message, m string) (string, error) {
		gotHistory, gotMessage = h, m
		return "ok", nil
	}}

	s := conversation.NewSession("s1")
	for _, text := range []string{"first", "second"} {
		_, err := s.AppendUserTurn(text)
		require.NoError(t, err)
		_, err = s.RequestReply(context.Background(), svc, domain.GenerationConfig{})
		require.NoError(t, err)
	}

	assert.Equal(t, "second", gotMessage)
	assert.Equal(t, []domain.Message{
		{Role: domain.RoleUser, Text: "first"},
		{Role: domain.RoleModel, Text: "ok"},
		{Role: domain.RoleUser, Text: "second"},
	}, gotHistory)
}

func TestRequestReply_AlternatesAndStaysEven(t *testing.T) {
	s := conversation.NewSession("s1")
	svc := fixedReply("reply")

	for i := 0; i < 10; i++ {
		_, err := s.AppendUserTurn(fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		_, err = s.RequestReply(context.Background(), svc, domain.GenerationConfig{})
		require.NoError(t, err)

		require.Equal(t, 0, s.Len()%2)
	}

	for i, turn := range s.Turns() {
		want := domain.SpeakerUser
		if i%2 == 1 {
			want = domain.SpeakerAssistant
		}
		assert.Equal(t, want, turn.Speaker, "turn %d", i)
	}
}

func TestRequestReply_FailureLeavesTranscriptUnchanged(t *testing.T) {
	cause := fmt.Errorf("upstream: %w", domain.ErrServiceUnavailable)
	svc := &stubDialogue{reply: func([]domain.Message, string) (string, error) { return "", cause }}

	s := conversation.NewSession("s1")
	_, err := s.AppendUserTurn("Hi")
	require.NoError(t, err)

	_, err = s.RequestReply(context.Background(), svc, domain.GenerationConfig{})

	var genErr *domain.GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Pending())
}

func TestRequestReply_RetryAfterFailure(t *testing.T) {
	fail := true
	svc := &stubDialogue{reply: func([]domain.Message, string) (string, error) {
		if fail {
			fail = false
			return "", errors.New("boom")
		}
		return "Hello!", nil
	}}

	s := conversation.NewSession("s1")
	_, err := s.AppendUserTurn("Hi")
	require.NoError(t, err)

	_, err = s.RequestReply(context.Background(), svc, domain.GenerationConfig{})
	require.Error(t, err)

	turn, err := s.RequestReply(context.Background(), svc, domain.GenerationConfig{})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", turn.Text)
	assert.Equal(t, 2, s.Len())
}

func TestRequestReply_EarlyStopUsesPartialText(t *testing.T) {
	svc := &stubDialogue{reply: func([]domain.Message, string) (string, error) {
		return "", &domain.EarlyStopError{Reason: "SAFETY", Partial: "Hello, I..."}
	}}

	s := conversation.NewSession("s1")
	_, err := s.AppendUserTurn("Hi")
	require.NoError(t, err)

	turn, err := s.RequestReply(context.Background(), svc, domain.GenerationConfig{})
	require.NoError(t, err)

	assert.Equal(t, "Hello, I...", turn.Text)
	assert.Equal(t, domain.SpeakerAssistant, turn.Speaker)
	assert.Equal(t, 2, s.Len())
}

func TestRequestReply_EarlyStopWithoutTextFails(t *testing.T) {
	svc := &stubDialogue{reply: func([]domain.Message, string) (string, error) {
		return "", &domain.EarlyStopError{Reason: "SAFETY"}
	}}

	s := conversation.NewSession("s1")
	_, err := s.AppendUserTurn("Hi")
	require.NoError(t, err)

	_, err = s.RequestReply(context.Background(), svc, domain.GenerationConfig{})

	var genErr *domain.GenerationError
	assert.True(t, errors.As(err, &genErr))
	assert.Equal(t, 1, s.Len())
}

func TestRequestReply_RequiresPendingUserTurn(t *testing.T) {
	svc := fixedReply("unused")
	s := conversation.NewSession("s1")

	_, err := s.RequestReply(context.Background(), svc, domain.GenerationConfig{})

	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, svc.calls)
}

func TestRequestReply_ReplayIsIdempotent(t *testing.T) {
	svc := &stubDialogue{reply: func(h []domain.Message, m string) (string, error) {
		return fmt.Sprintf("%d:%s", len(h), m), nil
	}}

	var replies []string
	for i := 0; i < 5; i++ {
		s := conversation.NewSession("s1")
		_, err := s.AppendUserTurn("Hi")
		require.NoError(t, err)
		turn, err := s.RequestReply(context.Background(), svc, domain.GenerationConfig{})
		require.NoError(t, err)
		replies = append(replies, turn.Text)
	}

	for _, r := range replies {
		assert.Equal(t, "1:Hi", r)
	}
}

func TestDiscardPending(t *testing.T) {
	s := conversation.NewSession("s1")
	assert.False(t, s.DiscardPending())

	_, err := s.AppendUserTurn("Hi")
	require.NoError(t, err)
	_, err = s.RequestReply(context.Background(), fixedReply("Hello!"), domain.GenerationConfig{})
	require.NoError(t, err)
	assert.False(t, s.DiscardPending())

	_, err = s.AppendUserTurn("Again")
	require.NoError(t, err)
	assert.True(t, s.DiscardPending())
	assert.Equal(t, 2, s.Len())
}

func TestHistory_MapsRoles(t *testing.T) {
	s := conversation.NewSession("s1")
	_, _ = s.AppendUserTurn("Hi")
	_, _ = s.RequestReply(context.Background(), fixedReply("Hello!"), domain.GenerationConfig{})

	assert.Equal(t, []domain.Message{
		{Role: domain.RoleUser, Text: "Hi"},
		{Role: domain.RoleModel, Text: "Hello!"},
	}, s.History())
}
