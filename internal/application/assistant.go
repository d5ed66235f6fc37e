package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"speaksmart/internal/conversation"
	"speaksmart/internal/domain"
)

type Assistant struct {
	sessions *Sessions
	stt      domain.Transcriber
	dialogue domain.DialogueService
	genCfg   domain.GenerationConfig
	notifier Notifier
	logger   *slog.Logger
}

func NewAssistant(
	sessions *Sessions,
	stt domain.Transcriber,
	dialogue domain.DialogueService,
	genCfg domain.GenerationConfig,
	notifier Notifier,
	logger *slog.Logger,
) *Assistant {
	return &Assistant{
		sessions: sessions,
		stt:      stt,
		dialogue: dialogue,
		genCfg:   genCfg,
		notifier: notifier,
		logger:   logger,
	}
}

// Exchange is the outcome of one submission. Assistant is nil when no reply
// was appended; Notice is set when the user should be told why.
type Exchange struct {
	User      *domain.Turn
	Assistant *domain.Turn
	Notice    *domain.Notice
}

func (a *Assistant) Sessions() *Sessions {
	return a.sessions
}

func (a *Assistant) StartSession() string {
	id := a.sessions.Create()
	a.logger.Info("session started", "session_id", id)
	return id
}

func (a *Assistant) EndSession(id string) error {
	if err := a.sessions.Delete(id); err != nil {
		return err
	}
	a.logger.Info("session ended", "session_id", id)
	return nil
}

// SubmitText appends a typed message and requests the reply.
func (a *Assistant) SubmitText(ctx context.Context, sessionID, text string) (Exchange, error) {
	e, err := a.sessions.get(sessionID)
	if err != nil {
		return Exchange{}, err
	}

	e.op.Lock()
	defer e.op.Unlock()

	return a.submitText(ctx, e, text)
}

// SubmitAudio transcribes clip and, if speech was recognised, submits the
// text. Transcription failures leave the transcript untouched.
func (a *Assistant) SubmitAudio(ctx context.Context, sessionID string, clip domain.AudioClip) (Exchange, error) {
	e, err := a.sessions.get(sessionID)
	if err != nil {
		return Exchange{}, err
	}

	e.op.Lock()
	defer e.op.Unlock()

	return a.submitAudio(ctx, e, clip)
}

// Capture takes one utterance from source and runs it through the
// transcription and reply pipeline. There are no automatic retries; call
// Capture again for another attempt.
func (a *Assistant) Capture(ctx context.Context, sessionID string, source AudioSource) (Exchange, error) {
	e, err := a.sessions.get(sessionID)
	if err != nil {
		return Exchange{}, err
	}

	// Waiting on the source happens outside the session lock so snapshots
	// and typed messages are not held up by a silent microphone.
	e.setState(StateCapturing)
	clip, err := source.NextClip(ctx)
	if err != nil {
		e.setState(StateIdle)
		return Exchange{}, fmt.Errorf("capturing audio from %s: %w", source.Name(), err)
	}

	e.op.Lock()
	defer e.op.Unlock()

	a.logger.Info("captured audio", "session_id", e.session.ID(), "source", source.Name(), "bytes", len(clip.Data))

	return a.submitAudio(ctx, e, clip)
}

// Retry requests a reply for a user turn whose generation failed earlier.
func (a *Assistant) Retry(ctx context.Context, sessionID string) (Exchange, error) {
	e, err := a.sessions.get(sessionID)
	if err != nil {
		return Exchange{}, err
	}

	e.op.Lock()
	defer e.op.Unlock()

	return a.requestReply(ctx, e, Exchange{})
}

// Discard drops an unanswered user turn.
func (a *Assistant) Discard(sessionID string) (bool, error) {
	e, err := a.sessions.get(sessionID)
	if err != nil {
		return false, err
	}

	e.op.Lock()
	defer e.op.Unlock()

	return e.session.DiscardPending(), nil
}

// Run drains source into a single session until ctx is cancelled.
func (a *Assistant) Run(ctx context.Context, sessionID string, source AudioSource) error {
	a.sessions.CreateWithID(sessionID)

	a.logger.Info("starting audio source", "source", source.Name())
	if err := source.Start(ctx); err != nil {
		return fmt.Errorf("starting audio: %w", err)
	}
	defer source.Stop()

	a.logger.Info("assistant ready, listening", "session_id", sessionID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ex, err := a.Capture(ctx, sessionID, source)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Error("processing audio", "session_id", sessionID, "error", err)
			continue
		}
		if ex.Assistant != nil {
			a.logger.Info("replied", "session_id", sessionID, "chars", len(ex.Assistant.Text))
		}
	}
}

func (a *Assistant) submitAudio(ctx context.Context, e *entry, clip domain.AudioClip) (Exchange, error) {
	defer e.setState(StateIdle)

	if len(clip.Data) == 0 {
		err := fmt.Errorf("%w: empty recording", domain.ErrUnintelligibleAudio)
		return Exchange{Notice: a.notice(ctx, e, err)}, err
	}

	e.setState(StateTranscribing)
	a.logger.Info("transcribing", "session_id", e.session.ID(), "bytes", len(clip.Data), "sample_rate", clip.SampleRate, "duration", clip.Duration())

	text, err := a.stt.Transcribe(ctx, clip)
	if err == nil && strings.TrimSpace(text) == "" {
		err = domain.ErrUnintelligibleAudio
	}
	if err != nil {
		err = classifyTranscription(err)
		a.logger.Warn("transcription failed", "session_id", e.session.ID(), "error", err)
		return Exchange{Notice: a.notice(ctx, e, err)}, err
	}

	a.logger.Info("transcribed", "session_id", e.session.ID(), "text", text)
	e.setState(StateIdle)

	return a.submitText(ctx, e, text)
}

// submitText appends text as the next user turn. A user turn left unanswered
// by a failed generation is replaced, so the transcript keeps alternating.
func (a *Assistant) submitText(ctx context.Context, e *entry, text string) (Exchange, error) {
	if err := conversation.ValidateText(text); err != nil {
		return Exchange{}, err
	}
	if e.session.DiscardPending() {
		a.logger.Info("replacing unanswered message", "session_id", e.session.ID())
	}

	user, err := e.session.AppendUserTurn(text)
	if err != nil {
		return Exchange{}, err
	}

	return a.requestReply(ctx, e, Exchange{User: &user})
}

func (a *Assistant) requestReply(ctx context.Context, e *entry, ex Exchange) (Exchange, error) {
	reply, err := e.session.RequestReply(ctx, a.dialogue, a.genCfg)
	if err != nil {
		var genErr *domain.GenerationError
		if errors.As(err, &genErr) {
			a.logger.Error("generation failed", "session_id", e.session.ID(), "error", err)
			ex.Notice = a.notice(ctx, e, err)
		}
		return ex, err
	}

	ex.Assistant = &reply
	return ex, nil
}

func (a *Assistant) notice(ctx context.Context, e *entry, err error) *domain.Notice {
	n, ok := domain.NoticeFor(err)
	if !ok {
		return nil
	}
	e.addNotice(n)

	if notifyErr := a.notifier.Notify(ctx, n.Message); notifyErr != nil {
		a.logger.Error("forwarding notice", "session_id", e.session.ID(), "error", notifyErr)
	}
	return &n
}

// classifyTranscription keeps the two transcription failure kinds closed:
// anything a provider did not classify is treated as unavailability.
func classifyTranscription(err error) error {
	if errors.Is(err, domain.ErrUnintelligibleAudio) || errors.Is(err, domain.ErrServiceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
}
