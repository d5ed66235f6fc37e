package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnintelligibleAudio = errors.New("audio contained no recognizable speech")
	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrSessionNotFound     = errors.New("session not found")
)

// GenerationError reports a dialogue service failure. No assistant turn is
// appended when it is returned.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generating reply: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// EarlyStopError is returned by a dialogue service when generation halted
// before a natural end but still produced partial text.
type EarlyStopError struct {
	Reason  string
	Partial string
}

func (e *EarlyStopError) Error() string {
	return fmt.Sprintf("generation stopped early (%s)", e.Reason)
}

// Notice is a user-facing message produced when a submission could not be
// turned into a transcript update.
type Notice struct {
	Kind    NoticeKind
	Message string
}

type NoticeKind string

const (
	NoticeUnintelligible NoticeKind = "unintelligible"
	NoticeUnavailable    NoticeKind = "unavailable"
	NoticeGeneration     NoticeKind = "generation"
	NoticeInvalidInput   NoticeKind = "invalid_input"
)

// NoticeFor maps an error from the taxonomy to the notice shown to the user.
// It returns false for errors outside the taxonomy.
func NoticeFor(err error) (Notice, bool) {
	var genErr *GenerationError
	switch {
	case errors.Is(err, ErrUnintelligibleAudio):
		return Notice{Kind: NoticeUnintelligible, Message: "Sorry, I couldn't understand what you said."}, true
	case errors.As(err, &genErr):
		return Notice{Kind: NoticeGeneration, Message: "Sorry, I couldn't generate a reply. Please try again."}, true
	case errors.Is(err, ErrServiceUnavailable):
		return Notice{Kind: NoticeUnavailable, Message: "Sorry, I'm having trouble accessing the speech service."}, true
	case errors.Is(err, ErrInvalidInput):
		return Notice{Kind: NoticeInvalidInput, Message: "Please enter a message."}, true
	default:
		return Notice{}, false
	}
}
