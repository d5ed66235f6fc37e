//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"speaksmart/internal/domain"
)

// Microphone stub when portaudio is not available
type Microphone struct {
	logger *slog.Logger
}

func NewMicrophone(_ MicrophoneConfig, logger *slog.Logger) *Microphone {
	return &Microphone{logger: logger}
}

func (m *Microphone) Name() string {
	return "microphone"
}

func (m *Microphone) Start(_ context.Context) error {
	return fmt.Errorf("microphone source not available: rebuild with -tags portaudio")
}

func (m *Microphone) Stop() error {
	return nil
}

func (m *Microphone) NextClip(_ context.Context) (domain.AudioClip, error) {
	return domain.AudioClip{}, fmt.Errorf("microphone source not available")
}
