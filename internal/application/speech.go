package application

import (
	"context"
	"fmt"

	"speaksmart/internal/domain"
)

// NoopTranscriber is used when no speech-to-text provider is configured.
// Every call reports the service as unavailable so text chat keeps working.
type NoopTranscriber struct{}

func (n *NoopTranscriber) Transcribe(_ context.Context, _ domain.AudioClip) (string, error) {
	return "", fmt.Errorf("%w: speech-to-text not configured, set transcription.provider to enable voice input", domain.ErrServiceUnavailable)
}
