package application

import (
	"context"

	"speaksmart/internal/domain"
)

// AudioSource yields captured or uploaded audio, one utterance per call.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() error
	NextClip(ctx context.Context) (domain.AudioClip, error)
	Name() string
}

type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
	}
}
