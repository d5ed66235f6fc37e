package domain

import (
	"context"
	"time"
)

type Encoding string

const (
	// EncodingWAV is a complete RIFF/WAVE file.
	EncodingWAV Encoding = "wav"
	// EncodingPCM16 is raw little-endian signed 16-bit PCM.
	EncodingPCM16 Encoding = "pcm16"
)

type AudioClip struct {
	Data       []byte
	SampleRate int
	Channels   int
	Encoding   Encoding
}

// Duration estimates the playback length of the clip. WAV clips include
// their header in the estimate.
func (c AudioClip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	bytesPerSecond := c.SampleRate * c.Channels * 2
	return time.Duration(len(c.Data)) * time.Second / time.Duration(bytesPerSecond)
}

// Transcriber converts speech to text. Implementations fail with
// ErrUnintelligibleAudio or ErrServiceUnavailable.
type Transcriber interface {
	Transcribe(ctx context.Context, clip AudioClip) (string, error)
}
