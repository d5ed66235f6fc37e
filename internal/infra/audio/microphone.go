//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gordonklaus/portaudio"

	"speaksmart/internal/domain"
)

const framesPerBuffer = 1024

// Microphone records one utterance per NextClip call from the default input
// device. Recording ends after trailing silence or at the max duration.
type Microphone struct {
	cfg    MicrophoneConfig
	logger *slog.Logger

	stream *portaudio.Stream
	buffer []int16
}

func NewMicrophone(cfg MicrophoneConfig, logger *slog.Logger) *Microphone {
	cfg.setDefaults()
	return &Microphone{
		cfg:    cfg,
		logger: logger,
		buffer: make([]int16, framesPerBuffer*cfg.Channels),
	}
}

func (m *Microphone) Name() string {
	return "microphone"
}

func (m *Microphone) Start(_ context.Context) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(
		m.cfg.Channels,
		0,
		float64(m.cfg.SampleRate),
		framesPerBuffer,
		m.buffer,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}

	m.stream = stream
	m.logger.Info("microphone ready", "sample_rate", m.cfg.SampleRate, "channels", m.cfg.Channels)
	return nil
}

func (m *Microphone) Stop() error {
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
	return portaudio.Terminate()
}

func (m *Microphone) NextClip(ctx context.Context) (domain.AudioClip, error) {
	if m.stream == nil {
		return domain.AudioClip{}, fmt.Errorf("microphone not started")
	}

	if err := m.stream.Start(); err != nil {
		return domain.AudioClip{}, fmt.Errorf("starting stream: %w", err)
	}
	defer m.stream.Stop()

	m.logger.Info("recording, speak now")

	detector := newSilenceDetector(m.cfg)
	samples := make([]int16, 0, m.cfg.SampleRate*m.cfg.Channels*5)

	for {
		select {
		case <-ctx.Done():
			return domain.AudioClip{}, ctx.Err()
		default:
		}

		if err := m.stream.Read(); err != nil {
			return domain.AudioClip{}, fmt.Errorf("reading from stream: %w", err)
		}

		stop := detector.feed(m.buffer)
		if !detector.speaking() {
			continue
		}
		samples = append(samples, m.buffer...)
		if stop {
			break
		}
	}

	m.logger.Info("recording finished", "duration", time.Duration(len(samples)/m.cfg.Channels)*time.Second/time.Duration(m.cfg.SampleRate))

	return domain.AudioClip{
		Data:       SamplesToPCM(samples),
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
		Encoding:   domain.EncodingPCM16,
	}, nil
}
