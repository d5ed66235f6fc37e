package main

import (
	"context"
	"fmt"
	"log/slog"

	"speaksmart/config"
	"speaksmart/internal/application"
	"speaksmart/internal/domain"
	"speaksmart/internal/infra/anthropic"
	"speaksmart/internal/infra/audio"
	"speaksmart/internal/infra/deepgram"
	"speaksmart/internal/infra/gemini"
	"speaksmart/internal/infra/homeassistant"
	"speaksmart/internal/infra/openai"
	"speaksmart/internal/infra/pushover"
)

func buildAssistant(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application.Assistant, error) {
	dialogue, err := newDialogue(ctx, cfg.Dialogue)
	if err != nil {
		return nil, err
	}

	return application.NewAssistant(
		application.NewSessions(),
		newTranscriber(cfg.Transcription, logger),
		dialogue,
		cfg.GenerationConfig(),
		newNotifier(cfg.Notify),
		logger,
	), nil
}

func newTranscriber(cfg config.TranscriptionConfig, logger *slog.Logger) domain.Transcriber {
	switch cfg.Provider {
	case "whisper":
		w := cfg.Whisper
		if w.BaseURL != "" {
			return openai.NewWhisperClientWithURL(w.APIKey, w.Model, w.Language, cfg.Timeout, w.BaseURL)
		}
		return openai.NewWhisperClient(w.APIKey, w.Model, w.Language, cfg.Timeout)
	case "deepgram":
		d := cfg.Deepgram
		if d.URL != "" {
			return deepgram.NewClientWithURL(d.APIKey, d.Model, d.Language, cfg.Timeout, d.URL)
		}
		return deepgram.NewClient(d.APIKey, d.Model, d.Language, cfg.Timeout)
	default:
		logger.Warn("speech-to-text disabled, voice input will report the service as unavailable", "provider", cfg.Provider)
		return &application.NoopTranscriber{}
	}
}

func newDialogue(ctx context.Context, cfg config.DialogueConfig) (domain.DialogueService, error) {
	switch cfg.Provider {
	case "gemini":
		g := cfg.Gemini
		client, err := gemini.NewClientWithURL(ctx, g.APIKey, g.Model, cfg.Timeout, g.BaseURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "openai":
		o := cfg.OpenAI
		if o.BaseURL != "" {
			return openai.NewChatClientWithURL(o.APIKey, o.Model, cfg.Timeout, o.BaseURL), nil
		}
		return openai.NewChatClient(o.APIKey, o.Model, cfg.Timeout), nil
	case "anthropic":
		a := cfg.Anthropic
		if a.BaseURL != "" {
			return anthropic.NewClientWithURL(a.APIKey, a.Model, cfg.Timeout, a.BaseURL), nil
		}
		return anthropic.NewClient(a.APIKey, a.Model, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown dialogue provider %q", cfg.Provider)
	}
}

func newNotifier(cfg config.NotifyConfig) application.Notifier {
	var notifiers application.MultiNotifier
	if cfg.Pushover.Enabled {
		notifiers = append(notifiers, pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey, cfg.Pushover.Title))
	}
	if ha := cfg.HomeAssistant; ha.Enabled {
		notifiers = append(notifiers, homeassistant.NewClient(ha.BaseURL, ha.Token, ha.Service, ha.Title))
	}

	switch len(notifiers) {
	case 0:
		return &application.NoopNotifier{}
	case 1:
		return notifiers[0]
	default:
		return notifiers
	}
}

// newAudioSource returns nil when local capture is disabled.
func newAudioSource(cfg config.AudioConfig, logger *slog.Logger) application.AudioSource {
	switch cfg.Source {
	case "file":
		return audio.NewFileSource(cfg.FileDir, logger)
	case "microphone":
		return newMicrophone(cfg, logger)
	default:
		return nil
	}
}

func newMicrophone(cfg config.AudioConfig, logger *slog.Logger) *audio.Microphone {
	return audio.NewMicrophone(audio.MicrophoneConfig{
		SampleRate:       cfg.SampleRate,
		Channels:         cfg.Channels,
		SilenceThreshold: int16(cfg.SilenceThreshold),
		SilenceDuration:  cfg.SilenceDuration,
		MaxDuration:      cfg.MaxDuration,
	}, logger)
}
