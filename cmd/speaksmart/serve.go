package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"speaksmart/config"
	"speaksmart/internal/application"
	"speaksmart/internal/infra/httpapi"
)

const serveLongDesc string = `Run the HTTP chat API.

Sessions are created with POST /sessions and fed typed messages, uploaded
WAV or PCM audio, or a WebSocket audio stream. When audio.source is "file"
or "microphone", captured utterances also go into a session named by
--local-session.`

type serveCommander struct {
	localSession string
}

func newServeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket chat API",
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cmder.localSession, "local-session", "local", "session ID used for locally captured audio")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(cfg.Log, os.Stdout)

	assistant, err := buildAssistant(ctx, cfg, logger)
	if err != nil {
		return err
	}

	format := application.DefaultAudioFormat()
	format.SampleRate = cfg.Audio.SampleRate
	format.Channels = cfg.Audio.Channels

	server := httpapi.NewServer(httpapi.Config{
		Addr:          cfg.Server.Addr,
		AuthToken:     cfg.Server.AuthToken,
		RateLimit:     cfg.Server.RateLimit,
		RateWindow:    cfg.Server.RateWindow,
		MaxAudioBytes: cfg.Server.MaxAudioBytes,
		Format:        format,
	}, assistant, logger)

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Run()
	}()

	if source := newAudioSource(cfg.Audio, logger); source != nil {
		go func() {
			if err := assistant.Run(ctx, c.localSession, source); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("local audio: %w", err)
			}
		}()
	}

	logger.Info("starting speaksmart",
		"addr", cfg.Server.Addr,
		"audio_source", cfg.Audio.Source,
		"transcription", cfg.Transcription.Provider,
		"dialogue", cfg.Dialogue.Provider,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
