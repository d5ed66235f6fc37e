package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"speaksmart/config"
	"speaksmart/internal/infra/audio"
)

func newTranscribeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Transcribe a WAV file with the configured speech-to-text provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			text, err := transcribeFile(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func transcribeFile(ctx context.Context, cfg *config.Config, path string) (string, error) {
	if cfg.Transcription.Provider == "none" {
		return "", fmt.Errorf("transcription.provider is none")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading audio file: %w", err)
	}

	clip, err := audio.ClipFromWAV(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}

	logger := setupLogger(cfg.Log, os.Stderr)
	stt := newTranscriber(cfg.Transcription, logger)

	text, err := stt.Transcribe(ctx, clip)
	if err != nil {
		return "", fmt.Errorf("transcribing %s: %w", path, err)
	}
	return text, nil
}
