package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"speaksmart/config"
)

const rootLongDesc string = `SpeakSmart is a voice and text chat assistant.

Each session keeps a transcript of alternating user and assistant turns.
Spoken input is transcribed before it enters the transcript; replies come
from the configured dialogue model.`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "speaksmart",
		Short:         "Voice and text chat assistant",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	loadConfig := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	cmd.AddCommand(
		newServeCmd(loadConfig),
		newChatCmd(loadConfig),
		newTranscribeCmd(loadConfig),
	)

	return cmd
}

func setupLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
