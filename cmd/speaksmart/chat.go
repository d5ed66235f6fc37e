package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"speaksmart/config"
	"speaksmart/internal/application"
	"speaksmart/internal/domain"
	"speaksmart/internal/infra/audio"
)

const chatLongDesc string = `Chat with the assistant from the terminal.

Type a message and press enter to send it. Commands:
  /voice          record one utterance from the microphone
  /file <path>    send a WAV file as spoken input
  /retry          ask again for a reply to an unanswered message
  /discard        drop an unanswered message
  /history        print the transcript
  /quit           leave the chat`

func newChatCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat",
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// Logs go to stderr so they don't interleave with the transcript.
			logger := setupLogger(cfg.Log, os.Stderr)

			assistant, err := buildAssistant(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			c := newChat(assistant, newMicrophone(cfg.Audio, logger), cmd.OutOrStdout())
			defer c.close()

			return c.loop(cmd.Context(), cmd.InOrStdin())
		},
	}
}

type chat struct {
	assistant *application.Assistant
	sessionID string
	mic       application.AudioSource
	micReady  bool
	out       io.Writer
}

func newChat(assistant *application.Assistant, mic application.AudioSource, out io.Writer) *chat {
	return &chat{
		assistant: assistant,
		sessionID: assistant.StartSession(),
		mic:       mic,
		out:       out,
	}
}

func (c *chat) close() {
	if c.micReady {
		_ = c.mic.Stop()
	}
	_ = c.assistant.EndSession(c.sessionID)
}

func (c *chat) loop(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, "Type a message, or /help for commands.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			break
		}
		if quit := c.handle(ctx, scanner.Text()); quit {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return scanner.Err()
}

// handle runs one line of input and reports whether the user asked to quit.
func (c *chat) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if !strings.HasPrefix(line, "/") {
		ex, err := c.assistant.SubmitText(ctx, c.sessionID, line)
		c.print(ex, err, false)
		return false
	}

	command, arg, _ := strings.Cut(line, " ")
	switch command {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(c.out, chatLongDesc)
	case "/history":
		c.history()
	case "/retry":
		ex, err := c.assistant.Retry(ctx, c.sessionID)
		c.print(ex, err, false)
	case "/discard":
		dropped, err := c.assistant.Discard(c.sessionID)
		switch {
		case err != nil:
			fmt.Fprintf(c.out, "error: %v\n", err)
		case dropped:
			fmt.Fprintln(c.out, "Dropped the unanswered message.")
		default:
			fmt.Fprintln(c.out, "Nothing to drop.")
		}
	case "/file":
		c.submitFile(ctx, strings.TrimSpace(arg))
	case "/voice":
		c.voice(ctx)
	default:
		fmt.Fprintf(c.out, "Unknown command %s, try /help.\n", command)
	}
	return false
}

func (c *chat) submitFile(ctx context.Context, path string) {
	if path == "" {
		fmt.Fprintln(c.out, "usage: /file <path.wav>")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}

	clip, err := audio.ClipFromWAV(data)
	if err != nil {
		fmt.Fprintf(c.out, "error: %s is not a usable WAV file: %v\n", path, err)
		return
	}

	ex, err := c.assistant.SubmitAudio(ctx, c.sessionID, clip)
	c.print(ex, err, true)
}

func (c *chat) voice(ctx context.Context) {
	if !c.micReady {
		if err := c.mic.Start(ctx); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
			return
		}
		c.micReady = true
	}

	fmt.Fprintln(c.out, "Listening...")
	ex, err := c.assistant.Capture(ctx, c.sessionID, c.mic)
	c.print(ex, err, true)
}

func (c *chat) history() {
	snap, err := c.assistant.Sessions().Snapshot(c.sessionID)
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	if len(snap.Turns) == 0 {
		fmt.Fprintln(c.out, "No messages yet.")
		return
	}
	for _, t := range snap.Turns {
		fmt.Fprintf(c.out, "%s: %s\n", displayLabel(t), t.Text)
	}
	if snap.Pending {
		fmt.Fprintln(c.out, "(waiting for a reply, use /retry or send a new message)")
	}
}

func (c *chat) print(ex application.Exchange, err error, echoUser bool) {
	if echoUser && ex.User != nil {
		fmt.Fprintf(c.out, "%s: %s\n", displayLabel(*ex.User), ex.User.Text)
	}
	if ex.Assistant != nil {
		fmt.Fprintf(c.out, "%s: %s\n", displayLabel(*ex.Assistant), ex.Assistant.Text)
	}

	switch {
	case ex.Notice != nil:
		fmt.Fprintln(c.out, ex.Notice.Message)
	case errors.Is(err, domain.ErrInvalidInput):
		fmt.Fprintln(c.out, "Please enter a message.")
	case err != nil:
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
}

func displayLabel(t domain.Turn) string {
	if t.Speaker == domain.SpeakerUser {
		return "Human"
	}
	return "AI"
}
