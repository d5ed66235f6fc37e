package httpapi

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gofiber/websocket/v2"

	"speaksmart/internal/application"
	"speaksmart/internal/domain"
)

// Control messages sent by the client as text frames. Binary frames carry
// raw 16-bit PCM audio.
type streamControl struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type streamFrame struct {
	kind int
	data []byte
}

// streamEvent is written back to the client for every step of an exchange.
type streamEvent struct {
	Type    string            `json:"type"`
	Text    string            `json:"text,omitempty"`
	Kind    domain.NoticeKind `json:"kind,omitempty"`
	Message string            `json:"message,omitempty"`
}

const (
	controlEnd    = "end"
	controlCancel = "cancel"
	controlText   = "text"

	eventReady      = "ready"
	eventTranscript = "transcript"
	eventReply      = "reply"
	eventNotice     = "notice"
	eventError      = "error"
)

// handleStream buffers PCM frames until the client sends {"type":"end"},
// then submits the utterance and reports the outcome as JSON events.
func (s *Server) handleStream(conn *websocket.Conn) {
	defer conn.Close()

	sessionID := conn.Params("id")
	if _, err := s.assistant.Sessions().State(sessionID); err != nil {
		_ = conn.WriteJSON(streamEvent{Type: eventError, Message: err.Error()})
		return
	}

	rate := queryInt(conn, "sample_rate", s.cfg.Format.SampleRate)
	channels := queryInt(conn, "channels", s.cfg.Format.Channels)

	s.logger.Info("stream connected", "session_id", sessionID, "sample_rate", rate, "channels", channels)
	if err := conn.WriteJSON(streamEvent{Type: eventReady}); err != nil {
		return
	}

	// Frames are read on their own goroutine so a client that disconnects
	// mid-exchange cancels the submission it is waiting on.
	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan streamFrame)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer close(frames)
		defer cancel()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				s.logger.Info("stream closed", "session_id", sessionID, "error", err)
				return
			}
			select {
			case frames <- streamFrame{kind: mt, data: msg}:
			case <-ctx.Done():
				return
			}
		}
	}()
	defer func() {
		cancel()
		_ = conn.Close()
		<-readDone
	}()

	var buf []byte
	for frame := range frames {
		switch frame.kind {
		case websocket.BinaryMessage:
			if len(buf)+len(frame.data) > s.cfg.MaxAudioBytes {
				buf = nil
				if err := conn.WriteJSON(streamEvent{Type: eventError, Message: "audio too large"}); err != nil {
					return
				}
				continue
			}
			buf = append(buf, frame.data...)

		case websocket.TextMessage:
			var ctrl streamControl
			if err := json.Unmarshal(frame.data, &ctrl); err != nil {
				if err := conn.WriteJSON(streamEvent{Type: eventError, Message: "invalid control message"}); err != nil {
					return
				}
				continue
			}

			var (
				ex     application.Exchange
				subErr error
			)
			switch ctrl.Type {
			case controlEnd:
				clip := domain.AudioClip{
					Data:       buf,
					SampleRate: rate,
					Channels:   channels,
					Encoding:   domain.EncodingPCM16,
				}
				buf = nil
				ex, subErr = s.assistant.SubmitAudio(ctx, sessionID, clip)
			case controlText:
				ex, subErr = s.assistant.SubmitText(ctx, sessionID, ctrl.Text)
			case controlCancel:
				buf = nil
				continue
			default:
				if err := conn.WriteJSON(streamEvent{Type: eventError, Message: "unknown control type " + strconv.Quote(ctrl.Type)}); err != nil {
					return
				}
				continue
			}

			if ctx.Err() != nil {
				s.logger.Info("stream client left before the reply", "session_id", sessionID, "error", subErr)
				return
			}
			if err := writeEvents(conn, ex, subErr); err != nil {
				s.logger.Warn("writing stream events", "session_id", sessionID, "error", err)
				return
			}
		}
	}
}

func writeEvents(conn *websocket.Conn, ex application.Exchange, err error) error {
	var events []streamEvent
	if ex.User != nil {
		events = append(events, streamEvent{Type: eventTranscript, Text: ex.User.Text})
	}
	if ex.Assistant != nil {
		events = append(events, streamEvent{Type: eventReply, Text: ex.Assistant.Text})
	}
	if ex.Notice != nil {
		events = append(events, streamEvent{Type: eventNotice, Kind: ex.Notice.Kind, Message: ex.Notice.Message})
	} else if err != nil {
		events = append(events, streamEvent{Type: eventError, Message: err.Error()})
	}

	for _, ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			return err
		}
	}
	return nil
}

func queryInt(conn *websocket.Conn, key string, fallback int) int {
	v := conn.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
