package domain

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one utterance in a conversation. Turns are never mutated after
// they are appended to a transcript.
type Turn struct {
	Speaker Speaker
	Text    string
}

// Label returns the chat label used when rendering a transcript.
func (t Turn) Label() string {
	if t.Speaker == SpeakerUser {
		return "human"
	}
	return "ai"
}
