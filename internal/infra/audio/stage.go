package audio

import (
	"fmt"
	"os"

	"speaksmart/internal/domain"
)

// Stage writes clip to a temporary WAV file for providers that read audio
// from disk. The returned cleanup removes the file and must be called on
// every exit path.
func Stage(clip domain.AudioClip) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "speaksmart-*.wav")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp audio file: %w", err)
	}

	cleanup = func() {
		os.Remove(f.Name())
	}

	if _, err := f.Write(ToWAV(clip)); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing temp audio file: %w", err)
	}

	return f.Name(), cleanup, nil
}
