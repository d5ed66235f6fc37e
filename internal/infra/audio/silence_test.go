package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSilenceDetector(t *testing.T) {
	cfg := MicrophoneConfig{
		SampleRate:      1000,
		Channels:        1,
		SilenceDuration: 200 * time.Millisecond,
		MinDuration:     300 * time.Millisecond,
		MaxDuration:     2 * time.Second,
	}

	loud := make([]int16, 100)
	for i := range loud {
		loud[i] = 4000
	}
	quiet := make([]int16, 100)

	t.Run("stops after trailing silence", func(t *testing.T) {
		d := newSilenceDetector(cfg)
		for i := 0; i < 3; i++ {
			assert.False(t, d.feed(loud))
		}
		assert.False(t, d.feed(quiet))
		assert.True(t, d.feed(quiet))
	})

	t.Run("speech resets the silence counter", func(t *testing.T) {
		d := newSilenceDetector(cfg)
		for i := 0; i < 3; i++ {
			d.feed(loud)
		}
		d.feed(quiet)
		assert.False(t, d.feed(loud))
		assert.False(t, d.feed(quiet))
	})

	t.Run("silence alone never finishes a clip", func(t *testing.T) {
		d := newSilenceDetector(cfg)
		for i := 0; i < 100; i++ {
			assert.False(t, d.feed(quiet))
		}
		assert.False(t, d.speaking())
		assert.Equal(t, 0, d.total)
	})

	t.Run("leading silence is not counted", func(t *testing.T) {
		d := newSilenceDetector(cfg)
		for i := 0; i < 5; i++ {
			d.feed(quiet)
		}
		assert.False(t, d.feed(loud))
		assert.True(t, d.speaking())
		assert.False(t, d.feed(quiet))
		assert.True(t, d.feed(quiet))
		assert.Equal(t, 300, d.total)
	})

	t.Run("stops at max duration", func(t *testing.T) {
		d := newSilenceDetector(cfg)
		stopped := false
		for i := 0; i < 20 && !stopped; i++ {
			stopped = d.feed(loud)
		}
		assert.True(t, stopped)
		assert.Equal(t, 2000, d.total)
	})
}
