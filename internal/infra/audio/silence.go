package audio

import "time"

type MicrophoneConfig struct {
	SampleRate       int
	Channels         int
	SilenceThreshold int16
	SilenceDuration  time.Duration
	MinDuration      time.Duration
	MaxDuration      time.Duration
}

func (c *MicrophoneConfig) setDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.SilenceThreshold == 0 {
		c.SilenceThreshold = 500
	}
	if c.SilenceDuration == 0 {
		c.SilenceDuration = time.Second
	}
	if c.MinDuration == 0 {
		c.MinDuration = time.Second
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = 10 * time.Second
	}
}

// silenceDetector decides when a recording is complete. Nothing counts until
// the first buffer above the threshold; from there the recording ends after
// the minimum duration once the tail has been quiet for SilenceDuration, or
// at the maximum duration regardless.
type silenceDetector struct {
	threshold    int16
	silentLimit  int
	minSamples   int
	maxSamples   int
	silentFrames int
	total        int
	heard        bool
}

func newSilenceDetector(cfg MicrophoneConfig) *silenceDetector {
	cfg.setDefaults()
	perSecond := cfg.SampleRate * cfg.Channels
	return &silenceDetector{
		threshold:   cfg.SilenceThreshold,
		silentLimit: int(cfg.SilenceDuration.Seconds() * float64(perSecond)),
		minSamples:  int(cfg.MinDuration.Seconds() * float64(perSecond)),
		maxSamples:  int(cfg.MaxDuration.Seconds() * float64(perSecond)),
	}
}

// feed consumes one buffer of interleaved samples and reports whether
// recording should stop.
func (d *silenceDetector) feed(buf []int16) bool {
	silent := true
	for _, s := range buf {
		if s > d.threshold || s < -d.threshold {
			silent = false
			break
		}
	}

	if !silent {
		d.heard = true
	}
	if !d.heard {
		return false
	}

	d.total += len(buf)
	if silent {
		d.silentFrames += len(buf)
	} else {
		d.silentFrames = 0
	}

	if d.total >= d.maxSamples {
		return true
	}
	return d.total >= d.minSamples && d.silentFrames >= d.silentLimit
}

// speaking reports whether speech has started; buffers before that are not
// part of the clip.
func (d *silenceDetector) speaking() bool {
	return d.heard
}
