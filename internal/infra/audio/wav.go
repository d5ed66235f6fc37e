package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"speaksmart/internal/domain"
)

var ErrNotWAV = errors.New("not a 16-bit PCM WAV file")

const wavHeaderSize = 44

// EncodeWAV wraps little-endian 16-bit PCM in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))

	blockAlign := channels * 2

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodeWAV extracts the PCM payload and format of a 16-bit PCM WAV file.
// Unknown chunks (LIST, fact, ...) are skipped.
func DecodeWAV(data []byte) (pcm []byte, sampleRate, channels int, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, ErrNotWAV
	}

	var haveFmt bool
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			// Streams written before the final size is known often carry a
			// bogus data length; take what is there.
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bits != 16 {
				return nil, 0, 0, fmt.Errorf("%w: format %d, %d bits", ErrNotWAV, format, bits)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, 0, fmt.Errorf("%w: data before fmt chunk", ErrNotWAV)
			}
			return data[body : body+size], sampleRate, channels, nil
		}

		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	return nil, 0, 0, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
}

// SamplesToPCM serialises int16 samples as little-endian bytes.
func SamplesToPCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// ToWAV returns the clip as a WAV file, encoding raw PCM when needed.
func ToWAV(clip domain.AudioClip) []byte {
	if clip.Encoding == domain.EncodingWAV {
		return clip.Data
	}
	return EncodeWAV(clip.Data, clip.SampleRate, clip.Channels)
}

// ToPCM returns the clip as raw 16-bit PCM. WAV clips take their sample rate
// and channel count from the file header.
func ToPCM(clip domain.AudioClip) (domain.AudioClip, error) {
	if clip.Encoding != domain.EncodingWAV {
		return clip, nil
	}
	pcm, rate, channels, err := DecodeWAV(clip.Data)
	if err != nil {
		return domain.AudioClip{}, err
	}
	return domain.AudioClip{Data: pcm, SampleRate: rate, Channels: channels, Encoding: domain.EncodingPCM16}, nil
}

// ClipFromWAV builds a clip from an uploaded file, reading its format from
// the header.
func ClipFromWAV(data []byte) (domain.AudioClip, error) {
	_, rate, channels, err := DecodeWAV(data)
	if err != nil {
		return domain.AudioClip{}, err
	}
	return domain.AudioClip{Data: data, SampleRate: rate, Channels: channels, Encoding: domain.EncodingWAV}, nil
}
