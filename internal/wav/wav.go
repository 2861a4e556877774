// Package wav implements byte-level manipulation of the canonical 44-byte
// PCM WAV container: header synthesis, format parsing, payload extraction
// and concatenation of heterogeneous WAV/raw-PCM fragments.
package wav

import (
	"encoding/binary"
	"errors"
	"strings"
)

const headerSize = 44

// Default sample format assumed for raw PCM streams when the TTS backend
// gives no usable mime-type hint.
const (
	DefaultSampleRate    = 24000
	DefaultBitsPerSample = 16
	DefaultNumChannels   = 1
)

var (
	ErrNoBuffers   = errors.New("no buffers to concatenate")
	ErrNotWAV      = errors.New("first buffer is not a WAV file")
	ErrShortBuffer = errors.New("buffer too short for a WAV header")
)

// Format describes the sample format of a PCM stream.
type Format struct {
	NumChannels   int
	SampleRate    int
	BitsPerSample int
}

// DefaultFormat is the fallback format for headerless TTS output.
var DefaultFormat = Format{
	NumChannels:   DefaultNumChannels,
	SampleRate:    DefaultSampleRate,
	BitsPerSample: DefaultBitsPerSample,
}

// ByteRate returns bytes of PCM per second.
func (f Format) ByteRate() int {
	return f.SampleRate * f.NumChannels * f.BitsPerSample / 8
}

// BlockAlign returns bytes per sample frame across all channels.
func (f Format) BlockAlign() int {
	return f.NumChannels * f.BitsPerSample / 8
}

// IsWAV reports whether buf starts with a RIFF/WAVE signature.
func IsWAV(buf []byte) bool {
	return len(buf) >= 12 &&
		string(buf[0:4]) == "RIFF" &&
		string(buf[8:12]) == "WAVE"
}

// ParseFormat reads the sample format from the fixed offsets of a canonical
// PCM WAV header. Callers must check IsWAV first; on arbitrary bytes the
// returned values are garbage.
func ParseFormat(buf []byte) (Format, error) {
	if len(buf) < headerSize {
		return Format{}, ErrShortBuffer
	}
	return Format{
		NumChannels:   int(binary.LittleEndian.Uint16(buf[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(buf[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(buf[34:36])),
	}, nil
}

// PCMPayload returns the sample data after the 44-byte header. This system
// only ever produces canonical PCM headers, so no chunk walking is needed.
func PCMPayload(buf []byte) []byte {
	if len(buf) <= headerSize {
		return nil
	}
	return buf[headerSize:]
}

// BuildHeader synthesizes a canonical 44-byte RIFF/WAVE/fmt/data header for
// a PCM payload of pcmLen bytes.
func BuildHeader(pcmLen int, f Format) []byte {
	h := make([]byte, headerSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+pcmLen))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // format tag: PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(f.NumChannels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(f.ByteRate()))
	binary.LittleEndian.PutUint16(h[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(h[34:36], uint16(f.BitsPerSample))
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(pcmLen))
	return h
}

// Concatenate joins multiple audio fragments into one WAV file. The first
// buffer must be a WAV and fixes the output format. Subsequent buffers are
// header-stripped if they are WAVs themselves, otherwise they are treated as
// raw headerless PCM in the same format and appended as-is. TTS backends mix
// both shapes within a single synthesis session.
func Concatenate(buffers [][]byte) ([]byte, error) {
	if len(buffers) == 0 {
		return nil, ErrNoBuffers
	}
	if !IsWAV(buffers[0]) {
		return nil, ErrNotWAV
	}
	format, err := ParseFormat(buffers[0])
	if err != nil {
		return nil, err
	}

	payloads := make([][]byte, 0, len(buffers))
	total := 0
	for _, buf := range buffers {
		p := buf
		if IsWAV(buf) {
			p = PCMPayload(buf)
		}
		payloads = append(payloads, p)
		total += len(p)
	}

	out := make([]byte, 0, headerSize+total)
	out = append(out, BuildHeader(total, format)...)
	for _, p := range payloads {
		out = append(out, p...)
	}
	return out, nil
}

// RawPCMToWAV wraps raw Linear PCM fragments in a single WAV container and
// returns the container plus its playback duration in seconds.
func RawPCMToWAV(buffers [][]byte, f Format) ([]byte, float64, error) {
	if len(buffers) == 0 {
		return nil, 0, ErrNoBuffers
	}
	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	out := make([]byte, 0, headerSize+total)
	out = append(out, BuildHeader(total, f)...)
	for _, b := range buffers {
		out = append(out, b...)
	}
	duration := float64(total) / float64(f.ByteRate())
	return out, duration, nil
}

// DurationSeconds computes the playback duration of a WAV buffer
// analytically from its header and payload length. Returns 0, false when the
// buffer is not a parseable WAV.
func DurationSeconds(buf []byte) (float64, bool) {
	if !IsWAV(buf) {
		return 0, false
	}
	f, err := ParseFormat(buf)
	if err != nil || f.ByteRate() == 0 {
		return 0, false
	}
	return float64(len(PCMPayload(buf))) / float64(f.ByteRate()), true
}

// HeaderDuration computes playback duration from the data length declared in
// the header itself, without the payload present. This is what lets the
// duration backfill probe an object with a ranged read of just the header.
func HeaderDuration(header []byte) (float64, bool) {
	if !IsWAV(header) || len(header) < headerSize {
		return 0, false
	}
	f, err := ParseFormat(header)
	if err != nil || f.ByteRate() == 0 {
		return 0, false
	}
	dataLen := binary.LittleEndian.Uint32(header[40:44])
	return float64(dataLen) / float64(f.ByteRate()), true
}

// FormatFromMIME maps a TTS backend mime-type hint to a raw PCM format.
// Hints look like "audio/L16;codec=pcm;rate=24000". Unrecognized hints fall
// back to DefaultFormat; the second return reports whether the hint named a
// raw PCM stream at all (as opposed to a containerized format).
func FormatFromMIME(mime string) (Format, bool) {
	lower := strings.ToLower(strings.TrimSpace(mime))
	if lower == "" {
		return DefaultFormat, true
	}
	if !strings.Contains(lower, "l16") && !strings.Contains(lower, "pcm") {
		return DefaultFormat, false
	}
	f := DefaultFormat
	for _, part := range strings.Split(lower, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "rate="); ok {
			rate := 0
			for _, c := range v {
				if c < '0' || c > '9' {
					rate = 0
					break
				}
				rate = rate*10 + int(c-'0')
			}
			if rate > 0 {
				f.SampleRate = rate
			}
		}
	}
	return f, true
}
