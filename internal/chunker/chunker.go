// Package chunker splits narration scripts into TTS-sized word chunks and
// long source videos into bounded time windows for transcript extraction.
package chunker

import "strings"

// DefaultMaxWords keeps each chunk comfortably under per-request TTS text
// limits. Chosen empirically.
const DefaultMaxWords = 125

// DefaultMaxWindowSeconds bounds a single transcription request for long
// source videos (30 minutes).
const DefaultMaxWindowSeconds = 1800

// SplitWords tokenizes text on whitespace and greedily groups tokens into
// chunks of at most maxWords words. The trailing partial chunk is always
// included. Pure and deterministic, so a retried step reproduces the same
// chunk list.
func SplitWords(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// TimeWindow is one slice of a long source video's timeline. Any boundary
// overlap is the fetching provider's concern, not encoded here.
type TimeWindow struct {
	Index   int
	Start   int // seconds from the beginning of the source
	Seconds int
}

// TimeWindows divides totalSeconds into ceil(total/max) windows of equal
// size, with the final window absorbing the remainder.
func TimeWindows(totalSeconds, maxWindowSeconds int) []TimeWindow {
	if maxWindowSeconds <= 0 {
		maxWindowSeconds = DefaultMaxWindowSeconds
	}
	if totalSeconds <= 0 {
		return nil
	}

	count := (totalSeconds + maxWindowSeconds - 1) / maxWindowSeconds
	size := totalSeconds / count

	windows := make([]TimeWindow, 0, count)
	for i := 0; i < count; i++ {
		w := TimeWindow{Index: i, Start: i * size, Seconds: size}
		if i == count-1 {
			w.Seconds = totalSeconds - w.Start
		}
		windows = append(windows, w)
	}
	return windows
}
