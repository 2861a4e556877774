package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DialogueLine is one utterance of a two-speaker script. Order is narration
// order and is preserved through synthesis and concatenation.
type DialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

var arrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// dialogueParsers are tried in order of increasing leniency; the first one
// whose output passes validation wins. Generative output is not guaranteed
// well-formed JSON, so the chain tolerates surrounding prose and markdown
// fences.
var dialogueParsers = []func(string) ([]DialogueLine, error){
	parseRawJSON,
	parseEmbeddedArray,
	parseFencedJSON,
}

// ParseDialogue extracts a validated dialogue from raw model output.
func ParseDialogue(raw string) ([]DialogueLine, error) {
	var lastErr error
	for _, parse := range dialogueParsers {
		lines, err := parse(raw)
		if err != nil {
			lastErr = err
			continue
		}
		if err := validateDialogue(lines); err != nil {
			lastErr = err
			continue
		}
		return lines, nil
	}
	return nil, fmt.Errorf("all parse strategies failed: %w", lastErr)
}

func parseRawJSON(raw string) ([]DialogueLine, error) {
	var lines []DialogueLine
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func parseEmbeddedArray(raw string) ([]DialogueLine, error) {
	match := arrayPattern.FindString(raw)
	if match == "" {
		return nil, fmt.Errorf("no JSON array found in output")
	}
	var lines []DialogueLine
	if err := json.Unmarshal([]byte(match), &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func parseFencedJSON(raw string) ([]DialogueLine, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return parseRawJSON(cleaned)
}

func validateDialogue(lines []DialogueLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("dialogue has no lines")
	}
	for i, line := range lines {
		if line.Speaker != "A" && line.Speaker != "B" {
			return fmt.Errorf("line %d has invalid speaker %q", i, line.Speaker)
		}
		if strings.TrimSpace(line.Text) == "" {
			return fmt.Errorf("line %d has empty text", i)
		}
	}
	return nil
}
