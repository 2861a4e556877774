// Package ai wraps the text-generation backend for summarization and
// narration scripting, including the parse fallback chain for dialogue
// scripts.
package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Generator is the stateless text-generation capability the pipeline
// consumes. Implemented by Client, mocked in tests.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client implements Generator on the OpenAI chat completion API.
type Client struct {
	api   *openai.Client
	model string
}

// defaultModel matches the TEXT_MODEL config default.
const defaultModel = "gpt-4o-mini"

func NewClient(api *openai.Client, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{api: api, model: model}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call text generation api: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("text generation api returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Summarize condenses a transcript into neutral-tone prose.
func Summarize(ctx context.Context, g Generator, transcriptText string) (string, error) {
	prompt := fmt.Sprintf(summaryPromptTemplate, transcriptText)
	summary, err := g.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}
	if summary == "" {
		return "", fmt.Errorf("summarizer returned empty text")
	}
	return summary, nil
}

// GenerateScript turns a summary into single-narrator narration text sized
// for targetMinutes of audio.
func GenerateScript(ctx context.Context, g Generator, summary string, targetMinutes int) (string, error) {
	if targetMinutes <= 0 {
		targetMinutes = DefaultTargetMinutes
	}
	minWords := targetMinutes * WordsPerMinuteMin
	maxWords := targetMinutes * WordsPerMinuteMax

	prompt := fmt.Sprintf(scriptPromptTemplate, BrandLine, minWords, maxWords, summary)
	script, err := g.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate script: %w", err)
	}
	if script == "" {
		return "", fmt.Errorf("script generator returned empty text")
	}
	return script, nil
}

// GenerateDialogueScript turns a summary into an ordered two-speaker
// dialogue, parsing the model output through the lenient fallback chain.
func GenerateDialogueScript(ctx context.Context, g Generator, summary string, targetMinutes int) ([]DialogueLine, error) {
	if targetMinutes <= 0 {
		targetMinutes = DefaultTargetMinutes
	}
	minWords := targetMinutes * WordsPerMinuteMin
	maxWords := targetMinutes * WordsPerMinuteMax

	prompt := fmt.Sprintf(dialoguePromptTemplate, BrandLine, minWords, maxWords, summary)
	raw, err := g.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dialogue script: %w", err)
	}

	lines, err := ParseDialogue(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dialogue script: %w", err)
	}
	return lines, nil
}
