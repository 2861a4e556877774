// Package worker runs the episode generation workflows on the task queue.
// Each handler is written to be replay-safe: the queue retries a failed task
// from the top, and every stage checks the persisted record before redoing
// work.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"podslice/internal/ai"
	"podslice/internal/chunker"
	"podslice/internal/db"
	"podslice/internal/models"
	"podslice/internal/transcript"
	"podslice/internal/wav"
	"podslice/pkg/tasks"
)

// fanOutThreshold is the chunk count above which single-narrator synthesis
// is dispatched to parallel chunk tasks instead of running inline.
const fanOutThreshold = 12

// shortModeMinutes marks episodes short enough for the tighter TTS input
// ceiling.
const shortModeMinutes = 3

// TranscriptResolver is the provider-chain entry point.
type TranscriptResolver interface {
	Resolve(ctx context.Context, req transcript.Request) (*transcript.Result, error)
}

// SpeechSynthesizer renders text chunks to audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, string, error)
	SynthesizeDialogueLine(ctx context.Context, speaker, text, voiceA, voiceB string) ([]byte, string, error)
}

// Notifier delivers lifecycle notifications.
type Notifier interface {
	EpisodeReady(user *models.User, episode models.Episode) error
	EpisodeFailed(user *models.User, episode models.Episode) error
}

// Uploader is the slice of the storage port the workflows need.
type Uploader interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Download(ctx context.Context, path string) ([]byte, error)
}

// Voices names the configured voice identities.
type Voices struct {
	Single string
	A      string
	B      string
}

// TaskHandler wires the pipeline's collaborators into task handlers.
type TaskHandler struct {
	asynqClient tasks.TaskEnqueuer
	resolver    TranscriptResolver
	generator   ai.Generator
	synth       SpeechSynthesizer
	shortSynth  SpeechSynthesizer
	store       Uploader
	notifier    Notifier
	extractor   *DurationExtractor
	voices      Voices
}

func NewTaskHandler(
	client tasks.TaskEnqueuer,
	resolver TranscriptResolver,
	generator ai.Generator,
	synth, shortSynth SpeechSynthesizer,
	store Uploader,
	notifier Notifier,
	extractor *DurationExtractor,
	voices Voices,
) *TaskHandler {
	return &TaskHandler{
		asynqClient: client,
		resolver:    resolver,
		generator:   generator,
		synth:       synth,
		shortSynth:  shortSynth,
		store:       store,
		notifier:    notifier,
		extractor:   extractor,
		voices:      voices,
	}
}

func (h *TaskHandler) synthesizerFor(episode models.Episode) SpeechSynthesizer {
	if episode.TargetMinutes > 0 && episode.TargetMinutes <= shortModeMinutes && h.shortSynth != nil {
		return h.shortSynth
	}
	return h.synth
}

// HandleGenerateEpisodeTask runs the single-narrator generation workflow.
func (h *TaskHandler) HandleGenerateEpisodeTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.GenerateEpisodePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	log.Printf("Generating episode: %s", p.EpisodeID)

	episode, err := h.claimAndPrepare(ctx, p.EpisodeID)
	if err != nil {
		return err
	}
	if episode == nil {
		return nil // claimed by someone else, or already terminal
	}

	script, err := ai.GenerateScript(ctx, h.generator, *episode.Summary, episode.TargetMinutes)
	if err != nil {
		return fmt.Errorf("failed to generate script: %w", err)
	}

	chunks := chunker.SplitWords(script, chunker.DefaultMaxWords)
	if len(chunks) == 0 {
		return fmt.Errorf("generated script produced no chunks")
	}

	// Very large episodes fan-out to parallel chunk tasks; the combine task
	// finishes the workflow once every chunk has reported in.
	if len(chunks) > fanOutThreshold {
		return h.dispatchChunkSynthesis(*episode, chunks)
	}

	synth := h.synthesizerFor(*episode)
	buffers := make([][]byte, len(chunks))
	mimes := make([]string, len(chunks))
	for i, chunk := range chunks {
		audio, mime, err := synth.Synthesize(ctx, chunk, h.voices.Single)
		if err != nil {
			return fmt.Errorf("failed to synthesize chunk %d: %w", i, err)
		}
		buffers[i] = audio
		mimes[i] = mime
	}

	return h.combineAndFinalize(ctx, *episode, buffers, mimes)
}

// HandleGenerateDialogueEpisodeTask runs the dual-narrator variant: the
// script is an ordered list of dialogue lines, each synthesized with its
// speaker's voice.
func (h *TaskHandler) HandleGenerateDialogueEpisodeTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.GenerateEpisodePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	log.Printf("Generating dialogue episode: %s", p.EpisodeID)

	episode, err := h.claimAndPrepare(ctx, p.EpisodeID)
	if err != nil {
		return err
	}
	if episode == nil {
		return nil
	}

	lines, err := ai.GenerateDialogueScript(ctx, h.generator, *episode.Summary, episode.TargetMinutes)
	if err != nil {
		return fmt.Errorf("failed to generate dialogue script: %w", err)
	}

	synth := h.synthesizerFor(*episode)
	buffers := make([][]byte, len(lines))
	mimes := make([]string, len(lines))
	for i, line := range lines {
		audio, mime, err := synth.SynthesizeDialogueLine(ctx, line.Speaker, line.Text, h.voices.A, h.voices.B)
		if err != nil {
			return fmt.Errorf("failed to synthesize dialogue line %d: %w", i, err)
		}
		buffers[i] = audio
		mimes[i] = mime
	}

	return h.combineAndFinalize(ctx, *episode, buffers, mimes)
}

// claimAndPrepare runs the shared head of both workflows: the PROCESSING
// claim, transcript resolution and summarization. Returns nil without error
// when the claim misses (duplicate trigger or terminal record).
func (h *TaskHandler) claimAndPrepare(ctx context.Context, episodeID string) (*models.Episode, error) {
	episode, err := db.GetEpisode(episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get episode %s: %w", episodeID, err)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	claimed, err := db.ClaimEpisodeProcessing(episode.ID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim episode %s: %w", episode.ID, err)
	}
	if !claimed {
		log.Printf("Episode %s not claimable (status %s), skipping", episode.ID, episode.Status)
		return nil, nil
	}

	// Transcript: immutable once set; a replayed run reuses the stored text.
	if episode.Transcript == nil {
		kind := transcript.KindOf(episode.SourceURL)
		result, err := h.resolver.Resolve(ctx, transcript.Request{URL: episode.SourceURL, Kind: kind})
		if err != nil {
			attempts := 0
			if result != nil {
				attempts = len(result.Attempts)
			}
			return nil, fmt.Errorf("failed to resolve transcript for %s after %d attempts: %w",
				episode.SourceURL, attempts, err)
		}
		log.Printf("Episode %s transcript resolved by %s (%d attempts)", episode.ID, result.Provider, len(result.Attempts))
		if err := db.SetEpisodeTranscript(episode.ID, result.Transcript); err != nil {
			return nil, fmt.Errorf("failed to store transcript: %w", err)
		}
		episode.Transcript = &result.Transcript
	}

	// Summary is persisted as soon as it exists so a later stage's failure
	// does not lose it.
	if episode.Summary == nil {
		summary, err := ai.Summarize(ctx, h.generator, *episode.Transcript)
		if err != nil {
			return nil, fmt.Errorf("failed to generate summary: %w", err)
		}
		if err := db.SetEpisodeSummary(episode.ID, summary); err != nil {
			return nil, fmt.Errorf("failed to store summary: %w", err)
		}
		episode.Summary = &summary
	}

	return &episode, nil
}

// combineAndFinalize stitches ordered audio buffers into one WAV, uploads
// it, and completes the episode record.
func (h *TaskHandler) combineAndFinalize(ctx context.Context, episode models.Episode, buffers [][]byte, mimes []string) error {
	combined, duration, err := stitchBuffers(buffers, mimes)
	if err != nil {
		return fmt.Errorf("failed to combine audio: %w", err)
	}

	objectPath := fmt.Sprintf("episodes/%s/%d.wav", episode.ID, time.Now().Unix())
	location, err := h.store.Upload(ctx, objectPath, combined, "audio/wav")
	if err != nil {
		return fmt.Errorf("failed to upload audio: %w", err)
	}

	seconds := int(duration + 0.5)
	finalized, err := db.FinalizeEpisode(episode.ID, location, seconds)
	if err != nil {
		return fmt.Errorf("failed to finalize episode: %w", err)
	}
	if !finalized {
		log.Printf("Episode %s no longer PROCESSING, discarding finalize", episode.ID)
		return nil
	}
	log.Printf("Episode %s completed: %s (%ds)", episode.ID, location, seconds)

	// Best effort: re-derive a zero duration from the uploaded object.
	if seconds == 0 && h.extractor != nil {
		if s, err := h.extractor.ExtractForLocation(ctx, location); err != nil {
			log.Printf("Warning: duration re-extraction failed for episode %s: %v", episode.ID, err)
		} else if s > 0 {
			if err := db.SetEpisodeDuration(episode.ID, s); err != nil {
				log.Printf("Warning: failed to store re-extracted duration for episode %s: %v", episode.ID, err)
			}
		}
	}

	h.notifyReady(episode)
	return nil
}

// stitchBuffers joins synthesis outputs into one WAV container. WAV-bearing
// sessions go through header-aware concatenation; raw PCM sessions get a
// fresh container in the hinted (or default) format.
func stitchBuffers(buffers [][]byte, mimes []string) ([]byte, float64, error) {
	if len(buffers) == 0 {
		return nil, 0, wav.ErrNoBuffers
	}

	if wav.IsWAV(buffers[0]) {
		combined, err := wav.Concatenate(buffers)
		if err != nil {
			return nil, 0, err
		}
		duration, _ := wav.DurationSeconds(combined)
		return combined, duration, nil
	}

	format := wav.DefaultFormat
	if len(mimes) > 0 {
		format, _ = wav.FormatFromMIME(mimes[0])
	}
	return wavFromRaw(buffers, format)
}

func wavFromRaw(buffers [][]byte, format wav.Format) ([]byte, float64, error) {
	combined, duration, err := wav.RawPCMToWAV(buffers, format)
	if err != nil {
		return nil, 0, err
	}
	return combined, duration, nil
}

// notifyReady is fire-and-forget relative to the generation result.
func (h *TaskHandler) notifyReady(episode models.Episode) {
	if h.notifier == nil || episode.UserID == nil {
		return
	}
	user, err := db.GetUserByID(*episode.UserID)
	if err != nil {
		log.Printf("Failed to load user %d for notification: %v", *episode.UserID, err)
		return
	}
	if err := h.notifier.EpisodeReady(user, episode); err != nil {
		log.Printf("Failed to notify user %d about episode %s: %v", user.ID, episode.ID, err)
	}
}

// HandleWorkflowFailure is the dedicated failure hook, invoked by the queue
// server's error callback once a generation task has exhausted its retries.
// Its primary obligation is forcing FAILED; notification sub-failures are
// swallowed and logged.
func (h *TaskHandler) HandleWorkflowFailure(taskType string, payload []byte) {
	var p tasks.GenerateEpisodePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Printf("Failure hook could not unmarshal %s payload: %v", taskType, err)
		return
	}

	if err := db.MarkEpisodeFailed(p.EpisodeID); err != nil {
		log.Printf("Failure hook could not mark episode %s failed: %v", p.EpisodeID, err)
		return
	}
	log.Printf("Episode %s marked FAILED", p.EpisodeID)

	episode, err := db.GetEpisode(p.EpisodeID)
	if err != nil {
		log.Printf("Failure hook could not load episode %s: %v", p.EpisodeID, err)
		return
	}
	if h.notifier == nil || episode.UserID == nil {
		return
	}
	user, err := db.GetUserByID(*episode.UserID)
	if err != nil {
		log.Printf("Failure hook could not load user %d: %v", *episode.UserID, err)
		return
	}
	if err := h.notifier.EpisodeFailed(user, episode); err != nil {
		log.Printf("Failure hook could not notify user %d: %v", user.ID, err)
	}
}

// NewErrorHandler adapts the failure hook to asynq's error callback,
// firing only when a generation task has no retries left.
func NewErrorHandler(h *TaskHandler) asynq.ErrorHandlerFunc {
	generationTypes := map[string]bool{
		tasks.TypeGenerateEpisode:         true,
		tasks.TypeGenerateDialogueEpisode: true,
		tasks.TypeSynthesizeChunk:         true,
		tasks.TypeCombineChunks:           true,
	}
	return func(ctx context.Context, task *asynq.Task, err error) {
		if !generationTypes[task.Type()] {
			return
		}
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried < maxRetry {
			return
		}
		log.Printf("Task %s exhausted retries: %v", task.Type(), err)
		h.HandleWorkflowFailure(task.Type(), task.Payload())
	}
}
