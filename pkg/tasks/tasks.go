package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TypeGenerateEpisode         = "episode:generate"
	TypeGenerateDialogueEpisode = "episode:generate_dialogue"
	TypeSynthesizeChunk         = "episode:synthesize_chunk"
	TypeCombineChunks           = "episode:combine_chunks"
	TypeBackfillDurations       = "episodes:backfill_durations"
)

// WorkflowMaxRetry is the invocation-level retry budget for generation
// workflows. It layers on top of the synthesis adapter's own retries.
const WorkflowMaxRetry = 2

// GenerateEpisodePayload triggers one episode generation workflow. The same
// payload shape serves the single- and dual-narrator variants.
type GenerateEpisodePayload struct {
	EpisodeID string
}

func NewGenerateEpisodeTask(episodeID string) (*asynq.Task, error) {
	payload, err := json.Marshal(GenerateEpisodePayload{EpisodeID: episodeID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerateEpisode, payload, asynq.MaxRetry(WorkflowMaxRetry)), nil
}

func NewGenerateDialogueEpisodeTask(episodeID string) (*asynq.Task, error) {
	payload, err := json.Marshal(GenerateEpisodePayload{EpisodeID: episodeID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerateDialogueEpisode, payload, asynq.MaxRetry(WorkflowMaxRetry)), nil
}

// SynthesizeChunkPayload is one fan-out synthesis unit for very large
// episodes. ChunkIndex orders the fan-in.
type SynthesizeChunkPayload struct {
	EpisodeID  string
	ChunkIndex int
}

func NewSynthesizeChunkTask(episodeID string, chunkIndex int) (*asynq.Task, error) {
	payload, err := json.Marshal(SynthesizeChunkPayload{EpisodeID: episodeID, ChunkIndex: chunkIndex})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSynthesizeChunk, payload, asynq.MaxRetry(WorkflowMaxRetry)), nil
}

// CombineChunksPayload asks the fan-in aggregator to check whether every
// chunk is rendered and, if so, stitch and finalize the episode.
type CombineChunksPayload struct {
	EpisodeID string
}

func NewCombineChunksTask(episodeID string) (*asynq.Task, error) {
	payload, err := json.Marshal(CombineChunksPayload{EpisodeID: episodeID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCombineChunks, payload, asynq.MaxRetry(WorkflowMaxRetry)), nil
}

func NewBackfillDurationsTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeBackfillDurations, nil), nil
}
