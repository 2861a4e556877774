package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"podslice/internal/db"
	"podslice/internal/models"
	"podslice/pkg/tasks"
)

// dispatchChunkSynthesis switches a large episode to fan-out mode: every
// chunk becomes its own task and the episode finishes when the combine task
// finds no chunk pending. Chunk rows are the durable record of the split, so
// a retried dispatch reuses them instead of re-splitting.
func (h *TaskHandler) dispatchChunkSynthesis(episode models.Episode, chunks []string) error {
	if err := db.CreateAudioChunks(episode.ID, chunks); err != nil {
		return fmt.Errorf("failed to register audio chunks: %w", err)
	}

	for i := range chunks {
		task, err := tasks.NewSynthesizeChunkTask(episode.ID, i)
		if err != nil {
			return fmt.Errorf("failed to create chunk task %d: %w", i, err)
		}
		if _, err := h.asynqClient.Enqueue(task); err != nil {
			return fmt.Errorf("failed to enqueue chunk task %d: %w", i, err)
		}
	}

	log.Printf("Episode %s fanned out to %d chunk tasks", episode.ID, len(chunks))
	return nil
}

// HandleSynthesizeChunkTask renders one chunk and stores it under its index.
// A replay of an already-done chunk just re-triggers the combine check.
func (h *TaskHandler) HandleSynthesizeChunkTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.SynthesizeChunkPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	chunk, err := db.GetAudioChunk(p.EpisodeID, p.ChunkIndex)
	if err != nil {
		return fmt.Errorf("failed to get chunk %d of episode %s: %w", p.ChunkIndex, p.EpisodeID, err)
	}

	if chunk.Status != db.ChunkDone {
		episode, err := db.GetEpisode(p.EpisodeID)
		if err != nil {
			return fmt.Errorf("failed to get episode %s: %w", p.EpisodeID, err)
		}

		audio, mime, err := h.synthesizerFor(episode).Synthesize(ctx, chunk.Text, h.voices.Single)
		if err != nil {
			return fmt.Errorf("failed to synthesize chunk %d: %w", p.ChunkIndex, err)
		}

		combined, _, err := stitchBuffers([][]byte{audio}, []string{mime})
		if err != nil {
			return fmt.Errorf("failed to containerize chunk %d: %w", p.ChunkIndex, err)
		}

		objectPath := fmt.Sprintf("episodes/%s/chunks/%d.wav", p.EpisodeID, p.ChunkIndex)
		if _, err := h.store.Upload(ctx, objectPath, combined, "audio/wav"); err != nil {
			return fmt.Errorf("failed to upload chunk %d: %w", p.ChunkIndex, err)
		}
		if err := db.MarkAudioChunkDone(p.EpisodeID, p.ChunkIndex, objectPath); err != nil {
			return fmt.Errorf("failed to mark chunk %d done: %w", p.ChunkIndex, err)
		}
	}

	combine, err := tasks.NewCombineChunksTask(p.EpisodeID)
	if err != nil {
		return fmt.Errorf("failed to create combine task: %w", err)
	}
	if _, err := h.asynqClient.Enqueue(combine); err != nil {
		return fmt.Errorf("failed to enqueue combine task: %w", err)
	}
	return nil
}

// HandleCombineChunksTask is the fan-in aggregator. It runs after every
// chunk completion but proceeds only when nothing is pending, then restores
// narration order by chunk index before concatenating.
func (h *TaskHandler) HandleCombineChunksTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.CombineChunksPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	pending, err := db.CountPendingAudioChunks(p.EpisodeID)
	if err != nil {
		return fmt.Errorf("failed to count pending chunks: %w", err)
	}
	if pending > 0 {
		log.Printf("Episode %s combine deferred: %d chunks pending", p.EpisodeID, pending)
		return nil
	}

	episode, err := db.GetEpisode(p.EpisodeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("failed to get episode %s: %w", p.EpisodeID, err)
	}
	if episode.Status != db.StatusProcessing {
		// A concurrent combine already finished (or the episode failed).
		return nil
	}

	chunks, err := db.GetAudioChunksInOrder(p.EpisodeID)
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("episode %s has no chunk rows to combine", p.EpisodeID)
	}

	buffers := make([][]byte, len(chunks))
	for i, chunk := range chunks {
		if chunk.ObjectPath == nil {
			return fmt.Errorf("chunk %d of episode %s is done but has no object", chunk.ChunkIndex, p.EpisodeID)
		}
		data, err := h.store.Download(ctx, *chunk.ObjectPath)
		if err != nil {
			return fmt.Errorf("failed to download chunk %d: %w", chunk.ChunkIndex, err)
		}
		buffers[i] = data
	}

	return h.combineAndFinalize(ctx, episode, buffers, nil)
}
