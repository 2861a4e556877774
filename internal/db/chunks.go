package db

import "podslice/internal/models"

// Chunk statuses for the fan-out synthesis mode.
const (
	ChunkPending = "PENDING"
	ChunkDone    = "DONE"
)

// CreateAudioChunks registers the chunk list for a fan-out synthesis run.
// Re-registering the same episode is a no-op so a retried dispatch step does
// not duplicate rows.
func CreateAudioChunks(episodeID string, texts []string) error {
	for i, text := range texts {
		_, err := DB.Exec(`
			INSERT INTO audio_chunks (episode_id, chunk_index, text)
			VALUES ($1, $2, $3)
			ON CONFLICT (episode_id, chunk_index) DO NOTHING`,
			episodeID, i, text)
		if err != nil {
			return err
		}
	}
	return nil
}

func GetAudioChunk(episodeID string, index int) (models.AudioChunk, error) {
	c := models.AudioChunk{}
	err := DB.Get(&c, `
		SELECT * FROM audio_chunks WHERE episode_id = $1 AND chunk_index = $2`,
		episodeID, index)
	return c, err
}

// MarkAudioChunkDone records a chunk's rendered object. Idempotent for
// replayed synthesis tasks.
func MarkAudioChunkDone(episodeID string, index int, objectPath string) error {
	_, err := DB.Exec(`
		UPDATE audio_chunks
		SET status = $3, object_path = $4, updated_at = NOW()
		WHERE episode_id = $1 AND chunk_index = $2`,
		episodeID, index, ChunkDone, objectPath)
	return err
}

// CountPendingAudioChunks gates the combine step: it may run only at zero.
func CountPendingAudioChunks(episodeID string) (int, error) {
	var count int
	err := DB.Get(&count, `
		SELECT COUNT(*) FROM audio_chunks WHERE episode_id = $1 AND status = $2`,
		episodeID, ChunkPending)
	return count, err
}

// GetAudioChunksInOrder returns all chunk rows sorted by index, restoring
// narration order regardless of completion order.
func GetAudioChunksInOrder(episodeID string) ([]models.AudioChunk, error) {
	var chunks []models.AudioChunk
	err := DB.Select(&chunks, `
		SELECT * FROM audio_chunks WHERE episode_id = $1 ORDER BY chunk_index`,
		episodeID)
	return chunks, err
}
