package db

import (
	"fmt"

	"github.com/google/uuid"
	"podslice/internal/models"
)

const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// CreateEpisode inserts a new PENDING episode. ownerUser and ownerPodcast
// are mutually exclusive.
func CreateEpisode(ownerUser, ownerPodcast *int64, sourceURL, title, mode string, targetMinutes int) (models.Episode, error) {
	if (ownerUser == nil) == (ownerPodcast == nil) {
		return models.Episode{}, fmt.Errorf("episode must have exactly one owner")
	}
	episode := models.Episode{}
	err := DB.Get(&episode, `
		INSERT INTO episodes (id, user_id, podcast_id, source_url, title, mode, target_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`,
		uuid.NewString(), ownerUser, ownerPodcast, sourceURL, title, mode, targetMinutes)
	return episode, err
}

func GetEpisode(id string) (models.Episode, error) {
	episode := models.Episode{}
	err := DB.Get(&episode, "SELECT * FROM episodes WHERE id = $1", id)
	return episode, err
}

// ClaimEpisodeProcessing transitions PENDING -> PROCESSING with a
// compare-and-swap keyed on the worker task id. A fresh claim takes the
// PENDING row; a retry of the same task re-claims its own PROCESSING row;
// anything else (duplicate trigger, terminal state) misses and returns false.
func ClaimEpisodeProcessing(id, taskID string) (bool, error) {
	res, err := DB.Exec(`
		UPDATE episodes
		SET status = $2, task_id = $3, updated_at = NOW()
		WHERE id = $1 AND (status = $4 OR (status = $2 AND task_id = $3))`,
		id, StatusProcessing, taskID, StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetEpisodeTranscript stores the extracted transcript. The transcript is
// immutable once set; a replayed step is a no-op.
func SetEpisodeTranscript(id, transcriptText string) error {
	_, err := DB.Exec(`
		UPDATE episodes SET transcript = $2, updated_at = NOW()
		WHERE id = $1 AND transcript IS NULL`,
		id, transcriptText)
	return err
}

// SetEpisodeSummary stores the generated summary if not already present.
func SetEpisodeSummary(id, summary string) error {
	_, err := DB.Exec(`
		UPDATE episodes SET summary = $2, updated_at = NOW()
		WHERE id = $1 AND summary IS NULL`,
		id, summary)
	return err
}

// FinalizeEpisode records the uploaded audio, its duration and the COMPLETED
// status in one update. These three fields only ever change together. Returns
// false when the episode is no longer PROCESSING, e.g. it failed while the
// audio was uploading.
func FinalizeEpisode(id, audioLocation string, durationSeconds int) (bool, error) {
	res, err := DB.Exec(`
		UPDATE episodes
		SET status = $2, audio_location = $3, duration_seconds = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5`,
		id, StatusCompleted, audioLocation, durationSeconds, StatusProcessing)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkEpisodeFailed transitions PROCESSING -> FAILED. FAILED is never
// reachable from PENDING or COMPLETED.
func MarkEpisodeFailed(id string) error {
	_, err := DB.Exec(`
		UPDATE episodes SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`,
		id, StatusFailed, StatusProcessing)
	return err
}

// SetEpisodeDuration backfills a missing duration without touching status.
func SetEpisodeDuration(id string, durationSeconds int) error {
	_, err := DB.Exec(`
		UPDATE episodes SET duration_seconds = $2, updated_at = NOW()
		WHERE id = $1`,
		id, durationSeconds)
	return err
}

// GetPersonalEpisodesMissingDuration lists completed personal episodes with
// no recorded duration.
func GetPersonalEpisodesMissingDuration() ([]models.Episode, error) {
	var episodes []models.Episode
	err := DB.Select(&episodes, `
		SELECT * FROM episodes
		WHERE user_id IS NOT NULL AND duration_seconds IS NULL AND audio_location IS NOT NULL
		ORDER BY created_at`)
	return episodes, err
}

// GetCatalogEpisodesMissingDuration lists completed catalog episodes with no
// recorded duration, capped to bound batch runtime.
func GetCatalogEpisodesMissingDuration(limit int) ([]models.Episode, error) {
	var episodes []models.Episode
	err := DB.Select(&episodes, `
		SELECT * FROM episodes
		WHERE podcast_id IS NOT NULL AND duration_seconds IS NULL AND audio_location IS NOT NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	return episodes, err
}

// GetCompletedEpisodesByPodcastID lists a curated bundle's publishable
// episodes, newest first.
func GetCompletedEpisodesByPodcastID(podcastID int64) ([]models.Episode, error) {
	var episodes []models.Episode
	err := DB.Select(&episodes, `
		SELECT * FROM episodes
		WHERE podcast_id = $1 AND status = $2
		ORDER BY created_at DESC`,
		podcastID, StatusCompleted)
	return episodes, err
}

// GetCompletedEpisodesByUserID lists a user's publishable episodes for the
// personal feed, newest first.
func GetCompletedEpisodesByUserID(userID int64) ([]models.Episode, error) {
	var episodes []models.Episode
	err := DB.Select(&episodes, `
		SELECT * FROM episodes
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC`,
		userID, StatusCompleted)
	return episodes, err
}

// GetEpisodesByUserID lists a user's personal episodes, newest first.
func GetEpisodesByUserID(userID int64) ([]models.Episode, error) {
	var episodes []models.Episode
	err := DB.Select(&episodes, `
		SELECT * FROM episodes
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID)
	return episodes, err
}
