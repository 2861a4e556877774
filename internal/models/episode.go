package models

import "time"

// Episode generation modes.
const (
	ModeSingle   = "single"
	ModeDialogue = "dialogue"
)

// Episode is a generated summary episode. Exactly one of UserID (personal
// episode) and PodcastID (curated catalog episode) is set.
type Episode struct {
	ID              string    `db:"id" json:"id"`
	UserID          *int64    `db:"user_id" json:"-"`
	PodcastID       *int64    `db:"podcast_id" json:"-"`
	SourceURL       string    `db:"source_url" json:"source_url"`
	Title           string    `db:"title" json:"title"`
	Mode            string    `db:"mode" json:"mode"`
	TargetMinutes   int       `db:"target_minutes" json:"target_minutes"`
	Transcript      *string   `db:"transcript" json:"-"`
	Summary         *string   `db:"summary" json:"summary,omitempty"`
	AudioLocation   *string   `db:"audio_location" json:"-"`
	DurationSeconds *int      `db:"duration_seconds" json:"duration_seconds,omitempty"`
	Status          string    `db:"status" json:"status"`
	TaskID          *string   `db:"task_id" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// AudioChunk is the bookkeeping row for one fan-out synthesis unit. The
// chunk index is load-bearing: completion events arrive out of order and the
// combine step resequences by it.
type AudioChunk struct {
	EpisodeID  string    `db:"episode_id"`
	ChunkIndex int       `db:"chunk_index"`
	Text       string    `db:"text"`
	ObjectPath *string   `db:"object_path"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}
