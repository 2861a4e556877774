package models

import "time"

// Podcast is a curated bundle: a fixed catalog feed that generated episodes
// are published into.
type Podcast struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	FeedUUID    string    `db:"feed_uuid"`
	CreatedAt   time.Time `db:"created_at"`
}

// Notification is an in-app notification record.
type Notification struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"-"`
	Title     string     `db:"title" json:"title"`
	Body      string     `db:"body" json:"body"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
