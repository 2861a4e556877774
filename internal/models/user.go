package models

import "time"

// User represents a user in the database.
type User struct {
	ID          int64     `db:"id"`
	Email       string    `db:"email"`
	FirstName   string    `db:"first_name"`
	APIToken    string    `db:"api_token"`
	FeedUUID    string    `db:"feed_uuid"`
	NotifyInApp bool      `db:"notify_in_app"`
	NotifyEmail bool      `db:"notify_email"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ContextKey is the type for request-context keys set by middleware.
type ContextKey string

// UserContextKey is the key the auth middleware stores the *User under.
const UserContextKey = ContextKey("user")
